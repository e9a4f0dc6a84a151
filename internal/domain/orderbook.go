package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLevel 订单簿单档（价格 + 数量）。
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBookSnapshot 某个交易对的订单簿快照。
// 对外暴露时保证 Bids 按价格降序、Asks 按价格升序；快照是整体生成的，
// 读者不会看到半更新状态。
type OrderBookSnapshot struct {
	Symbol string
	Time   time.Time
	Bids   []PriceLevel
	Asks   []PriceLevel
}

// BestBid 返回最优买价；空簿返回 (zero, false)。
func (s *OrderBookSnapshot) BestBid() (decimal.Decimal, bool) {
	if s == nil || len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk 返回最优卖价；空簿返回 (zero, false)。
func (s *OrderBookSnapshot) BestAsk() (decimal.Decimal, bool) {
	if s == nil || len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// IsCrossed 判断买一是否越过卖一（双边都有数据时）。
// 订单簿缓存用它拒绝瞬时不一致的更新：宁可保留旧数据，也不暴露交叉簿。
func (s *OrderBookSnapshot) IsCrossed() bool {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return false
	}
	return bid.GreaterThanOrEqual(ask)
}
