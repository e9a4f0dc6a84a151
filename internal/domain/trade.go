package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 交易方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// IsValid 校验方向取值。
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// TradeRequest 市价单请求。
// Volume 恒为非负，方向由 Side 表达；ReferenceID 为空时由执行器生成，
// 生成后即是幂等的唯一键。
type TradeRequest struct {
	Symbol      string
	Side        Side
	Volume      decimal.Decimal
	ReferenceID string
}

// TradeResult 规范化成交结果。
// Volume 带符号：买入为正，卖出为负。Price 已按市场价格精度舍入
// （元数据尚未加载时保持原始值，见执行器说明）。
type TradeResult struct {
	ReferenceID string          // 幂等键（即交易所 client order id）
	OrderID     string          // 交易所订单 ID
	Symbol      string
	Side        Side
	Volume      decimal.Decimal // 带符号成交数量
	Price       decimal.Decimal // 成交均价
	Time        time.Time       // 交易所上报的更新时间
	Source      string          // 交易所标识
}
