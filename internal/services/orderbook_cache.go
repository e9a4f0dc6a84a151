package services

import (
	"context"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
	"github.com/betbot/exbinance/internal/ports"
)

// OrderBookCache 订单簿缓存。
//
// 消费深度流的快照式更新，按交易对整体替换买卖档位；最优价变化时向下游
// 报价 sink 扇出。sink 的投递失败不影响缓存自身状态。
type OrderBookCache struct {
	stream gateway.DepthStream
	sink   ports.QuoteSink // 可为 nil（未配置下游推送）

	mu    sync.RWMutex
	books map[string]*domain.OrderBookSnapshot

	started bool
	log     *logrus.Entry
}

// NewOrderBookCache 创建订单簿缓存；sink 为 nil 时不做推送。
func NewOrderBookCache(stream gateway.DepthStream, sink ports.QuoteSink) *OrderBookCache {
	return &OrderBookCache{
		stream: stream,
		sink:   sink,
		books:  make(map[string]*domain.OrderBookSnapshot),
		log:    logrus.WithField("component", "orderbook_cache"),
	}
}

// Start 订阅深度流。
func (c *OrderBookCache) Start(ctx context.Context) error {
	if err := c.stream.Start(ctx, ports.DepthUpdateHandlerFunc(c.applyUpdate)); err != nil {
		return err
	}
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

// Stop 取消订阅并释放下游 sink 资源。
// Start 失败或从未调用时执行也安全（双重停止不报错）。
func (c *OrderBookCache) Stop() {
	c.stream.Stop()
	if closer, ok := c.sink.(interface{ Stop() }); ok && closer != nil {
		closer.Stop()
	}
}

// applyUpdate 应用一条快照式深度更新。
// 同一交易对的更新由流的读循环串行投递；不同交易对互不阻塞读请求。
func (c *OrderBookCache) applyUpdate(snapshot *domain.OrderBookSnapshot) {
	if snapshot == nil || snapshot.Symbol == "" {
		return
	}

	// 入库前排序：bids 价格降序，asks 价格升序
	sort.Slice(snapshot.Bids, func(i, j int) bool {
		return snapshot.Bids[i].Price.GreaterThan(snapshot.Bids[j].Price)
	})
	sort.Slice(snapshot.Asks, func(i, j int) bool {
		return snapshot.Asks[i].Price.LessThan(snapshot.Asks[j].Price)
	})

	// 交叉簿说明推送瞬时不一致：丢弃本条，保留旧快照
	if snapshot.IsCrossed() {
		c.log.Debugf("丢弃交叉簿更新 %s", snapshot.Symbol)
		return
	}

	c.mu.Lock()
	prev := c.books[snapshot.Symbol]
	c.books[snapshot.Symbol] = snapshot
	c.mu.Unlock()

	if c.sink == nil {
		return
	}

	newBid, okBid := snapshot.BestBid()
	newAsk, okAsk := snapshot.BestAsk()
	if !okBid || !okAsk {
		return
	}

	// 只在最优价变化时通知下游
	if prev != nil {
		oldBid, hadBid := prev.BestBid()
		oldAsk, hadAsk := prev.BestAsk()
		if hadBid && hadAsk && oldBid.Equal(newBid) && oldAsk.Equal(newAsk) {
			return
		}
	}
	// 锁外投递；sink 自身吞掉投递失败
	c.sink.ConsumeBidAsk(snapshot.Symbol, newBid, newAsk, snapshot.Time)
}

// GetOrderBook 返回某交易对的订单簿快照副本（bids 降序 / asks 升序）。
// 尚无数据时返回 (nil, false)。
func (c *OrderBookCache) GetOrderBook(symbol string) (*domain.OrderBookSnapshot, bool) {
	c.mu.RLock()
	book, ok := c.books[symbol]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	// 返回副本：外部读者拿不到缓存内部可变状态的引用
	out := &domain.OrderBookSnapshot{
		Symbol: book.Symbol,
		Time:   book.Time,
		Bids:   make([]domain.PriceLevel, len(book.Bids)),
		Asks:   make([]domain.PriceLevel, len(book.Asks)),
	}
	copy(out.Bids, book.Bids)
	copy(out.Asks, book.Asks)
	return out, true
}
