package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
	"github.com/betbot/exbinance/internal/ports"
)

// mockGateway 以内存订单簿模拟交易所行为：按 client order id 去重、
// 下单后经过 visibleAfter 次查询才可见（模拟确认延迟）。
type mockGateway struct {
	mu sync.Mutex

	symbolFilters []gateway.SymbolFilters
	marginPairs   []gateway.MarginPair
	balances      []gateway.AssetBalance
	borrowables   map[string]decimal.Decimal

	filtersErr    error
	pairsErr      error
	balancesErr   error
	borrowableErr map[string]error
	placeErr      error
	lookupErr     error

	// 下单后需要的额外查询次数才变为可见
	visibleAfter int
	fillPrice    decimal.Decimal // 成交均价（cumQuote = qty * fillPrice）
	fillStatus   string          // 默认 FILLED

	orders      map[string]*gateway.MarginOrder // key: clientOrderID
	lookupCount map[string]int
	placeCalls  int
	nextOrderID int64
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		borrowables:   make(map[string]decimal.Decimal),
		borrowableErr: make(map[string]error),
		fillPrice:     decimal.NewFromInt(100),
		orders:        make(map[string]*gateway.MarginOrder),
		lookupCount:   make(map[string]int),
		nextOrderID:   1000,
	}
}

func (m *mockGateway) Name() string { return "binance" }

func (m *mockGateway) FetchSymbolFilters(ctx context.Context) ([]gateway.SymbolFilters, error) {
	if m.filtersErr != nil {
		return nil, m.filtersErr
	}
	return m.symbolFilters, nil
}

func (m *mockGateway) FetchMarginPairs(ctx context.Context) ([]gateway.MarginPair, error) {
	if m.pairsErr != nil {
		return nil, m.pairsErr
	}
	return m.marginPairs, nil
}

func (m *mockGateway) FetchMarginBalances(ctx context.Context) ([]gateway.AssetBalance, error) {
	if m.balancesErr != nil {
		return nil, m.balancesErr
	}
	return m.balances, nil
}

func (m *mockGateway) FetchMaxBorrowable(ctx context.Context, asset string) (decimal.Decimal, error) {
	if err := m.borrowableErr[asset]; err != nil {
		return decimal.Zero, err
	}
	return m.borrowables[asset], nil
}

func (m *mockGateway) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal, clientOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.placeCalls++
	if m.placeErr != nil {
		return m.placeErr
	}
	if _, exists := m.orders[clientOrderID]; exists {
		// 交易所按 client order id 去重
		return errors.New("duplicate client order id")
	}

	status := m.fillStatus
	if status == "" {
		status = gateway.OrderStatusFilled
	}
	m.nextOrderID++
	m.orders[clientOrderID] = &gateway.MarginOrder{
		Symbol:              symbol,
		OrderID:             m.nextOrderID,
		ClientOrderID:       clientOrderID,
		Side:                string(side),
		Status:              status,
		ExecutedQty:         quantity,
		CummulativeQuoteQty: quantity.Mul(m.fillPrice),
		UpdateTime:          1700000000000,
	}
	return nil
}

func (m *mockGateway) GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) gateway.OrderLookup {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lookupErr != nil {
		return gateway.FailedLookup(m.lookupErr)
	}

	m.lookupCount[clientOrderID]++
	order, ok := m.orders[clientOrderID]
	if !ok {
		return gateway.AbsentOrder()
	}
	if m.lookupCount[clientOrderID] <= m.visibleAfter {
		return gateway.AbsentOrder()
	}
	cp := *order
	return gateway.FoundOrder(&cp)
}

// seedOrder 预置一个已存在的订单（幂等路径测试用）。
func (m *mockGateway) seedOrder(order *gateway.MarginOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ClientOrderID] = order
	// 预置订单立即可见
	m.lookupCount[order.ClientOrderID] = m.visibleAfter
}

// fakeDepthStream 把 Start 收到的 handler 暴露出来，测试直接注入快照。
type fakeDepthStream struct {
	handler  ports.DepthUpdateHandler
	startErr error
	stopped  int
}

func (f *fakeDepthStream) Start(ctx context.Context, handler ports.DepthUpdateHandler) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = handler
	return nil
}

func (f *fakeDepthStream) Stop() { f.stopped++ }

// fakeSink 记录收到的报价通知。
type fakeSink struct {
	mu    sync.Mutex
	calls []sinkCall
}

type sinkCall struct {
	symbol   string
	bid, ask decimal.Decimal
}

func (s *fakeSink) ConsumeBidAsk(symbol string, bid, ask decimal.Decimal, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{symbol: symbol, bid: bid, ask: ask})
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeSink) last() sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[len(s.calls)-1]
}
