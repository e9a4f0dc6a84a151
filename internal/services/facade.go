package services

import (
	"context"

	"github.com/betbot/exbinance/internal/domain"
)

// TradingFacade 交易侧查询入口：组合余额/元数据缓存与执行器。
// 除 MarketTrade 外的所有操作都只读缓存快照，永不因上游瞬时故障失败。
type TradingFacade struct {
	name     string
	markets  *MarketCache
	balances *BalanceCache
	executor *TradeExecutor
}

// NewTradingFacade 创建交易门面；name 是交易所标识（GetName 返回值）。
func NewTradingFacade(name string, markets *MarketCache, balances *BalanceCache, executor *TradeExecutor) *TradingFacade {
	return &TradingFacade{name: name, markets: markets, balances: balances, executor: executor}
}

// GetName 返回交易所标识。
func (f *TradingFacade) GetName() string {
	return f.name
}

// GetBalances 返回当前余额快照（冷启动时可能为空）。
func (f *TradingFacade) GetBalances() []domain.Balance {
	return f.balances.GetBalances()
}

// GetMarketInfo 按 symbol 返回市场元数据。
func (f *TradingFacade) GetMarketInfo(symbol string) (domain.MarketInfo, bool) {
	return f.markets.GetMarket(symbol)
}

// GetMarketInfoList 返回全部市场元数据。
func (f *TradingFacade) GetMarketInfoList() []domain.MarketInfo {
	return f.markets.GetMarkets()
}

// MarketTrade 执行市价单。唯一可能向调用方返回显式错误的操作，
// 最坏情况阻塞约 5.5 秒。
func (f *TradingFacade) MarketTrade(ctx context.Context, req *domain.TradeRequest) (*domain.TradeResult, error) {
	return f.executor.MarketTrade(ctx, req)
}

// MarketDataFacade 行情侧查询入口：组合订单簿缓存与元数据缓存。
type MarketDataFacade struct {
	name    string
	markets *MarketCache
	books   *OrderBookCache
}

// NewMarketDataFacade 创建行情门面。
func NewMarketDataFacade(name string, markets *MarketCache, books *OrderBookCache) *MarketDataFacade {
	return &MarketDataFacade{name: name, markets: markets, books: books}
}

// GetName 返回交易所标识。
func (f *MarketDataFacade) GetName() string {
	return f.name
}

// GetSymbols 返回当前元数据缓存内的全部交易对。
func (f *MarketDataFacade) GetSymbols() []string {
	markets := f.markets.GetMarkets()
	symbols := make([]string, 0, len(markets))
	for _, m := range markets {
		symbols = append(symbols, m.Symbol)
	}
	return symbols
}

// HasSymbol 判断交易对是否在元数据缓存内。
func (f *MarketDataFacade) HasSymbol(symbol string) bool {
	_, ok := f.markets.GetMarket(symbol)
	return ok
}

// GetOrderBook 返回订单簿快照；该交易对尚无数据时返回 (nil, false)。
func (f *MarketDataFacade) GetOrderBook(symbol string) (*domain.OrderBookSnapshot, bool) {
	return f.books.GetOrderBook(symbol)
}
