package services

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/gateway"
)

// MarketCache 市场元数据缓存。
//
// 持有白名单内交易对的 MarketInfo 列表与衍生的资产宇宙（base+quote 去重）。
// 元数据在进程生命周期内只成功加载一次：Refresh 仅在缓存为空时真正拉取，
// 之后是幂等 no-op（元数据本身不随时间变，变的只有白名单配置）。
type MarketCache struct {
	gw        gateway.Gateway
	allowList map[string]struct{}

	mu      sync.RWMutex
	markets []domain.MarketInfo
	assets  map[string]struct{}

	log *logrus.Entry
}

// NewMarketCache 创建元数据缓存；instruments 是配置的交易对白名单。
func NewMarketCache(gw gateway.Gateway, instruments []string) *MarketCache {
	allowList := make(map[string]struct{}, len(instruments))
	for _, s := range instruments {
		allowList[s] = struct{}{}
	}
	return &MarketCache{
		gw:        gw,
		allowList: allowList,
		assets:    make(map[string]struct{}),
		log:       logrus.WithField("component", "market_cache"),
	}
}

// Refresh 在缓存为空时拉取 symbol 字典与 margin pair 列表并整体替换缓存。
// 任何错误只记日志，保留之前的缓存（可能为空），不向调用方抛出：
// 下一个余额刷新周期会再次带动重试。
func (c *MarketCache) Refresh(ctx context.Context) {
	c.mu.RLock()
	populated := len(c.markets) > 0
	c.mu.RUnlock()
	if populated {
		return
	}

	filters, err := c.gw.FetchSymbolFilters(ctx)
	if err != nil {
		c.log.Errorf("拉取 symbol 字典失败: %v", err)
		return
	}
	pairs, err := c.gw.FetchMarginPairs(ctx)
	if err != nil {
		c.log.Errorf("拉取 margin pair 列表失败: %v", err)
		return
	}

	filterBySymbol := make(map[string]gateway.SymbolFilters, len(filters))
	for _, f := range filters {
		filterBySymbol[f.Symbol] = f
	}

	markets := make([]domain.MarketInfo, 0, len(c.allowList))
	for _, pair := range pairs {
		if _, ok := c.allowList[pair.Symbol]; !ok {
			continue
		}
		f, ok := filterBySymbol[pair.Symbol]
		if !ok {
			// margin pair 在 symbol 字典缺失：无法推导精度，跳过
			c.log.Warnf("交易对 %s 缺少 symbol 字典条目，跳过", pair.Symbol)
			continue
		}

		minVolume, err := decimal.NewFromString(f.MinQuantity)
		if err != nil {
			minVolume = decimal.Zero
		}
		m := domain.MarketInfo{
			Symbol:         pair.Symbol,
			BaseAsset:      pair.Base,
			QuoteAsset:     pair.Quote,
			PriceAccuracy:  domain.PrecisionFromIncrement(f.PriceIncrement),
			VolumeAccuracy: domain.PrecisionFromIncrement(f.QuantityIncrement),
			MinVolume:      minVolume,
		}
		if !m.IsValid() {
			c.log.Warnf("交易对 %s 元数据不完整，跳过", pair.Symbol)
			continue
		}
		markets = append(markets, m)
	}

	assets := domain.AssetUniverse(markets)

	c.mu.Lock()
	c.markets = markets
	c.assets = assets
	c.mu.Unlock()

	c.log.Infof("市场元数据已加载: %d 个交易对, %d 个资产", len(markets), len(assets))
}

// GetMarkets 返回当前快照的副本，不阻塞。
func (c *MarketCache) GetMarkets() []domain.MarketInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.MarketInfo, len(c.markets))
	copy(out, c.markets)
	return out
}

// GetMarket 按 symbol 查找元数据。
func (c *MarketCache) GetMarket(symbol string) (domain.MarketInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.markets {
		if m.Symbol == symbol {
			return m, true
		}
	}
	return domain.MarketInfo{}, false
}

// AssetUniverse 返回当前资产宇宙的副本。
func (c *MarketCache) AssetUniverse() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{}, len(c.assets))
	for a := range c.assets {
		out[a] = struct{}{}
	}
	return out
}
