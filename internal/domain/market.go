package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MarketInfo 市场元数据快照（不可变）。
// 由交易所 symbol 字典与 margin pair 列表推导，精度字段来自最小报价/数量增量。
type MarketInfo struct {
	Symbol         string          // 交易对，例如 BTCUSDT
	BaseAsset      string          // 基础资产，例如 BTC
	QuoteAsset     string          // 计价资产，例如 USDT
	PriceAccuracy  int             // 价格小数位数（tick size 推导）
	VolumeAccuracy int             // 数量小数位数（step size 推导）
	MinVolume      decimal.Decimal // 最小下单数量
}

// IsValid 校验元数据是否完整（进入缓存前的硬校验）。
func (m *MarketInfo) IsValid() bool {
	return m.Symbol != "" && m.BaseAsset != "" && m.QuoteAsset != "" &&
		m.PriceAccuracy >= 0 && m.VolumeAccuracy >= 0
}

// PrecisionFromIncrement 由最小增量字符串计算小数位数。
//
// 交易所返回的增量带尾随零（例如 "0.00100000"），有效精度按去掉尾随零后的
// 小数位数计算："0.00100000" -> 3，"1.00000000" -> 0，整数增量 -> 0。
func PrecisionFromIncrement(increment string) int {
	s := strings.TrimSpace(increment)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(s[dot+1:], "0")
	return len(frac)
}

// AssetUniverse 返回一组市场引用到的全部资产（base + quote，去重）。
func AssetUniverse(markets []MarketInfo) map[string]struct{} {
	assets := make(map[string]struct{}, len(markets)*2)
	for _, m := range markets {
		assets[m.BaseAsset] = struct{}{}
		assets[m.QuoteAsset] = struct{}{}
	}
	return assets
}
