package domain

import "github.com/shopspring/decimal"

// Balance 账户余额（margin 账户口径）。
// 每个当前市场宇宙中的资产最多一条；刷新时整体替换，不与旧值合并。
type Balance struct {
	Asset   string          // 资产，例如 BTC
	Balance decimal.Decimal // 账户余额（free）
	Free    decimal.Decimal // 可借额度（max borrowable）
}
