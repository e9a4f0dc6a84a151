package binance

import "github.com/shopspring/decimal"

// Wire DTOs for the Binance REST endpoints this connector touches.
// Increments stay as strings on purpose: precision derivation counts the
// digits of the raw increment, so values like "0.00100000" must not be
// re-serialized by a numeric type before that happens.

type exchangeInfoResponse struct {
	Symbols []exchangeSymbol `json:"symbols"`
}

type exchangeSymbol struct {
	Symbol  string         `json:"symbol"`
	Status  string         `json:"status"`
	Filters []symbolFilter `json:"filters"`
}

type symbolFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"` // PRICE_FILTER
	StepSize   string `json:"stepSize"` // LOT_SIZE
	MinQty     string `json:"minQty"`   // LOT_SIZE
}

const (
	filterTypePrice   = "PRICE_FILTER"
	filterTypeLotSize = "LOT_SIZE"
)

type marginPairPayload struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

type marginAccountResponse struct {
	UserAssets []marginUserAsset `json:"userAssets"`
}

type marginUserAsset struct {
	Asset string          `json:"asset"`
	Free  decimal.Decimal `json:"free"`
}

type maxBorrowableResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type marginOrderPayload struct {
	Symbol              string          `json:"symbol"`
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	Side                string          `json:"side"`
	Status              string          `json:"status"`
	ExecutedQty         decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	UpdateTime          int64           `json:"updateTime"`
}
