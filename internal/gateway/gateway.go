package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/betbot/exbinance/internal/domain"
	"github.com/betbot/exbinance/internal/ports"
)

// Gateway is the narrow capability surface over the exchange's REST API.
// The connector core consumes only this interface; the concrete Binance
// client lives in gateway/binance.
type Gateway interface {
	// Name identifies the exchange ("binance").
	Name() string

	// FetchSymbolFilters returns the full symbol dictionary with price/quantity
	// increments and the minimum order quantity.
	FetchSymbolFilters(ctx context.Context) ([]SymbolFilters, error)

	// FetchMarginPairs returns the tradeable margin pair definitions.
	FetchMarginPairs(ctx context.Context) ([]MarginPair, error)

	// FetchMarginBalances returns the margin account balances for all assets
	// the exchange reports, unfiltered.
	FetchMarginBalances(ctx context.Context) ([]AssetBalance, error)

	// FetchMaxBorrowable returns the maximum borrowable amount for one asset.
	FetchMaxBorrowable(ctx context.Context, asset string) (decimal.Decimal, error)

	// PlaceMarketOrder submits a margin market order tagged with the given
	// client order id. The exchange deduplicates by client order id.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity decimal.Decimal, clientOrderID string) error

	// GetOrderByClientID looks up an order by (symbol, client order id).
	// The "unknown order" response is a normal Absent outcome, not a failure.
	GetOrderByClientID(ctx context.Context, symbol, clientOrderID string) OrderLookup
}

// DepthStream is the push feed of per-symbol depth snapshots.
type DepthStream interface {
	// Start subscribes the configured symbols and delivers snapshots to the
	// handler until Stop or context cancellation.
	Start(ctx context.Context, handler ports.DepthUpdateHandler) error

	// Stop closes the subscription. Safe to call twice, and safe to call
	// even if Start failed partway.
	Stop()
}

// SymbolFilters carries the raw increment strings from the symbol dictionary.
// Increments stay strings until precision derivation so trailing zeros from the
// wire ("0.00100000") survive intact.
type SymbolFilters struct {
	Symbol            string
	PriceIncrement    string // tick size
	QuantityIncrement string // step size
	MinQuantity       string
}

// MarginPair is one tradeable margin symbol definition.
type MarginPair struct {
	Symbol string
	Base   string
	Quote  string
}

// AssetBalance is one margin account balance entry.
type AssetBalance struct {
	Asset string
	Free  decimal.Decimal
}

// MarginOrder is the exchange's view of a placed order.
type MarginOrder struct {
	Symbol              string
	OrderID             int64
	ClientOrderID       string
	Side                string // BUY / SELL
	Status              string // NEW / PARTIALLY_FILLED / FILLED / ...
	ExecutedQty         decimal.Decimal
	CummulativeQuoteQty decimal.Decimal
	UpdateTime          int64 // unix millis
}

// OrderStatusFilled is the only acceptable terminal state for a market order.
const OrderStatusFilled = "FILLED"

// LookupState tags the outcome of an order lookup so callers branch on an
// explicit state instead of matching error payloads.
type LookupState int

const (
	LookupFound LookupState = iota
	LookupAbsent
	LookupFailed
)

// OrderLookup is the tagged outcome of GetOrderByClientID.
type OrderLookup struct {
	State LookupState
	Order *MarginOrder // set when State == LookupFound
	Err   error        // set when State == LookupFailed
}

func FoundOrder(o *MarginOrder) OrderLookup {
	return OrderLookup{State: LookupFound, Order: o}
}

func AbsentOrder() OrderLookup {
	return OrderLookup{State: LookupAbsent}
}

func FailedLookup(err error) OrderLookup {
	return OrderLookup{State: LookupFailed, Err: err}
}
