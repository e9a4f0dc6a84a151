package ports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/betbot/exbinance/internal/domain"
)

// Small capability interfaces shared across layers (gateway/services/sink).
//
// NOTE: This package is intentionally "neutral" to avoid circular dependencies
// between the gateway, the caches and the downstream quote feed.

// QuoteSink consumes best bid/ask changes from the order book cache.
// Implementations must be non-blocking; delivery failures never propagate
// back into the cache.
type QuoteSink interface {
	ConsumeBidAsk(symbol string, bid, ask decimal.Decimal, timestamp time.Time)
}

// DepthUpdateHandler receives replace-style depth snapshots from the
// streaming feed, serialized per symbol by the stream reader.
type DepthUpdateHandler interface {
	OnDepthUpdate(snapshot *domain.OrderBookSnapshot)
}

// DepthUpdateHandlerFunc adapts a plain function to DepthUpdateHandler.
type DepthUpdateHandlerFunc func(snapshot *domain.OrderBookSnapshot)

func (f DepthUpdateHandlerFunc) OnDepthUpdate(snapshot *domain.OrderBookSnapshot) {
	f(snapshot)
}
