package ports

import (
	"context"
	"time"

	"swingTraderBot/internal/domain"
)

// Order statuses as reported by GetOrder. The set is intentionally coarse:
// the orchestrator only ever branches on open / filled / canceled.
const (
	OrderStatusNew             = "NEW"
	OrderStatusPartiallyFilled = "PARTIALLY_FILLED"
	OrderStatusFilled          = "FILLED"
	OrderStatusCanceled        = "CANCELED"
	OrderStatusExpired         = "EXPIRED"
)

// OrderResponse represents the essential details of an order as returned by
// placement and status queries.
type OrderResponse struct {
	OrderID       int64     // Exchange's order ID
	Symbol        string    // Symbol for the order
	ClientOrderID string    // Caller-supplied order ID
	Price         float64   // Order price (0 for market orders)
	AvgPrice      float64   // Average filled price
	OrigQuantity  float64   // Quantity originally requested
	ExecutedQty   float64   // Quantity filled so far
	Status        string    // One of the OrderStatus* constants
	Side          string    // BUY or SELL
	Type          string    // Order type (MARKET, LIMIT, STOP_MARKET, ...)
	Timestamp     time.Time // Time the response was generated
}

// IsFilled reports whether the order is completely filled.
func (o *OrderResponse) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// ExchangeClient defines the capability set the core consumes from the
// exchange boundary. All calls are synchronous and block the trading loop.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's clock with the exchange.
	SetServerTime(ctx context.Context) error

	// GetTickerPrice retrieves the last traded price for a symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetKlines retrieves the most recent historical candles for a symbol.
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)

	// GetAccountBalance retrieves the available balance for an asset (e.g., "USDT").
	GetAccountBalance(ctx context.Context, asset string) (float64, error)

	// PlaceMarketOrder places a market order.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*OrderResponse, error)

	// PlaceLimitOrder places a GTC limit order.
	PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*OrderResponse, error)

	// PlaceStopMarketOrder places a stop-market order triggered at stopPrice.
	PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*OrderResponse, error)

	// PlaceBracket places the protective pair for a long position: a
	// stop-market sell at stopPrice and a take-profit sell at takeProfitPrice.
	// If the second leg fails the first is canceled best-effort before the
	// error is returned, so a partial bracket is never left behind.
	PlaceBracket(ctx context.Context, symbol string, quantity, takeProfitPrice, stopPrice float64) (*domain.BracketRef, error)

	// CancelOrder cancels an open order by ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)

	// CancelBracket cancels both protective orders of a bracket. Orders that
	// no longer exist are tolerated (they may have filled or been canceled).
	CancelBracket(ctx context.Context, symbol string, ref *domain.BracketRef) error

	// GetOrder retrieves the current state of an order. Returns an error
	// wrapping ErrOrderNotFound if the exchange no longer knows the order.
	GetOrder(ctx context.Context, symbol string, orderID int64) (*OrderResponse, error)

	// CheckHealth probes the exchange. A nil return means nominal; an error
	// wrapping ErrExchangeUnavailable means the exchange reported a problem,
	// anything else means the probe itself could not be completed.
	CheckHealth(ctx context.Context) error
}
