package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these; core components
// return them directly so callers can branch with errors.Is.
var (
	// General errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Exchange errors
	ErrExchangeUnavailable  = errors.New("exchange reported non-nominal status")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")
	ErrInvalidAPIKeys       = errors.New("invalid API keys or permissions")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderNotFound        = errors.New("order not found on the exchange")
	ErrOrderPlacementFailed = errors.New("failed to place order")
	ErrOrderCancelFailed    = errors.New("failed to cancel order")

	// Position lifecycle errors. Opening an already-open symbol or reading an
	// unregistered one is a programming error, never silently absorbed.
	ErrPositionAlreadyOpen  = errors.New("position already open for symbol")
	ErrSymbolNotTracked     = errors.New("symbol is not registered in the ledger")
	ErrMaxPositionsReached  = errors.New("maximum concurrent open positions reached")
	ErrUnprotectedPosition  = errors.New("open position has no live protective order")
	ErrHandlerBusy          = errors.New("execution handler is not idle")
	ErrEmergencyState       = errors.New("execution handler requires manual reconciliation")

	// Database errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
)
