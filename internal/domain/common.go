package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Signal is the verdict produced by a strategy evaluation.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalHold Signal = "HOLD"
	SignalSell Signal = "SELL"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss     CloseReason = "SL"
	CloseReasonTakeProfit   CloseReason = "TP"
	CloseReasonTrailingStop CloseReason = "TRAILING_STOP"
	CloseReasonSignal       CloseReason = "SIGNAL"
	// CloseReasonDefensive marks a position closed because its protective
	// order vanished from the exchange and the fill could not be confirmed.
	CloseReasonDefensive CloseReason = "DEFENSIVE"
	CloseReasonManual    CloseReason = "MANUAL"
	CloseReasonUnknown   CloseReason = "UNKNOWN"
)
