package domain

import "time"

// BracketRef references the pair of exchange-side protective orders (a
// stop-loss and a take-profit) guarding a freshly opened position.
type BracketRef struct {
	StopOrderID       int64 `json:"stop_order_id"`
	TakeProfitOrderID int64 `json:"take_profit_order_id"`
}

// PositionState is the authoritative record of a single symbol's position.
// A zero Size means the symbol is flat. All mutation happens through the
// PositionLedger and the TrailingStopEngine; nothing else writes to it.
type PositionState struct {
	Symbol     string    // Trading symbol (e.g., "ETHUSDT")
	Size       float64   // Amount of base asset held; 0 means flat. Never negative.
	EntryPrice float64   // Price at which the position was entered
	EntryValue float64   // Notional cost at entry (size * entry price)
	EntryTime  time.Time // Timestamp of the entry fill

	// Protective order references. Bracket is set on open and cleared once
	// the trailing stop supersedes it; StopOrderID holds the standalone
	// trailing stop order after arming. Both zero on an open position is an
	// error condition requiring manual reconciliation.
	Bracket     *BracketRef
	StopOrderID int64

	CurrentStopPrice      float64 // Active protective exit price; never decreases while open
	TrailingStopActivated bool    // False until the breakeven stop has been armed
	HighestPriceSeen      float64 // Running maximum price observed since entry
}

// IsOpen reports whether the symbol currently holds a position.
func (p *PositionState) IsOpen() bool {
	return p.Size > 0
}

// IsProtected reports whether at least one protective order reference is
// tracked for the position. An open, unprotected position is a critical
// condition the trailing engine works to repair every tick.
func (p *PositionState) IsProtected() bool {
	return p.Bracket != nil || p.StopOrderID != 0
}
