package domain

import "time"

// Trade is an immutable record of a completed round trip, appended to the
// trade-history ledger when a position closes.
type Trade struct {
	ID          int64       // Unique identifier (assigned by the repository)
	Symbol      string      // Trading symbol (e.g., "ETHUSDT")
	Size        float64     // Amount of base asset traded
	EntryPrice  float64     // Price at which the position was entered
	ExitPrice   float64     // Price at which the position was exited
	EntryValue  float64     // Notional cost at entry
	PNL         float64     // Realized profit and loss
	EntryTime   time.Time   // Timestamp of the entry fill
	ExitTime    time.Time   // Timestamp of the exit fill
	CloseReason CloseReason // Why the position was closed
}
