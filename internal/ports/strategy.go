package ports

import (
	"context"

	"swingTraderBot/internal/domain"
)

// Strategy is the pluggable signal generator consulted for entries and
// strategy-driven exits. Implementations must be side-effect free.
type Strategy interface {
	// RequiredDataPoints returns the minimum number of klines the strategy
	// needs before it can produce a meaningful verdict.
	RequiredDataPoints() int

	// Evaluate inspects recent market data and returns a signal verdict.
	Evaluate(ctx context.Context, klines []*domain.Kline, currentPrice float64) domain.Signal
}
