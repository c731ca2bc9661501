// Package risk implements the pre-trade and pre-iteration safety gates. Each
// check answers a single yes/no question; the orchestrator decides what a
// "no" means (halt, skip the iteration, or just warn).
package risk

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"swingTraderBot/internal/ports"
)

// Config holds configuration for the risk gate.
type Config struct {
	// MaxDrawdownPct is the fraction of the capital high-water mark that may
	// be lost before trading halts (e.g., 0.20 for 20%).
	MaxDrawdownPct float64
	// MemoryWarnMB is the process memory level, in megabytes, above which
	// the memory check logs a warning.
	MemoryWarnMB int
}

// Gate evaluates the safety checks that run every trading iteration.
type Gate struct {
	cfg      Config
	exchange ports.ExchangeClient
	logger   ports.Logger

	highWaterMark float64
}

// New creates the gate with the high-water mark seeded from the recovered
// capital, so a restart never resets the drawdown baseline downward.
func New(cfg Config, exchange ports.ExchangeClient, logger ports.Logger, initialCapital float64) (*Gate, error) {
	if exchange == nil {
		return nil, fmt.Errorf("%w: exchange client is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if cfg.MaxDrawdownPct <= 0 || cfg.MaxDrawdownPct >= 1 {
		return nil, fmt.Errorf("%w: MaxDrawdownPct must be in (0, 1), got %f", ports.ErrConfigurationError, cfg.MaxDrawdownPct)
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive, got %f", ports.ErrConfigurationError, initialCapital)
	}

	return &Gate{
		cfg:           cfg,
		exchange:      exchange,
		logger:        logger,
		highWaterMark: initialCapital,
	}, nil
}

// CheckCapital ratchets the high-water mark up with the supplied capital and
// reports whether capital is still above the drawdown floor. A false return
// means the operator-configured loss limit is breached and trading must halt.
func (g *Gate) CheckCapital(ctx context.Context, capital float64) bool {
	if capital > g.highWaterMark {
		g.highWaterMark = capital
	}

	floor := g.highWaterMark * (1 - g.cfg.MaxDrawdownPct)
	if capital >= floor {
		return true
	}

	g.logger.Error(ctx, nil, "Maximum drawdown breached; trading must halt", map[string]interface{}{
		"capital":       capital,
		"highWaterMark": g.highWaterMark,
		"floor":         floor,
		"drawdownPct":   g.cfg.MaxDrawdownPct,
	})
	return false
}

// HighWaterMark returns the peak capital observed so far.
func (g *Gate) HighWaterMark() float64 {
	return g.highWaterMark
}

// CheckExchangeStatus reports whether the exchange is safe to trade against.
// Only an explicit non-nominal status from the exchange blocks trading; a
// failure to reach the status endpoint at all fails open with a loud log,
// since the regular order calls will surface real connectivity problems.
func (g *Gate) CheckExchangeStatus(ctx context.Context) bool {
	err := g.exchange.CheckHealth(ctx)
	if err == nil {
		return true
	}
	if errors.Is(err, ports.ErrExchangeUnavailable) {
		g.logger.Warn(ctx, "Exchange reported non-nominal status; skipping iteration", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}

	g.logger.Error(ctx, err, "Exchange status check failed; proceeding anyway", nil)
	return true
}

// CheckMemoryUsage logs a warning when the memory obtained from the OS
// exceeds the configured level. Sys tracks what the process actually holds,
// not just the live heap, so it approximates resident memory. The check never
// blocks trading; memory pressure is an operator concern, not a trade-safety
// one.
func (g *Gate) CheckMemoryUsage(ctx context.Context) bool {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	memMB := int(m.Sys / 1024 / 1024)
	if g.cfg.MemoryWarnMB > 0 && memMB > g.cfg.MemoryWarnMB {
		g.logger.Warn(ctx, "Memory usage above warning threshold", map[string]interface{}{
			"memMB":  memMB,
			"warnMB": g.cfg.MemoryWarnMB,
		})
	}
	return true
}
