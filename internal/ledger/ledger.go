package ledger

import (
	"context"
	"fmt"
	"time"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

// Config holds configuration for the position ledger.
type Config struct {
	// MaxOpenPositions caps how many symbols may hold a position at once.
	MaxOpenPositions int
}

// Ledger is the authoritative in-memory registry of per-symbol position
// state. It is the only component permitted to flip a symbol between flat
// and open. All access happens from the single trading loop goroutine.
type Ledger struct {
	cfg       Config
	logger    ports.Logger
	symbols   []string // registration order, kept for deterministic iteration
	positions map[string]*domain.PositionState
}

// New creates a ledger with an empty (flat) record per symbol.
func New(cfg Config, logger ports.Logger, symbols []string) (*Ledger, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if cfg.MaxOpenPositions <= 0 {
		return nil, fmt.Errorf("%w: MaxOpenPositions must be positive", ports.ErrConfigurationError)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrConfigurationError)
	}

	l := &Ledger{
		cfg:       cfg,
		logger:    logger,
		symbols:   make([]string, 0, len(symbols)),
		positions: make(map[string]*domain.PositionState, len(symbols)),
	}
	for _, s := range symbols {
		if _, dup := l.positions[s]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %q", ports.ErrConfigurationError, s)
		}
		l.symbols = append(l.symbols, s)
		l.positions[s] = &domain.PositionState{Symbol: s}
	}
	logger.Info(context.Background(), "Position ledger initialized", map[string]interface{}{
		"symbols":          len(symbols),
		"maxOpenPositions": cfg.MaxOpenPositions,
	})
	return l, nil
}

// OpenPosition moves a flat symbol to open. The caller supplies the confirmed
// fill details and the protective-order reference from the exchange.
func (l *Ledger) OpenPosition(ctx context.Context, symbol string, size, entryPrice float64, bracket *domain.BracketRef, stopPrice float64) error {
	pos, ok := l.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrSymbolNotTracked, symbol)
	}
	if size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %f", ports.ErrInvalidRequest, size)
	}
	if entryPrice <= 0 {
		return fmt.Errorf("%w: entry price must be positive, got %f", ports.ErrInvalidRequest, entryPrice)
	}
	if pos.IsOpen() {
		return fmt.Errorf("%w: %q", ports.ErrPositionAlreadyOpen, symbol)
	}

	pos.Size = size
	pos.EntryPrice = entryPrice
	pos.EntryValue = size * entryPrice
	pos.EntryTime = time.Now().UTC()
	pos.Bracket = bracket
	pos.StopOrderID = 0
	pos.CurrentStopPrice = stopPrice
	pos.TrailingStopActivated = false
	pos.HighestPriceSeen = entryPrice

	l.logger.Info(ctx, "Position opened", map[string]interface{}{
		"symbol":     symbol,
		"size":       size,
		"entryPrice": entryPrice,
		"stopPrice":  stopPrice,
		"openCount":  l.OpenCount(),
	})
	return nil
}

// ClosePosition resets a symbol's record to the flat representation and
// invalidates its protective-order references. Closing an already-flat symbol
// is a no-op, but a loud one: it signals a logic bug upstream.
func (l *Ledger) ClosePosition(ctx context.Context, symbol string) error {
	pos, ok := l.positions[symbol]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrSymbolNotTracked, symbol)
	}
	if !pos.IsOpen() {
		l.logger.Warn(ctx, "ClosePosition called on a flat symbol; likely a double close", map[string]interface{}{"symbol": symbol})
		return nil
	}

	*pos = domain.PositionState{Symbol: symbol}
	l.logger.Info(ctx, "Position closed", map[string]interface{}{
		"symbol":    symbol,
		"openCount": l.OpenCount(),
	})
	return nil
}

// CanOpenNewPosition reports whether the open-position count is strictly
// below the configured cap.
func (l *Ledger) CanOpenNewPosition() bool {
	return l.OpenCount() < l.cfg.MaxOpenPositions
}

// OpenCount returns the number of symbols currently holding a position.
func (l *Ledger) OpenCount() int {
	count := 0
	for _, pos := range l.positions {
		if pos.IsOpen() {
			count++
		}
	}
	return count
}

// Position returns the state record for a symbol. The pointer is the live
// record, not a copy; only the trailing engine and this ledger mutate it.
func (l *Ledger) Position(symbol string) (*domain.PositionState, error) {
	pos, ok := l.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ports.ErrSymbolNotTracked, symbol)
	}
	return pos, nil
}

// PositionSize returns the held size for a symbol (0 when flat).
func (l *Ledger) PositionSize(symbol string) (float64, error) {
	pos, err := l.Position(symbol)
	if err != nil {
		return 0, err
	}
	return pos.Size, nil
}

// EntryPrice returns the entry price for a symbol (0 when flat).
func (l *Ledger) EntryPrice(symbol string) (float64, error) {
	pos, err := l.Position(symbol)
	if err != nil {
		return 0, err
	}
	return pos.EntryPrice, nil
}

// UpdateHighestPrice records a new running maximum for an open position.
// A price at or below the current high is a no-op.
func (l *Ledger) UpdateHighestPrice(ctx context.Context, symbol string, price float64) error {
	pos, err := l.Position(symbol)
	if err != nil {
		return err
	}
	if !pos.IsOpen() {
		return nil
	}
	if price > pos.HighestPriceSeen {
		pos.HighestPriceSeen = price
	}
	return nil
}

// OpenPositions returns the open position records in registration order.
func (l *Ledger) OpenPositions() []*domain.PositionState {
	open := make([]*domain.PositionState, 0, len(l.symbols))
	for _, s := range l.symbols {
		if pos := l.positions[s]; pos.IsOpen() {
			open = append(open, pos)
		}
	}
	return open
}

// Symbols returns the registered symbols in registration order.
func (l *Ledger) Symbols() []string {
	return l.symbols
}

// Restore repopulates a symbol's record from a recovered snapshot without
// re-executing entry logic. The snapshot's symbol is registered on the fly if
// it is no longer in the configured list, so a recovered position is never
// dropped by a config change across restarts.
func (l *Ledger) Restore(ctx context.Context, snapshot *domain.PositionState) error {
	if snapshot == nil || !snapshot.IsOpen() {
		return fmt.Errorf("%w: restore requires an open snapshot", ports.ErrInvalidRequest)
	}
	pos, ok := l.positions[snapshot.Symbol]
	if !ok {
		l.logger.Warn(ctx, "Recovered position for a symbol outside the configured list; tracking it anyway", map[string]interface{}{"symbol": snapshot.Symbol})
		pos = &domain.PositionState{Symbol: snapshot.Symbol}
		l.symbols = append(l.symbols, snapshot.Symbol)
		l.positions[snapshot.Symbol] = pos
	}
	if pos.IsOpen() {
		return fmt.Errorf("%w: %q", ports.ErrPositionAlreadyOpen, snapshot.Symbol)
	}

	*pos = *snapshot
	l.logger.Info(ctx, "Position restored from snapshot", map[string]interface{}{
		"symbol":     pos.Symbol,
		"size":       pos.Size,
		"entryPrice": pos.EntryPrice,
		"stopPrice":  pos.CurrentStopPrice,
		"trailing":   pos.TrailingStopActivated,
	})
	return nil
}
