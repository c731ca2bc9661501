// Package trailing maintains the protective stop of an open position. The
// stop goes through two phases: once price clears the activation level the
// entry bracket is replaced with a breakeven stop, and from then on the stop
// ratchets upward behind the highest price seen. The stop price never moves
// down.
package trailing

import (
	"context"
	"errors"
	"fmt"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

// Config holds configuration for the trailing stop engine.
type Config struct {
	// ActivationPct is the gain fraction over entry that arms the trailing
	// stop (e.g., 0.02 arms at +2%).
	ActivationPct float64
	// CallbackPct is the distance the armed stop trails below the highest
	// price seen (e.g., 0.01 keeps the stop 1% under the high).
	CallbackPct float64
}

// Engine mutates position state and exchange-side protective orders. It is
// driven once per price tick from the trading loop and is written so that any
// exchange failure leaves the position in a state the next tick can repair.
type Engine struct {
	cfg      Config
	exchange ports.ExchangeClient
	logger   ports.Logger
}

// New creates the engine.
func New(cfg Config, exchange ports.ExchangeClient, logger ports.Logger) (*Engine, error) {
	if exchange == nil {
		return nil, fmt.Errorf("%w: exchange client is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if cfg.ActivationPct <= 0 || cfg.CallbackPct <= 0 {
		return nil, fmt.Errorf("%w: ActivationPct and CallbackPct must be positive", ports.ErrConfigurationError)
	}
	if cfg.CallbackPct >= cfg.ActivationPct {
		return nil, fmt.Errorf("%w: CallbackPct %f must be below ActivationPct %f or the armed stop would start underwater", ports.ErrConfigurationError, cfg.CallbackPct, cfg.ActivationPct)
	}
	return &Engine{cfg: cfg, exchange: exchange, logger: logger}, nil
}

// Update advances the trailing state for one price observation. It returns
// true when the position record changed and should be persisted. Exchange
// failures are logged and absorbed; the invariant is that after every return
// the record accurately describes which protective orders exist, so the next
// tick can pick up where this one failed.
func (e *Engine) Update(ctx context.Context, pos *domain.PositionState, currentPrice float64) (bool, error) {
	if pos == nil {
		return false, fmt.Errorf("%w: nil position", ports.ErrInvalidRequest)
	}
	if !pos.IsOpen() || currentPrice <= 0 {
		return false, nil
	}

	changed := false
	if currentPrice > pos.HighestPriceSeen {
		pos.HighestPriceSeen = currentPrice
		changed = true
	}

	if !pos.IsProtected() {
		return e.restoreProtection(ctx, pos) || changed, nil
	}

	if !pos.TrailingStopActivated {
		return e.maybeArm(ctx, pos) || changed, nil
	}
	return e.maybeRatchet(ctx, pos) || changed, nil
}

// maybeArm replaces the entry bracket with a breakeven stop once the highest
// price clears entry * (1 + activation).
func (e *Engine) maybeArm(ctx context.Context, pos *domain.PositionState) bool {
	activationPrice := pos.EntryPrice * (1 + e.cfg.ActivationPct)
	if pos.HighestPriceSeen < activationPrice {
		return false
	}

	if err := e.exchange.CancelBracket(ctx, pos.Symbol, pos.Bracket); err != nil {
		// The bracket is still live, so the position stays protected.
		// Arming is retried next tick.
		e.logger.Error(ctx, err, "Failed to cancel entry bracket for trailing activation; will retry", map[string]interface{}{
			"symbol": pos.Symbol,
		})
		return false
	}

	// Mark the new phase before placing the replacement stop. If placement
	// fails the record shows an unprotected, activated position and the next
	// tick repairs it through restoreProtection.
	pos.Bracket = nil
	pos.StopOrderID = 0
	pos.TrailingStopActivated = true
	pos.CurrentStopPrice = pos.EntryPrice

	resp, err := e.exchange.PlaceStopMarketOrder(ctx, pos.Symbol, domain.Sell, pos.Size, pos.CurrentStopPrice)
	if err != nil {
		e.logger.Error(ctx, err, "CRITICAL: breakeven stop placement failed; position is unprotected until next tick", map[string]interface{}{
			"symbol":    pos.Symbol,
			"stopPrice": pos.CurrentStopPrice,
		})
		return true
	}
	pos.StopOrderID = resp.OrderID

	e.logger.Info(ctx, "Trailing stop armed at breakeven", map[string]interface{}{
		"symbol":      pos.Symbol,
		"stopPrice":   pos.CurrentStopPrice,
		"stopOrderID": pos.StopOrderID,
		"highest":     pos.HighestPriceSeen,
	})
	return true
}

// maybeRatchet moves the armed stop up to highest * (1 - callback) when that
// is strictly above the current stop.
func (e *Engine) maybeRatchet(ctx context.Context, pos *domain.PositionState) bool {
	candidate := pos.HighestPriceSeen * (1 - e.cfg.CallbackPct)
	if candidate <= pos.CurrentStopPrice {
		return false
	}

	if pos.StopOrderID != 0 {
		if _, err := e.exchange.CancelOrder(ctx, pos.Symbol, pos.StopOrderID); err != nil {
			if errors.Is(err, ports.ErrOrderNotFound) {
				// The stop is gone from the book, most likely because it
				// just filled. Leave the record alone so the exit check
				// settles the trade.
				e.logger.Warn(ctx, "Trailing stop order not found during ratchet; deferring to exit check", map[string]interface{}{
					"symbol":      pos.Symbol,
					"stopOrderID": pos.StopOrderID,
				})
				return false
			}
			e.logger.Error(ctx, err, "Failed to cancel trailing stop for ratchet; will retry", map[string]interface{}{
				"symbol":      pos.Symbol,
				"stopOrderID": pos.StopOrderID,
			})
			return false
		}
	}

	pos.StopOrderID = 0
	pos.CurrentStopPrice = candidate

	resp, err := e.exchange.PlaceStopMarketOrder(ctx, pos.Symbol, domain.Sell, pos.Size, candidate)
	if err != nil {
		e.logger.Error(ctx, err, "CRITICAL: trailing stop replacement failed; position is unprotected until next tick", map[string]interface{}{
			"symbol":    pos.Symbol,
			"stopPrice": candidate,
		})
		return true
	}
	pos.StopOrderID = resp.OrderID

	e.logger.Info(ctx, "Trailing stop ratcheted", map[string]interface{}{
		"symbol":      pos.Symbol,
		"stopPrice":   candidate,
		"stopOrderID": pos.StopOrderID,
		"highest":     pos.HighestPriceSeen,
	})
	return true
}

// restoreProtection re-places a stop for an open position that has no live
// protective order on record, at the last known stop price. This is the
// repair path for a placement failure on a previous tick.
func (e *Engine) restoreProtection(ctx context.Context, pos *domain.PositionState) bool {
	stopPrice := pos.CurrentStopPrice
	if stopPrice <= 0 {
		stopPrice = pos.EntryPrice
		pos.CurrentStopPrice = stopPrice
	}

	e.logger.Warn(ctx, "Open position has no protective order; restoring stop", map[string]interface{}{
		"symbol":    pos.Symbol,
		"stopPrice": stopPrice,
	})

	resp, err := e.exchange.PlaceStopMarketOrder(ctx, pos.Symbol, domain.Sell, pos.Size, stopPrice)
	if err != nil {
		e.logger.Error(ctx, err, "CRITICAL: protection restore failed; will retry next tick", map[string]interface{}{
			"symbol":    pos.Symbol,
			"stopPrice": stopPrice,
		})
		return false
	}
	pos.StopOrderID = resp.OrderID

	e.logger.Info(ctx, "Protective stop restored", map[string]interface{}{
		"symbol":      pos.Symbol,
		"stopPrice":   stopPrice,
		"stopOrderID": pos.StopOrderID,
	})
	return true
}
