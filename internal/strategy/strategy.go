// Package strategy decides whether the market looks worth entering. The
// verdict is advisory only; position sizing, risk gating, and execution are
// someone else's job.
package strategy

import (
	"context"
	"fmt"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
	"swingTraderBot/internal/strategy/indicators"
)

// Config holds configuration for the SMA/RSI swing strategy.
type Config struct {
	SMAPeriod     int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
}

// SwingStrategy signals BUY when price trades above its moving average while
// momentum has not yet run hot, and SELL once momentum is overbought.
type SwingStrategy struct {
	cfg    Config
	logger ports.Logger
	sma    *indicators.SMA
	rsi    *indicators.RSI
}

// New creates the strategy.
func New(cfg Config, logger ports.Logger) (*SwingStrategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if cfg.SMAPeriod <= 0 || cfg.RSIPeriod <= 0 {
		return nil, fmt.Errorf("%w: indicator periods must be positive", ports.ErrConfigurationError)
	}
	if cfg.RSIOversold <= 0 || cfg.RSIOverbought <= cfg.RSIOversold || cfg.RSIOverbought >= 100 {
		return nil, fmt.Errorf("%w: RSI bounds must satisfy 0 < oversold < overbought < 100", ports.ErrConfigurationError)
	}

	return &SwingStrategy{
		cfg:    cfg,
		logger: logger,
		sma:    indicators.NewSMA(indicators.IndicatorConfig{Period: cfg.SMAPeriod}),
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: cfg.RSIPeriod},
			Overbought:      cfg.RSIOverbought,
			Oversold:        cfg.RSIOversold,
		}),
	}, nil
}

// RequiredDataPoints returns the kline history needed for a full evaluation.
func (s *SwingStrategy) RequiredDataPoints() int {
	if s.sma.RequiredDataPoints() > s.rsi.RequiredDataPoints() {
		return s.sma.RequiredDataPoints()
	}
	return s.rsi.RequiredDataPoints()
}

// Evaluate produces a signal for the current market. Any shortfall in data or
// indicator failure yields HOLD; the strategy never guesses.
func (s *SwingStrategy) Evaluate(ctx context.Context, klines []*domain.Kline, currentPrice float64) domain.Signal {
	if len(klines) < s.RequiredDataPoints() || currentPrice <= 0 {
		s.logger.Debug(ctx, "Not enough data for evaluation", map[string]interface{}{
			"klines":   len(klines),
			"required": s.RequiredDataPoints(),
		})
		return domain.SignalHold
	}

	smaValue, err := s.sma.Calculate(ctx, klines)
	if err != nil {
		s.logger.Warn(ctx, "SMA calculation failed", map[string]interface{}{"error": err.Error()})
		return domain.SignalHold
	}
	rsiValue, err := s.rsi.Calculate(ctx, klines)
	if err != nil {
		s.logger.Warn(ctx, "RSI calculation failed", map[string]interface{}{"error": err.Error()})
		return domain.SignalHold
	}

	signal := domain.SignalHold
	switch {
	case s.rsi.IsOverbought(rsiValue):
		signal = domain.SignalSell
	case currentPrice > smaValue && s.rsi.IsOversold(rsiValue):
		signal = domain.SignalBuy
	}

	s.logger.Debug(ctx, "Strategy evaluation", map[string]interface{}{
		"price":  currentPrice,
		"sma":    smaValue,
		"rsi":    rsiValue,
		"signal": string(signal),
	})
	return signal
}
