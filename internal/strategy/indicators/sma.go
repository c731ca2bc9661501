package indicators

import (
	"context"
	"fmt"

	"swingTraderBot/internal/domain"
)

// SMA implements the simple moving average over closing prices.
type SMA struct {
	BaseIndicator
}

// NewSMA creates a new SMA indicator instance
func NewSMA(config IndicatorConfig) *SMA {
	return &SMA{BaseIndicator: BaseIndicator{Config: config}}
}

// Name returns the name of the indicator
func (s *SMA) Name() string {
	return "SMA"
}

// Calculate computes the average close over the most recent period klines
func (s *SMA) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	if len(klines) < s.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(klines), s.Config.Period)
	}

	total := 0.0
	for i := len(klines) - s.Config.Period; i < len(klines); i++ {
		total += klines[i].Close
	}
	return total / float64(s.Config.Period), nil
}
