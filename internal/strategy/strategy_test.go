package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/mocks"
	"swingTraderBot/internal/ports"
)

func klinesFromCloses(closes ...float64) []*domain.Kline {
	klines := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		klines[i] = &domain.Kline{Close: c}
	}
	return klines
}

func newTestStrategy(t *testing.T) *SwingStrategy {
	t.Helper()
	s, err := New(Config{
		SMAPeriod:     3,
		RSIPeriod:     3,
		RSIOverbought: 70,
		RSIOversold:   40,
	}, &mocks.Logger{})
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	log := &mocks.Logger{}

	_, err := New(Config{SMAPeriod: 3, RSIPeriod: 3, RSIOverbought: 70, RSIOversold: 40}, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{SMAPeriod: 0, RSIPeriod: 3, RSIOverbought: 70, RSIOversold: 40}, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{SMAPeriod: 3, RSIPeriod: 3, RSIOverbought: 40, RSIOversold: 70}, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	s, err := New(Config{SMAPeriod: 20, RSIPeriod: 14, RSIOverbought: 70, RSIOversold: 40}, log)
	require.NoError(t, err)
	// RSI needs period+1 closes; SMA needs 20.
	assert.Equal(t, 20, s.RequiredDataPoints())
}

func TestEvaluateBuyOnPullbackAboveTrend(t *testing.T) {
	ctx := context.Background()
	s := newTestStrategy(t)

	// Falling closes push RSI to the floor; price back above the short SMA.
	klines := klinesFromCloses(100, 99, 98, 97, 96)
	signal := s.Evaluate(ctx, klines, 98)
	assert.Equal(t, domain.SignalBuy, signal)
}

func TestEvaluateSellWhenOverbought(t *testing.T) {
	ctx := context.Background()
	s := newTestStrategy(t)

	klines := klinesFromCloses(100, 101, 102, 103, 104)
	signal := s.Evaluate(ctx, klines, 105)
	assert.Equal(t, domain.SignalSell, signal)
}

func TestEvaluateHold(t *testing.T) {
	ctx := context.Background()
	s := newTestStrategy(t)

	t.Run("neutral momentum", func(t *testing.T) {
		klines := klinesFromCloses(100, 100, 100, 100, 100)
		assert.Equal(t, domain.SignalHold, s.Evaluate(ctx, klines, 101))
	})

	t.Run("oversold but below trend", func(t *testing.T) {
		klines := klinesFromCloses(100, 99, 98, 97, 96)
		assert.Equal(t, domain.SignalHold, s.Evaluate(ctx, klines, 90))
	})

	t.Run("insufficient data", func(t *testing.T) {
		assert.Equal(t, domain.SignalHold, s.Evaluate(ctx, klinesFromCloses(100, 101), 102))
	})

	t.Run("invalid price", func(t *testing.T) {
		klines := klinesFromCloses(100, 100, 100, 100, 100)
		assert.Equal(t, domain.SignalHold, s.Evaluate(ctx, klines, 0))
	})
}
