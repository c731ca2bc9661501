package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

type mockLogger struct {
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestLedger(t *testing.T, maxOpen int, symbols ...string) (*Ledger, *mockLogger) {
	t.Helper()
	log := &mockLogger{}
	l, err := New(Config{MaxOpenPositions: maxOpen}, log, symbols)
	require.NoError(t, err)
	return l, log
}

func TestNew(t *testing.T) {
	log := &mockLogger{}

	_, err := New(Config{MaxOpenPositions: 1}, nil, []string{"ETHUSDT"})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{MaxOpenPositions: 0}, log, []string{"ETHUSDT"})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{MaxOpenPositions: 1}, log, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{MaxOpenPositions: 1}, log, []string{"ETHUSDT", "ETHUSDT"})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	l, err := New(Config{MaxOpenPositions: 2}, log, []string{"ETHUSDT", "BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, 0, l.OpenCount())
	assert.True(t, l.CanOpenNewPosition())
}

func TestOpenPosition(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 1, "X", "Y")

	ref := &domain.BracketRef{StopOrderID: 11, TakeProfitOrderID: 12}
	require.NoError(t, l.OpenPosition(ctx, "X", 10, 100, ref, 95))

	size, err := l.PositionSize("X")
	require.NoError(t, err)
	assert.Equal(t, 10.0, size)

	entry, err := l.EntryPrice("X")
	require.NoError(t, err)
	assert.Equal(t, 100.0, entry)

	pos, err := l.Position("X")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, pos.EntryValue)
	assert.Equal(t, 95.0, pos.CurrentStopPrice)
	assert.Equal(t, 100.0, pos.HighestPriceSeen)
	assert.False(t, pos.TrailingStopActivated)
	assert.Equal(t, ref, pos.Bracket)
	assert.False(t, pos.EntryTime.IsZero())

	// Cap of 1 is now exhausted.
	assert.False(t, l.CanOpenNewPosition())

	// Double open is a distinct programming error.
	err = l.OpenPosition(ctx, "X", 5, 110, nil, 100)
	assert.ErrorIs(t, err, ports.ErrPositionAlreadyOpen)

	// Unregistered symbol is never silently created.
	err = l.OpenPosition(ctx, "ZZZ", 5, 110, nil, 100)
	assert.ErrorIs(t, err, ports.ErrSymbolNotTracked)

	// Invalid sizes are rejected before any state change.
	err = l.OpenPosition(ctx, "Y", 0, 110, nil, 100)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	err = l.OpenPosition(ctx, "Y", 1, -1, nil, 100)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestClosePosition(t *testing.T) {
	ctx := context.Background()
	l, log := newTestLedger(t, 1, "X")

	require.NoError(t, l.OpenPosition(ctx, "X", 10, 100, &domain.BracketRef{StopOrderID: 1}, 95))
	require.NoError(t, l.ClosePosition(ctx, "X"))

	pos, err := l.Position("X")
	require.NoError(t, err)
	assert.False(t, pos.IsOpen())
	assert.Nil(t, pos.Bracket)
	assert.Zero(t, pos.StopOrderID)
	assert.Zero(t, pos.CurrentStopPrice)
	assert.True(t, l.CanOpenNewPosition())

	// Second close: no-op, but logged loudly.
	require.NoError(t, l.ClosePosition(ctx, "X"))
	assert.NotEmpty(t, log.warnMsgs)

	err = l.ClosePosition(ctx, "nope")
	assert.ErrorIs(t, err, ports.ErrSymbolNotTracked)
}

func TestConcurrencyCap(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 2, "A", "B", "C")

	require.NoError(t, l.OpenPosition(ctx, "A", 1, 10, nil, 9))
	assert.True(t, l.CanOpenNewPosition())

	require.NoError(t, l.OpenPosition(ctx, "B", 1, 10, nil, 9))
	assert.False(t, l.CanOpenNewPosition())
	assert.Equal(t, 2, l.OpenCount())

	// Closing one reopens capacity regardless of call order.
	require.NoError(t, l.ClosePosition(ctx, "A"))
	assert.True(t, l.CanOpenNewPosition())
	require.NoError(t, l.OpenPosition(ctx, "C", 1, 10, nil, 9))
	assert.False(t, l.CanOpenNewPosition())
}

func TestUpdateHighestPrice(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 1, "X")
	require.NoError(t, l.OpenPosition(ctx, "X", 1, 100, nil, 95))

	require.NoError(t, l.UpdateHighestPrice(ctx, "X", 105))
	pos, _ := l.Position("X")
	assert.Equal(t, 105.0, pos.HighestPriceSeen)

	// Lower observations never move the high.
	require.NoError(t, l.UpdateHighestPrice(ctx, "X", 99))
	assert.Equal(t, 105.0, pos.HighestPriceSeen)

	assert.ErrorIs(t, l.UpdateHighestPrice(ctx, "nope", 1), ports.ErrSymbolNotTracked)
}

func TestOpenPositionsOrder(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 3, "A", "B", "C")
	require.NoError(t, l.OpenPosition(ctx, "C", 1, 10, nil, 9))
	require.NoError(t, l.OpenPosition(ctx, "A", 1, 10, nil, 9))

	open := l.OpenPositions()
	require.Len(t, open, 2)
	assert.Equal(t, "A", open[0].Symbol)
	assert.Equal(t, "C", open[1].Symbol)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, 1, "X")

	snap := &domain.PositionState{
		Symbol:                "X",
		Size:                  2,
		EntryPrice:            50,
		EntryValue:            100,
		StopOrderID:           77,
		CurrentStopPrice:      52,
		TrailingStopActivated: true,
		HighestPriceSeen:      55,
	}
	require.NoError(t, l.Restore(ctx, snap))

	pos, err := l.Position("X")
	require.NoError(t, err)
	assert.Equal(t, 2.0, pos.Size)
	assert.Equal(t, int64(77), pos.StopOrderID)
	assert.True(t, pos.TrailingStopActivated)
	assert.False(t, l.CanOpenNewPosition())

	// Restoring over an open position is rejected.
	assert.ErrorIs(t, l.Restore(ctx, snap), ports.ErrPositionAlreadyOpen)

	// A snapshot for an unconfigured symbol is tracked rather than dropped.
	other := &domain.PositionState{Symbol: "NEW", Size: 1, EntryPrice: 10, HighestPriceSeen: 10}
	require.NoError(t, l.Restore(ctx, other))
	size, err := l.PositionSize("NEW")
	require.NoError(t, err)
	assert.Equal(t, 1.0, size)

	// Flat or nil snapshots are invalid.
	assert.ErrorIs(t, l.Restore(ctx, nil), ports.ErrInvalidRequest)
	assert.ErrorIs(t, l.Restore(ctx, &domain.PositionState{Symbol: "X"}), ports.ErrInvalidRequest)
}
