package trailing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/mocks"
	"swingTraderBot/internal/ports"
)

func newTestEngine(t *testing.T, exch *mocks.ExchangeClient) (*Engine, *mocks.Logger) {
	t.Helper()
	log := &mocks.Logger{}
	e, err := New(Config{ActivationPct: 0.02, CallbackPct: 0.01}, exch, log)
	require.NoError(t, err)
	return e, log
}

func openPosition() *domain.PositionState {
	return &domain.PositionState{
		Symbol:           "ETHUSDT",
		Size:             1,
		EntryPrice:       100,
		EntryValue:       100,
		Bracket:          &domain.BracketRef{StopOrderID: 10, TakeProfitOrderID: 11},
		CurrentStopPrice: 97,
		HighestPriceSeen: 100,
	}
}

func TestNew(t *testing.T) {
	log := &mocks.Logger{}
	exch := &mocks.ExchangeClient{}

	_, err := New(Config{ActivationPct: 0.02, CallbackPct: 0.01}, nil, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{ActivationPct: 0.02, CallbackPct: 0.01}, exch, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{ActivationPct: 0, CallbackPct: 0.01}, exch, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	// Callback at or above activation would arm a stop below breakeven.
	_, err = New(Config{ActivationPct: 0.02, CallbackPct: 0.02}, exch, log)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestUpdateLifecycle(t *testing.T) {
	ctx := context.Background()

	var canceledBrackets []*domain.BracketRef
	var canceledOrders []int64
	var placedStops []float64
	nextOrderID := int64(100)

	exch := &mocks.ExchangeClient{
		CancelBracketFunc: func(ctx context.Context, symbol string, ref *domain.BracketRef) error {
			canceledBrackets = append(canceledBrackets, ref)
			return nil
		},
		CancelOrderFunc: func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
			canceledOrders = append(canceledOrders, orderID)
			return &ports.OrderResponse{OrderID: orderID, Status: ports.OrderStatusCanceled}, nil
		},
		PlaceStopMarketOrderFunc: func(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*ports.OrderResponse, error) {
			placedStops = append(placedStops, stopPrice)
			nextOrderID++
			return &ports.OrderResponse{OrderID: nextOrderID, Status: ports.OrderStatusNew}, nil
		},
	}
	e, _ := newTestEngine(t, exch)
	pos := openPosition()

	// Below activation: nothing but the high moves.
	changed, err := e.Update(ctx, pos, 101)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, pos.TrailingStopActivated)
	assert.NotNil(t, pos.Bracket)
	assert.Equal(t, 101.0, pos.HighestPriceSeen)

	// At +2% the bracket is swapped for a breakeven stop.
	changed, err = e.Update(ctx, pos, 102)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, pos.TrailingStopActivated)
	assert.Nil(t, pos.Bracket)
	assert.Equal(t, 100.0, pos.CurrentStopPrice)
	assert.Equal(t, int64(101), pos.StopOrderID)
	require.Len(t, canceledBrackets, 1)
	assert.Equal(t, []float64{100}, placedStops)

	// New high ratchets the stop to 110 * 0.99.
	changed, err = e.Update(ctx, pos, 110)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 108.9, pos.CurrentStopPrice, 1e-9)
	assert.Equal(t, int64(102), pos.StopOrderID)
	assert.Equal(t, []int64{101}, canceledOrders)

	// A pullback never lowers the stop.
	changed, err = e.Update(ctx, pos, 105)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.InDelta(t, 108.9, pos.CurrentStopPrice, 1e-9)
	assert.Equal(t, int64(102), pos.StopOrderID)
	assert.Equal(t, 110.0, pos.HighestPriceSeen)
}

func TestUpdateFlatPositionNoop(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, &mocks.ExchangeClient{})

	changed, err := e.Update(ctx, &domain.PositionState{Symbol: "ETHUSDT"}, 200)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = e.Update(ctx, nil, 200)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestArmRetriesWhenBracketCancelFails(t *testing.T) {
	ctx := context.Background()

	cancelErr := fmt.Errorf("%w: 503", ports.ErrOrderCancelFailed)
	exch := &mocks.ExchangeClient{
		CancelBracketFunc: func(ctx context.Context, symbol string, ref *domain.BracketRef) error {
			return cancelErr
		},
	}
	e, log := newTestEngine(t, exch)
	pos := openPosition()

	changed, err := e.Update(ctx, pos, 103)
	require.NoError(t, err)

	// The bracket is untouched and the phase did not advance; only the high
	// moved. The position is still protected throughout.
	assert.True(t, changed)
	assert.False(t, pos.TrailingStopActivated)
	assert.NotNil(t, pos.Bracket)
	assert.True(t, pos.IsProtected())
	assert.NotEmpty(t, log.ErrorMsgs)

	// Next tick with a healthy exchange completes the arm.
	exch.CancelBracketFunc = nil
	exch.PlaceStopMarketOrderFunc = func(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*ports.OrderResponse, error) {
		return &ports.OrderResponse{OrderID: 55}, nil
	}
	changed, err = e.Update(ctx, pos, 103)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, pos.TrailingStopActivated)
	assert.Equal(t, int64(55), pos.StopOrderID)
}

func TestArmPlacementFailureRepairedNextTick(t *testing.T) {
	ctx := context.Background()

	placeCalls := 0
	exch := &mocks.ExchangeClient{
		PlaceStopMarketOrderFunc: func(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*ports.OrderResponse, error) {
			placeCalls++
			if placeCalls == 1 {
				return nil, fmt.Errorf("%w: 500", ports.ErrOrderPlacementFailed)
			}
			return &ports.OrderResponse{OrderID: 77}, nil
		},
	}
	e, log := newTestEngine(t, exch)
	pos := openPosition()

	// Bracket cancel succeeds but the breakeven stop fails: the record now
	// shows an activated, unprotected position.
	changed, err := e.Update(ctx, pos, 102)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, pos.TrailingStopActivated)
	assert.False(t, pos.IsProtected())
	assert.Equal(t, 100.0, pos.CurrentStopPrice)
	assert.NotEmpty(t, log.ErrorMsgs)

	// The next tick restores the stop at the recorded price.
	changed, err = e.Update(ctx, pos, 102)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, pos.IsProtected())
	assert.Equal(t, int64(77), pos.StopOrderID)
	assert.Equal(t, 100.0, pos.CurrentStopPrice)
}

func TestRatchetStopOrderGoneDefersToExitCheck(t *testing.T) {
	ctx := context.Background()

	exch := &mocks.ExchangeClient{
		CancelOrderFunc: func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
			return nil, fmt.Errorf("%w: id %d", ports.ErrOrderNotFound, orderID)
		},
	}
	e, log := newTestEngine(t, exch)

	pos := openPosition()
	pos.Bracket = nil
	pos.TrailingStopActivated = true
	pos.StopOrderID = 42
	pos.CurrentStopPrice = 100
	pos.HighestPriceSeen = 102

	changed, err := e.Update(ctx, pos, 110)
	require.NoError(t, err)

	// The record keeps the vanished order ID so the exit check can settle it.
	assert.True(t, changed) // high moved
	assert.Equal(t, int64(42), pos.StopOrderID)
	assert.Equal(t, 100.0, pos.CurrentStopPrice)
	assert.NotEmpty(t, log.WarnMsgs)
}
