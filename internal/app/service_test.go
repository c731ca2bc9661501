package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swingTraderBot/config"
	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/execution"
	"swingTraderBot/internal/ledger"
	"swingTraderBot/internal/mocks"
	"swingTraderBot/internal/ports"
	"swingTraderBot/internal/risk"
	"swingTraderBot/internal/statestore"
	"swingTraderBot/internal/trailing"
)

type fixture struct {
	svc      *TradingService
	exchange *mocks.ExchangeClient
	notifier *mocks.Notifier
	repo     *mocks.TradeRepository
	strategy *mocks.Strategy
	logger   *mocks.Logger
	ledger   *ledger.Ledger
	store    *statestore.Store
}

func testConfig() *config.Config {
	return &config.Config{
		Symbols:               []string{"ETHUSDT"},
		QuoteAsset:            "USDT",
		QuotePerTrade:         100,
		MaxOpenPositions:      1,
		MaxTradesPerDay:       5,
		StopLossPct:           0.03,
		TakeProfitPct:         0.06,
		TrailingActivationPct: 0.02,
		TrailingCallbackPct:   0.01,
		StartingCapital:       1000,
		MaxDrawdownPct:        0.20,
		PollInterval:          time.Millisecond,
		StateSaveInterval:     time.Hour,
		PositionCooldown:      5 * time.Minute,
		PostEntryPause:        time.Millisecond,
		CrashCooldown:         time.Millisecond,
		HeartbeatInterval:     time.Hour,
		FillPollInterval:      time.Millisecond,
		FillPollTimeout:       20 * time.Millisecond,
		KlineInterval:         "1m",
		KlineLimit:            50,
	}
}

func newFixture(t *testing.T, capital float64) *fixture {
	return newFixtureWithConfig(t, capital, testConfig())
}

func newFixtureWithConfig(t *testing.T, capital float64, cfg *config.Config) *fixture {
	t.Helper()

	log := &mocks.Logger{}
	exch := &mocks.ExchangeClient{}
	notif := &mocks.Notifier{}
	repo := &mocks.TradeRepository{}
	strat := &mocks.Strategy{DataPoints: 1, Signal: domain.SignalHold}

	led, err := ledger.New(ledger.Config{MaxOpenPositions: cfg.MaxOpenPositions}, log, cfg.Symbols)
	require.NoError(t, err)

	store, err := statestore.New(t.TempDir(), log)
	require.NoError(t, err)

	gate, err := risk.New(risk.Config{MaxDrawdownPct: cfg.MaxDrawdownPct, MemoryWarnMB: 512}, exch, log, capital)
	require.NoError(t, err)

	eng, err := trailing.New(trailing.Config{
		ActivationPct: cfg.TrailingActivationPct,
		CallbackPct:   cfg.TrailingCallbackPct,
	}, exch, log)
	require.NoError(t, err)

	handler, err := execution.New(execution.Config{
		FillPollInterval: cfg.FillPollInterval,
		FillPollTimeout:  cfg.FillPollTimeout,
	}, exch, log, notif)
	require.NoError(t, err)

	svc, err := NewTradingService(cfg, log, exch, repo, strat, notif, led, store, gate, eng, handler, capital)
	require.NoError(t, err)

	return &fixture{
		svc:      svc,
		exchange: exch,
		notifier: notif,
		repo:     repo,
		strategy: strat,
		logger:   log,
		ledger:   led,
		store:    store,
	}
}

// openTestPosition seeds an open, bracketed position into the ledger.
func (f *fixture) openTestPosition(t *testing.T, entryPrice float64) *domain.PositionState {
	t.Helper()
	ctx := context.Background()
	bracket := &domain.BracketRef{StopOrderID: 11, TakeProfitOrderID: 12}
	require.NoError(t, f.ledger.OpenPosition(ctx, "ETHUSDT", 0.05, entryPrice, bracket, entryPrice*0.97))
	pos, err := f.ledger.Position("ETHUSDT")
	require.NoError(t, err)
	return pos
}

func notified(n *mocks.Notifier, substr string) bool {
	for _, msg := range n.Sent {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func TestNewTradingServiceValidatesDeps(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := NewTradingService(nil, f.logger, f.exchange, f.repo, f.strategy, f.notifier,
		f.ledger, f.store, f.svc.gate, f.svc.trailing, f.svc.handler, 1000)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewTradingService(f.svc.cfg, f.logger, f.exchange, f.repo, f.strategy, f.notifier,
		f.ledger, f.store, f.svc.gate, f.svc.trailing, f.svc.handler, 0)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestIterationHaltsOnDrawdown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	// Push the peak up, then crash capital below the 20% floor.
	f.svc.capital = 1200
	require.False(t, f.svc.iteration(ctx))
	f.svc.capital = 900

	halt := f.svc.iteration(ctx)
	assert.True(t, halt)
	assert.True(t, notified(f.notifier, "drawdown"))
}

func TestIterationSkipsWhenExchangeUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	tickerCalls := 0
	f.exchange.CheckHealthFunc = func(ctx context.Context) error {
		return fmt.Errorf("%w: maintenance", ports.ErrExchangeUnavailable)
	}
	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		tickerCalls++
		return 2000, nil
	}

	assert.False(t, f.svc.iteration(ctx))
	assert.Equal(t, 0, tickerCalls)
}

func TestTakeProfitFillSettlesTrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.openTestPosition(t, 2000)

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2120, nil
	}
	f.exchange.GetOrderFunc = func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
		if orderID == 12 { // take-profit leg
			return &ports.OrderResponse{OrderID: 12, Status: ports.OrderStatusFilled, AvgPrice: 2120, ExecutedQty: 0.05}, nil
		}
		return &ports.OrderResponse{OrderID: orderID, Status: ports.OrderStatusNew}, nil
	}
	canceled := []int64{}
	f.exchange.CancelOrderFunc = func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
		canceled = append(canceled, orderID)
		return &ports.OrderResponse{OrderID: orderID, Status: ports.OrderStatusCanceled}, nil
	}

	require.False(t, f.svc.iteration(ctx))

	// PnL = 0.05 * 2120 - 100 = 6.
	assert.InDelta(t, 1006, f.svc.capital, 1e-9)
	assert.Equal(t, 0, f.ledger.OpenCount())
	require.Len(t, f.repo.CreatedTrades, 1)
	assert.Equal(t, domain.CloseReasonTakeProfit, f.repo.CreatedTrades[0].CloseReason)
	assert.InDelta(t, 6, f.repo.CreatedTrades[0].PNL, 1e-9)
	assert.Equal(t, []int64{11}, canceled) // stop sibling canceled
	assert.True(t, notified(f.notifier, "closed"))

	// Snapshot cleared and cooldown armed.
	snap, err := f.store.LoadPosition(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.True(t, time.Now().Before(f.svc.cooldownUntil["ETHUSDT"]))
}

func TestVanishedProtectiveOrderTriggersDefensiveClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.openTestPosition(t, 2000)

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 1990, nil
	}
	f.exchange.GetOrderFunc = func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
		return nil, fmt.Errorf("%w: id %d", ports.ErrOrderNotFound, orderID)
	}
	sold := false
	f.exchange.PlaceMarketOrderFunc = func(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
		sold = true
		assert.Equal(t, domain.Sell, side)
		return &ports.OrderResponse{OrderID: 99, Status: ports.OrderStatusFilled, AvgPrice: 1990, ExecutedQty: quantity}, nil
	}

	require.False(t, f.svc.iteration(ctx))

	assert.True(t, sold)
	assert.Equal(t, 0, f.ledger.OpenCount())
	require.Len(t, f.repo.CreatedTrades, 1)
	assert.Equal(t, domain.CloseReasonDefensive, f.repo.CreatedTrades[0].CloseReason)
	assert.True(t, notified(f.notifier, "vanished"))
}

func TestSellSignalClosesPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.openTestPosition(t, 2000)
	f.strategy.Signal = domain.SignalSell

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2010, nil
	}
	f.exchange.GetOrderFunc = func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
		return &ports.OrderResponse{OrderID: orderID, Status: ports.OrderStatusNew}, nil
	}
	f.exchange.GetKlinesFunc = func(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
		return []*domain.Kline{{Close: 2010}}, nil
	}
	bracketCanceled := false
	f.exchange.CancelBracketFunc = func(ctx context.Context, symbol string, ref *domain.BracketRef) error {
		bracketCanceled = true
		return nil
	}
	f.exchange.PlaceMarketOrderFunc = func(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
		return &ports.OrderResponse{OrderID: 99, Status: ports.OrderStatusFilled, AvgPrice: 2010, ExecutedQty: quantity}, nil
	}

	require.False(t, f.svc.iteration(ctx))

	assert.True(t, bracketCanceled)
	assert.Equal(t, 0, f.ledger.OpenCount())
	require.Len(t, f.repo.CreatedTrades, 1)
	assert.Equal(t, domain.CloseReasonSignal, f.repo.CreatedTrades[0].CloseReason)
}

func TestBuySignalOpensPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.strategy.Signal = domain.SignalBuy

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2000, nil
	}
	f.exchange.GetKlinesFunc = func(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
		return []*domain.Kline{{Close: 2000}}, nil
	}
	f.exchange.GetAccountBalanceFunc = func(ctx context.Context, asset string) (float64, error) {
		return 500, nil
	}
	f.exchange.PlaceMarketOrderFunc = func(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
		return &ports.OrderResponse{OrderID: 7, Status: ports.OrderStatusFilled, AvgPrice: 2000, ExecutedQty: quantity}, nil
	}
	var bracketStop, bracketTP float64
	f.exchange.PlaceBracketFunc = func(ctx context.Context, symbol string, quantity, takeProfitPrice, stopPrice float64) (*domain.BracketRef, error) {
		bracketStop, bracketTP = stopPrice, takeProfitPrice
		return &domain.BracketRef{StopOrderID: 21, TakeProfitOrderID: 22}, nil
	}

	require.False(t, f.svc.iteration(ctx))

	assert.Equal(t, 1, f.ledger.OpenCount())
	pos, err := f.ledger.Position("ETHUSDT")
	require.NoError(t, err)
	// 100 USDT at 2000 = 0.05 ETH.
	assert.InDelta(t, 0.05, pos.Size, 1e-9)
	assert.InDelta(t, 2000*0.97, bracketStop, 1e-9)
	assert.InDelta(t, 2000*1.06, bracketTP, 1e-9)
	assert.Equal(t, execution.StateIdle, f.svc.handler.State())
	assert.True(t, notified(f.notifier, "opened"))

	// Snapshot now holds the open position.
	snap, err := f.store.LoadPosition(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "ETHUSDT", snap.Symbol)
}

func TestExitChecksPrecedeEntryChecks(t *testing.T) {
	ctx := context.Background()

	// The flat symbol is registered first. Its entry evaluation must still
	// wait until the open position later in the list has had its exit check.
	cfg := testConfig()
	cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	cfg.MaxOpenPositions = 2
	f := newFixtureWithConfig(t, 1000, cfg)
	f.openTestPosition(t, 2000)

	var events []string
	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2000, nil
	}
	f.exchange.GetOrderFunc = func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
		events = append(events, "exit:"+symbol)
		return &ports.OrderResponse{OrderID: orderID, Status: ports.OrderStatusNew}, nil
	}
	f.exchange.GetKlinesFunc = func(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
		events = append(events, "evaluate:"+symbol)
		return []*domain.Kline{{Close: 2000}}, nil
	}

	require.False(t, f.svc.iteration(ctx))

	require.NotEmpty(t, events)
	assert.Equal(t, "exit:ETHUSDT", events[0])
	last := -1
	for i, ev := range events {
		if ev == "exit:ETHUSDT" {
			last = i
		}
	}
	for _, ev := range events[:last] {
		assert.NotEqual(t, "evaluate:BTCUSDT", ev)
	}
}

func TestEntryBlockedByCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.strategy.Signal = domain.SignalBuy
	f.svc.cooldownUntil["ETHUSDT"] = time.Now().Add(time.Hour)

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2000, nil
	}

	require.False(t, f.svc.iteration(ctx))
	assert.Equal(t, 0, f.ledger.OpenCount())
}

func TestEntryBlockedByDailyTradeCap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.strategy.Signal = domain.SignalBuy

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		return 2000, nil
	}
	f.repo.CountTodayBySymbolFn = func(ctx context.Context, symbol string) (int, error) {
		return 5, nil
	}

	require.False(t, f.svc.iteration(ctx))
	assert.Equal(t, 0, f.ledger.OpenCount())
}

func TestStatusCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)
	f.notifier.Queued = []string{"/status"}

	require.False(t, f.svc.iteration(ctx))
	assert.True(t, notified(f.notifier, "Status"))
}

func TestStartupRecoversPersistedPosition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	// Snapshot left behind by a previous run that crashed while holding an
	// armed trailing position.
	require.NoError(t, f.store.SavePosition(ctx, &domain.PositionState{
		Symbol:                "ETHUSDT",
		Size:                  0.05,
		EntryPrice:            2000,
		EntryValue:            100,
		StopOrderID:           31,
		CurrentStopPrice:      2050,
		TrailingStopActivated: true,
		HighestPriceSeen:      2080,
	}))

	require.NoError(t, f.svc.recoverPosition(ctx))

	require.Equal(t, 1, f.ledger.OpenCount())
	pos, err := f.ledger.Position("ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 0.05, pos.Size)
	assert.Equal(t, int64(31), pos.StopOrderID)
	assert.Equal(t, 2050.0, pos.CurrentStopPrice)
	assert.True(t, pos.TrailingStopActivated)
	assert.Equal(t, 2080.0, pos.HighestPriceSeen)
	assert.True(t, notified(f.notifier, "Recovered"))
}

func TestStartupWithoutSnapshotStartsFlat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	require.NoError(t, f.svc.recoverPosition(ctx))
	assert.Equal(t, 0, f.ledger.OpenCount())
	assert.False(t, notified(f.notifier, "Recovered"))
}

func TestPanicIsContained(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	f.exchange.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
		panic("boom")
	}

	halt := f.svc.safeIteration(ctx)
	assert.False(t, halt)
	assert.True(t, notified(f.notifier, "crashed"))
}
