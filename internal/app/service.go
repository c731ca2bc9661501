// Package app wires the core components into the trading loop: one
// single-threaded iteration that processes operator commands, runs the safety
// gates, settles exits, advances trailing stops, and hunts for entries.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swingTraderBot/config"
	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/execution"
	"swingTraderBot/internal/ledger"
	"swingTraderBot/internal/metrics"
	"swingTraderBot/internal/ports"
	"swingTraderBot/internal/risk"
	"swingTraderBot/internal/statestore"
	"swingTraderBot/internal/trailing"
)

// TradingService orchestrates the bot. All trading state is owned by the loop
// goroutine; nothing here needs locking.
type TradingService struct {
	cfg       *config.Config
	logger    ports.Logger
	exchange  ports.ExchangeClient
	tradeRepo ports.TradeRepository
	strategy  ports.Strategy
	notifier  ports.Notifier

	ledger   *ledger.Ledger
	store    *statestore.Store
	gate     *risk.Gate
	trailing *trailing.Engine
	handler  *execution.Handler

	capital       float64
	cooldownUntil map[string]time.Time
	lastSave      time.Time
	lastHeartbeat time.Time
}

// NewTradingService creates a new application service instance. Capital must
// already be recovered from the state store so the drawdown baseline and the
// running figure agree.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	tradeRepo ports.TradeRepository,
	strat ports.Strategy,
	notifier ports.Notifier,
	posLedger *ledger.Ledger,
	store *statestore.Store,
	gate *risk.Gate,
	trailingEngine *trailing.Engine,
	handler *execution.Handler,
	initialCapital float64,
) (*TradingService, error) {
	if cfg == nil || logger == nil || exchange == nil || tradeRepo == nil || strat == nil ||
		notifier == nil || posLedger == nil || store == nil || gate == nil || trailingEngine == nil || handler == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for TradingService", ports.ErrConfigurationError)
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", ports.ErrConfigurationError)
	}

	return &TradingService{
		cfg:           cfg,
		logger:        logger,
		exchange:      exchange,
		tradeRepo:     tradeRepo,
		strategy:      strat,
		notifier:      notifier,
		ledger:        posLedger,
		store:         store,
		gate:          gate,
		trailing:      trailingEngine,
		handler:       handler,
		capital:       initialCapital,
		cooldownUntil: make(map[string]time.Time),
		lastHeartbeat: time.Now(),
	}, nil
}

// Start begins the trading loop and blocks until shutdown.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.exchange.SetServerTime(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to synchronize server time")
		return fmt.Errorf("failed to set server time: %w", err)
	}
	s.logger.Info(ctx, "Server time synchronized")

	if err := s.recoverPosition(ctx); err != nil {
		return err
	}

	s.notifier.Send(ctx, fmt.Sprintf("🤖 Bot started. Symbols: %v, capital: %.2f %s",
		s.cfg.Symbols, s.capital, s.cfg.QuoteAsset))

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(ctx)
			return nil
		case <-ticker.C:
			if halt := s.safeIteration(ctx); halt {
				s.shutdown(ctx)
				return nil
			}
		}
	}
}

// recoverPosition reloads a persisted open position into the ledger so a
// restart resumes managing it instead of abandoning it on the exchange.
func (s *TradingService) recoverPosition(ctx context.Context) error {
	snap, err := s.store.LoadPosition(ctx)
	if err != nil {
		return fmt.Errorf("loading position snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	if err := s.ledger.Restore(ctx, snap); err != nil {
		return fmt.Errorf("restoring position snapshot: %w", err)
	}
	s.notifier.Send(ctx, fmt.Sprintf("♻️ Recovered open position: %s size %.8f @ %.2f (stop %.2f)",
		snap.Symbol, snap.Size, snap.EntryPrice, snap.CurrentStopPrice))
	return nil
}

// safeIteration runs one iteration behind a recover boundary. A panic must
// never kill the loop while protective orders and state need tending.
func (s *TradingService) safeIteration(ctx context.Context) (halt bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IterationErrorsTotal.Inc()
			s.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Trading iteration panicked; cooling down")
			s.notifier.Send(ctx, fmt.Sprintf("🚨 Iteration crashed: %v. Cooling down %s.", r, s.cfg.CrashCooldown))
			halt = false
			select {
			case <-time.After(s.cfg.CrashCooldown):
			case <-ctx.Done():
			}
		}
	}()
	return s.iteration(ctx)
}

// iteration is one pass of the trading loop. Returning true halts the bot.
func (s *TradingService) iteration(ctx context.Context) bool {
	metrics.IterationsTotal.Inc()

	s.processCommands(ctx)

	if !s.gate.CheckCapital(ctx, s.capital) {
		s.notifier.Send(ctx, fmt.Sprintf("🛑 Maximum drawdown breached (capital %.2f, peak %.2f). Trading halted.",
			s.capital, s.gate.HighWaterMark()))
		return true
	}
	s.gate.CheckMemoryUsage(ctx)

	if !s.gate.CheckExchangeStatus(ctx) {
		return false
	}

	// Exits for every open position settle before any entry is considered,
	// regardless of symbol registration order.
	for _, pos := range s.ledger.OpenPositions() {
		if ctx.Err() != nil {
			return false
		}
		price, ok := s.fetchPrice(ctx, pos.Symbol)
		if !ok {
			continue
		}
		s.manageOpenPosition(ctx, pos, price)
	}

	for _, symbol := range s.ledger.Symbols() {
		if ctx.Err() != nil {
			return false
		}
		pos, err := s.ledger.Position(symbol)
		if err != nil {
			s.logger.Error(ctx, err, "Ledger lookup failed", map[string]interface{}{"symbol": symbol})
			continue
		}
		if pos.IsOpen() {
			continue
		}
		price, ok := s.fetchPrice(ctx, symbol)
		if !ok {
			continue
		}
		s.maybeEnter(ctx, symbol, price)
	}

	s.persistState(ctx)
	s.publishMetrics()
	s.heartbeat(ctx)
	return false
}

// fetchPrice reads the ticker for a symbol, recording the price metric. A
// fetch failure skips the symbol for this iteration.
func (s *TradingService) fetchPrice(ctx context.Context, symbol string) (float64, bool) {
	price, err := s.exchange.GetTickerPrice(ctx, symbol)
	if err != nil {
		s.logger.Warn(ctx, "Ticker fetch failed; skipping symbol this iteration", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return 0, false
	}
	metrics.LastPrice.WithLabelValues(symbol).Set(price)
	return price, true
}

// manageOpenPosition checks whether a protective order has filled, then runs
// the trailing engine, then lets the strategy force an early exit.
func (s *TradingService) manageOpenPosition(ctx context.Context, pos *domain.PositionState, price float64) {
	if s.checkExit(ctx, pos, price) {
		return
	}

	changed, err := s.trailing.Update(ctx, pos, price)
	if err != nil {
		s.logger.Error(ctx, err, "Trailing update failed", map[string]interface{}{"symbol": pos.Symbol})
	}
	if changed {
		metrics.TrailingStopUpdates.WithLabelValues(pos.Symbol).Inc()
		s.savePosition(ctx)
	}

	klines, err := s.exchange.GetKlines(ctx, pos.Symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	if err != nil {
		s.logger.Warn(ctx, "Kline fetch failed; skipping signal exit check", map[string]interface{}{
			"symbol": pos.Symbol,
			"error":  err.Error(),
		})
		return
	}
	if s.strategy.Evaluate(ctx, klines, price) == domain.SignalSell {
		s.closeBySignal(ctx, pos, price)
	}
}

// checkExit polls the protective orders of an open position. Returns true
// when the position was settled (by fill or defensively).
func (s *TradingService) checkExit(ctx context.Context, pos *domain.PositionState, price float64) bool {
	type leg struct {
		orderID int64
		reason  domain.CloseReason
	}
	var legs []leg
	if pos.Bracket != nil {
		legs = append(legs,
			leg{pos.Bracket.StopOrderID, domain.CloseReasonStopLoss},
			leg{pos.Bracket.TakeProfitOrderID, domain.CloseReasonTakeProfit},
		)
	} else if pos.StopOrderID != 0 {
		legs = append(legs, leg{pos.StopOrderID, domain.CloseReasonTrailingStop})
	}

	for _, l := range legs {
		if l.orderID == 0 {
			continue
		}
		resp, err := s.exchange.GetOrder(ctx, pos.Symbol, l.orderID)
		if err != nil {
			if errors.Is(err, ports.ErrOrderNotFound) {
				// A protective order the exchange no longer knows about
				// means the position may be naked. Close it rather than
				// guess what happened.
				s.defensiveClose(ctx, pos, price, l.orderID)
				return true
			}
			s.logger.Warn(ctx, "Protective order status check failed; retrying next iteration", map[string]interface{}{
				"symbol":  pos.Symbol,
				"orderID": l.orderID,
				"error":   err.Error(),
			})
			return false
		}
		if resp.IsFilled() {
			exitPrice := resp.AvgPrice
			if exitPrice <= 0 {
				exitPrice = price
			}
			s.cancelSibling(ctx, pos, l.orderID)
			s.settle(ctx, pos, exitPrice, l.reason)
			return true
		}
	}
	return false
}

// cancelSibling cancels the other bracket leg after one leg filled.
func (s *TradingService) cancelSibling(ctx context.Context, pos *domain.PositionState, filledOrderID int64) {
	if pos.Bracket == nil {
		return
	}
	sibling := pos.Bracket.StopOrderID
	if filledOrderID == sibling {
		sibling = pos.Bracket.TakeProfitOrderID
	}
	if sibling == 0 {
		return
	}
	if _, err := s.exchange.CancelOrder(ctx, pos.Symbol, sibling); err != nil && !errors.Is(err, ports.ErrOrderNotFound) {
		s.logger.Error(ctx, err, "Failed to cancel sibling bracket leg", map[string]interface{}{
			"symbol":  pos.Symbol,
			"orderID": sibling,
		})
	}
}

// defensiveClose market-sells a position whose protective order vanished.
func (s *TradingService) defensiveClose(ctx context.Context, pos *domain.PositionState, price float64, missingOrderID int64) {
	s.logger.Error(ctx, nil, "Protective order missing from exchange; closing position defensively", map[string]interface{}{
		"symbol":  pos.Symbol,
		"orderID": missingOrderID,
	})
	s.notifier.Send(ctx, fmt.Sprintf("⚠️ Protective order %d for %s vanished. Closing position defensively.",
		missingOrderID, pos.Symbol))

	s.cancelProtection(ctx, pos)
	resp, err := s.exchange.PlaceMarketOrder(ctx, pos.Symbol, domain.Sell, pos.Size)
	if err != nil {
		s.logger.Error(ctx, err, "CRITICAL: defensive close failed; will retry next iteration", map[string]interface{}{
			"symbol": pos.Symbol,
		})
		s.notifier.Send(ctx, fmt.Sprintf("🚨 Defensive close of %s FAILED: %v", pos.Symbol, err))
		return
	}

	exitPrice := resp.AvgPrice
	if exitPrice <= 0 {
		exitPrice = price
	}
	s.settle(ctx, pos, exitPrice, domain.CloseReasonDefensive)
}

// closeBySignal exits a position because the strategy turned bearish.
func (s *TradingService) closeBySignal(ctx context.Context, pos *domain.PositionState, price float64) {
	s.logger.Info(ctx, "Strategy signaled exit; closing position", map[string]interface{}{
		"symbol": pos.Symbol,
		"price":  price,
	})

	s.cancelProtection(ctx, pos)
	resp, err := s.exchange.PlaceMarketOrder(ctx, pos.Symbol, domain.Sell, pos.Size)
	if err != nil {
		// Protections may be gone now; the trailing engine restores a stop
		// next iteration if the close did not go through.
		s.logger.Error(ctx, err, "Signal close failed", map[string]interface{}{"symbol": pos.Symbol})
		s.notifier.Send(ctx, fmt.Sprintf("⚠️ Signal close of %s failed: %v", pos.Symbol, err))
		pos.Bracket = nil
		pos.StopOrderID = 0
		s.savePosition(ctx)
		return
	}

	exitPrice := resp.AvgPrice
	if exitPrice <= 0 {
		exitPrice = price
	}
	s.settle(ctx, pos, exitPrice, domain.CloseReasonSignal)
}

// cancelProtection cancels whatever protective orders the position tracks.
func (s *TradingService) cancelProtection(ctx context.Context, pos *domain.PositionState) {
	if pos.Bracket != nil {
		if err := s.exchange.CancelBracket(ctx, pos.Symbol, pos.Bracket); err != nil {
			s.logger.Error(ctx, err, "Failed to cancel bracket", map[string]interface{}{"symbol": pos.Symbol})
		}
		return
	}
	if pos.StopOrderID != 0 {
		if _, err := s.exchange.CancelOrder(ctx, pos.Symbol, pos.StopOrderID); err != nil && !errors.Is(err, ports.ErrOrderNotFound) {
			s.logger.Error(ctx, err, "Failed to cancel trailing stop", map[string]interface{}{"symbol": pos.Symbol})
		}
	}
}

// settle realizes the round trip: capital, trade history, ledger, snapshot,
// cooldown, operator message. Settlement is point-in-time; capital moves only
// here.
func (s *TradingService) settle(ctx context.Context, pos *domain.PositionState, exitPrice float64, reason domain.CloseReason) {
	exitValue := pos.Size * exitPrice
	pnl := exitValue - pos.EntryValue
	s.capital += pnl

	trade := &domain.Trade{
		Symbol:      pos.Symbol,
		Size:        pos.Size,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   exitPrice,
		EntryValue:  pos.EntryValue,
		PNL:         pnl,
		EntryTime:   pos.EntryTime,
		ExitTime:    time.Now().UTC(),
		CloseReason: reason,
	}
	if _, err := s.tradeRepo.CreateTrade(ctx, trade); err != nil {
		// History is best effort; the close itself already happened.
		s.logger.Error(ctx, err, "Failed to record trade history", map[string]interface{}{"symbol": pos.Symbol})
	}

	symbol := pos.Symbol
	if err := s.ledger.ClosePosition(ctx, symbol); err != nil {
		s.logger.Error(ctx, err, "Ledger close failed", map[string]interface{}{"symbol": symbol})
	}
	s.savePosition(ctx)
	if err := s.store.SaveCapital(ctx, s.capital); err != nil {
		s.logger.Error(ctx, err, "Failed to persist capital", nil)
	}

	s.cooldownUntil[symbol] = time.Now().Add(s.cfg.PositionCooldown)

	metrics.TradesTotal.WithLabelValues(symbol, string(reason)).Inc()
	metrics.RealizedPnL.WithLabelValues(symbol).Add(pnl)

	s.logger.Info(ctx, "Position settled", map[string]interface{}{
		"symbol":    symbol,
		"reason":    string(reason),
		"exitPrice": exitPrice,
		"pnl":       pnl,
		"capital":   s.capital,
	})
	s.notifier.Send(ctx, fmt.Sprintf("%s *%s closed* (%s): exit %.2f, PnL %+.2f, capital %.2f",
		pnlEmoji(pnl), symbol, reason, exitPrice, pnl, s.capital))
}

// maybeEnter opens a position on symbol when every entry gate agrees.
func (s *TradingService) maybeEnter(ctx context.Context, symbol string, price float64) {
	if until, ok := s.cooldownUntil[symbol]; ok && time.Now().Before(until) {
		return
	}
	if s.handler.State() != execution.StateIdle {
		return
	}
	if !s.ledger.CanOpenNewPosition() {
		return
	}

	tradesToday, err := s.tradeRepo.CountTodayBySymbol(ctx, symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to count today's trades; skipping entry", map[string]interface{}{"symbol": symbol})
		return
	}
	if tradesToday >= s.cfg.MaxTradesPerDay {
		return
	}

	klines, err := s.exchange.GetKlines(ctx, symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	if err != nil {
		s.logger.Warn(ctx, "Kline fetch failed; skipping entry check", map[string]interface{}{
			"symbol": symbol,
			"error":  err.Error(),
		})
		return
	}
	if s.strategy.Evaluate(ctx, klines, price) != domain.SignalBuy {
		return
	}

	balance, err := s.exchange.GetAccountBalance(ctx, s.cfg.QuoteAsset)
	if err != nil {
		s.logger.Error(ctx, err, "Balance check failed; skipping entry", map[string]interface{}{"symbol": symbol})
		return
	}
	if balance < s.cfg.QuotePerTrade {
		s.logger.Warn(ctx, "Insufficient balance for entry", map[string]interface{}{
			"symbol":   symbol,
			"balance":  balance,
			"required": s.cfg.QuotePerTrade,
		})
		return
	}

	quantity := roundQty(s.cfg.QuotePerTrade / price)
	if quantity <= 0 {
		return
	}
	spec := execution.OrderSpec{
		Symbol:          symbol,
		Quantity:        quantity,
		TakeProfitPrice: price * (1 + s.cfg.TakeProfitPct),
		StopPrice:       price * (1 - s.cfg.StopLossPct),
	}

	res, err := s.handler.OpenTrade(ctx, spec)
	if err != nil {
		s.logger.Error(ctx, err, "Entry failed", map[string]interface{}{"symbol": symbol})
		if errors.Is(err, ports.ErrEmergencyState) {
			s.notifier.Send(ctx, fmt.Sprintf("🚨 %s entry left the handler in emergency state. Send /reset after manual reconciliation.", symbol))
		}
		return
	}

	if err := s.ledger.OpenPosition(ctx, symbol, res.FilledQuantity, res.EntryPrice, res.Bracket, spec.StopPrice); err != nil {
		// The exchange position exists but the ledger refused it. This is a
		// bug; alert loudly rather than trade blind.
		s.logger.Error(ctx, err, "BUG: ledger rejected a confirmed entry", map[string]interface{}{"symbol": symbol})
		s.notifier.Send(ctx, fmt.Sprintf("🚨 Ledger rejected confirmed entry for %s: %v. Manual check required.", symbol, err))
	}
	if err := s.handler.Release(ctx); err != nil {
		s.logger.Error(ctx, err, "Handler release failed", map[string]interface{}{"symbol": symbol})
	}
	s.savePosition(ctx)

	s.notifier.Send(ctx, fmt.Sprintf("📈 *%s opened*: size %.8f @ %.2f (SL %.2f / TP %.2f)",
		symbol, res.FilledQuantity, res.EntryPrice, spec.StopPrice, spec.TakeProfitPrice))

	// Let the exchange settle the fresh orders before the next API burst.
	select {
	case <-time.After(s.cfg.PostEntryPause):
	case <-ctx.Done():
	}
}

// processCommands drains operator commands from the notifier.
func (s *TradingService) processCommands(ctx context.Context) {
	cmds, err := s.notifier.Commands(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Failed to poll operator commands", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, cmd := range cmds {
		switch cmd {
		case "/status":
			s.notifier.Send(ctx, s.statusReport(ctx))
		case "/reset":
			if err := s.handler.Reset(ctx); err != nil {
				s.notifier.Send(ctx, fmt.Sprintf("Reset refused: %v", err))
			} else {
				s.notifier.Send(ctx, "Execution handler reset to idle.")
			}
		default:
			s.logger.Debug(ctx, "Ignoring unknown operator command", map[string]interface{}{"command": cmd})
		}
	}
}

func (s *TradingService) statusReport(ctx context.Context) string {
	totalProfit, err := s.tradeRepo.GetTotalProfit(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Failed to read total profit for status", map[string]interface{}{"error": err.Error()})
	}

	msg := fmt.Sprintf("📊 *Status*\nCapital: %.2f %s (peak %.2f)\nTotal recorded PnL: %+.2f\nHandler: %s\nOpen positions: %d",
		s.capital, s.cfg.QuoteAsset, s.gate.HighWaterMark(), totalProfit, s.handler.State(), s.ledger.OpenCount())
	for _, pos := range s.ledger.OpenPositions() {
		msg += fmt.Sprintf("\n• %s size %.8f @ %.2f, stop %.2f, high %.2f, trailing=%t",
			pos.Symbol, pos.Size, pos.EntryPrice, pos.CurrentStopPrice, pos.HighestPriceSeen, pos.TrailingStopActivated)
	}
	return msg
}

// persistState runs the periodic snapshot and the per-iteration capital save.
func (s *TradingService) persistState(ctx context.Context) {
	if time.Since(s.lastSave) >= s.cfg.StateSaveInterval {
		s.savePosition(ctx)
		s.lastSave = time.Now()
	}
	if err := s.store.SaveCapital(ctx, s.capital); err != nil {
		s.logger.Error(ctx, err, "Failed to persist capital", nil)
	}
}

// savePosition persists the open position snapshot, or clears the file when
// the book is flat. With one snapshot slot, the first open position wins.
func (s *TradingService) savePosition(ctx context.Context) {
	open := s.ledger.OpenPositions()
	if len(open) == 0 {
		if err := s.store.ClearPosition(ctx); err != nil {
			s.logger.Error(ctx, err, "Failed to clear position snapshot", nil)
		}
		return
	}
	if err := s.store.SavePosition(ctx, open[0]); err != nil {
		s.logger.Error(ctx, err, "Failed to persist position snapshot", map[string]interface{}{"symbol": open[0].Symbol})
	}
}

func (s *TradingService) publishMetrics() {
	metrics.Capital.Set(s.capital)
	metrics.CapitalHighWaterMark.Set(s.gate.HighWaterMark())
	metrics.OpenPositions.Set(float64(s.ledger.OpenCount()))
}

func (s *TradingService) heartbeat(ctx context.Context) {
	if time.Since(s.lastHeartbeat) < s.cfg.HeartbeatInterval {
		return
	}
	s.lastHeartbeat = time.Now()
	s.notifier.Send(ctx, fmt.Sprintf("💓 Alive. Capital %.2f %s, open positions %d, handler %s.",
		s.capital, s.cfg.QuoteAsset, s.ledger.OpenCount(), s.handler.State()))
}

// shutdown persists final state and tells the operator. Open positions stay
// on the exchange with their protective orders live; the snapshot lets the
// next start resume them.
func (s *TradingService) shutdown(ctx context.Context) {
	// The loop context may already be canceled; persistence still has to run.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info(shutdownCtx, "Shutting down Trading Service...")
	s.savePosition(shutdownCtx)
	if err := s.store.SaveCapital(shutdownCtx, s.capital); err != nil {
		s.logger.Error(shutdownCtx, err, "Failed to persist capital during shutdown", nil)
	}
	s.notifier.Send(shutdownCtx, fmt.Sprintf("🛑 Bot stopped. Capital %.2f %s, open positions %d.",
		s.capital, s.cfg.QuoteAsset, s.ledger.OpenCount()))
}

func pnlEmoji(pnl float64) string {
	if pnl >= 0 {
		return "✅"
	}
	return "❌"
}

// roundQty floors a base-asset quantity to a conservative precision so the
// order never requests more than the quote budget buys.
func roundQty(q float64) float64 {
	const steps = 1e4
	return float64(int64(q*steps)) / steps
}
