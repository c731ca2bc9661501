// Package execution performs the two-legged entry sequence: place the entry
// order, confirm its fill, then attach the protective bracket. A small state
// machine guards the sequence so a second entry can never start while one is
// in flight, and a failed bracket leg after a confirmed fill locks the
// handler in an emergency state that only an operator can clear.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

// State is the handler's position in the entry sequence.
type State string

const (
	StateIdle             State = "IDLE"
	StateEntering         State = "ENTERING"
	StateInPosition       State = "IN_POSITION"
	StateEmergencyClosing State = "EMERGENCY_CLOSING"
)

// validTransitions enumerates every legal state change. Anything else is a
// programming error and is rejected loudly.
var validTransitions = map[State][]State{
	StateIdle:             {StateEntering},
	StateEntering:         {StateInPosition, StateIdle, StateEmergencyClosing},
	StateInPosition:       {StateIdle},
	StateEmergencyClosing: {StateIdle},
}

// Config holds configuration for the execution handler.
type Config struct {
	// FillPollInterval is how often the entry order's status is polled.
	FillPollInterval time.Duration
	// FillPollTimeout bounds how long an entry order may stay unfilled
	// before the handler gives up on the remainder.
	FillPollTimeout time.Duration
}

// OrderSpec describes one entry request. A zero LimitPrice means a market
// entry; otherwise a GTC limit order at that price.
type OrderSpec struct {
	Symbol          string
	Quantity        float64
	LimitPrice      float64
	TakeProfitPrice float64
	StopPrice       float64
}

// Result reports a completed entry: the confirmed fill plus the protective
// bracket now guarding it. FilledQuantity may be below the requested quantity
// when the entry order only partially filled before the timeout.
type Result struct {
	TradeID        string // Correlation ID threading the entry through logs
	EntryOrderID   int64
	EntryPrice     float64
	FilledQuantity float64
	Bracket        *domain.BracketRef
}

// Handler runs entries. All methods are called from the trading loop; the
// mutex only guards State() reads from other goroutines (status reporting).
type Handler struct {
	cfg      Config
	exchange ports.ExchangeClient
	logger   ports.Logger
	notifier ports.Notifier

	mu    sync.Mutex
	state State
}

// New creates the handler in the idle state.
func New(cfg Config, exchange ports.ExchangeClient, logger ports.Logger, notifier ports.Notifier) (*Handler, error) {
	if exchange == nil {
		return nil, fmt.Errorf("%w: exchange client is required", ports.ErrConfigurationError)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if notifier == nil {
		return nil, fmt.Errorf("%w: notifier is required", ports.ErrConfigurationError)
	}
	if cfg.FillPollInterval <= 0 || cfg.FillPollTimeout <= 0 {
		return nil, fmt.Errorf("%w: fill poll interval and timeout must be positive", ports.ErrConfigurationError)
	}
	if cfg.FillPollInterval > cfg.FillPollTimeout {
		return nil, fmt.Errorf("%w: FillPollInterval exceeds FillPollTimeout", ports.ErrConfigurationError)
	}
	return &Handler{cfg: cfg, exchange: exchange, logger: logger, notifier: notifier, state: StateIdle}, nil
}

// State returns the current state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handler) transition(ctx context.Context, to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, allowed := range validTransitions[h.state] {
		if allowed == to {
			h.logger.Debug(ctx, "Execution state transition", map[string]interface{}{
				"from": string(h.state),
				"to":   string(to),
			})
			h.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: illegal transition %s -> %s", ports.ErrInvalidRequest, h.state, to)
}

// OpenTrade executes the full entry sequence for spec and returns the
// confirmed result. On success the handler is left in IN_POSITION and the
// caller must invoke Release once the position is registered. A wrapped
// ErrEmergencyState return means the bracket leg failed after the entry
// filled: the handler stays locked until Reset.
func (h *Handler) OpenTrade(ctx context.Context, spec OrderSpec) (*Result, error) {
	if spec.Symbol == "" || spec.Quantity <= 0 {
		return nil, fmt.Errorf("%w: symbol and positive quantity are required", ports.ErrInvalidRequest)
	}
	if spec.StopPrice <= 0 || spec.TakeProfitPrice <= spec.StopPrice {
		return nil, fmt.Errorf("%w: bracket prices must satisfy 0 < stop < take-profit", ports.ErrInvalidRequest)
	}

	switch h.State() {
	case StateIdle:
	case StateEmergencyClosing:
		return nil, fmt.Errorf("%w: previous emergency close unresolved", ports.ErrEmergencyState)
	default:
		return nil, fmt.Errorf("%w: state is %s", ports.ErrHandlerBusy, h.State())
	}
	if err := h.transition(ctx, StateEntering); err != nil {
		return nil, err
	}

	tradeID := uuid.NewString()
	h.logger.Info(ctx, "Entry sequence started", map[string]interface{}{
		"tradeID":  tradeID,
		"symbol":   spec.Symbol,
		"quantity": spec.Quantity,
		"limit":    spec.LimitPrice,
	})

	entry, err := h.placeEntry(ctx, spec)
	if err != nil {
		h.mustTransition(ctx, StateIdle)
		return nil, fmt.Errorf("placing entry order: %w", err)
	}

	filled, err := h.awaitFill(ctx, spec, entry, tradeID)
	if err != nil {
		h.mustTransition(ctx, StateIdle)
		return nil, err
	}

	entryPrice := filled.AvgPrice
	if entryPrice <= 0 {
		entryPrice = spec.LimitPrice
	}
	if entryPrice <= 0 {
		// Market fill with no average price reported; fall back to the ticker.
		ticker, terr := h.exchange.GetTickerPrice(ctx, spec.Symbol)
		if terr != nil || ticker <= 0 {
			h.logger.Warn(ctx, "No fill price available; entry will be recorded at last order price", map[string]interface{}{
				"tradeID": tradeID,
				"symbol":  spec.Symbol,
			})
			ticker = filled.Price
		}
		entryPrice = ticker
	}

	bracket, err := h.exchange.PlaceBracket(ctx, spec.Symbol, filled.ExecutedQty, spec.TakeProfitPrice, spec.StopPrice)
	if err != nil {
		return nil, h.enterEmergencyState(ctx, spec.Symbol, filled.ExecutedQty, tradeID, err)
	}

	h.mustTransition(ctx, StateInPosition)
	h.logger.Info(ctx, "Entry sequence complete", map[string]interface{}{
		"tradeID":    tradeID,
		"symbol":     spec.Symbol,
		"entryPrice": entryPrice,
		"filledQty":  filled.ExecutedQty,
		"stopOrder":  bracket.StopOrderID,
		"tpOrder":    bracket.TakeProfitOrderID,
	})
	return &Result{
		TradeID:        tradeID,
		EntryOrderID:   filled.OrderID,
		EntryPrice:     entryPrice,
		FilledQuantity: filled.ExecutedQty,
		Bracket:        bracket,
	}, nil
}

// Release returns the handler to idle after the caller has taken ownership of
// the opened position.
func (h *Handler) Release(ctx context.Context) error {
	if h.State() != StateInPosition {
		return fmt.Errorf("%w: release requires IN_POSITION, state is %s", ports.ErrInvalidRequest, h.State())
	}
	return h.transition(ctx, StateIdle)
}

// Reset clears the emergency lock. It is an operator action, taken only after
// the exchange-side position has been manually reconciled.
func (h *Handler) Reset(ctx context.Context) error {
	if h.State() != StateEmergencyClosing {
		return fmt.Errorf("%w: reset only applies to EMERGENCY_CLOSING, state is %s", ports.ErrInvalidRequest, h.State())
	}
	h.logger.Warn(ctx, "Execution handler manually reset from emergency state", nil)
	return h.transition(ctx, StateIdle)
}

func (h *Handler) placeEntry(ctx context.Context, spec OrderSpec) (*ports.OrderResponse, error) {
	if spec.LimitPrice > 0 {
		return h.exchange.PlaceLimitOrder(ctx, spec.Symbol, domain.Buy, spec.Quantity, spec.LimitPrice)
	}
	return h.exchange.PlaceMarketOrder(ctx, spec.Symbol, domain.Buy, spec.Quantity)
}

// awaitFill polls the entry order until it fills or the timeout lapses. On
// timeout the remainder is canceled; if anything filled by then the partial
// amount is accepted and returned, otherwise the entry is abandoned.
func (h *Handler) awaitFill(ctx context.Context, spec OrderSpec, entry *ports.OrderResponse, tradeID string) (*ports.OrderResponse, error) {
	if entry.IsFilled() && entry.ExecutedQty > 0 {
		return entry, nil
	}

	deadline := time.NewTimer(h.cfg.FillPollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(h.cfg.FillPollInterval)
	defer ticker.Stop()

	last := entry
	for {
		select {
		case <-ctx.Done():
			h.cancelRemainder(ctx, spec.Symbol, entry.OrderID)
			return nil, fmt.Errorf("%w: entry fill wait aborted", ports.ErrContextCanceled)
		case <-deadline.C:
			final := h.cancelRemainder(ctx, spec.Symbol, entry.OrderID)
			if final == nil {
				final = last
			}
			if final.ExecutedQty > 0 {
				h.logger.Warn(ctx, "Entry order partially filled at timeout; proceeding with filled amount", map[string]interface{}{
					"tradeID":   tradeID,
					"symbol":    spec.Symbol,
					"requested": spec.Quantity,
					"filledQty": final.ExecutedQty,
				})
				return final, nil
			}
			return nil, fmt.Errorf("%w: entry order %d unfilled after %s", ports.ErrTimeout, entry.OrderID, h.cfg.FillPollTimeout)
		case <-ticker.C:
			resp, err := h.exchange.GetOrder(ctx, spec.Symbol, entry.OrderID)
			if err != nil {
				h.logger.Warn(ctx, "Entry order status poll failed; retrying", map[string]interface{}{
					"tradeID": tradeID,
					"orderID": entry.OrderID,
					"error":   err.Error(),
				})
				continue
			}
			last = resp
			if resp.IsFilled() {
				return resp, nil
			}
			if resp.Status == ports.OrderStatusCanceled || resp.Status == ports.OrderStatusExpired {
				if resp.ExecutedQty > 0 {
					return resp, nil
				}
				return nil, fmt.Errorf("%w: entry order %d was %s", ports.ErrOrderPlacementFailed, entry.OrderID, resp.Status)
			}
		}
	}
}

// cancelRemainder cancels the unfilled portion of the entry order and returns
// the exchange's final view of it when available.
func (h *Handler) cancelRemainder(ctx context.Context, symbol string, orderID int64) *ports.OrderResponse {
	resp, err := h.exchange.CancelOrder(ctx, symbol, orderID)
	if err == nil {
		return resp
	}
	h.logger.Warn(ctx, "Failed to cancel entry order remainder", map[string]interface{}{
		"symbol":  symbol,
		"orderID": orderID,
		"error":   err.Error(),
	})

	// The cancel may have lost a race with the fill. Take one last look so a
	// filled order is never abandoned as a timeout.
	final, gerr := h.exchange.GetOrder(ctx, symbol, orderID)
	if gerr != nil {
		h.logger.Warn(ctx, "Final entry order status check failed", map[string]interface{}{
			"symbol":  symbol,
			"orderID": orderID,
			"error":   gerr.Error(),
		})
		return nil
	}
	return final
}

// enterEmergencyState locks the handler after the bracket leg failed on a
// confirmed entry fill. The naked position is deliberately left untouched:
// reconciliation is a manual operator action, completed with Reset. An
// automated unwind here could fight the operator or double-sell a position
// whose true exchange-side state is exactly what is in doubt.
func (h *Handler) enterEmergencyState(ctx context.Context, symbol string, quantity float64, tradeID string, cause error) error {
	h.mustTransition(ctx, StateEmergencyClosing)
	h.logger.Error(ctx, cause, "CRITICAL: protective bracket failed after entry fill; manual reconciliation required", map[string]interface{}{
		"tradeID":  tradeID,
		"symbol":   symbol,
		"quantity": quantity,
	})
	h.notifier.Send(ctx, fmt.Sprintf("🚨 *CRITICAL* %s: bracket placement failed after entry fill (%v). Naked position of %.8f requires manual reconciliation; send /reset when done.", symbol, cause, quantity))
	return fmt.Errorf("%w: bracket placement failed after entry fill: %v", ports.ErrEmergencyState, cause)
}

// mustTransition applies a transition the state machine guarantees is legal
// on these internal paths.
func (h *Handler) mustTransition(ctx context.Context, to State) {
	if err := h.transition(ctx, to); err != nil {
		h.logger.Error(ctx, err, "BUG: unexpected illegal state transition", map[string]interface{}{"to": string(to)})
		h.mu.Lock()
		h.state = to
		h.mu.Unlock()
	}
}
