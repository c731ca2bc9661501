// Package mocks provides hand-rolled test doubles for the port interfaces.
// Each mock exposes one function field per method; unset fields fall back to
// a benign default so tests only wire the calls they care about.
package mocks

import (
	"context"
	"sync"

	"swingTraderBot/internal/domain"
	"swingTraderBot/internal/ports"
)

// Logger records messages by level. Safe for concurrent use.
type Logger struct {
	mu        sync.Mutex
	DebugMsgs []string
	InfoMsgs  []string
	WarnMsgs  []string
	ErrorMsgs []string
}

func (m *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DebugMsgs = append(m.DebugMsgs, msg)
}

func (m *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoMsgs = append(m.InfoMsgs, msg)
}

func (m *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarnMsgs = append(m.WarnMsgs, msg)
}

func (m *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorMsgs = append(m.ErrorMsgs, msg)
}

// ExchangeClient implements ports.ExchangeClient with per-method hooks.
type ExchangeClient struct {
	SetServerTimeFunc        func(ctx context.Context) error
	GetTickerPriceFunc       func(ctx context.Context, symbol string) (float64, error)
	GetKlinesFunc            func(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error)
	GetAccountBalanceFunc    func(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrderFunc     func(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error)
	PlaceLimitOrderFunc      func(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*ports.OrderResponse, error)
	PlaceStopMarketOrderFunc func(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*ports.OrderResponse, error)
	PlaceBracketFunc         func(ctx context.Context, symbol string, quantity, takeProfitPrice, stopPrice float64) (*domain.BracketRef, error)
	CancelOrderFunc          func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error)
	CancelBracketFunc        func(ctx context.Context, symbol string, ref *domain.BracketRef) error
	GetOrderFunc             func(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error)
	CheckHealthFunc          func(ctx context.Context) error
}

func (m *ExchangeClient) SetServerTime(ctx context.Context) error {
	if m.SetServerTimeFunc != nil {
		return m.SetServerTimeFunc(ctx)
	}
	return nil
}

func (m *ExchangeClient) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	if m.GetTickerPriceFunc != nil {
		return m.GetTickerPriceFunc(ctx, symbol)
	}
	return 0, nil
}

func (m *ExchangeClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]*domain.Kline, error) {
	if m.GetKlinesFunc != nil {
		return m.GetKlinesFunc(ctx, symbol, interval, limit)
	}
	return nil, nil
}

func (m *ExchangeClient) GetAccountBalance(ctx context.Context, asset string) (float64, error) {
	if m.GetAccountBalanceFunc != nil {
		return m.GetAccountBalanceFunc(ctx, asset)
	}
	return 0, nil
}

func (m *ExchangeClient) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*ports.OrderResponse, error) {
	if m.PlaceMarketOrderFunc != nil {
		return m.PlaceMarketOrderFunc(ctx, symbol, side, quantity)
	}
	return &ports.OrderResponse{}, nil
}

func (m *ExchangeClient) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, price float64) (*ports.OrderResponse, error) {
	if m.PlaceLimitOrderFunc != nil {
		return m.PlaceLimitOrderFunc(ctx, symbol, side, quantity, price)
	}
	return &ports.OrderResponse{}, nil
}

func (m *ExchangeClient) PlaceStopMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, stopPrice float64) (*ports.OrderResponse, error) {
	if m.PlaceStopMarketOrderFunc != nil {
		return m.PlaceStopMarketOrderFunc(ctx, symbol, side, quantity, stopPrice)
	}
	return &ports.OrderResponse{}, nil
}

func (m *ExchangeClient) PlaceBracket(ctx context.Context, symbol string, quantity, takeProfitPrice, stopPrice float64) (*domain.BracketRef, error) {
	if m.PlaceBracketFunc != nil {
		return m.PlaceBracketFunc(ctx, symbol, quantity, takeProfitPrice, stopPrice)
	}
	return &domain.BracketRef{}, nil
}

func (m *ExchangeClient) CancelOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	if m.CancelOrderFunc != nil {
		return m.CancelOrderFunc(ctx, symbol, orderID)
	}
	return &ports.OrderResponse{}, nil
}

func (m *ExchangeClient) CancelBracket(ctx context.Context, symbol string, ref *domain.BracketRef) error {
	if m.CancelBracketFunc != nil {
		return m.CancelBracketFunc(ctx, symbol, ref)
	}
	return nil
}

func (m *ExchangeClient) GetOrder(ctx context.Context, symbol string, orderID int64) (*ports.OrderResponse, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, symbol, orderID)
	}
	return &ports.OrderResponse{}, nil
}

func (m *ExchangeClient) CheckHealth(ctx context.Context) error {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return nil
}

// Notifier records sent messages and replays queued commands.
type Notifier struct {
	mu       sync.Mutex
	Sent     []string
	Queued   []string
	CmdsErr  error
	SendFunc func(ctx context.Context, msg string)
}

func (m *Notifier) Send(ctx context.Context, msg string) {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	m.mu.Unlock()
	if m.SendFunc != nil {
		m.SendFunc(ctx, msg)
	}
}

func (m *Notifier) Commands(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CmdsErr != nil {
		return nil, m.CmdsErr
	}
	cmds := m.Queued
	m.Queued = nil
	return cmds, nil
}

// TradeRepository implements ports.TradeRepository with per-method hooks.
type TradeRepository struct {
	CreateTradeFunc       func(ctx context.Context, trade *domain.Trade) (int64, error)
	FindBySymbolFunc      func(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	CountTodayBySymbolFn  func(ctx context.Context, symbol string) (int, error)
	GetTotalProfitFunc    func(ctx context.Context) (float64, error)
	mu                    sync.Mutex
	CreatedTrades         []*domain.Trade
}

func (m *TradeRepository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	m.mu.Lock()
	m.CreatedTrades = append(m.CreatedTrades, trade)
	m.mu.Unlock()
	if m.CreateTradeFunc != nil {
		return m.CreateTradeFunc(ctx, trade)
	}
	return int64(len(m.CreatedTrades)), nil
}

func (m *TradeRepository) FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	if m.FindBySymbolFunc != nil {
		return m.FindBySymbolFunc(ctx, symbol, limit)
	}
	return nil, nil
}

func (m *TradeRepository) CountTodayBySymbol(ctx context.Context, symbol string) (int, error) {
	if m.CountTodayBySymbolFn != nil {
		return m.CountTodayBySymbolFn(ctx, symbol)
	}
	return 0, nil
}

func (m *TradeRepository) GetTotalProfit(ctx context.Context) (float64, error) {
	if m.GetTotalProfitFunc != nil {
		return m.GetTotalProfitFunc(ctx)
	}
	return 0, nil
}

// Strategy implements ports.Strategy with a fixed signal.
type Strategy struct {
	DataPoints int
	Signal     domain.Signal
	EvalFunc   func(ctx context.Context, klines []*domain.Kline, currentPrice float64) domain.Signal
}

func (m *Strategy) RequiredDataPoints() int {
	if m.DataPoints > 0 {
		return m.DataPoints
	}
	return 1
}

func (m *Strategy) Evaluate(ctx context.Context, klines []*domain.Kline, currentPrice float64) domain.Signal {
	if m.EvalFunc != nil {
		return m.EvalFunc(ctx, klines, currentPrice)
	}
	return m.Signal
}
