package ports

import (
	"context"

	"swingTraderBot/internal/domain"
)

// TradeRepository stores the append-only log of completed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a symbol, up to limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// CountTodayBySymbol counts the trades completed today for a symbol.
	CountTodayBySymbol(ctx context.Context, symbol string) (int, error)
	// GetTotalProfit sums realized PnL across all recorded trades.
	GetTotalProfit(ctx context.Context) (float64, error)
}
