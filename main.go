package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"

	"swingTraderBot/config"
	"swingTraderBot/internal/adapters/binanceclient"
	"swingTraderBot/internal/adapters/logger"
	"swingTraderBot/internal/adapters/sqlite"
	"swingTraderBot/internal/adapters/telegram"
	"swingTraderBot/internal/app"
	"swingTraderBot/internal/execution"
	"swingTraderBot/internal/ledger"
	"swingTraderBot/internal/metrics"
	"swingTraderBot/internal/risk"
	"swingTraderBot/internal/statestore"
	"swingTraderBot/internal/strategy"
	"swingTraderBot/internal/trailing"
)

func main() {
	ctx := context.Background()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   true,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Notifier (Telegram Adapter)
	notifier, err := telegram.New(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Telegram notifier")
		log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
	}

	// 4. Initialize State Store and recover capital
	store, err := statestore.New(cfg.StateDir, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize state store")
		log.Fatalf("FATAL: Failed to initialize state store: %v", err)
	}
	capital := store.LoadCapital(ctx, cfg.StartingCapital)
	appLogger.Info(ctx, "State store initialized", map[string]interface{}{"capital": capital})

	// 5. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 6. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized", map[string]interface{}{"testnet": cfg.IsTestnet})

	// 7. Initialize Strategy
	strat, err := strategy.New(strategy.Config{
		SMAPeriod:     cfg.StrategySMAPeriod,
		RSIPeriod:     cfg.StrategyRSIPeriod,
		RSIOverbought: cfg.StrategyRSIOverbought,
		RSIOversold:   cfg.StrategyRSIOversold,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategy")
		log.Fatalf("FATAL: Failed to initialize trading strategy: %v", err)
	}
	appLogger.Info(ctx, "Trading strategy initialized")

	// 8. Initialize Core Components
	posLedger, err := ledger.New(ledger.Config{MaxOpenPositions: cfg.MaxOpenPositions}, appLogger, cfg.Symbols)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position ledger")
		log.Fatalf("FATAL: Failed to initialize position ledger: %v", err)
	}

	gate, err := risk.New(risk.Config{
		MaxDrawdownPct: cfg.MaxDrawdownPct,
		MemoryWarnMB:   int(cfg.MemoryWarnMB),
	}, binanceClient, appLogger, capital)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize risk gate")
		log.Fatalf("FATAL: Failed to initialize risk gate: %v", err)
	}

	trailingEngine, err := trailing.New(trailing.Config{
		ActivationPct: cfg.TrailingActivationPct,
		CallbackPct:   cfg.TrailingCallbackPct,
	}, binanceClient, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trailing stop engine")
		log.Fatalf("FATAL: Failed to initialize trailing stop engine: %v", err)
	}

	handler, err := execution.New(execution.Config{
		FillPollInterval: cfg.FillPollInterval,
		FillPollTimeout:  cfg.FillPollTimeout,
	}, binanceClient, appLogger, notifier)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize execution handler")
		log.Fatalf("FATAL: Failed to initialize execution handler: %v", err)
	}

	// 9. Metrics endpoint
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			appLogger.Info(ctx, "Metrics endpoint listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				appLogger.Error(ctx, err, "Metrics endpoint failed")
			}
		}()
	}

	// 10. Initialize Application Service
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		binanceClient, // Pass the concrete implementations, service expects the interfaces
		repo,
		strat,
		notifier,
		posLedger,
		store,
		gate,
		trailingEngine,
		handler,
		capital,
	)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(ctx, "Trading service initialized")

	// 11. Start the Service
	if err := tradingService.Start(ctx); err != nil {
		appLogger.Error(ctx, err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(ctx, "Application finished gracefully.")
}
