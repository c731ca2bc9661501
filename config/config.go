package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading parameters
	Symbols          []string // Symbols scanned by the trading loop
	QuoteAsset       string   // Asset positions are funded from (e.g., "USDT")
	QuotePerTrade    float64  // Notional value committed per trade
	MaxOpenPositions int      // Concurrent open position cap
	MaxTradesPerDay  int      // Per-symbol daily trade cap
	StopLossPct      float64  // Initial stop distance below entry (e.g., 0.03)
	TakeProfitPct    float64  // Take-profit distance above entry (e.g., 0.06)

	// Trailing stop
	TrailingActivationPct float64 // Gain required before the breakeven stop is armed
	TrailingCallbackPct   float64 // Distance of the ratcheting stop below the high

	// Risk gate
	StartingCapital float64 // Default capital when no record is persisted
	MaxDrawdownPct  float64 // Drawdown from the high-water mark that triggers shutdown
	MemoryWarnMB    uint64  // Resident memory above which an advisory alert fires

	// Loop cadence
	PollInterval      time.Duration // Sleep between loop iterations
	StateSaveInterval time.Duration // Cadence of the periodic state snapshot
	PositionCooldown  time.Duration // Per-symbol ineligibility window after a close
	PostEntryPause    time.Duration // Settle pause after a successful open
	CrashCooldown     time.Duration // Sleep after an unexpected iteration failure
	HeartbeatInterval time.Duration // Cadence of the operator heartbeat message

	// Execution
	FillPollInterval time.Duration // Poll cadence while waiting for an entry fill
	FillPollTimeout  time.Duration // Bound on the entry fill wait

	// Market data
	KlineInterval string // Candle interval fed to the strategy
	KlineLimit    int    // Number of candles fetched per evaluation

	// Strategy parameters
	StrategySMAPeriod     int
	StrategyRSIPeriod     int
	StrategyRSIOverbought float64
	StrategyRSIOversold   float64

	// Persistence
	DBPath   string // SQLite trade-history database
	StateDir string // Directory for position/capital snapshots

	// Logging
	LogLevel      string
	LogFile       string // Empty disables file logging
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Observability
	MetricsAddr string // Listen address for /metrics; empty disables

	// Notifications
	TelegramToken  string
	TelegramChatID string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	cfg.Symbols = splitSymbols(getEnv("SYMBOLS", "ETHUSDT"))
	if len(cfg.Symbols) == 0 {
		errs = append(errs, "SYMBOLS must list at least one symbol")
	}

	cfg.QuoteAsset = getEnv("QUOTE_ASSET", "USDT")

	cfg.QuotePerTrade, err = getEnvAsFloatRequired("QUOTE_PER_TRADE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUOTE_PER_TRADE: %v", err))
	} else if cfg.QuotePerTrade <= 0 {
		errs = append(errs, "QUOTE_PER_TRADE must be positive")
	}

	cfg.MaxOpenPositions, err = getEnvAsIntRequired("MAX_OPEN_POSITIONS", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_OPEN_POSITIONS: %v", err))
	} else if cfg.MaxOpenPositions <= 0 {
		errs = append(errs, "MAX_OPEN_POSITIONS must be positive")
	}

	cfg.MaxTradesPerDay, err = getEnvAsIntRequired("MAX_TRADES_PER_DAY", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_TRADES_PER_DAY: %v", err))
	} else if cfg.MaxTradesPerDay <= 0 {
		errs = append(errs, "MAX_TRADES_PER_DAY must be positive")
	}

	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 0.03)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1.0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TakeProfitPct, err = getEnvAsFloatRequired("TAKE_PROFIT_PCT", 0.06)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if cfg.TakeProfitPct <= 0 {
		errs = append(errs, "TAKE_PROFIT_PCT must be positive")
	}

	cfg.TrailingActivationPct, err = getEnvAsFloatRequired("TRAILING_ACTIVATION_PCT", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_ACTIVATION_PCT: %v", err))
	} else if cfg.TrailingActivationPct <= 0 {
		errs = append(errs, "TRAILING_ACTIVATION_PCT must be positive")
	}

	cfg.TrailingCallbackPct, err = getEnvAsFloatRequired("TRAILING_CALLBACK_PCT", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_CALLBACK_PCT: %v", err))
	} else if cfg.TrailingCallbackPct <= 0 || cfg.TrailingCallbackPct >= 1.0 {
		errs = append(errs, "TRAILING_CALLBACK_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.StartingCapital, err = getEnvAsFloatRequired("STARTING_CAPITAL", 1000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_CAPITAL: %v", err))
	} else if cfg.StartingCapital <= 0 {
		errs = append(errs, "STARTING_CAPITAL must be positive")
	}

	cfg.MaxDrawdownPct, err = getEnvAsFloatRequired("MAX_DRAWDOWN_PCT", 0.20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRAWDOWN_PCT: %v", err))
	} else if cfg.MaxDrawdownPct <= 0 || cfg.MaxDrawdownPct >= 1.0 {
		errs = append(errs, "MAX_DRAWDOWN_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.MemoryWarnMB = uint64(getEnvAsInt("MEMORY_WARN_MB", 512))

	cfg.PollInterval = getEnvAsDuration("POLL_INTERVAL_SECONDS", 15)
	cfg.StateSaveInterval = getEnvAsDuration("STATE_SAVE_INTERVAL_SECONDS", 300)
	cfg.PositionCooldown = getEnvAsDuration("POSITION_COOLDOWN_SECONDS", 300)
	cfg.PostEntryPause = getEnvAsDuration("POST_ENTRY_PAUSE_SECONDS", 5)
	cfg.CrashCooldown = getEnvAsDuration("CRASH_COOLDOWN_SECONDS", 60)
	cfg.HeartbeatInterval = getEnvAsDuration("HEARTBEAT_INTERVAL_SECONDS", 3600)
	cfg.FillPollInterval = getEnvAsDuration("FILL_POLL_INTERVAL_SECONDS", 1)
	cfg.FillPollTimeout = getEnvAsDuration("FILL_POLL_TIMEOUT_SECONDS", 10)

	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "1m")
	cfg.KlineLimit = getEnvAsInt("KLINE_LIMIT", 50)
	if cfg.KlineLimit <= 0 {
		errs = append(errs, "KLINE_LIMIT must be positive")
	}

	cfg.StrategySMAPeriod = getEnvAsInt("STRATEGY_SMA_PERIOD", 20)
	cfg.StrategyRSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 14)
	cfg.StrategyRSIOverbought = getEnvAsFloat("STRATEGY_RSI_OVERBOUGHT", 70.0)
	cfg.StrategyRSIOversold = getEnvAsFloat("STRATEGY_RSI_OVERSOLD", 40.0)
	if cfg.StrategySMAPeriod <= 0 || cfg.StrategyRSIPeriod <= 0 {
		errs = append(errs, "strategy periods (SMA, RSI) must be positive")
	}
	if cfg.StrategyRSIOverbought <= cfg.StrategyRSIOversold || cfg.StrategyRSIOverbought > 100 || cfg.StrategyRSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.StateDir = getEnv("STATE_DIR", "./data")
	if cfg.StateDir == "" {
		errs = append(errs, "STATE_DIR must be set")
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 50)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 5)
	cfg.LogMaxAgeDays = getEnvAsInt("LOG_MAX_AGE_DAYS", 30)

	cfg.MetricsAddr = getEnv("METRICS_ADDR", ":9090")

	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	cfg.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", "")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.ToUpper(strings.TrimSpace(p))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultSeconds int) time.Duration {
	seconds := getEnvAsInt(key, defaultSeconds)
	if seconds <= 0 {
		seconds = defaultSeconds
	}
	return time.Duration(seconds) * time.Second
}
