package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	ChainRPCURL     string
	ChainID         int64
	PrivateKey      string
	SafeAddress     string
	CollateralToken string

	// Predict venue
	PredictBaseURL    string
	PredictAPIKey     string
	PredictSecret     string
	PredictPassphrase string
	PredictCTFAddress string
	PredictRPS        float64

	// Opinion venue
	OpinionBaseURL    string
	OpinionAPIKey     string
	OpinionCTFAddress string
	OpinionRPS        float64

	// Quote feed
	QuotesWSURL            string
	QuotesSnapshotURL      string
	QuotesReconnectInitial time.Duration
	QuotesReconnectMax     time.Duration
	QuotesReconnectBackoff float64
	QuotesBufferSize       int
	QuotesPongTimeout      time.Duration
	QuotesPingInterval     time.Duration

	// Execution
	ExecutionMode      string // "dry-run" or "live"
	MaxPositionSize    float64
	MinTradeSize       float64
	FeeBuffer          float64
	MaxQuoteAge        time.Duration
	MarketCooldown     time.Duration
	ShortCooldown      time.Duration
	SettleWait         time.Duration
	FillPollInterval   time.Duration
	FillPollTimeout    time.Duration
	UnwindPollInterval time.Duration
	UnwindPollTimeout  time.Duration
	DiscountLadder     []float64

	// Balance guard
	GuardMinBalance      float64
	GuardResumeThreshold float64
	GuardCheckInterval   time.Duration

	// Redemption sweep
	RedeemInterval time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Chain defaults
		ChainRPCURL:     getEnvOrDefault("CHAIN_RPC_URL", "https://polygon-rpc.com"),
		ChainID:         int64(getIntOrDefault("CHAIN_ID", 137)),
		PrivateKey:      os.Getenv("PRIVATE_KEY"),
		SafeAddress:     os.Getenv("SAFE_ADDRESS"),
		CollateralToken: getEnvOrDefault("COLLATERAL_TOKEN", "0xc2132D05D31c914a87C6611C10748AEb04B58e8F"),

		// Predict venue defaults
		PredictBaseURL:    getEnvOrDefault("PREDICT_BASE_URL", "https://clob.predict.example.com"),
		PredictAPIKey:     os.Getenv("PREDICT_API_KEY"),
		PredictSecret:     os.Getenv("PREDICT_SECRET"),
		PredictPassphrase: os.Getenv("PREDICT_PASSPHRASE"),
		PredictCTFAddress: os.Getenv("PREDICT_CTF_ADDRESS"),
		PredictRPS:        getFloat64OrDefault("PREDICT_RPS", 5.0),

		// Opinion venue defaults
		OpinionBaseURL:    getEnvOrDefault("OPINION_BASE_URL", "https://api.opinion.example.com"),
		OpinionAPIKey:     os.Getenv("OPINION_API_KEY"),
		OpinionCTFAddress: os.Getenv("OPINION_CTF_ADDRESS"),
		OpinionRPS:        getFloat64OrDefault("OPINION_RPS", 3.0),

		// Quote feed defaults
		QuotesWSURL:            os.Getenv("QUOTES_WS_URL"),
		QuotesSnapshotURL:      os.Getenv("QUOTES_SNAPSHOT_URL"),
		QuotesReconnectInitial: getDurationOrDefault("QUOTES_RECONNECT_INITIAL_DELAY", 1*time.Second),
		QuotesReconnectMax:     getDurationOrDefault("QUOTES_RECONNECT_MAX_DELAY", 30*time.Second),
		QuotesReconnectBackoff: getFloat64OrDefault("QUOTES_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		QuotesBufferSize:       getIntOrDefault("QUOTES_BUFFER_SIZE", 256),
		QuotesPongTimeout:      getDurationOrDefault("QUOTES_PONG_TIMEOUT", 15*time.Second),
		QuotesPingInterval:     getDurationOrDefault("QUOTES_PING_INTERVAL", 10*time.Second),

		// Execution defaults
		ExecutionMode:      getEnvOrDefault("EXECUTION_MODE", "dry-run"),
		MaxPositionSize:    getFloat64OrDefault("EXECUTION_MAX_POSITION_SIZE", 100.0),
		MinTradeSize:       getFloat64OrDefault("EXECUTION_MIN_TRADE_SIZE", 2.0),
		FeeBuffer:          getFloat64OrDefault("EXECUTION_FEE_BUFFER", 1.02),
		MaxQuoteAge:        getDurationOrDefault("EXECUTION_MAX_QUOTE_AGE", 15*time.Second),
		MarketCooldown:     getDurationOrDefault("EXECUTION_MARKET_COOLDOWN", 30*time.Minute),
		ShortCooldown:      getDurationOrDefault("EXECUTION_SHORT_COOLDOWN", 5*time.Minute),
		SettleWait:         getDurationOrDefault("EXECUTION_SETTLE_WAIT", 3*time.Second),
		FillPollInterval:   getDurationOrDefault("EXECUTION_FILL_POLL_INTERVAL", 2*time.Second),
		FillPollTimeout:    getDurationOrDefault("EXECUTION_FILL_POLL_TIMEOUT", 1*time.Minute),
		UnwindPollInterval: getDurationOrDefault("EXECUTION_UNWIND_POLL_INTERVAL", 10*time.Second),
		UnwindPollTimeout:  getDurationOrDefault("EXECUTION_UNWIND_POLL_TIMEOUT", 5*time.Minute),
		DiscountLadder:     getFloatSliceOrDefault("EXECUTION_DISCOUNT_LADDER", []float64{0.05, 0.10, 0.20}),

		// Balance guard defaults
		GuardMinBalance:      getFloat64OrDefault("GUARD_MIN_BALANCE", 10.0),
		GuardResumeThreshold: getFloat64OrDefault("GUARD_RESUME_THRESHOLD", 20.0),
		GuardCheckInterval:   getDurationOrDefault("GUARD_CHECK_INTERVAL", 30*time.Second),

		// Redemption defaults
		RedeemInterval: getDurationOrDefault("REDEEM_INTERVAL", 10*time.Minute),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "crossmarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "crossmarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "crossmarket_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.ChainRPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL cannot be empty")
	}

	if c.ExecutionMode != "dry-run" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'dry-run' or 'live', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" && c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required in live mode")
	}

	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("EXECUTION_MAX_POSITION_SIZE must be positive, got %f", c.MaxPositionSize)
	}

	if c.MinTradeSize <= 0 {
		return fmt.Errorf("EXECUTION_MIN_TRADE_SIZE must be positive, got %f", c.MinTradeSize)
	}

	if c.FeeBuffer < 1.0 {
		return fmt.Errorf("EXECUTION_FEE_BUFFER must be >= 1.0, got %f", c.FeeBuffer)
	}

	for _, discount := range c.DiscountLadder {
		if discount <= 0 || discount >= 1 {
			return fmt.Errorf("EXECUTION_DISCOUNT_LADDER rungs must be between 0 and 1, got %f", discount)
		}
	}

	if c.GuardResumeThreshold < c.GuardMinBalance {
		return fmt.Errorf("GUARD_RESUME_THRESHOLD must be >= GUARD_MIN_BALANCE")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

// getFloatSliceOrDefault parses a comma-separated float list. Any
// unparseable element falls back to the default as a whole.
func getFloatSliceOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		floatVal, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, floatVal)
	}

	return out
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
