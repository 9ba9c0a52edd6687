// Package config loads the order adapter's configuration from the
// environment (optionally via a .env file), grounded on the teacher's
// backend/config/config.go getEnv*/Load/Validate shape, narrowed from a
// multi-tenant broker config to this adapter's five sub-configs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Environment string

	Risk    RiskConfig
	Session SessionConfig
	Ingress IngressConfig
	Store   StoreConfig
	Metrics MetricsConfig
}

// RiskConfig configures the pre-trade risk engine's limits (§4.4).
type RiskConfig struct {
	Enabled            bool
	MaxOrderSize       int
	MaxDailyVolume     int
	MaxPositionSize    int
	MaxOrdersPerSecond int
	RateWindow         time.Duration
	MinOptionPrice     string // parsed to decimal by the caller

	RedisAddress      string
	RedisPassword     string
	RedisDB           int
	RedisKeyPrefix    string
}

// SessionConfig configures the FIX session identity and timing (§4.6).
type SessionConfig struct {
	SessionID         string
	BeginString       string
	SenderCompID      string
	TargetCompID      string
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	LogonTimeout      time.Duration
	CounterpartyAddr  string // dial target for the session's transport
}

// IngressConfig configures the order-entry listener (§4.7).
type IngressConfig struct {
	Address       string
	HighWaterMark int
}

// StoreConfig selects and configures the sequence/message-store backend
// (§4.6 persistence contract): "file" or "postgres".
type StoreConfig struct {
	Backend string
	FileDir string

	PostgresDSN string
}

// MetricsConfig configures the Prometheus exporter endpoint (§2.2).
type MetricsConfig struct {
	Address string
}

// Load reads configuration from the environment, trying a .env file first
// (ignoring its absence), and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),

		Risk: RiskConfig{
			Enabled:            getEnvAsBool("RISK_ENABLED", true),
			MaxOrderSize:       getEnvAsInt("RISK_MAX_ORDER_SIZE", 10000),
			MaxDailyVolume:     getEnvAsInt("RISK_MAX_DAILY_VOLUME", 100000),
			MaxPositionSize:    getEnvAsInt("RISK_MAX_POSITION_SIZE", 50000),
			MaxOrdersPerSecond: getEnvAsInt("RISK_MAX_ORDERS_PER_SECOND", 20),
			RateWindow:         getEnvAsDuration("RISK_RATE_WINDOW", 5*time.Minute),
			MinOptionPrice:     getEnv("RISK_MIN_OPTION_PRICE", "0.05"),

			RedisAddress:   getEnv("REDIS_ADDRESS", "localhost:6379"),
			RedisPassword:  getEnv("REDIS_PASSWORD", ""),
			RedisDB:        getEnvAsInt("REDIS_DB", 0),
			RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "orderadapter:risk"),
		},

		Session: SessionConfig{
			SessionID:         getEnv("FIX_SESSION_ID", "ADAPTER-BROKER"),
			BeginString:       getEnv("FIX_BEGIN_STRING", "FIX.4.4"),
			SenderCompID:      getEnv("FIX_SENDER_COMP_ID", "ADAPTER"),
			TargetCompID:      getEnv("FIX_TARGET_COMP_ID", "BROKER"),
			HeartbeatInterval: getEnvAsDuration("FIX_HEARTBEAT_INTERVAL", 30*time.Second),
			ReconnectInterval: getEnvAsDuration("FIX_RECONNECT_INTERVAL", 10*time.Second),
			LogonTimeout:      getEnvAsDuration("FIX_LOGON_TIMEOUT", 30*time.Second),
			CounterpartyAddr:  getEnv("FIX_COUNTERPARTY_ADDR", "localhost:9878"),
		},

		Ingress: IngressConfig{
			Address:       getEnv("INGRESS_ADDRESS", ":9000"),
			HighWaterMark: getEnvAsInt("INGRESS_HIGH_WATER_MARK", 1000),
		},

		Store: StoreConfig{
			Backend:     getEnv("STORE_BACKEND", "file"),
			FileDir:     getEnv("STORE_FILE_DIR", "./data/fix_sessions"),
			PostgresDSN: getEnv("STORE_POSTGRES_DSN", ""),
		},

		Metrics: MetricsConfig{
			Address: getEnv("METRICS_ADDRESS", ":9100"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that getEnv defaults can't enforce.
func (c *Config) Validate() error {
	if c.Store.Backend != "file" && c.Store.Backend != "postgres" {
		return fmt.Errorf("STORE_BACKEND must be \"file\" or \"postgres\", got %q", c.Store.Backend)
	}
	if c.Store.Backend == "postgres" && c.Store.PostgresDSN == "" {
		return fmt.Errorf("STORE_POSTGRES_DSN is required when STORE_BACKEND=postgres")
	}
	if c.Session.HeartbeatInterval <= 0 {
		return fmt.Errorf("FIX_HEARTBEAT_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultVal
	}
	return value
}
