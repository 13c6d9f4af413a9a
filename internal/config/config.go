// Package config loads the engine, risk, and outer-surface options
// from the environment, following a getEnv*-helper shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"precedence/internal/engine"
)

// Config holds every tunable option, grouped by the component that
// consumes it.
type Config struct {
	Engine EngineConfig
	Risk   RiskConfig
	API    APIConfig
	Outbox OutboxConfig
}

// EngineConfig maps 1:1 onto engine.Config plus the cleanup knob the
// engine's periodic timeout sweep uses.
type EngineConfig struct {
	MaxWorkerThreads          int
	MaxQueueSize              int
	EnableRiskManagement      bool
	EnableMarketDataBroadcast bool
	EnableStopLossOrders      bool
	EnableMultiThreading      bool
	OrderTimeoutSeconds       int64
}

// AsEngineConfig projects the fields engine.Config actually needs.
func (c EngineConfig) AsEngineConfig() engine.Config {
	return engine.Config{
		MaxWorkerThreads:          c.MaxWorkerThreads,
		MaxQueueSize:              c.MaxQueueSize,
		EnableRiskManagement:      c.EnableRiskManagement,
		EnableMarketDataBroadcast: c.EnableMarketDataBroadcast,
		EnableStopLossOrders:      c.EnableStopLossOrders,
		EnableMultiThreading:      c.EnableMultiThreading,
	}
}

// RiskConfig configures the default risk pre-check (internal/risk).
type RiskConfig struct {
	MaxOrderSize    int64
	MaxPositionSize int64
}

// APIConfig configures the optional HTTP/WebSocket gateway
// (internal/api), not part of the core but still a real surface this
// repo wires up.
type APIConfig struct {
	ListenAddr string
}

// OutboxConfig configures the Kafka trade/market-data outbox
// (internal/outbox).
type OutboxConfig struct {
	Enabled     bool
	Brokers     []string
	TradeTopic  string
	MarketTopic string
	LedgerDir   string
}

// Load reads a .env file if present (ignored if missing) and then
// layers environment variables over the documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Engine: loadEngineConfig(),
		Risk:   loadRiskConfig(),
		API:    loadAPIConfig(),
		Outbox: loadOutboxConfig(),
	}, nil
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		MaxWorkerThreads:          getEnvInt("PRECEDENCE_MAX_WORKER_THREADS", 4),
		MaxQueueSize:              getEnvInt("PRECEDENCE_MAX_QUEUE_SIZE", 10000),
		EnableRiskManagement:      getEnvBool("PRECEDENCE_ENABLE_RISK_MANAGEMENT", true),
		EnableMarketDataBroadcast: getEnvBool("PRECEDENCE_ENABLE_MARKET_DATA_BROADCAST", true),
		EnableStopLossOrders:      getEnvBool("PRECEDENCE_ENABLE_STOP_LOSS_ORDERS", true),
		EnableMultiThreading:      getEnvBool("PRECEDENCE_ENABLE_MULTI_THREADING", true),
		OrderTimeoutSeconds:       getEnvInt64("PRECEDENCE_ORDER_TIMEOUT_SECONDS", 86400),
	}
}

func loadRiskConfig() RiskConfig {
	return RiskConfig{
		MaxOrderSize:    getEnvInt64("PRECEDENCE_MAX_ORDER_SIZE", 1_000_000),
		MaxPositionSize: getEnvInt64("PRECEDENCE_MAX_POSITION_SIZE", 10_000_000),
	}
}

func loadAPIConfig() APIConfig {
	return APIConfig{
		ListenAddr: getEnvString("PRECEDENCE_API_ADDR", ":8080"),
	}
}

func loadOutboxConfig() OutboxConfig {
	return OutboxConfig{
		Enabled:     getEnvBool("PRECEDENCE_OUTBOX_ENABLED", false),
		Brokers:     splitCSV(getEnvString("PRECEDENCE_KAFKA_BROKERS", "localhost:9092")),
		TradeTopic:  getEnvString("PRECEDENCE_KAFKA_TRADE_TOPIC", "precedence.trades"),
		MarketTopic: getEnvString("PRECEDENCE_KAFKA_MARKET_TOPIC", "precedence.market-data"),
		LedgerDir:   getEnvString("PRECEDENCE_OUTBOX_LEDGER_DIR", "./data/outbox"),
	}
}

// Validate rejects out-of-range values before the engine starts.
func (c *Config) Validate() error {
	if c.Engine.MaxWorkerThreads <= 0 {
		return fmt.Errorf("max worker threads must be positive, got %d", c.Engine.MaxWorkerThreads)
	}
	if c.Engine.MaxQueueSize <= 0 {
		return fmt.Errorf("max queue size must be positive, got %d", c.Engine.MaxQueueSize)
	}
	if c.Engine.OrderTimeoutSeconds <= 0 {
		return fmt.Errorf("order timeout seconds must be positive, got %d", c.Engine.OrderTimeoutSeconds)
	}
	if c.Risk.MaxOrderSize <= 0 || c.Risk.MaxPositionSize <= 0 {
		return fmt.Errorf("risk ceilings must be positive")
	}
	if c.Outbox.Enabled && len(c.Outbox.Brokers) == 0 {
		return fmt.Errorf("outbox enabled but no brokers configured")
	}
	return nil
}

// OrderTimeout returns EngineConfig.OrderTimeoutSeconds as a
// time.Duration for the periodic cleanup sweep.
func (c EngineConfig) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutSeconds) * time.Second
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}
