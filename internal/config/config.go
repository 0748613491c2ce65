// Package config loads marketplace configuration from the environment, with an
// optional YAML overlay file for deployments that prefer config files.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the marketplace server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Trading   TradingConfig   `yaml:"trading"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST,default=0.0.0.0"`
	Port            int           `yaml:"port" env:"SERVER_PORT,default=8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT,default=30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT,default=120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS,default=*"`
	RateLimitPerSec int           `yaml:"rate_limit_per_sec" env:"SERVER_RATE_LIMIT,default=25"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"SERVER_RATE_LIMIT_BURST,default=50"`
}

// DatabaseConfig controls the relational store. When DSN is empty the server
// falls back to the in-memory store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS,default=20"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME,default=300s"`
	Migrate         bool          `yaml:"migrate" env:"DATABASE_MIGRATE,default=true"`
}

// RedisConfig controls the optional stats cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB,default=0"`
	StatsTTL time.Duration `yaml:"stats_ttl" env:"REDIS_STATS_TTL,default=30s"`
}

// AuthConfig controls session token issuance and validation.
type AuthConfig struct {
	Secret   string        `yaml:"secret" env:"SESSION_SECRET,default=hydrogen_credits_dev_key"`
	TokenTTL time.Duration `yaml:"token_ttl" env:"SESSION_TOKEN_TTL,default=24h"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL,default=info"`
	Format string `yaml:"format" env:"LOG_FORMAT,default=text"`
	Output string `yaml:"output" env:"LOG_OUTPUT,default=stdout"`
}

// TradingConfig controls the purchase worker pool and platform fees.
type TradingConfig struct {
	Workers       int           `yaml:"workers" env:"TRADING_WORKERS,default=4"`
	QueueDepth    int           `yaml:"queue_depth" env:"TRADING_QUEUE_DEPTH,default=64"`
	SubmitTimeout time.Duration `yaml:"submit_timeout" env:"TRADING_SUBMIT_TIMEOUT,default=30s"`
	FeePercent    float64       `yaml:"fee_percent" env:"TRADING_FEE_PERCENT,default=1.5"`
	BidExpiry     time.Duration `yaml:"bid_expiry" env:"TRADING_BID_EXPIRY,default=168h"`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"TRADING_SWEEP_INTERVAL,default=60s"`
}

// AnalyticsConfig controls the daily snapshot rollup.
type AnalyticsConfig struct {
	RollupSchedule string `yaml:"rollup_schedule" env:"ANALYTICS_ROLLUP_SCHEDULE,default=5 0 * * *"`
}

// Load reads .env (best effort) and the environment, then applies an optional
// YAML overlay named by CONFIG_PATH. Keys present in the overlay win over
// environment values and defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	if c.Trading.Workers <= 0 {
		return fmt.Errorf("trading workers must be positive")
	}
	if c.Trading.QueueDepth <= 0 {
		return fmt.Errorf("trading queue depth must be positive")
	}
	if c.Trading.FeePercent < 0 || c.Trading.FeePercent >= 100 {
		return fmt.Errorf("trading fee percent %v out of range", c.Trading.FeePercent)
	}
	return nil
}
