package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown timeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Trading.Workers != 4 || cfg.Trading.QueueDepth != 64 {
		t.Fatalf("unexpected trading pool defaults: %+v", cfg.Trading)
	}
	if cfg.Trading.FeePercent != 1.5 {
		t.Fatalf("fee percent = %v, want 1.5", cfg.Trading.FeePercent)
	}
	if cfg.Trading.BidExpiry != 168*time.Hour {
		t.Fatalf("bid expiry = %v, want 168h", cfg.Trading.BidExpiry)
	}
	if cfg.Auth.Secret == "" {
		t.Fatalf("expected default auth secret")
	}
	if cfg.Analytics.RollupSchedule != "5 0 * * *" {
		t.Fatalf("rollup schedule = %q", cfg.Analytics.RollupSchedule)
	}
	if !cfg.Database.Migrate {
		t.Fatalf("expected migrations enabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TRADING_WORKERS", "8")
	t.Setenv("TRADING_FEE_PERCENT", "2.5")
	t.Setenv("SESSION_SECRET", "override-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/marketplace_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Trading.Workers != 8 {
		t.Fatalf("workers = %d, want 8", cfg.Trading.Workers)
	}
	if cfg.Trading.FeePercent != 2.5 {
		t.Fatalf("fee percent = %v, want 2.5", cfg.Trading.FeePercent)
	}
	if cfg.Auth.Secret != "override-secret" {
		t.Fatalf("secret = %q", cfg.Auth.Secret)
	}
	if cfg.Database.DSN != "postgres://localhost/marketplace_test" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: 9999\nlogging:\n  level: debug\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("port = %d, want 9999 from yaml", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}

	// Keys present in the overlay win over the environment.
	t.Setenv("SERVER_PORT", "7070")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Fatalf("port = %d, want overlay value 9999", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Fatalf("read timeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"port out of range":   func(c *Config) { c.Server.Port = 0 },
		"missing auth secret": func(c *Config) { c.Auth.Secret = "" },
		"zero workers":        func(c *Config) { c.Trading.Workers = 0 },
		"zero queue depth":    func(c *Config) { c.Trading.QueueDepth = 0 },
		"negative fee":        func(c *Config) { c.Trading.FeePercent = -1 },
		"fee over 100":        func(c *Config) { c.Trading.FeePercent = 100 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
