// Package main runs the hydrogen credit marketplace API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/hydrochain/marketplace/internal/app"
	"github.com/hydrochain/marketplace/internal/app/httpapi"
	"github.com/hydrochain/marketplace/internal/app/metrics"
	"github.com/hydrochain/marketplace/internal/app/storage/postgres"
	"github.com/hydrochain/marketplace/internal/config"
	"github.com/hydrochain/marketplace/internal/middleware"
	"github.com/hydrochain/marketplace/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).WithField("component", "server")

	stores, dbClose, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("storage initialisation failed")
		os.Exit(1)
	}
	if dbClose != nil {
		defer dbClose()
	}

	var statsCache *redis.Client
	if cfg.Redis.Addr != "" {
		statsCache = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer statsCache.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := statsCache.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; stats caching disabled")
			statsCache = nil
		}
		cancel()
	}

	application, err := app.New(stores, app.Options{
		SessionSecret:  []byte(cfg.Auth.Secret),
		TokenTTL:       cfg.Auth.TokenTTL,
		TradingWorkers: cfg.Trading.Workers,
		TradingQueue:   cfg.Trading.QueueDepth,
		SubmitTimeout:  cfg.Trading.SubmitTimeout,
		FeePercent:     cfg.Trading.FeePercent,
		BidExpiry:      cfg.Trading.BidExpiry,
		SweepInterval:  cfg.Trading.SweepInterval,
		RollupSchedule: cfg.Analytics.RollupSchedule,
		StatsCache:     statsCache,
		StatsCacheTTL:  cfg.Redis.StatsTTL,
	}, log)
	if err != nil {
		log.WithError(err).Error("application initialisation failed")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("application start failed")
		os.Exit(1)
	}

	auth := middleware.NewAuthMiddleware([]byte(cfg.Auth.Secret), log,
		[]string{"/health", "/metrics", "/api/connect-wallet", "/api/credits", "/api/marketplace"}, nil)
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", httpapi.NewHandler(application))

	var handler http.Handler = mux
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("marketplace API listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop error")
	}
	log.Info("marketplace server stopped")
}

// buildStores opens the configured database, falling back to the in-memory
// store when no DSN is set.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func() error, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return app.Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Database.Migrate {
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return app.Stores{}, nil, err
		}
	}

	store := postgres.New(db)
	return app.Stores{
		Users:         store,
		Credits:       store,
		Transactions:  store,
		Bids:          store,
		Notifications: store,
		Partnerships:  store,
		Analytics:     store,
	}, db.Close, nil
}
