// Package app wires the marketplace services together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	analyticssvc "github.com/hydrochain/marketplace/internal/app/services/analytics"
	bidssvc "github.com/hydrochain/marketplace/internal/app/services/bids"
	creditssvc "github.com/hydrochain/marketplace/internal/app/services/credits"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	partnershipssvc "github.com/hydrochain/marketplace/internal/app/services/partnerships"
	tradingsvc "github.com/hydrochain/marketplace/internal/app/services/trading"
	userssvc "github.com/hydrochain/marketplace/internal/app/services/users"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
	"github.com/hydrochain/marketplace/internal/app/system"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users         storage.UserStore
	Credits       storage.CreditStore
	Transactions  storage.TransactionStore
	Bids          storage.BidStore
	Notifications storage.NotificationStore
	Partnerships  storage.PartnershipStore
	Analytics     storage.AnalyticsStore
}

// Options tune service behaviour. Zero values fall back to sensible defaults.
type Options struct {
	SessionSecret  []byte
	TokenTTL       time.Duration
	TradingWorkers int
	TradingQueue   int
	SubmitTimeout  time.Duration
	FeePercent     float64
	BidExpiry      time.Duration
	SweepInterval  time.Duration
	RollupSchedule string
	StatsCache     *redis.Client
	StatsCacheTTL  time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users         *userssvc.Service
	Credits       *creditssvc.Service
	Trading       *tradingsvc.Service
	Bids          *bidssvc.Service
	Notifications *notifications.Service
	Partnerships  *partnershipssvc.Service
	Analytics     *analyticssvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if len(opts.SessionSecret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Credits == nil {
		stores.Credits = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Bids == nil {
		stores.Bids = mem
	}
	if stores.Notifications == nil {
		stores.Notifications = mem
	}
	if stores.Partnerships == nil {
		stores.Partnerships = mem
	}
	if stores.Analytics == nil {
		stores.Analytics = mem
	}

	manager := system.NewManager()

	notifier := notifications.New(stores.Notifications, log)
	userService := userssvc.New(stores.Users, opts.SessionSecret, opts.TokenTTL, log)
	creditService := creditssvc.New(stores.Users, stores.Credits, log)

	executor := tradingsvc.NewExecutor(opts.TradingWorkers, opts.TradingQueue, log)
	tradingService := tradingsvc.New(stores.Users, stores.Credits, stores.Transactions, notifier, executor, opts.SubmitTimeout, opts.FeePercent, log)

	bidService := bidssvc.New(stores.Users, stores.Credits, stores.Bids, stores.Transactions, notifier, opts.BidExpiry, log)
	partnershipService := partnershipssvc.New(stores.Users, stores.Credits, stores.Partnerships, notifier, log)
	analyticsService := analyticssvc.New(stores.Credits, stores.Transactions, stores.Analytics, opts.StatsCache, opts.StatsCacheTTL, log)

	sweeper := bidssvc.NewSweeper(bidService, partnershipService, opts.SweepInterval, log)
	rollup := analyticssvc.NewRollup(analyticsService, opts.RollupSchedule, log)

	for _, svc := range []system.Service{executor, sweeper, rollup} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:       manager,
		log:           log,
		Users:         userService,
		Credits:       creditService,
		Trading:       tradingService,
		Bids:          bidService,
		Notifications: notifier,
		Partnerships:  partnershipService,
		Analytics:     analyticsService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
