package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hydrochain/marketplace/internal/app/system"
	"github.com/hydrochain/marketplace/pkg/logger"
)

var _ system.Service = (*Rollup)(nil)

// Rollup writes the previous day's trading snapshot on a cron schedule.
type Rollup struct {
	service  *Service
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRollup creates a lifecycle-managed daily rollup. schedule is a cron
// expression; empty means shortly after midnight UTC.
func NewRollup(service *Service, schedule string, log *logger.Logger) *Rollup {
	if log == nil {
		log = logger.NewDefault("analytics-rollup")
	}
	if schedule == "" {
		schedule = "5 0 * * *"
	}
	return &Rollup{
		service:  service,
		log:      log,
		schedule: schedule,
	}
}

func (r *Rollup) Name() string { return "analytics-rollup" }

func (r *Rollup) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(r.schedule, r.run); err != nil {
		return err
	}
	c.Start()

	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("analytics rollup started")
	return nil
}

func (r *Rollup) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.running = false
	r.cron = nil
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("analytics rollup stopped")
	return nil
}

func (r *Rollup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := r.service.RollUpDay(ctx, yesterday); err != nil {
		r.log.WithError(err).Warn("daily rollup failed")
	}
}
