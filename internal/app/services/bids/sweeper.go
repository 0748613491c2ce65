package bids

import (
	"context"
	"sync"
	"time"

	"github.com/hydrochain/marketplace/internal/app/metrics"
	"github.com/hydrochain/marketplace/internal/app/system"
	"github.com/hydrochain/marketplace/pkg/logger"
)

var _ system.Service = (*Sweeper)(nil)

// AllocationExpirer lets the sweeper piggyback partnership expiry on the same
// interval.
type AllocationExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically transitions overdue active bids to expired.
type Sweeper struct {
	service     *Service
	allocations AllocationExpirer
	log         *logger.Logger
	interval    time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSweeper creates a lifecycle-managed bid expiry sweeper.
func NewSweeper(service *Service, allocations AllocationExpirer, interval time.Duration, log *logger.Logger) *Sweeper {
	if log == nil {
		log = logger.NewDefault("bid-sweeper")
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		service:     service,
		allocations: allocations,
		log:         log,
		interval:    interval,
	}
}

func (s *Sweeper) Name() string { return "bid-sweeper" }

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.tick(runCtx)
			}
		}
	}()

	s.log.Info("bid sweeper started")
	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("bid sweeper stopped")
	return nil
}

func (s *Sweeper) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	expired, err := s.service.ExpireOverdue(ctx, now)
	if err != nil {
		s.log.WithError(err).Warn("bid expiry sweep failed")
	} else if expired > 0 {
		metrics.RecordExpiredBids(expired)
		s.log.WithField("count", expired).Info("expired overdue bids")
	}

	if s.allocations == nil {
		return
	}
	lapsed, err := s.allocations.ExpireOverdue(ctx, now)
	if err != nil {
		s.log.WithError(err).Warn("allocation expiry sweep failed")
	} else if lapsed > 0 {
		s.log.WithField("count", lapsed).Info("expired overdue allocations")
	}
}
