// Package partnerships manages reserved credit allocations for partner
// organizations.
package partnerships

import (
	"context"
	"fmt"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service manages partnership allocations.
type Service struct {
	users    storage.UserStore
	credits  storage.CreditStore
	store    storage.PartnershipStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New constructs a partnership service.
func New(
	users storage.UserStore,
	credits storage.CreditStore,
	store storage.PartnershipStore,
	notifier *notifications.Service,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("partnerships")
	}
	return &Service{
		users:    users,
		credits:  credits,
		store:    store,
		notifier: notifier,
		log:      log,
	}
}

// AllocateParams describe a new allocation.
type AllocateParams struct {
	CreditID      string
	PartnerID     string
	Type          string
	QuantityKg    float64
	ReservedPrice float64
	StartsAt      time.Time
	EndsAt        time.Time
	AutoRenew     bool
	Terms         string
}

// Allocate reserves part of a partnership credit for a partner over a time
// window at a fixed price.
func (s *Service) Allocate(ctx context.Context, p AllocateParams) (partnership.Allocation, error) {
	if p.CreditID == "" || p.PartnerID == "" {
		return partnership.Allocation{}, fmt.Errorf("credit_id and partner_id are required")
	}
	if p.QuantityKg <= 0 {
		return partnership.Allocation{}, fmt.Errorf("quantity_kg must be positive")
	}
	if p.ReservedPrice <= 0 {
		return partnership.Allocation{}, fmt.Errorf("reserved_price must be positive")
	}
	switch p.Type {
	case partnership.TypeCorporateBulk, partnership.TypeLongTerm,
		partnership.TypeExclusive, partnership.TypeRenewableOnly:
	default:
		return partnership.Allocation{}, fmt.Errorf("unknown partnership type %q", p.Type)
	}

	partner, err := s.users.GetUser(ctx, p.PartnerID)
	if err != nil {
		return partnership.Allocation{}, fmt.Errorf("partner lookup failed: %w", err)
	}
	if !partner.IsPartner {
		return partnership.Allocation{}, fmt.Errorf("user %s is not a partner", p.PartnerID)
	}

	c, err := s.credits.GetCredit(ctx, p.CreditID)
	if err != nil {
		return partnership.Allocation{}, err
	}
	if !c.Partnership {
		return partnership.Allocation{}, fmt.Errorf("credit %s is not a partnership credit", p.CreditID)
	}
	if c.Retired {
		return partnership.Allocation{}, fmt.Errorf("credit %s is retired", p.CreditID)
	}
	if p.QuantityKg > c.QuantityKg {
		return partnership.Allocation{}, fmt.Errorf("allocation exceeds credit quantity of %.0f kg", c.QuantityKg)
	}

	now := time.Now().UTC()
	if p.StartsAt.IsZero() {
		p.StartsAt = now
	}
	if p.EndsAt.IsZero() {
		p.EndsAt = p.StartsAt.AddDate(1, 0, 0)
	}
	if !p.EndsAt.After(p.StartsAt) {
		return partnership.Allocation{}, fmt.Errorf("ends_at must be after starts_at")
	}

	a, err := s.store.CreateAllocation(ctx, partnership.Allocation{
		CreditID:      p.CreditID,
		PartnerID:     p.PartnerID,
		Type:          p.Type,
		QuantityKg:    p.QuantityKg,
		ReservedPrice: p.ReservedPrice,
		StartsAt:      p.StartsAt,
		EndsAt:        p.EndsAt,
		AutoRenew:     p.AutoRenew,
		Status:        partnership.StatusActive,
		Terms:         p.Terms,
	})
	if err != nil {
		return partnership.Allocation{}, err
	}

	s.notify(ctx, notification.Notification{
		UserID:  p.PartnerID,
		Title:   "Partnership Allocation Created",
		Message: fmt.Sprintf("%.0f kg from %s reserved for you at $%.2f/kg", p.QuantityKg, c.ProjectName, p.ReservedPrice),
		Type:    notification.TypePartnership,
	})

	s.log.WithField("allocation_id", a.ID).
		WithField("partner_id", p.PartnerID).
		WithField("credit_id", p.CreditID).
		Info("partnership allocation created")
	return a, nil
}

// ListByPartner returns allocations for a partner, optionally filtered by
// status.
func (s *Service) ListByPartner(ctx context.Context, partnerID, status string) ([]partnership.Allocation, error) {
	return s.store.ListAllocationsByPartner(ctx, partnerID, status)
}

// ListAvailableCredits returns partnership credits open for allocation.
func (s *Service) ListAvailableCredits(ctx context.Context) ([]credit.Credit, error) {
	isPartnership := true
	retired := false
	return s.credits.ListCredits(ctx, storage.CreditFilter{Partnership: &isPartnership, Retired: &retired})
}

// Cancel ends an active allocation. Only the partner holding it may cancel.
func (s *Service) Cancel(ctx context.Context, partnerID, allocationID string) (partnership.Allocation, error) {
	a, err := s.store.GetAllocation(ctx, allocationID)
	if err != nil {
		return partnership.Allocation{}, err
	}
	if a.PartnerID != partnerID {
		return partnership.Allocation{}, fmt.Errorf("allocation %s does not belong to partner", allocationID)
	}
	if a.Status != partnership.StatusActive {
		return partnership.Allocation{}, fmt.Errorf("allocation %s is not active", allocationID)
	}

	a.Status = partnership.StatusCancelled
	a, err = s.store.UpdateAllocation(ctx, a)
	if err != nil {
		return partnership.Allocation{}, err
	}
	s.log.WithField("allocation_id", a.ID).Info("partnership allocation cancelled")
	return a, nil
}

// ExpireOverdue transitions lapsed active allocations to expired, renewing
// auto-renew allocations for another term instead. Returns how many lapsed.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.ListExpiredActiveAllocations(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range overdue {
		if a.AutoRenew {
			term := a.EndsAt.Sub(a.StartsAt)
			a.StartsAt = a.EndsAt
			a.EndsAt = a.EndsAt.Add(term)
			if _, err := s.store.UpdateAllocation(ctx, a); err != nil {
				return count, err
			}
			continue
		}
		a.Status = partnership.StatusExpired
		if _, err := s.store.UpdateAllocation(ctx, a); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithField("user_id", n.UserID).Warn("notification delivery failed")
	}
}
