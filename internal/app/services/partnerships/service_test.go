package partnerships

import (
	"context"
	"testing"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
)

type fixture struct {
	store   *memory.Store
	svc     *Service
	partner user.User
	regular user.User
	pool    credit.Credit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	partner, err := store.CreateUser(ctx, user.User{
		Username:      "partner",
		WalletAddress: "0x0000000000000000000000000000000000000001",
		IsPartner:     true,
	})
	if err != nil {
		t.Fatalf("create partner: %v", err)
	}
	regular, err := store.CreateUser(ctx, user.User{
		Username:      "regular",
		WalletAddress: "0x0000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("create regular: %v", err)
	}

	pool, err := store.CreateCredit(ctx, credit.Credit{
		ProjectName: "Bulk Wind",
		QuantityKg:  1000,
		Price:       4,
		Partnership: true,
		OwnerID:     partner.ID,
	})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}

	notifier := notifications.New(store, nil)
	return &fixture{
		store:   store,
		svc:     New(store, store, store, notifier, nil),
		partner: partner,
		regular: regular,
		pool:    pool,
	}
}

func TestAllocate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          partnership.TypeCorporateBulk,
		QuantityKg:    500,
		ReservedPrice: 3.5,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if a.Status != partnership.StatusActive {
		t.Fatalf("status = %s, want active", a.Status)
	}
	if a.EndsAt.Sub(a.StartsAt) < 360*24*time.Hour {
		t.Fatalf("default term too short: %v", a.EndsAt.Sub(a.StartsAt))
	}

	if _, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.regular.ID,
		Type:          partnership.TypeCorporateBulk,
		QuantityKg:    100,
		ReservedPrice: 3,
	}); err == nil {
		t.Fatalf("expected error for non-partner")
	}

	if _, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          "bespoke",
		QuantityKg:    100,
		ReservedPrice: 3,
	}); err == nil {
		t.Fatalf("expected error for unknown type")
	}

	if _, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          partnership.TypeLongTerm,
		QuantityKg:    5000,
		ReservedPrice: 3,
	}); err == nil {
		t.Fatalf("expected error when allocation exceeds credit quantity")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          partnership.TypeExclusive,
		QuantityKg:    200,
		ReservedPrice: 3,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, f.regular.ID, a.ID); err == nil {
		t.Fatalf("expected error cancelling someone else's allocation")
	}

	cancelled, err := f.svc.Cancel(ctx, f.partner.ID, a.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != partnership.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
}

func TestExpireOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	fixed, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          partnership.TypeLongTerm,
		QuantityKg:    100,
		ReservedPrice: 3,
		StartsAt:      now.Add(-48 * time.Hour),
		EndsAt:        now.Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("allocate fixed: %v", err)
	}
	renewing, err := f.svc.Allocate(ctx, AllocateParams{
		CreditID:      f.pool.ID,
		PartnerID:     f.partner.ID,
		Type:          partnership.TypeRenewableOnly,
		QuantityKg:    100,
		ReservedPrice: 3,
		StartsAt:      now.Add(-48 * time.Hour),
		EndsAt:        now.Add(-24 * time.Hour),
		AutoRenew:     true,
	})
	if err != nil {
		t.Fatalf("allocate renewing: %v", err)
	}

	count, err := f.svc.ExpireOverdue(ctx, now)
	if err != nil {
		t.Fatalf("expire overdue: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired %d allocations, want 1", count)
	}

	got, err := f.store.GetAllocation(ctx, fixed.ID)
	if err != nil {
		t.Fatalf("get fixed: %v", err)
	}
	if got.Status != partnership.StatusExpired {
		t.Fatalf("fixed status = %s, want expired", got.Status)
	}

	got, err = f.store.GetAllocation(ctx, renewing.ID)
	if err != nil {
		t.Fatalf("get renewing: %v", err)
	}
	if got.Status != partnership.StatusActive {
		t.Fatalf("renewing status = %s, want active", got.Status)
	}
	if !got.EndsAt.After(now) {
		t.Fatalf("renewing allocation not extended: %v", got.EndsAt)
	}
}
