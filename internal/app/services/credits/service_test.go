package credits

import (
	"context"
	"testing"

	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store, user.User) {
	t.Helper()
	store := memory.New()
	owner, err := store.CreateUser(context.Background(), user.User{
		Username:      "producer",
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	return New(store, store, nil), store, owner
}

func TestIssue(t *testing.T) {
	svc, _, owner := newTestService(t)

	c, err := svc.Issue(context.Background(), owner.ID, IssueParams{
		TokenID:     1001,
		ProjectName: "Solar Electrolysis One",
		QuantityKg:  500,
		Price:       4.25,
		VintageYear: 2025,
		ProjectType: "solar",
		ForSale:     true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if c.ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if c.MinBidPrice != 4.25*0.9 {
		t.Fatalf("min bid price = %f, want %f", c.MinBidPrice, 4.25*0.9)
	}
	if c.CertificationLevel != "standard" {
		t.Fatalf("expected default certification level, got %s", c.CertificationLevel)
	}

	if _, err := svc.Issue(context.Background(), owner.ID, IssueParams{ProjectName: "X", QuantityKg: 0}); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if _, err := svc.Issue(context.Background(), "missing-user", IssueParams{ProjectName: "X", QuantityKg: 1}); err == nil {
		t.Fatalf("expected error for unknown owner")
	}
}

func TestRetire(t *testing.T) {
	svc, store, owner := newTestService(t)

	other, err := store.CreateUser(context.Background(), user.User{
		Username:      "other",
		WalletAddress: "0x0000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	c, err := svc.Issue(context.Background(), owner.ID, IssueParams{
		ProjectName: "Wind Farm",
		QuantityKg:  100,
		Price:       3,
		ForSale:     true,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.Retire(context.Background(), other.ID, c.ID); err == nil {
		t.Fatalf("expected error when non-owner retires")
	}

	retired, err := svc.Retire(context.Background(), owner.ID, c.ID)
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if !retired.Retired || retired.ForSale {
		t.Fatalf("retire flags wrong: %+v", retired)
	}
	if retired.RetiredAt.IsZero() {
		t.Fatalf("expected retirement timestamp")
	}

	// Retirement is permanent.
	if _, err := svc.Retire(context.Background(), owner.ID, c.ID); err == nil {
		t.Fatalf("expected error on double retire")
	}

	forSale, err := svc.ListForSale(context.Background())
	if err != nil {
		t.Fatalf("list for sale: %v", err)
	}
	if len(forSale) != 0 {
		t.Fatalf("retired credit still listed: %v", forSale)
	}
}
