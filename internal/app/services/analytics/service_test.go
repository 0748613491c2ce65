package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
)

func TestMarketplaceStats(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, 0, nil)
	ctx := context.Background()

	owner, err := store.CreateUser(ctx, user.User{
		Username:      "owner",
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}

	for _, c := range []credit.Credit{
		{ProjectName: "Solar A", QuantityKg: 100, Price: 4, ForSale: true, OwnerID: owner.ID},
		{ProjectName: "Solar B", QuantityKg: 200, Price: 6, ForSale: true, OwnerID: owner.ID},
		{ProjectName: "Wind C", QuantityKg: 300, Price: 9, Retired: true, OwnerID: owner.ID},
	} {
		if _, err := store.CreateCredit(ctx, c); err != nil {
			t.Fatalf("create credit: %v", err)
		}
	}

	stats, err := svc.MarketplaceStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CreditsForSale != 2 {
		t.Fatalf("for sale = %d, want 2", stats.CreditsForSale)
	}
	if stats.CreditsRetired != 1 {
		t.Fatalf("retired = %d, want 1", stats.CreditsRetired)
	}
	if stats.ProjectCount != 3 {
		t.Fatalf("projects = %d, want 3", stats.ProjectCount)
	}
	if stats.AveragePrice != 5 {
		t.Fatalf("average price = %f, want 5", stats.AveragePrice)
	}
	if stats.TotalQuantityKg != 300 {
		t.Fatalf("total quantity = %f, want 300", stats.TotalQuantityKg)
	}
}

func TestRollUpDay(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, 0, nil)
	ctx := context.Background()

	alice, err := store.CreateUser(ctx, user.User{
		Username:      "alice",
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.CreateUser(ctx, user.User{
		Username:      "bob",
		WalletAddress: "0x0000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	c, err := store.CreateCredit(ctx, credit.Credit{
		ProjectName: "Solar A",
		QuantityKg:  100,
		Price:       4,
		OwnerID:     alice.ID,
	})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}

	for _, tx := range []trade.Transaction{
		{CreditID: c.ID, BuyerID: bob.ID, SellerID: alice.ID, Price: 400, QuantityKg: 100, Type: trade.TypePurchase, Status: trade.StatusCompleted},
		{CreditID: c.ID, BuyerID: alice.ID, SellerID: bob.ID, Price: 440, QuantityKg: 100, Type: trade.TypeBid, Status: trade.StatusCompleted},
		{CreditID: c.ID, BuyerID: bob.ID, SellerID: alice.ID, Price: 999, QuantityKg: 100, Type: trade.TypePurchase, Status: trade.StatusFailed},
	} {
		if _, err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("create transaction: %v", err)
		}
	}

	snap, err := svc.RollUpDay(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if snap.CreditsTraded != 2 {
		t.Fatalf("credits traded = %d, want 2", snap.CreditsTraded)
	}
	if snap.VolumeKg != 200 {
		t.Fatalf("volume = %f, want 200", snap.VolumeKg)
	}
	if snap.ValueUSD != 840 {
		t.Fatalf("value = %f, want 840", snap.ValueUSD)
	}
	if snap.AvgPricePerKg != 4.2 {
		t.Fatalf("avg price per kg = %f, want 4.2", snap.AvgPricePerKg)
	}
	if snap.ActiveUsers != 2 {
		t.Fatalf("active users = %d, want 2", snap.ActiveUsers)
	}

	history, err := svc.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history = %d snapshots, want 1", len(history))
	}

	// Re-running the same day upserts rather than duplicating.
	if _, err := svc.RollUpDay(ctx, time.Now().UTC()); err != nil {
		t.Fatalf("rollup again: %v", err)
	}
	history, err = svc.History(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history after upsert = %d snapshots, want 1", len(history))
	}
}
