package trading

import (
	"context"
	"testing"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
)

type fixture struct {
	store    *memory.Store
	svc      *Service
	executor *Executor
	seller   user.User
	buyer    user.User
	listing  credit.Credit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	seller, err := store.CreateUser(ctx, user.User{
		Username:      "seller",
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}
	buyer, err := store.CreateUser(ctx, user.User{
		Username:      "buyer",
		WalletAddress: "0x0000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}

	listing, err := store.CreateCredit(ctx, credit.Credit{
		ProjectName: "Tidal H2",
		QuantityKg:  250,
		Price:       5,
		ForSale:     true,
		OwnerID:     seller.ID,
	})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}

	executor := NewExecutor(2, 8, nil)
	if err := executor.Start(ctx); err != nil {
		t.Fatalf("start executor: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = executor.Stop(stopCtx)
	})

	notifier := notifications.New(store, nil)
	svc := New(store, store, store, notifier, executor, 5*time.Second, 2.0, nil)
	return &fixture{
		store:    store,
		svc:      svc,
		executor: executor,
		seller:   seller,
		buyer:    buyer,
		listing:  listing,
	}
}

func TestBuy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.Buy(ctx, f.buyer.ID, f.listing.ID)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if tx.Status != trade.StatusCompleted || tx.Type != trade.TypePurchase {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.Fees != f.listing.Price*0.02 {
		t.Fatalf("fees = %f, want %f", tx.Fees, f.listing.Price*0.02)
	}

	c, err := f.store.GetCredit(ctx, f.listing.ID)
	if err != nil {
		t.Fatalf("get credit: %v", err)
	}
	if c.OwnerID != f.buyer.ID || c.ForSale {
		t.Fatalf("ownership not transferred: %+v", c)
	}

	buyer, err := f.store.GetUser(ctx, f.buyer.ID)
	if err != nil {
		t.Fatalf("get buyer: %v", err)
	}
	if buyer.TotalOffsetsKg != f.listing.QuantityKg {
		t.Fatalf("buyer offsets = %f, want %f", buyer.TotalOffsetsKg, f.listing.QuantityKg)
	}
	if buyer.TradingVolume != f.listing.Price {
		t.Fatalf("buyer volume = %f, want %f", buyer.TradingVolume, f.listing.Price)
	}
	seller, err := f.store.GetUser(ctx, f.seller.ID)
	if err != nil {
		t.Fatalf("get seller: %v", err)
	}
	if seller.TradingVolume != f.listing.Price {
		t.Fatalf("seller volume = %f, want %f", seller.TradingVolume, f.listing.Price)
	}

	buyerNotes, err := f.store.ListNotifications(ctx, f.buyer.ID, true, 0)
	if err != nil {
		t.Fatalf("list buyer notifications: %v", err)
	}
	sellerNotes, err := f.store.ListNotifications(ctx, f.seller.ID, true, 0)
	if err != nil {
		t.Fatalf("list seller notifications: %v", err)
	}
	if len(buyerNotes) != 1 || len(sellerNotes) != 1 {
		t.Fatalf("expected one notification each, got %d and %d", len(buyerNotes), len(sellerNotes))
	}

	// Sold credit cannot be bought again.
	if _, err := f.svc.Buy(ctx, f.seller.ID, f.listing.ID); err == nil {
		t.Fatalf("expected error buying unlisted credit")
	}
}

func TestBuyRejectsOwnCredit(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Buy(context.Background(), f.seller.ID, f.listing.ID); err == nil {
		t.Fatalf("expected error buying own credit")
	}
}

func TestBuyRejectsRetired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.listing.Retired = true
	if _, err := f.store.UpdateCredit(ctx, f.listing); err != nil {
		t.Fatalf("update credit: %v", err)
	}
	if _, err := f.svc.Buy(ctx, f.buyer.ID, f.listing.ID); err == nil {
		t.Fatalf("expected error buying retired credit")
	}
}

func TestSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unlisted, err := f.store.CreateCredit(ctx, credit.Credit{
		ProjectName: "Geothermal H2",
		QuantityKg:  80,
		Price:       2,
		OwnerID:     f.seller.ID,
	})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}

	listed, err := f.svc.Sell(ctx, f.seller.ID, unlisted.ID, 6)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	if !listed.ForSale || listed.Price != 6 {
		t.Fatalf("listing not applied: %+v", listed)
	}
	if listed.MinBidPrice != 6*0.9 {
		t.Fatalf("min bid = %f, want %f", listed.MinBidPrice, 6*0.9)
	}

	if _, err := f.svc.Sell(ctx, f.buyer.ID, unlisted.ID, 6); err == nil {
		t.Fatalf("expected error when non-owner lists")
	}
	if _, err := f.svc.Sell(ctx, f.seller.ID, unlisted.ID, 0); err == nil {
		t.Fatalf("expected error for non-positive price")
	}
}

func TestSubmitRequiresRunningExecutor(t *testing.T) {
	f := newFixture(t)
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.executor.Stop(stopCtx); err != nil {
		t.Fatalf("stop executor: %v", err)
	}

	if _, err := f.svc.Sell(context.Background(), f.seller.ID, f.listing.ID, 5); err == nil {
		t.Fatalf("expected error after executor stopped")
	}
}
