package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := New(db)
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	seller, err := store.CreateUser(ctx, user.User{
		Username:      fmt.Sprintf("seller-%d", suffix),
		WalletAddress: fmt.Sprintf("0x%040x", suffix),
	})
	if err != nil {
		t.Fatalf("create seller: %v", err)
	}

	buyer, err := store.CreateUser(ctx, user.User{
		Username:      fmt.Sprintf("buyer-%d", suffix),
		WalletAddress: fmt.Sprintf("0x%040x", suffix+1),
	})
	if err != nil {
		t.Fatalf("create buyer: %v", err)
	}

	got, err := store.GetUserByWallet(ctx, seller.WalletAddress)
	if err != nil {
		t.Fatalf("get user by wallet: %v", err)
	}
	if got.ID != seller.ID {
		t.Fatalf("wallet lookup returned user %s, want %s", got.ID, seller.ID)
	}

	c, err := store.CreateCredit(ctx, credit.Credit{
		TokenID:       suffix,
		ProjectName:   "Integration Wind Farm",
		QuantityKg:    100,
		Price:         4.5,
		VintageYear:   2025,
		Certification: "Green-H2",
		ProjectType:   "wind",
		ForSale:       true,
		OwnerID:       seller.ID,
	})
	if err != nil {
		t.Fatalf("create credit: %v", err)
	}

	forSale := true
	listed, err := store.ListCredits(ctx, storage.CreditFilter{OwnerID: seller.ID, ForSale: &forSale})
	if err != nil {
		t.Fatalf("list credits: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != c.ID {
		t.Fatalf("expected one listed credit %s, got %v", c.ID, listed)
	}

	c.OwnerID = buyer.ID
	c.ForSale = false
	if _, err := store.UpdateCredit(ctx, c); err != nil {
		t.Fatalf("update credit: %v", err)
	}

	tx, err := store.CreateTransaction(ctx, trade.Transaction{
		CreditID:   c.ID,
		BuyerID:    buyer.ID,
		SellerID:   seller.ID,
		Price:      450,
		QuantityKg: 100,
		Type:       trade.TypePurchase,
		Status:     trade.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	history, err := store.ListTransactionsByUser(ctx, buyer.ID, 10)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) == 0 || history[0].ID != tx.ID {
		t.Fatalf("expected transaction %s in buyer history, got %v", tx.ID, history)
	}

	b, err := store.CreateBid(ctx, bid.Bid{
		CreditID:   c.ID,
		UserID:     seller.ID,
		BidPrice:   4.0,
		QuantityKg: 100,
		Type:       bid.TypeBuy,
		Status:     bid.StatusActive,
		ExpiresAt:  time.Now().Add(-time.Hour).UTC(),
	})
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}

	expired, err := store.ListExpiredActiveBids(ctx, time.Now())
	if err != nil {
		t.Fatalf("list expired bids: %v", err)
	}
	found := false
	for _, eb := range expired {
		if eb.ID == b.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bid %s among expired active bids", b.ID)
	}
}
