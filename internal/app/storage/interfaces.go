package storage

import (
	"context"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/analytics"
	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
)

// UserStore persists marketplace participants.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// CreditFilter narrows credit listing queries.
type CreditFilter struct {
	OwnerID     string
	ForSale     *bool
	Retired     *bool
	Partnership *bool
}

// CreditStore persists hydrogen credit listings.
type CreditStore interface {
	CreateCredit(ctx context.Context, c credit.Credit) (credit.Credit, error)
	UpdateCredit(ctx context.Context, c credit.Credit) (credit.Credit, error)
	GetCredit(ctx context.Context, id string) (credit.Credit, error)
	ListCredits(ctx context.Context, filter CreditFilter) ([]credit.Credit, error)
	CountRetiredCredits(ctx context.Context) (int, error)
	CountDistinctProjects(ctx context.Context) (int, error)
}

// TransactionStore persists trade records.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx trade.Transaction) (trade.Transaction, error)
	GetTransaction(ctx context.Context, id string) (trade.Transaction, error)
	ListTransactionsByUser(ctx context.Context, userID string, limit int) ([]trade.Transaction, error)
	ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]trade.Transaction, error)
}

// BidStore persists trading bids.
type BidStore interface {
	CreateBid(ctx context.Context, b bid.Bid) (bid.Bid, error)
	UpdateBid(ctx context.Context, b bid.Bid) (bid.Bid, error)
	GetBid(ctx context.Context, id string) (bid.Bid, error)
	ListBidsByCredit(ctx context.Context, creditID string) ([]bid.Bid, error)
	ListBidsByUser(ctx context.Context, userID string) ([]bid.Bid, error)
	ListExpiredActiveBids(ctx context.Context, now time.Time) ([]bid.Bid, error)
}

// NotificationStore persists user notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error)
	GetNotification(ctx context.Context, id string) (notification.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error)
}

// PartnershipStore persists partnership allocations.
type PartnershipStore interface {
	CreateAllocation(ctx context.Context, a partnership.Allocation) (partnership.Allocation, error)
	UpdateAllocation(ctx context.Context, a partnership.Allocation) (partnership.Allocation, error)
	GetAllocation(ctx context.Context, id string) (partnership.Allocation, error)
	ListAllocationsByPartner(ctx context.Context, partnerID, status string) ([]partnership.Allocation, error)
	ListExpiredActiveAllocations(ctx context.Context, now time.Time) ([]partnership.Allocation, error)
}

// AnalyticsStore persists daily market snapshots.
type AnalyticsStore interface {
	UpsertDailySnapshot(ctx context.Context, snap analytics.DailySnapshot) (analytics.DailySnapshot, error)
	ListDailySnapshots(ctx context.Context, limit int) ([]analytics.DailySnapshot, error)
}
