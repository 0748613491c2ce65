package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/analytics"
	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/partnership"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu             sync.RWMutex
	nextID         int64
	users          map[string]user.User
	usersByWallet  map[string]string
	credits        map[string]credit.Credit
	transactions   map[string]trade.Transaction
	bids           map[string]bid.Bid
	notifications  map[string]notification.Notification
	allocations    map[string]partnership.Allocation
	dailySnapshots map[string]analytics.DailySnapshot
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.CreditStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.BidStore = (*Store)(nil)
var _ storage.NotificationStore = (*Store)(nil)
var _ storage.PartnershipStore = (*Store)(nil)
var _ storage.AnalyticsStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:         1,
		users:          make(map[string]user.User),
		usersByWallet:  make(map[string]string),
		credits:        make(map[string]credit.Credit),
		transactions:   make(map[string]trade.Transaction),
		bids:           make(map[string]bid.Bid),
		notifications:  make(map[string]notification.Notification),
		allocations:    make(map[string]partnership.Allocation),
		dailySnapshots: make(map[string]analytics.DailySnapshot),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = s.nextIDLocked()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, fmt.Errorf("user %s already exists", u.ID)
	}

	walletKey := user.NormalizeWallet(u.WalletAddress)
	if walletKey != "" {
		if existing, exists := s.usersByWallet[walletKey]; exists {
			return user.User{}, fmt.Errorf("wallet %s already registered to user %s", u.WalletAddress, existing)
		}
	}

	now := time.Now().UTC()
	u.RegisteredAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	if walletKey != "" {
		s.usersByWallet[walletKey] = u.ID
	}
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", u.ID)
	}

	oldKey := user.NormalizeWallet(original.WalletAddress)
	newKey := user.NormalizeWallet(u.WalletAddress)
	if newKey != "" {
		if existing, exists := s.usersByWallet[newKey]; exists && existing != u.ID {
			return user.User{}, fmt.Errorf("wallet %s already registered to user %s", u.WalletAddress, existing)
		}
	}

	u.RegisteredAt = original.RegisteredAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	if oldKey != "" && oldKey != newKey {
		delete(s.usersByWallet, oldKey)
	}
	if newKey != "" {
		s.usersByWallet[newKey] = u.ID
	}
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (s *Store) GetUserByWallet(_ context.Context, wallet string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.usersByWallet[user.NormalizeWallet(wallet)]; ok {
		return s.users[id], nil
	}
	return user.User{}, fmt.Errorf("user for wallet %s not found", wallet)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	return result, nil
}

// CreditStore implementation -------------------------------------------------

func (s *Store) CreateCredit(_ context.Context, c credit.Credit) (credit.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.credits[c.ID]; exists {
		return credit.Credit{}, fmt.Errorf("credit %s already exists", c.ID)
	}

	now := time.Now().UTC()
	if c.IssuedAt.IsZero() {
		c.IssuedAt = now
	}
	c.UpdatedAt = now

	s.credits[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCredit(_ context.Context, c credit.Credit) (credit.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.credits[c.ID]
	if !ok {
		return credit.Credit{}, fmt.Errorf("credit %s not found", c.ID)
	}

	c.IssuedAt = original.IssuedAt
	c.UpdatedAt = time.Now().UTC()

	s.credits[c.ID] = c
	return c, nil
}

func (s *Store) GetCredit(_ context.Context, id string) (credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credits[id]
	if !ok {
		return credit.Credit{}, fmt.Errorf("credit %s not found", id)
	}
	return c, nil
}

func (s *Store) ListCredits(_ context.Context, filter storage.CreditFilter) ([]credit.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]credit.Credit, 0)
	for _, c := range s.credits {
		if filter.OwnerID != "" && c.OwnerID != filter.OwnerID {
			continue
		}
		if filter.ForSale != nil && c.ForSale != *filter.ForSale {
			continue
		}
		if filter.Retired != nil && c.Retired != *filter.Retired {
			continue
		}
		if filter.Partnership != nil && c.Partnership != *filter.Partnership {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].IssuedAt.Before(result[j].IssuedAt) })
	return result, nil
}

func (s *Store) CountRetiredCredits(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, c := range s.credits {
		if c.Retired {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountDistinctProjects(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make(map[string]bool)
	for _, c := range s.credits {
		projects[strings.ToLower(c.ProjectName)] = true
	}
	return len(projects), nil
}

// TransactionStore implementation --------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx trade.Transaction) (trade.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[tx.ID]; exists {
		return trade.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (trade.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return trade.Transaction{}, fmt.Errorf("transaction %s not found", id)
	}
	return tx, nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID string, limit int) ([]trade.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]trade.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.BuyerID == userID || tx.SellerID == userID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListTransactionsBetween(_ context.Context, from, to time.Time) ([]trade.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]trade.Transaction, 0)
	for _, tx := range s.transactions {
		if !tx.CreatedAt.Before(from) && tx.CreatedAt.Before(to) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// BidStore implementation ----------------------------------------------------

func (s *Store) CreateBid(_ context.Context, b bid.Bid) (bid.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = s.nextIDLocked()
	} else if _, exists := s.bids[b.ID]; exists {
		return bid.Bid{}, fmt.Errorf("bid %s already exists", b.ID)
	}

	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	s.bids[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBid(_ context.Context, b bid.Bid) (bid.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.bids[b.ID]
	if !ok {
		return bid.Bid{}, fmt.Errorf("bid %s not found", b.ID)
	}

	b.CreatedAt = original.CreatedAt
	if b.AcceptedAt.IsZero() {
		b.AcceptedAt = original.AcceptedAt
	}
	b.UpdatedAt = time.Now().UTC()

	s.bids[b.ID] = b
	return b, nil
}

func (s *Store) GetBid(_ context.Context, id string) (bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bids[id]
	if !ok {
		return bid.Bid{}, fmt.Errorf("bid %s not found", id)
	}
	return b, nil
}

func (s *Store) ListBidsByCredit(_ context.Context, creditID string) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bid.Bid, 0)
	for _, b := range s.bids {
		if b.CreditID == creditID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListBidsByUser(_ context.Context, userID string) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bid.Bid, 0)
	for _, b := range s.bids {
		if b.UserID == userID {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListExpiredActiveBids(_ context.Context, now time.Time) ([]bid.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]bid.Bid, 0)
	for _, b := range s.bids {
		if b.Status == bid.StatusActive && b.Expired(now) {
			result = append(result, b)
		}
	}
	return result, nil
}

// NotificationStore implementation -------------------------------------------

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = s.nextIDLocked()
	} else if _, exists := s.notifications[n.ID]; exists {
		return notification.Notification{}, fmt.Errorf("notification %s already exists", n.ID)
	}

	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.notifications[n.ID]
	if !ok {
		return notification.Notification{}, fmt.Errorf("notification %s not found", n.ID)
	}

	n.CreatedAt = original.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return notification.Notification{}, fmt.Errorf("notification %s not found", id)
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// PartnershipStore implementation --------------------------------------------

func (s *Store) CreateAllocation(_ context.Context, a partnership.Allocation) (partnership.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = s.nextIDLocked()
	} else if _, exists := s.allocations[a.ID]; exists {
		return partnership.Allocation{}, fmt.Errorf("allocation %s already exists", a.ID)
	}

	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	s.allocations[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAllocation(_ context.Context, a partnership.Allocation) (partnership.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.allocations[a.ID]
	if !ok {
		return partnership.Allocation{}, fmt.Errorf("allocation %s not found", a.ID)
	}

	a.CreatedAt = original.CreatedAt
	a.UpdatedAt = time.Now().UTC()

	s.allocations[a.ID] = a
	return a, nil
}

func (s *Store) GetAllocation(_ context.Context, id string) (partnership.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.allocations[id]
	if !ok {
		return partnership.Allocation{}, fmt.Errorf("allocation %s not found", id)
	}
	return a, nil
}

func (s *Store) ListAllocationsByPartner(_ context.Context, partnerID, status string) ([]partnership.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]partnership.Allocation, 0)
	for _, a := range s.allocations {
		if a.PartnerID != partnerID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *Store) ListExpiredActiveAllocations(_ context.Context, now time.Time) ([]partnership.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]partnership.Allocation, 0)
	for _, a := range s.allocations {
		if a.Status == partnership.StatusActive && a.Expired(now) {
			result = append(result, a)
		}
	}
	return result, nil
}

// AnalyticsStore implementation ----------------------------------------------

func (s *Store) UpsertDailySnapshot(_ context.Context, snap analytics.DailySnapshot) (analytics.DailySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := snap.Date.UTC().Format("2006-01-02")
	if existing, ok := s.dailySnapshots[key]; ok {
		snap.ID = existing.ID
		snap.CreatedAt = existing.CreatedAt
	} else {
		snap.ID = s.nextIDLocked()
		snap.CreatedAt = time.Now().UTC()
	}

	s.dailySnapshots[key] = snap
	return snap, nil
}

func (s *Store) ListDailySnapshots(_ context.Context, limit int) ([]analytics.DailySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]analytics.DailySnapshot, 0, len(s.dailySnapshots))
	for _, snap := range s.dailySnapshots {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
