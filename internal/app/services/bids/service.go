// Package bids manages trading bids on listed credits and their expiry.
package bids

import (
	"context"
	"fmt"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/bid"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service manages the bid lifecycle.
type Service struct {
	users        storage.UserStore
	credits      storage.CreditStore
	store        storage.BidStore
	transactions storage.TransactionStore
	notifier     *notifications.Service
	log          *logger.Logger
	expiry       time.Duration
}

// New constructs a bid service. New bids expire after the given duration.
func New(
	users storage.UserStore,
	credits storage.CreditStore,
	store storage.BidStore,
	transactions storage.TransactionStore,
	notifier *notifications.Service,
	expiry time.Duration,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("bids")
	}
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &Service{
		users:        users,
		credits:      credits,
		store:        store,
		transactions: transactions,
		notifier:     notifier,
		log:          log,
		expiry:       expiry,
	}
}

// Place records a buy bid on a listed credit.
func (s *Service) Place(ctx context.Context, userID, creditID string, price, quantityKg float64, notes string) (bid.Bid, error) {
	if userID == "" || creditID == "" {
		return bid.Bid{}, fmt.Errorf("user_id and credit_id are required")
	}
	if price <= 0 || quantityKg <= 0 {
		return bid.Bid{}, fmt.Errorf("price and quantity must be greater than 0")
	}

	c, err := s.credits.GetCredit(ctx, creditID)
	if err != nil {
		return bid.Bid{}, err
	}
	if c.OwnerID == userID {
		return bid.Bid{}, fmt.Errorf("cannot bid on your own credit")
	}
	if c.Retired {
		return bid.Bid{}, fmt.Errorf("credit %s is retired", creditID)
	}
	if c.MinBidPrice > 0 && price < c.MinBidPrice {
		return bid.Bid{}, fmt.Errorf("bid below minimum of %.2f", c.MinBidPrice)
	}

	b, err := s.store.CreateBid(ctx, bid.Bid{
		CreditID:   creditID,
		UserID:     userID,
		BidPrice:   price,
		QuantityKg: quantityKg,
		Type:       bid.TypeBuy,
		Status:     bid.StatusActive,
		Notes:      notes,
		ExpiresAt:  time.Now().UTC().Add(s.expiry),
	})
	if err != nil {
		return bid.Bid{}, err
	}

	s.notify(ctx, notification.Notification{
		UserID:  c.OwnerID,
		Title:   "New Bid Received",
		Message: fmt.Sprintf("A bid of $%.2f was placed on your credit from %s", price, c.ProjectName),
		Type:    notification.TypeBid,
	})

	s.log.WithField("bid_id", b.ID).
		WithField("credit_id", creditID).
		WithField("user_id", userID).
		Info("bid placed")
	return b, nil
}

// Cancel withdraws an active bid. Only the bidder may cancel.
func (s *Service) Cancel(ctx context.Context, userID, bidID string) (bid.Bid, error) {
	b, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return bid.Bid{}, err
	}
	if b.UserID != userID {
		return bid.Bid{}, fmt.Errorf("bid %s does not belong to user", bidID)
	}
	if b.Status != bid.StatusActive {
		return bid.Bid{}, fmt.Errorf("bid %s is not active", bidID)
	}

	b.Status = bid.StatusCancelled
	b, err = s.store.UpdateBid(ctx, b)
	if err != nil {
		return bid.Bid{}, err
	}
	s.log.WithField("bid_id", b.ID).Info("bid cancelled")
	return b, nil
}

// Accept lets the credit owner accept an active bid. Ownership transfers at
// the bid price, the trade is recorded, and competing active bids on the same
// credit are rejected.
func (s *Service) Accept(ctx context.Context, ownerID, bidID string) (trade.Transaction, error) {
	b, err := s.store.GetBid(ctx, bidID)
	if err != nil {
		return trade.Transaction{}, err
	}
	if b.Status != bid.StatusActive {
		return trade.Transaction{}, fmt.Errorf("bid %s is not active", bidID)
	}
	if b.Expired(time.Now().UTC()) {
		return trade.Transaction{}, fmt.Errorf("bid %s has expired", bidID)
	}

	c, err := s.credits.GetCredit(ctx, b.CreditID)
	if err != nil {
		return trade.Transaction{}, err
	}
	if c.OwnerID != ownerID {
		return trade.Transaction{}, fmt.Errorf("credit %s is not owned by user", c.ID)
	}
	if c.Retired {
		return trade.Transaction{}, fmt.Errorf("credit %s is retired", c.ID)
	}

	buyer, err := s.users.GetUser(ctx, b.UserID)
	if err != nil {
		return trade.Transaction{}, fmt.Errorf("bidder lookup failed: %w", err)
	}
	seller, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return trade.Transaction{}, fmt.Errorf("owner lookup failed: %w", err)
	}

	tx, err := s.transactions.CreateTransaction(ctx, trade.Transaction{
		CreditID:   c.ID,
		BuyerID:    buyer.ID,
		SellerID:   seller.ID,
		Price:      b.BidPrice,
		QuantityKg: b.QuantityKg,
		Type:       trade.TypeBid,
		Status:     trade.StatusCompleted,
	})
	if err != nil {
		return trade.Transaction{}, err
	}

	now := time.Now().UTC()
	b.Status = bid.StatusAccepted
	b.AcceptedAt = now
	if _, err := s.store.UpdateBid(ctx, b); err != nil {
		return trade.Transaction{}, err
	}

	c.OwnerID = buyer.ID
	c.ForSale = false
	if _, err := s.credits.UpdateCredit(ctx, c); err != nil {
		return trade.Transaction{}, fmt.Errorf("transfer ownership: %w", err)
	}

	buyer.TotalOffsetsKg += b.QuantityKg
	buyer.TradingVolume += b.BidPrice
	if _, err := s.users.UpdateUser(ctx, buyer); err != nil {
		return trade.Transaction{}, fmt.Errorf("update buyer totals: %w", err)
	}
	seller.TradingVolume += b.BidPrice
	if _, err := s.users.UpdateUser(ctx, seller); err != nil {
		return trade.Transaction{}, fmt.Errorf("update seller totals: %w", err)
	}

	// Competing bids lose.
	siblings, err := s.store.ListBidsByCredit(ctx, c.ID)
	if err != nil {
		return trade.Transaction{}, err
	}
	for _, sib := range siblings {
		if sib.ID == b.ID || sib.Status != bid.StatusActive {
			continue
		}
		sib.Status = bid.StatusRejected
		if _, err := s.store.UpdateBid(ctx, sib); err != nil {
			return trade.Transaction{}, err
		}
		s.notify(ctx, notification.Notification{
			UserID:  sib.UserID,
			Title:   "Bid Rejected",
			Message: fmt.Sprintf("Your bid on the credit from %s was not accepted", c.ProjectName),
			Type:    notification.TypeBid,
		})
	}

	s.notify(ctx, notification.Notification{
		UserID:  buyer.ID,
		Title:   "Bid Accepted",
		Message: fmt.Sprintf("Your bid of $%.2f on the credit from %s was accepted", b.BidPrice, c.ProjectName),
		Type:    notification.TypeBid,
	})

	s.log.WithField("bid_id", b.ID).
		WithField("transaction_id", tx.ID).
		WithField("credit_id", c.ID).
		Info("bid accepted")
	return tx, nil
}

// ListByUser returns all bids placed by a user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]bid.Bid, error) {
	return s.store.ListBidsByUser(ctx, userID)
}

// ListByCredit returns all bids on a credit.
func (s *Service) ListByCredit(ctx context.Context, creditID string) ([]bid.Bid, error) {
	return s.store.ListBidsByCredit(ctx, creditID)
}

// ExpireOverdue transitions overdue active bids to expired and returns how
// many were swept.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.store.ListExpiredActiveBids(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, b := range overdue {
		b.Status = bid.StatusExpired
		if _, err := s.store.UpdateBid(ctx, b); err != nil {
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
