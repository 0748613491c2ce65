// Package trading executes purchases and listings on a bounded worker pool,
// keeping slow storage writes off the request path.
package trading

import (
	"context"
	"fmt"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/trade"
	"github.com/hydrochain/marketplace/internal/app/services/notifications"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service executes buy and sell operations.
type Service struct {
	users         storage.UserStore
	credits       storage.CreditStore
	transactions  storage.TransactionStore
	notifier      *notifications.Service
	executor      *Executor
	log           *logger.Logger
	submitTimeout time.Duration
	feeRate       float64
}

// New constructs a trading service. Operations are submitted to executor and
// awaited for at most submitTimeout. feePercent is the platform fee charged
// on completed purchases.
func New(
	users storage.UserStore,
	credits storage.CreditStore,
	transactions storage.TransactionStore,
	notifier *notifications.Service,
	executor *Executor,
	submitTimeout time.Duration,
	feePercent float64,
	log *logger.Logger,
) *Service {
	if log == nil {
		log = logger.NewDefault("trading")
	}
	if submitTimeout <= 0 {
		submitTimeout = 30 * time.Second
	}
	if feePercent < 0 {
		feePercent = 0
	}
	return &Service{
		users:         users,
		credits:       credits,
		transactions:  transactions,
		notifier:      notifier,
		executor:      executor,
		log:           log,
		submitTimeout: submitTimeout,
		feeRate:       feePercent / 100,
	}
}

// Buy purchases a listed credit for buyerID. The write runs on the worker
// pool; Buy blocks until it completes or the submit timeout elapses.
func (s *Service) Buy(ctx context.Context, buyerID, creditID string) (trade.Transaction, error) {
	if buyerID == "" || creditID == "" {
		return trade.Transaction{}, fmt.Errorf("buyer_id and credit_id are required")
	}

	// Cheap precondition checks before tying up a worker.
	c, err := s.credits.GetCredit(ctx, creditID)
	if err != nil {
		return trade.Transaction{}, err
	}
	if c.OwnerID == buyerID {
		return trade.Transaction{}, fmt.Errorf("cannot buy your own credit")
	}
	if !c.Tradable() {
		return trade.Transaction{}, fmt.Errorf("credit %s is not available for sale", creditID)
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	var tx trade.Transaction
	err = s.executor.Submit(submitCtx, "buy", func(ctx context.Context) error {
		var execErr error
		tx, execErr = s.executeBuy(ctx, buyerID, creditID)
		return execErr
	})
	if err != nil {
		return trade.Transaction{}, err
	}
	return tx, nil
}

func (s *Service) executeBuy(ctx context.Context, buyerID, creditID string) (trade.Transaction, error) {
	// Re-check inside the worker: the listing may have changed while queued.
	c, err := s.credits.GetCredit(ctx, creditID)
	if err != nil {
		return trade.Transaction{}, err
	}
	if c.OwnerID == buyerID || !c.Tradable() {
		return trade.Transaction{}, fmt.Errorf("credit %s is not available for purchase", creditID)
	}

	buyer, err := s.users.GetUser(ctx, buyerID)
	if err != nil {
		return trade.Transaction{}, fmt.Errorf("buyer lookup failed: %w", err)
	}
	seller, err := s.users.GetUser(ctx, c.OwnerID)
	if err != nil {
		return trade.Transaction{}, fmt.Errorf("seller lookup failed: %w", err)
	}

	tx, err := s.transactions.CreateTransaction(ctx, trade.Transaction{
		CreditID:   c.ID,
		BuyerID:    buyer.ID,
		SellerID:   seller.ID,
		Price:      c.Price,
		QuantityKg: c.QuantityKg,
		Type:       trade.TypePurchase,
		Fees:       c.Price * s.feeRate,
		Status:     trade.StatusCompleted,
	})
	if err != nil {
		return trade.Transaction{}, err
	}

	c.OwnerID = buyer.ID
	c.ForSale = false
	if _, err := s.credits.UpdateCredit(ctx, c); err != nil {
		return trade.Transaction{}, fmt.Errorf("transfer ownership: %w", err)
	}

	buyer.TotalOffsetsKg += c.QuantityKg
	buyer.TradingVolume += c.Price
	if _, err := s.users.UpdateUser(ctx, buyer); err != nil {
		return trade.Transaction{}, fmt.Errorf("update buyer totals: %w", err)
	}
	seller.TradingVolume += c.Price
	if _, err := s.users.UpdateUser(ctx, seller); err != nil {
		return trade.Transaction{}, fmt.Errorf("update seller totals: %w", err)
	}

	s.notify(ctx, notification.Notification{
		UserID:  buyer.ID,
		Title:   "Purchase Successful",
		Message: fmt.Sprintf("You have successfully purchased %.0f kg of hydrogen credits from %s", c.QuantityKg, c.ProjectName),
		Type:    notification.TypeTrade,
	})
	s.notify(ctx, notification.Notification{
		UserID:  seller.ID,
		Title:   "Credit Sold",
		Message: fmt.Sprintf("Your hydrogen credit from %s has been sold to %s", c.ProjectName, buyer.Username),
		Type:    notification.TypeTrade,
	})

	s.log.WithField("transaction_id", tx.ID).
		WithField("credit_id", c.ID).
		WithField("buyer_id", buyer.ID).
		WithField("seller_id", seller.ID).
		Info("purchase completed")
	return tx, nil
}

// Sell lists a credit for sale at the given price. Only the owner may list,
// and retired credits can never be listed.
func (s *Service) Sell(ctx context.Context, sellerID, creditID string, price float64) (credit.Credit, error) {
	if sellerID == "" || creditID == "" {
		return credit.Credit{}, fmt.Errorf("seller_id and credit_id are required")
	}
	if price <= 0 {
		return credit.Credit{}, fmt.Errorf("price must be greater than 0")
	}

	submitCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()

	var listed credit.Credit
	err := s.executor.Submit(submitCtx, "sell", func(ctx context.Context) error {
		var execErr error
		listed, execErr = s.executeSell(ctx, sellerID, creditID, price)
		return execErr
	})
	if err != nil {
		return credit.Credit{}, err
	}
	return listed, nil
}

func (s *Service) executeSell(ctx context.Context, sellerID, creditID string, price float64) (credit.Credit, error) {
	c, err := s.credits.GetCredit(ctx, creditID)
	if err != nil {
		return credit.Credit{}, err
	}
	if c.OwnerID != sellerID {
		return credit.Credit{}, fmt.Errorf("credit %s is not owned by seller", creditID)
	}
	if c.Retired {
		return credit.Credit{}, fmt.Errorf("credit %s is retired and cannot be listed", creditID)
	}

	c.ForSale = true
	c.Price = price
	c.MinBidPrice = price * 0.9

	c, err = s.credits.UpdateCredit(ctx, c)
	if err != nil {
		return credit.Credit{}, err
	}

	s.notify(ctx, notification.Notification{
		UserID:  sellerID,
		Title:   "Credit Listed for Sale",
		Message: fmt.Sprintf("Your hydrogen credit from %s is now listed for $%.2f", c.ProjectName, price),
		Type:    notification.TypeTrade,
	})

	s.log.WithField("credit_id", c.ID).
		WithField("seller_id", sellerID).
		WithField("price", price).
		Info("credit listed for sale")
	return c, nil
}

// History returns the most recent transactions involving a user.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]trade.Transaction, error) {
	return s.transactions.ListTransactionsByUser(ctx, userID, limit)
}

func (s *Service) notify(ctx context.Context, n notification.Notification) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WithError(err).WithField("user_id", n.UserID).Warn("notification delivery failed")
	}
}
