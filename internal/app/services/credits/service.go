// Package credits manages hydrogen credit listings.
package credits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/credit"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service manages the credit registry.
type Service struct {
	users storage.UserStore
	store storage.CreditStore
	log   *logger.Logger
}

// New constructs a credit service.
func New(users storage.UserStore, store storage.CreditStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("credits")
	}
	return &Service{
		users: users,
		store: store,
		log:   log,
	}
}

// IssueParams are the fields required to mint a new credit record.
type IssueParams struct {
	TokenID             int64
	ProjectName         string
	QuantityKg          float64
	Price               float64
	VintageYear         int
	Certification       string
	CertificationLevel  string
	ProjectType         string
	ProjectCountry      string
	ProjectRegion       string
	EnvironmentalImpact float64
	QualityRating       float64
	ForSale             bool
	ExpiresAt           time.Time
}

// Issue registers a new credit owned by ownerID.
func (s *Service) Issue(ctx context.Context, ownerID string, p IssueParams) (credit.Credit, error) {
	p.ProjectName = strings.TrimSpace(p.ProjectName)
	p.ProjectType = strings.TrimSpace(p.ProjectType)
	p.Certification = strings.TrimSpace(p.Certification)

	if ownerID == "" {
		return credit.Credit{}, fmt.Errorf("owner_id is required")
	}
	if p.ProjectName == "" {
		return credit.Credit{}, fmt.Errorf("project_name is required")
	}
	if p.QuantityKg <= 0 {
		return credit.Credit{}, fmt.Errorf("quantity_kg must be positive")
	}
	if p.Price < 0 {
		return credit.Credit{}, fmt.Errorf("price cannot be negative")
	}
	if p.VintageYear <= 0 {
		p.VintageYear = time.Now().UTC().Year()
	}
	if p.CertificationLevel == "" {
		p.CertificationLevel = credit.LevelStandard
	}
	if p.QualityRating == 0 {
		p.QualityRating = 3.0
	}

	if s.users != nil {
		if _, err := s.users.GetUser(ctx, ownerID); err != nil {
			return credit.Credit{}, fmt.Errorf("owner validation failed: %w", err)
		}
	}

	c := credit.Credit{
		TokenID:             p.TokenID,
		ProjectName:         p.ProjectName,
		QuantityKg:          p.QuantityKg,
		Price:               p.Price,
		VintageYear:         p.VintageYear,
		Certification:       p.Certification,
		CertificationLevel:  p.CertificationLevel,
		ProjectType:         p.ProjectType,
		ProjectCountry:      strings.TrimSpace(p.ProjectCountry),
		ProjectRegion:       strings.TrimSpace(p.ProjectRegion),
		EnvironmentalImpact: p.EnvironmentalImpact,
		QualityRating:       p.QualityRating,
		ForSale:             p.ForSale,
		OwnerID:             ownerID,
		ExpiresAt:           p.ExpiresAt,
	}
	if c.ForSale {
		c.MinBidPrice = c.Price * 0.9
	}

	c, err := s.store.CreateCredit(ctx, c)
	if err != nil {
		return credit.Credit{}, err
	}
	s.log.WithField("credit_id", c.ID).
		WithField("owner_id", ownerID).
		WithField("project", c.ProjectName).
		Info("credit issued")
	return c, nil
}

// Get retrieves a credit by identifier.
func (s *Service) Get(ctx context.Context, id string) (credit.Credit, error) {
	return s.store.GetCredit(ctx, id)
}

// List returns credits matching the filter.
func (s *Service) List(ctx context.Context, filter storage.CreditFilter) ([]credit.Credit, error) {
	return s.store.ListCredits(ctx, filter)
}

// ListForSale returns all tradable listings.
func (s *Service) ListForSale(ctx context.Context) ([]credit.Credit, error) {
	forSale := true
	retired := false
	return s.store.ListCredits(ctx, storage.CreditFilter{ForSale: &forSale, Retired: &retired})
}

// ListOwned returns all credits held by a user.
func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]credit.Credit, error) {
	return s.store.ListCredits(ctx, storage.CreditFilter{OwnerID: ownerID})
}

// Retire permanently retires a credit. Only the owner may retire it, and a
// retired credit can never return to the market.
func (s *Service) Retire(ctx context.Context, userID, creditID string) (credit.Credit, error) {
	c, err := s.store.GetCredit(ctx, creditID)
	if err != nil {
		return credit.Credit{}, err
	}
	if c.OwnerID != userID {
		return credit.Credit{}, fmt.Errorf("credit %s is not owned by user", creditID)
	}
	if c.Retired {
		return credit.Credit{}, fmt.Errorf("credit %s is already retired", creditID)
	}

	c.Retired = true
	c.ForSale = false
	c.RetiredAt = time.Now().UTC()

	c, err = s.store.UpdateCredit(ctx, c)
	if err != nil {
		return credit.Credit{}, err
	}
	s.log.WithField("credit_id", c.ID).
		WithField("owner_id", userID).
		Info("credit retired")
	return c, nil
}
