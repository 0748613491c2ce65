// Package credit defines the hydrogen credit listing, the central record of
// the marketplace. A credit represents a claimed quantity of certified
// hydrogen production tied to an off-chain token identifier; the platform
// records the claim and never verifies on-chain state.
package credit

import "time"

// Certification levels a credit can carry.
const (
	LevelStandard  = "standard"
	LevelPremium   = "premium"
	LevelVerified  = "verified"
	LevelCertified = "certified"
)

// Credit is a tradable hydrogen production record.
type Credit struct {
	ID                  string
	TokenID             int64
	ProjectName         string
	QuantityKg          float64
	Price               float64
	MinBidPrice         float64
	VintageYear         int
	Certification       string
	CertificationLevel  string
	ProjectType         string
	ProjectCountry      string
	ProjectRegion       string
	EnvironmentalImpact float64
	QualityRating       float64
	ForSale             bool
	Retired             bool
	Partnership         bool
	OwnerID             string
	IssuedAt            time.Time
	RetiredAt           time.Time
	ExpiresAt           time.Time
	UpdatedAt           time.Time
}

// Tradable reports whether the credit can be bought or bid on.
func (c Credit) Tradable() bool {
	return c.ForSale && !c.Retired
}
