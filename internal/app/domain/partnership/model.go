package partnership

import "time"

// Partnership types.
const (
	TypeCorporateBulk = "corporate_bulk"
	TypeLongTerm      = "long_term"
	TypeExclusive     = "exclusive"
	TypeRenewableOnly = "renewable_only"
)

// Statuses.
const (
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Allocation reserves part of a credit for a partner at a fixed price over a
// time window.
type Allocation struct {
	ID            string
	CreditID      string
	PartnerID     string
	Type          string
	QuantityKg    float64
	ReservedPrice float64
	StartsAt      time.Time
	EndsAt        time.Time
	AutoRenew     bool
	Status        string
	Terms         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Expired reports whether the allocation window has closed.
func (a Allocation) Expired(now time.Time) bool {
	return !a.EndsAt.IsZero() && now.After(a.EndsAt)
}
