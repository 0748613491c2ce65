package bid

import "time"

// Bid statuses.
const (
	StatusActive    = "active"
	StatusAccepted  = "accepted"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

// Bid types.
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
)

// Bid is an offer to buy (or sell) a quantity of a listed credit at a price.
type Bid struct {
	ID         string
	CreditID   string
	UserID     string
	BidPrice   float64
	QuantityKg float64
	Type       string
	Status     string
	Notes      string
	ExpiresAt  time.Time
	AcceptedAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the bid's validity window has passed.
func (b Bid) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}
