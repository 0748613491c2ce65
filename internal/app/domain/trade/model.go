package trade

import "time"

// Transaction types.
const (
	TypePurchase    = "purchase"
	TypeBid         = "bid"
	TypePartnership = "partnership"
)

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Transaction records a settled or attempted transfer of a credit between two
// users. TxHash is the claimed blockchain settlement hash, recorded verbatim.
type Transaction struct {
	ID         string
	CreditID   string
	BuyerID    string
	SellerID   string
	Price      float64
	QuantityKg float64
	Type       string
	Fees       float64
	Status     string
	TxHash     string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
