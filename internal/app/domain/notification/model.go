package notification

import "time"

// Notification types.
const (
	TypeTrade       = "trade"
	TypeBid         = "bid"
	TypePartnership = "partnership"
	TypeSystem      = "system"
)

// Priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is a user-facing message generated by marketplace activity.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Type      string
	Priority  string
	Read      bool
	ActionURL string
	Extra     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
