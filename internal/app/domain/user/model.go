package user

import (
	"regexp"
	"strings"
	"time"
)

// Verification levels, ordered by trust.
const (
	LevelBasic      = "basic"
	LevelVerified   = "verified"
	LevelPremium    = "premium"
	LevelEnterprise = "enterprise"
)

var walletPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// User is a marketplace participant identified by an Ethereum-style wallet
// address instead of a password.
type User struct {
	ID                string
	Username          string
	WalletAddress     string
	Email             string
	CompanyName       string
	IsVerified        bool
	IsPartner         bool
	VerificationLevel string
	TotalOffsetsKg    float64
	TradingVolume     float64
	ReputationScore   float64
	RegisteredAt      time.Time
	UpdatedAt         time.Time
}

// ValidWallet reports whether addr is a well-formed wallet address.
func ValidWallet(addr string) bool {
	return walletPattern.MatchString(strings.TrimSpace(addr))
}

// NormalizeWallet lowercases a wallet address for storage and lookup.
func NormalizeWallet(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
