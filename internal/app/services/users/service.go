// Package users implements wallet-based registration and session issuance.
package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/internal/middleware"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service manages marketplace users and wallet sessions.
type Service struct {
	store    storage.UserStore
	log      *logger.Logger
	secret   []byte
	tokenTTL time.Duration
}

// New constructs a user service. Session tokens are signed with secret and
// expire after tokenTTL.
func New(store storage.UserStore, secret []byte, tokenTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Service{
		store:    store,
		log:      log,
		secret:   secret,
		tokenTTL: tokenTTL,
	}
}

// ConnectWallet logs a wallet in, registering the user on first contact, and
// returns the user together with a signed session token.
func (s *Service) ConnectWallet(ctx context.Context, wallet, username string) (user.User, string, error) {
	wallet = strings.TrimSpace(wallet)
	if !user.ValidWallet(wallet) {
		return user.User{}, "", fmt.Errorf("invalid wallet address format")
	}
	wallet = user.NormalizeWallet(wallet)

	u, err := s.store.GetUserByWallet(ctx, wallet)
	if err != nil {
		username = strings.TrimSpace(username)
		if username == "" {
			username = "User_" + wallet[2:10]
		}
		// Wallet possession is the identity proof, so first contact counts
		// as verified.
		u, err = s.store.CreateUser(ctx, user.User{
			Username:          username,
			WalletAddress:     wallet,
			IsVerified:        true,
			VerificationLevel: user.LevelBasic,
			ReputationScore:   5.0,
		})
		if err != nil {
			return user.User{}, "", fmt.Errorf("register wallet: %w", err)
		}
		s.log.WithField("user_id", u.ID).
			WithField("wallet", wallet).
			Info("new user registered")
	}

	token, err := middleware.IssueToken(s.secret, u.ID, u.WalletAddress, s.tokenTTL)
	if err != nil {
		return user.User{}, "", fmt.Errorf("issue session token: %w", err)
	}

	s.log.WithField("user_id", u.ID).Info("wallet connected")
	return u, token, nil
}

// Get retrieves a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// GetByWallet retrieves a user by wallet address.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (user.User, error) {
	return s.store.GetUserByWallet(ctx, user.NormalizeWallet(wallet))
}

// UpdateProfile updates the mutable profile fields of a user.
func (s *Service) UpdateProfile(ctx context.Context, id string, username, email, companyName *string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if username != nil {
		trimmed := strings.TrimSpace(*username)
		if trimmed == "" {
			return user.User{}, fmt.Errorf("username cannot be empty")
		}
		u.Username = trimmed
	}
	if email != nil {
		u.Email = strings.TrimSpace(*email)
	}
	if companyName != nil {
		u.CompanyName = strings.TrimSpace(*companyName)
	}

	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).Info("profile updated")
	return u, nil
}

// SetVerification marks a user's verification level and partner flag.
func (s *Service) SetVerification(ctx context.Context, id, level string, isPartner bool) (user.User, error) {
	switch level {
	case user.LevelBasic, user.LevelVerified, user.LevelPremium, user.LevelEnterprise:
	default:
		return user.User{}, fmt.Errorf("unknown verification level %q", level)
	}

	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.VerificationLevel = level
	u.IsVerified = level != user.LevelBasic
	u.IsPartner = isPartner

	u, err = s.store.UpdateUser(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", u.ID).
		WithField("level", level).
		Info("verification level changed")
	return u, nil
}
