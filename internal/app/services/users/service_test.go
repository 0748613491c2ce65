package users

import (
	"context"
	"testing"
	"time"

	"github.com/hydrochain/marketplace/internal/app/storage/memory"
	"github.com/hydrochain/marketplace/internal/middleware"
)

const testWallet = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

func TestConnectWallet(t *testing.T) {
	store := memory.New()
	secret := []byte("test-secret")
	svc := New(store, secret, time.Hour, nil)

	u, token, err := svc.ConnectWallet(context.Background(), testWallet, "")
	if err != nil {
		t.Fatalf("connect wallet: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected id to be generated")
	}
	if u.WalletAddress != "0x742d35cc6634c0532925a3b844bc454e4438f44e" {
		t.Fatalf("wallet not normalized: %s", u.WalletAddress)
	}
	if u.Username != "User_742d35cc" {
		t.Fatalf("unexpected generated username %s", u.Username)
	}

	claims, err := middleware.ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("token user id = %s, want %s", claims.UserID, u.ID)
	}

	// Second connect with different casing must return the same user.
	again, _, err := svc.ConnectWallet(context.Background(), "0X742D35CC6634C0532925A3B844BC454E4438F44E", "ignored")
	if err != nil {
		t.Fatalf("reconnect wallet: %v", err)
	}
	if again.ID != u.ID {
		t.Fatalf("expected same user on reconnect, got %s and %s", u.ID, again.ID)
	}
}

func TestConnectWalletRejectsMalformed(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)

	for _, addr := range []string{
		"",
		"742d35cc6634c0532925a3b844bc454e4438f44e",
		"0x742d35cc6634c0532925a3b844bc454e4438f4",
		"0xzzzd35cc6634c0532925a3b844bc454e4438f44e",
	} {
		if _, _, err := svc.ConnectWallet(context.Background(), addr, ""); err == nil {
			t.Fatalf("expected error for wallet %q", addr)
		}
	}
}

func TestUpdateProfile(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)

	u, _, err := svc.ConnectWallet(context.Background(), testWallet, "alice")
	if err != nil {
		t.Fatalf("connect wallet: %v", err)
	}

	email := "alice@example.com"
	company := "Acme Hydrogen"
	updated, err := svc.UpdateProfile(context.Background(), u.ID, nil, &email, &company)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Email != email || updated.CompanyName != company {
		t.Fatalf("profile not updated: %+v", updated)
	}
	if updated.Username != "alice" {
		t.Fatalf("username should be unchanged, got %s", updated.Username)
	}

	empty := " "
	if _, err := svc.UpdateProfile(context.Background(), u.ID, &empty, nil, nil); err == nil {
		t.Fatalf("expected error for blank username")
	}
}

func TestSetVerification(t *testing.T) {
	svc := New(memory.New(), []byte("secret"), time.Hour, nil)

	u, _, err := svc.ConnectWallet(context.Background(), testWallet, "")
	if err != nil {
		t.Fatalf("connect wallet: %v", err)
	}
	if !u.IsVerified || u.VerificationLevel != "basic" {
		t.Fatalf("new user should start verified at basic level: %+v", u)
	}

	verified, err := svc.SetVerification(context.Background(), u.ID, "verified", true)
	if err != nil {
		t.Fatalf("set verification: %v", err)
	}
	if !verified.IsVerified || !verified.IsPartner {
		t.Fatalf("verification flags not set: %+v", verified)
	}

	if _, err := svc.SetVerification(context.Background(), u.ID, "platinum", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
