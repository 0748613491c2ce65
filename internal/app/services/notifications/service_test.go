package notifications

import (
	"context"
	"testing"

	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/domain/user"
	"github.com/hydrochain/marketplace/internal/app/storage/memory"
)

func newUsers(t *testing.T, store *memory.Store) (user.User, user.User) {
	t.Helper()
	ctx := context.Background()
	alice, err := store.CreateUser(ctx, user.User{
		Username:      "alice",
		WalletAddress: "0x0000000000000000000000000000000000000001",
	})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := store.CreateUser(ctx, user.User{
		Username:      "bob",
		WalletAddress: "0x0000000000000000000000000000000000000002",
	})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	return alice, bob
}

func TestNotifyAndMarkRead(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	alice, bob := newUsers(t, store)
	ctx := context.Background()

	n, err := svc.Notify(ctx, notification.Notification{
		UserID:  alice.ID,
		Title:   "Welcome",
		Message: "Your wallet is connected",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.Type != notification.TypeSystem || n.Priority != notification.PriorityNormal {
		t.Fatalf("defaults not applied: %+v", n)
	}

	unread, err := svc.List(ctx, alice.ID, true, 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 1 {
		t.Fatalf("unread = %d, want 1", len(unread))
	}

	// Only the owner may mark a notification read.
	if _, err := svc.MarkRead(ctx, bob.ID, n.ID); err == nil {
		t.Fatalf("expected error marking someone else's notification")
	}

	read, err := svc.MarkRead(ctx, alice.ID, n.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read {
		t.Fatalf("notification not marked read")
	}

	unread, err = svc.List(ctx, alice.ID, true, 0)
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("unread = %d, want 0", len(unread))
	}
}

func TestMarkAllRead(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	alice, _ := newUsers(t, store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Notify(ctx, notification.Notification{
			UserID: alice.ID,
			Title:  "Update",
		}); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}

	count, err := svc.MarkAllRead(ctx, alice.ID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 3 {
		t.Fatalf("marked %d, want 3", count)
	}
}

func TestSubscribe(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	alice, bob := newUsers(t, store)
	ctx := context.Background()

	ch, cancel := svc.Subscribe(alice.ID)
	defer cancel()

	if _, err := svc.Notify(ctx, notification.Notification{UserID: bob.ID, Title: "Other"}); err != nil {
		t.Fatalf("notify bob: %v", err)
	}
	sent, err := svc.Notify(ctx, notification.Notification{UserID: alice.ID, Title: "Live"})
	if err != nil {
		t.Fatalf("notify alice: %v", err)
	}

	select {
	case got := <-ch:
		if got.ID != sent.ID {
			t.Fatalf("received %s, want %s", got.ID, sent.ID)
		}
	default:
		t.Fatalf("expected live notification on channel")
	}

	cancel()
	if _, err := svc.Notify(ctx, notification.Notification{UserID: alice.ID, Title: "After"}); err != nil {
		t.Fatalf("notify after cancel: %v", err)
	}
	select {
	case n, ok := <-ch:
		if ok {
			t.Fatalf("unexpected delivery after cancel: %+v", n)
		}
	default:
	}
}
