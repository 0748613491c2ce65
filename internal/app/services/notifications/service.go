// Package notifications manages user-facing marketplace notifications and
// fan-out to live subscribers.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hydrochain/marketplace/internal/app/domain/notification"
	"github.com/hydrochain/marketplace/internal/app/storage"
	"github.com/hydrochain/marketplace/pkg/logger"
)

// Service stores notifications and pushes them to live subscribers.
type Service struct {
	store storage.NotificationStore
	log   *logger.Logger

	mu          sync.Mutex
	subscribers map[string]map[int]chan notification.Notification
	nextSubID   int
}

// New constructs a notification service.
func New(store storage.NotificationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("notifications")
	}
	return &Service{
		store:       store,
		log:         log,
		subscribers: make(map[string]map[int]chan notification.Notification),
	}
}

// Notify creates a notification for a user and fans it out to any live
// subscribers. Delivery to subscribers is best effort.
func (s *Service) Notify(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if n.UserID == "" {
		return notification.Notification{}, fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(n.Title) == "" {
		return notification.Notification{}, fmt.Errorf("title is required")
	}
	if n.Type == "" {
		n.Type = notification.TypeSystem
	}
	if n.Priority == "" {
		n.Priority = notification.PriorityNormal
	}

	n, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return notification.Notification{}, err
	}

	s.mu.Lock()
	for _, ch := range s.subscribers[n.UserID] {
		select {
		case ch <- n:
		default:
		}
	}
	s.mu.Unlock()

	s.log.WithField("user_id", n.UserID).
		WithField("type", n.Type).
		Debug("notification created")
	return n, nil
}

// List returns notifications for a user, newest first.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]notification.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one notification as read. Only the owner may mark it.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (notification.Notification, error) {
	n, err := s.store.GetNotification(ctx, notificationID)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, fmt.Errorf("notification %s does not belong to user", notificationID)
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	return s.store.UpdateNotification(ctx, n)
}

// MarkAllRead marks every unread notification for a user as read and returns
// how many were updated.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	unread, err := s.store.ListNotifications(ctx, userID, true, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range unread {
		n.Read = true
		if _, err := s.store.UpdateNotification(ctx, n); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Subscribe registers a live notification channel for a user. The returned
// cancel function must be called to release the subscription.
func (s *Service) Subscribe(userID string) (<-chan notification.Notification, func()) {
	ch := make(chan notification.Notification, 16)

	s.mu.Lock()
	if s.subscribers[userID] == nil {
		s.subscribers[userID] = make(map[int]chan notification.Notification)
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[userID][id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs := s.subscribers[userID]; subs != nil {
			delete(subs, id)
			if len(subs) == 0 {
				delete(s.subscribers, userID)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
