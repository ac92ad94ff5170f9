package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// Store persists subscriptions. Get returns ErrSubscriptionNotFound when the
// user is not subscribed to the community.
type Store interface {
	ListSubscribers(ctx context.Context, communityID string) ([]domain.Subscription, error)
	// ListAll returns every subscription ordered by community then user.
	ListAll(ctx context.Context) ([]domain.Subscription, error)
	Get(ctx context.Context, communityID, userID string) (domain.Subscription, error)
	Upsert(ctx context.Context, sub domain.Subscription) error
	Delete(ctx context.Context, communityID, userID string) error
}

type ToggleResult int

const (
	Subscribed ToggleResult = iota
	Updated
	Unsubscribed
)

func (r ToggleResult) Message() string {
	switch r {
	case Subscribed:
		return "You have been added to the ping list!"
	case Updated:
		return "Your disconnect message setting has been updated!"
	case Unsubscribed:
		return "You have been removed from the ping list!"
	default:
		return ""
	}
}

func (r ToggleResult) String() string {
	switch r {
	case Subscribed:
		return "subscribed"
	case Updated:
		return "updated"
	case Unsubscribed:
		return "unsubscribed"
	default:
		return "unknown"
	}
}

type Service interface {
	Toggle(ctx context.Context, communityID, userID string, notifyOnLeave *bool) (ToggleResult, error)
	Upsert(ctx context.Context, communityID, userID string, notifyOnLeave bool) (domain.Subscription, error)
	Delete(ctx context.Context, communityID, userID string) error
	ListSubscribers(ctx context.Context, communityID string) ([]domain.Subscription, error)
	ListAll(ctx context.Context) ([]domain.Subscription, error)
	Import(ctx context.Context, subs []domain.Subscription) (int, error)
}

type service struct {
	store Store
	now   func() time.Time
	l     logger.Logger
}

func NewService(store Store, l logger.Logger) Service {
	return &service{
		store: store,
		now:   time.Now,
		l:     l,
	}
}

// Toggle flips a user's subscription. An unsubscribed user is subscribed
// with notifyOnLeave (true when nil). A subscribed user has the flag
// updated when one is given, and is unsubscribed otherwise.
func (s *service) Toggle(ctx context.Context, communityID, userID string, notifyOnLeave *bool) (ToggleResult, error) {
	if communityID == "" || userID == "" {
		return 0, appErrors.ErrInvalidSubscription
	}

	existing, err := s.store.Get(ctx, communityID, userID)
	if errors.Is(err, appErrors.ErrSubscriptionNotFound) {
		flag := true
		if notifyOnLeave != nil {
			flag = *notifyOnLeave
		}
		if _, err := s.Upsert(ctx, communityID, userID, flag); err != nil {
			return 0, err
		}
		return Subscribed, nil
	}
	if err != nil {
		s.l.Errorf(ctx, "subscription.service.Toggle: %v", err)
		return 0, fmt.Errorf("failed to load subscription: %w", err)
	}

	if notifyOnLeave != nil {
		existing.NotifyOnLeave = *notifyOnLeave
		existing.UpdatedAt = s.now().UTC()
		if err := s.store.Upsert(ctx, existing); err != nil {
			s.l.Errorf(ctx, "subscription.service.Toggle: %v", err)
			return 0, fmt.Errorf("failed to update subscription: %w", err)
		}
		s.l.Infof(ctx, "User %s set leave notifications to %t in community %s", userID, existing.NotifyOnLeave, communityID)
		return Updated, nil
	}

	if err := s.Delete(ctx, communityID, userID); err != nil {
		return 0, err
	}
	return Unsubscribed, nil
}

func (s *service) Upsert(ctx context.Context, communityID, userID string, notifyOnLeave bool) (domain.Subscription, error) {
	if communityID == "" || userID == "" {
		return domain.Subscription{}, appErrors.ErrInvalidSubscription
	}

	sub := domain.Subscription{
		UserID:        userID,
		CommunityID:   communityID,
		NotifyOnLeave: notifyOnLeave,
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.store.Upsert(ctx, sub); err != nil {
		s.l.Errorf(ctx, "subscription.service.Upsert: %v", err)
		return domain.Subscription{}, fmt.Errorf("failed to save subscription: %w", err)
	}

	s.l.Infof(ctx, "User %s subscribed to community %s", userID, communityID)
	return sub, nil
}

func (s *service) Delete(ctx context.Context, communityID, userID string) error {
	if err := s.store.Delete(ctx, communityID, userID); err != nil {
		if !errors.Is(err, appErrors.ErrSubscriptionNotFound) {
			s.l.Errorf(ctx, "subscription.service.Delete: %v", err)
		}
		return err
	}

	s.l.Infof(ctx, "User %s unsubscribed from community %s", userID, communityID)
	return nil
}

func (s *service) ListSubscribers(ctx context.Context, communityID string) ([]domain.Subscription, error) {
	subs, err := s.store.ListSubscribers(ctx, communityID)
	if err != nil {
		s.l.Errorf(ctx, "subscription.service.ListSubscribers: %v", err)
		return nil, err
	}
	return subs, nil
}

func (s *service) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	subs, err := s.store.ListAll(ctx)
	if err != nil {
		s.l.Errorf(ctx, "subscription.service.ListAll: %v", err)
		return nil, err
	}
	return subs, nil
}

// Import upserts subs in order and reports how many were written. It stops
// at the first invalid record or store failure.
func (s *service) Import(ctx context.Context, subs []domain.Subscription) (int, error) {
	for i, sub := range subs {
		if sub.CommunityID == "" || sub.UserID == "" {
			return i, fmt.Errorf("record %d: %w", i, appErrors.ErrInvalidSubscription)
		}
		if sub.UpdatedAt.IsZero() {
			sub.UpdatedAt = s.now().UTC()
		}
		if err := s.store.Upsert(ctx, sub); err != nil {
			s.l.Errorf(ctx, "subscription.service.Import: %v", err)
			return i, fmt.Errorf("failed to import record %d: %w", i, err)
		}
	}

	s.l.Infof(ctx, "Imported %d subscriptions", len(subs))
	return len(subs), nil
}
