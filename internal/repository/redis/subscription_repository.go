package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

// Subscriptions for a community live in one hash keyed by user id, so a
// fan-out costs a single HGETALL.
type redisSubscriptionRepository struct {
	cli *redis.Client
	l   logger.Logger
}

// A record without notify_on_leave predates the flag and means true.
type subscriptionRecord struct {
	NotifyOnLeave *bool     `json:"notify_on_leave,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewRedisSubscriptionRepository(cli *redis.Client, l logger.Logger) subscription.Store {
	return &redisSubscriptionRepository{
		cli: cli,
		l:   l,
	}
}

func (r *redisSubscriptionRepository) ListSubscribers(ctx context.Context, cID string) ([]domain.Subscription, error) {
	fields, err := r.cli.HGetAll(ctx, r.subscribersKey(cID)).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSubscriptionRepository.ListSubscribers: %v", err)
		return nil, err
	}

	subs := make([]domain.Subscription, 0, len(fields))
	for uID, raw := range fields {
		sub, err := r.decode(cID, uID, raw)
		if err != nil {
			r.l.Warnf(ctx, "redisSubscriptionRepository.ListSubscribers: skipping %s: %v", uID, err)
			continue
		}
		subs = append(subs, sub)
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].UserID < subs[j].UserID })
	return subs, nil
}

func (r *redisSubscriptionRepository) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription

	iter := r.cli.Scan(ctx, 0, subscribersKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		cID, ok := communityFromKey(iter.Val())
		if !ok {
			continue
		}
		community, err := r.ListSubscribers(ctx, cID)
		if err != nil {
			return nil, err
		}
		subs = append(subs, community...)
	}
	if err := iter.Err(); err != nil {
		r.l.Errorf(ctx, "redisSubscriptionRepository.ListAll: %v", err)
		return nil, err
	}

	sort.SliceStable(subs, func(i, j int) bool { return subs[i].CommunityID < subs[j].CommunityID })
	return subs, nil
}

func (r *redisSubscriptionRepository) Get(ctx context.Context, cID, uID string) (domain.Subscription, error) {
	raw, err := r.cli.HGet(ctx, r.subscribersKey(cID), uID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Subscription{}, appErrors.ErrSubscriptionNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "redisSubscriptionRepository.Get: %v", err)
		return domain.Subscription{}, err
	}

	return r.decode(cID, uID, raw)
}

func (r *redisSubscriptionRepository) Upsert(ctx context.Context, sub domain.Subscription) error {
	data, err := json.Marshal(subscriptionRecord{
		NotifyOnLeave: &sub.NotifyOnLeave,
		UpdatedAt:     sub.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	if err := r.cli.HSet(ctx, r.subscribersKey(sub.CommunityID), sub.UserID, data).Err(); err != nil {
		r.l.Errorf(ctx, "redisSubscriptionRepository.Upsert: %v", err)
		return err
	}

	r.l.Debugf(ctx, "Subscription saved",
		"community_id", sub.CommunityID,
		"user_id", sub.UserID,
		"notify_on_leave", sub.NotifyOnLeave,
	)

	return nil
}

func (r *redisSubscriptionRepository) Delete(ctx context.Context, cID, uID string) error {
	removed, err := r.cli.HDel(ctx, r.subscribersKey(cID), uID).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisSubscriptionRepository.Delete: %v", err)
		return err
	}

	if removed == 0 {
		return appErrors.ErrSubscriptionNotFound
	}

	return nil
}

func (r *redisSubscriptionRepository) decode(cID, uID, raw string) (domain.Subscription, error) {
	var rec subscriptionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Subscription{}, fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	notifyOnLeave := true
	if rec.NotifyOnLeave != nil {
		notifyOnLeave = *rec.NotifyOnLeave
	}

	return domain.Subscription{
		UserID:        uID,
		CommunityID:   cID,
		NotifyOnLeave: notifyOnLeave,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

const (
	keyPrefix             = "vcping:"
	keySuffix             = ":subscribers"
	subscribersKeyPattern = keyPrefix + "*" + keySuffix
)

func (r *redisSubscriptionRepository) subscribersKey(cID string) string {
	return keyPrefix + cID + keySuffix
}

func communityFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return "", false
	}
	cID := strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix)
	return cID, cID != ""
}
