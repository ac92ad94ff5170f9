// Package repository stores subscriptions in SQLite, one row per
// (community, user) pair.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/vcping/internal/domain"
	appErrors "github.com/vogiaan1904/vcping/internal/errors"
	"github.com/vogiaan1904/vcping/internal/subscription"
	"github.com/vogiaan1904/vcping/pkg/logger"
)

type sqliteSubscriptionRepository struct {
	db *sql.DB
	l  logger.Logger
}

func NewSQLiteSubscriptionRepository(db *sql.DB, l logger.Logger) subscription.Store {
	return &sqliteSubscriptionRepository{
		db: db,
		l:  l,
	}
}

func (r *sqliteSubscriptionRepository) ListSubscribers(ctx context.Context, cID string) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, notify_on_leave, updated_at
		   FROM subscriptions
		  WHERE community_id = ?
		  ORDER BY user_id`,
		cID,
	)
	if err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.ListSubscribers: %v", err)
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub := domain.Subscription{CommunityID: cID}
		var updatedAt int64
		if err := rows.Scan(&sub.UserID, &sub.NotifyOnLeave, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.UpdatedAt = fromMillis(updatedAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.ListSubscribers: %v", err)
		return nil, err
	}

	return subs, nil
}

func (r *sqliteSubscriptionRepository) ListAll(ctx context.Context) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT community_id, user_id, notify_on_leave, updated_at
		   FROM subscriptions
		  ORDER BY community_id, user_id`,
	)
	if err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.ListAll: %v", err)
		return nil, err
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		var updatedAt int64
		if err := rows.Scan(&sub.CommunityID, &sub.UserID, &sub.NotifyOnLeave, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		sub.UpdatedAt = fromMillis(updatedAt)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.ListAll: %v", err)
		return nil, err
	}

	return subs, nil
}

func (r *sqliteSubscriptionRepository) Get(ctx context.Context, cID, uID string) (domain.Subscription, error) {
	sub := domain.Subscription{CommunityID: cID, UserID: uID}
	var updatedAt int64

	err := r.db.QueryRowContext(ctx,
		`SELECT notify_on_leave, updated_at
		   FROM subscriptions
		  WHERE community_id = ? AND user_id = ?`,
		cID, uID,
	).Scan(&sub.NotifyOnLeave, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscription{}, appErrors.ErrSubscriptionNotFound
	}
	if err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.Get: %v", err)
		return domain.Subscription{}, err
	}

	sub.UpdatedAt = fromMillis(updatedAt)
	return sub, nil
}

func (r *sqliteSubscriptionRepository) Upsert(ctx context.Context, sub domain.Subscription) error {
	updatedAt := sub.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (community_id, user_id, notify_on_leave, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (community_id, user_id) DO UPDATE SET
		   notify_on_leave = excluded.notify_on_leave,
		   updated_at = excluded.updated_at`,
		sub.CommunityID, sub.UserID, sub.NotifyOnLeave, toMillis(updatedAt),
	)
	if err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.Upsert: %v", err)
		return err
	}

	return nil
}

func (r *sqliteSubscriptionRepository) Delete(ctx context.Context, cID, uID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE community_id = ? AND user_id = ?`,
		cID, uID,
	)
	if err != nil {
		r.l.Errorf(ctx, "sqliteSubscriptionRepository.Delete: %v", err)
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrSubscriptionNotFound
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}
