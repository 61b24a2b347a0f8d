package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) NextSubscriptionId(ctx context.Context) (uint32, error) {
	return s.nextCounter(ctx, counterSubscriptions)
}

func (s *Service) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	interval, err := uint64ToInt64(sub.IntervalSeconds)
	if err != nil {
		return fmt.Errorf("invalid interval for subscription %d: %w", sub.Id, err)
	}
	nextPayment, err := uint64ToInt64(sub.NextPaymentTime)
	if err != nil {
		return fmt.Errorf("invalid next payment time for subscription %d: %w", sub.Id, err)
	}

	_, err = conn(ctx, s.db).ExecContext(ctx, queryUpsertSubscription,
		sub.Id, sub.Subscriber, sub.Receiver, sub.Asset, sub.AmountPerInterval.String(), interval,
		nextPayment, sub.Balance.String(), sub.Active, sub.Title, sub.Description)
	if err != nil {
		return fmt.Errorf("failed to save subscription %d: %w", sub.Id, err)
	}
	return nil
}

func (s *Service) GetSubscription(ctx context.Context, id uint32) (*models.Subscription, error) {
	zap.L().Debug("Getting subscription", zap.Uint32("subscription_id", id))

	sub, err := scanSubscription(conn(ctx, s.db).QueryRowContext(ctx, queryGetSubscription, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", store.ErrSubscriptionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription %d: %w", id, err)
	}
	return sub, nil
}

// ListDueSubscriptions returns active subscriptions whose next payment time
// has been reached, ordered by (next_payment_time, id) and starting after the
// cursor.
func (s *Service) ListDueSubscriptions(ctx context.Context, now uint64, after models.DueCursor, limit int) ([]models.Subscription, error) {
	cutoff, err := uint64ToInt64(now)
	if err != nil {
		return nil, fmt.Errorf("invalid due cutoff: %w", err)
	}
	afterTime, err := uint64ToInt64(after.NextPaymentTime)
	if err != nil {
		return nil, fmt.Errorf("invalid due cursor: %w", err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := conn(ctx, s.db).QueryContext(ctx, queryListDueSubscriptions, cutoff, afterTime, afterTime, after.Id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due subscriptions: %w", err)
	}
	defer closeRows(rows)

	var subs []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	zap.L().Debug("Listed due subscriptions", zap.Uint64("now", now), zap.Int("count", len(subs)))
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*models.Subscription, error) {
	var (
		sub         models.Subscription
		amountStr   string
		balanceStr  string
		interval    int64
		nextPayment int64
		title       sql.NullString
		description sql.NullString
	)
	err := row.Scan(&sub.Id, &sub.Subscriber, &sub.Receiver, &sub.Asset, &amountStr, &interval,
		&nextPayment, &balanceStr, &sub.Active, &title, &description)
	if err != nil {
		return nil, err
	}

	if sub.AmountPerInterval, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse amount per interval '%s': %w", amountStr, err)
	}
	if sub.Balance, err = decimal.NewFromString(balanceStr); err != nil {
		return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}
	if sub.IntervalSeconds, err = int64ToUint64(interval); err != nil {
		return nil, err
	}
	if sub.NextPaymentTime, err = int64ToUint64(nextPayment); err != nil {
		return nil, err
	}
	sub.Title = nullableString(title)
	sub.Description = nullableString(description)
	return &sub, nil
}
