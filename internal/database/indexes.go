package database

import (
	"context"
	"fmt"

	"stream-escrow-go/internal/store"
)

const (
	counterStreams       = "streams"
	counterSubscriptions = "subscriptions"
)

// nextCounter increments and returns a named id counter. The first value is 1.
func (s *Service) nextCounter(ctx context.Context, name string) (uint32, error) {
	var value int64
	if err := conn(ctx, s.db).QueryRowContext(ctx, queryNextCounterValue, name).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance %s counter: %w", name, err)
	}
	id, err := int64ToUint32(value)
	if err != nil {
		return 0, fmt.Errorf("%s counter exhausted: %w", name, err)
	}
	return id, nil
}

// AppendIndex adds id to the end of the user's list of the given kind.
func (s *Service) AppendIndex(ctx context.Context, kind store.IndexKind, user string, id uint32) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown index kind %q", kind)
	}
	_, err := conn(ctx, s.db).ExecContext(ctx, queryAppendUserIndex, string(kind), user, id, string(kind), user)
	if err != nil {
		return fmt.Errorf("failed to append %s index for %s: %w", kind, user, err)
	}
	return nil
}

// ListIndex returns the user's ids of the given kind in insertion order.
func (s *Service) ListIndex(ctx context.Context, kind store.IndexKind, user string) ([]uint32, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}

	rows, err := conn(ctx, s.db).QueryContext(ctx, queryListUserIndex, string(kind), user)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s index for %s: %w", kind, user, err)
	}
	defer closeRows(rows)

	ids := []uint32{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan index entry: %w", err)
		}
		v, err := int64ToUint32(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}
	return ids, nil
}
