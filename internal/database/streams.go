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

func (s *Service) NextStreamId(ctx context.Context) (uint32, error) {
	return s.nextCounter(ctx, counterStreams)
}

// SaveStream inserts or updates the stream row and one row per recipient.
// Immutable columns (sender, asset, start_time, rate, position) are only
// written on insert.
func (s *Service) SaveStream(ctx context.Context, stream *models.Stream) error {
	startTime, err := uint64ToInt64(stream.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time for stream %d: %w", stream.Id, err)
	}

	return withinTx(ctx, s.db, func(ctx context.Context) error {
		ex := conn(ctx, s.db)

		_, err := ex.ExecContext(ctx, queryUpsertStream,
			stream.Id, stream.Sender, stream.Asset, stream.Deposit.String(), startTime,
			stream.IsActive, stream.Title, stream.Description)
		if err != nil {
			return fmt.Errorf("failed to save stream %d: %w", stream.Id, err)
		}

		for i, recipient := range stream.Recipients {
			var lastWithdraw any
			if ts, ok := stream.LastWithdraw[recipient]; ok {
				v, err := uint64ToInt64(ts)
				if err != nil {
					return fmt.Errorf("invalid last withdraw for %s: %w", recipient, err)
				}
				lastWithdraw = v
			}

			var totalWithdrawn any
			if total, ok := stream.TotalWithdrawn[recipient]; ok {
				totalWithdrawn = total.String()
			}

			_, err := ex.ExecContext(ctx, queryUpsertStreamRecipient,
				stream.Id, i, recipient, stream.RateOf(recipient).String(), lastWithdraw, totalWithdrawn)
			if err != nil {
				return fmt.Errorf("failed to save recipient %s of stream %d: %w", recipient, stream.Id, err)
			}
		}
		return nil
	})
}

func (s *Service) GetStream(ctx context.Context, id uint32) (*models.Stream, error) {
	zap.L().Debug("Getting stream", zap.Uint32("stream_id", id))

	ex := conn(ctx, s.db)

	var (
		stream      models.Stream
		depositStr  string
		startTime   int64
		title       sql.NullString
		description sql.NullString
	)
	err := ex.QueryRowContext(ctx, queryGetStream, id).Scan(
		&stream.Id, &stream.Sender, &stream.Asset, &depositStr, &startTime,
		&stream.IsActive, &title, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", store.ErrStreamNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %d: %w", id, err)
	}

	if stream.Deposit, err = decimal.NewFromString(depositStr); err != nil {
		return nil, fmt.Errorf("failed to parse deposit '%s': %w", depositStr, err)
	}
	if stream.StartTime, err = int64ToUint64(startTime); err != nil {
		return nil, fmt.Errorf("invalid start time for stream %d: %w", id, err)
	}
	stream.Title = nullableString(title)
	stream.Description = nullableString(description)

	stream.Rates = make(map[string]decimal.Decimal)
	stream.LastWithdraw = make(map[string]uint64)
	stream.TotalWithdrawn = make(map[string]decimal.Decimal)

	rows, err := ex.QueryContext(ctx, queryGetStreamRecipients, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipients of stream %d: %w", id, err)
	}
	defer closeRows(rows)

	for rows.Next() {
		var (
			recipient      string
			rateStr        string
			lastWithdraw   sql.NullInt64
			totalWithdrawn sql.NullString
		)
		if err := rows.Scan(&recipient, &rateStr, &lastWithdraw, &totalWithdrawn); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}

		rate, err := decimal.NewFromString(rateStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rate '%s': %w", rateStr, err)
		}
		stream.Recipients = append(stream.Recipients, recipient)
		stream.Rates[recipient] = rate

		if lastWithdraw.Valid {
			ts, err := int64ToUint64(lastWithdraw.Int64)
			if err != nil {
				return nil, fmt.Errorf("invalid last withdraw for %s: %w", recipient, err)
			}
			stream.LastWithdraw[recipient] = ts
		}
		if totalWithdrawn.Valid {
			total, err := decimal.NewFromString(totalWithdrawn.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse total withdrawn '%s': %w", totalWithdrawn.String, err)
			}
			stream.TotalWithdrawn[recipient] = total
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipient rows: %w", err)
	}

	return &stream, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
