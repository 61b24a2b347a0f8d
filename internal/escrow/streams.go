package escrow

import (
	"context"
	"errors"
	"fmt"

	"stream-escrow-go/internal/amount"
	"stream-escrow-go/internal/events"
	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CreateStreamParams struct {
	Sender     string
	Recipients []string
	Asset      string
	// AmountsPerPeriod[i] is what Recipients[i] earns every PeriodSeconds.
	AmountsPerPeriod []decimal.Decimal
	PeriodSeconds    uint64
	Deposit          decimal.Decimal
	Title            string
	Description      string
}

// CreateStream escrows the deposit and opens a stream starting now.
func (e *Engine) CreateStream(ctx context.Context, params CreateStreamParams) (uint32, error) {
	var id uint32
	err := e.execute(ctx, "create_stream", func(ctx context.Context, op *operation) error {
		if err := e.authorize(ctx, params.Sender); err != nil {
			return err
		}

		asset, err := e.resolveAsset(params.Asset)
		if err != nil {
			return err
		}
		rates, err := validateStreamParams(params)
		if err != nil {
			return err
		}

		if err := e.transfer(ctx, params.Sender, e.holdingAccount, asset, params.Deposit, "stream deposit"); err != nil {
			return err
		}

		id, err = e.store.NextStreamId(ctx)
		if err != nil {
			return fmt.Errorf("unable to allocate stream id: %w", err)
		}

		recipients := append([]string(nil), params.Recipients...)
		totals := make(map[string]decimal.Decimal, len(recipients))
		for _, r := range recipients {
			totals[r] = amount.Zero
		}

		stream := &models.Stream{
			Id:             id,
			Sender:         params.Sender,
			Recipients:     recipients,
			Asset:          asset,
			Rates:          rates,
			Deposit:        params.Deposit,
			StartTime:      op.now,
			LastWithdraw:   map[string]uint64{},
			TotalWithdrawn: totals,
			IsActive:       true,
			Title:          optionalText(params.Title),
			Description:    optionalText(params.Description),
		}
		if err := e.store.SaveStream(ctx, stream); err != nil {
			return fmt.Errorf("unable to save stream %d: %w", id, err)
		}

		if err := e.store.AppendIndex(ctx, store.IndexSentStreams, params.Sender, id); err != nil {
			return fmt.Errorf("unable to index stream %d: %w", id, err)
		}
		for _, r := range recipients {
			if err := e.store.AppendIndex(ctx, store.IndexReceivedStreams, r, id); err != nil {
				return fmt.Errorf("unable to index stream %d: %w", id, err)
			}
		}

		op.moved("stream_deposit", asset, params.Deposit)
		op.emit(events.TopicStreamCreated, events.StreamCreated{
			StreamId:   id,
			Sender:     params.Sender,
			Recipients: recipients,
			Asset:      asset,
			Deposit:    params.Deposit,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("Stream created",
		zap.Uint32("stream_id", id),
		zap.String("sender", params.Sender),
		zap.Int("recipients", len(params.Recipients)),
		zap.String("deposit", params.Deposit.String()))
	return id, nil
}

func validateStreamParams(params CreateStreamParams) (map[string]decimal.Decimal, error) {
	if len(params.Recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidParameters)
	}
	if len(params.Recipients) != len(params.AmountsPerPeriod) {
		return nil, fmt.Errorf("%w: %d recipients but %d amounts",
			ErrInvalidParameters, len(params.Recipients), len(params.AmountsPerPeriod))
	}
	if params.PeriodSeconds == 0 {
		return nil, fmt.Errorf("%w: period must be positive", ErrInvalidParameters)
	}
	if err := requirePositive("deposit", params.Deposit); err != nil {
		return nil, err
	}

	rates := make(map[string]decimal.Decimal, len(params.Recipients))
	for i, r := range params.Recipients {
		if r == "" {
			return nil, fmt.Errorf("%w: recipient %d is empty", ErrInvalidParameters, i)
		}
		if _, seen := rates[r]; seen {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRecipient, r)
		}
		if err := requirePositive("amount per period", params.AmountsPerPeriod[i]); err != nil {
			return nil, err
		}
		rate := deriveRate(params.AmountsPerPeriod[i], params.PeriodSeconds)
		if !rate.IsPositive() {
			return nil, fmt.Errorf("%w: %s per %ds for %s",
				ErrRateTooLow, params.AmountsPerPeriod[i].String(), params.PeriodSeconds, r)
		}
		rates[r] = rate
	}
	return rates, nil
}

func requirePositive(name string, d decimal.Decimal) error {
	if err := amount.Validate(d); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParameters, name, err)
	}
	if !d.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidParameters, name, d.String())
	}
	return nil
}

// WithdrawStream pays recipient everything accrued since their last
// withdrawal, capped by what remains of the shared deposit. Withdrawing twice
// in the same second returns zero without error.
func (e *Engine) WithdrawStream(ctx context.Context, id uint32, recipient string) (decimal.Decimal, error) {
	payable := amount.Zero
	var exhausted bool
	err := e.execute(ctx, "withdraw_stream", func(ctx context.Context, op *operation) error {
		stream, err := e.loadStream(ctx, id)
		if err != nil {
			return err
		}
		if !stream.IsActive {
			return fmt.Errorf("%w: stream %d", ErrStreamInactive, id)
		}
		if !stream.HasRecipient(recipient) {
			return fmt.Errorf("%w: %s on stream %d", ErrNotRecipient, recipient, id)
		}

		if op.now <= stream.LastWithdrawOf(recipient) {
			return nil
		}

		remaining := remainingDeposit(stream, op.now)
		payable = amount.Min2(accrued(stream, recipient, op.now), remaining)
		if !payable.IsPositive() {
			payable = amount.Zero
			return fmt.Errorf("%w: stream %d for %s", ErrNothingToWithdraw, id, recipient)
		}

		if err := e.transfer(ctx, e.holdingAccount, recipient, stream.Asset, payable, "stream withdrawal"); err != nil {
			return err
		}

		if stream.LastWithdraw == nil {
			stream.LastWithdraw = map[string]uint64{}
		}
		if stream.TotalWithdrawn == nil {
			stream.TotalWithdrawn = map[string]decimal.Decimal{}
		}
		stream.LastWithdraw[recipient] = op.now
		stream.TotalWithdrawn[recipient] = amount.Add(stream.TotalWithdrawnOf(recipient), payable)
		if !amount.Sub(remaining, payable).IsPositive() {
			stream.IsActive = false
			exhausted = true
		}

		if err := e.store.SaveStream(ctx, stream); err != nil {
			return fmt.Errorf("unable to save stream %d: %w", id, err)
		}

		op.moved("stream_withdrawal", stream.Asset, payable)
		op.emit(events.TopicStreamWithdrawn, events.StreamWithdrawn{
			StreamId:  id,
			Recipient: recipient,
			Amount:    payable,
			Exhausted: exhausted,
		})
		return nil
	})
	if err != nil {
		return amount.Zero, err
	}

	if payable.IsPositive() {
		zap.L().Info("Stream withdrawal",
			zap.Uint32("stream_id", id),
			zap.String("recipient", recipient),
			zap.String("amount", payable.String()),
			zap.Bool("exhausted", exhausted))
	}
	return payable, nil
}

// CancelStream stops the stream and returns the undistributed deposit to the
// sender. Accrued but unclaimed amounts are not paid out to recipients.
func (e *Engine) CancelStream(ctx context.Context, id uint32) (decimal.Decimal, error) {
	refund := amount.Zero
	err := e.execute(ctx, "cancel_stream", func(ctx context.Context, op *operation) error {
		stream, err := e.loadStream(ctx, id)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, stream.Sender); err != nil {
			return err
		}
		if !stream.IsActive {
			return fmt.Errorf("%w: stream %d", ErrStreamInactive, id)
		}

		remaining := remainingDeposit(stream, op.now)
		if remaining.IsPositive() {
			if err := e.transfer(ctx, e.holdingAccount, stream.Sender, stream.Asset, remaining, "stream refund"); err != nil {
				return err
			}
			refund = remaining
			op.moved("stream_refund", stream.Asset, refund)
		}

		stream.IsActive = false
		stream.Deposit = amount.Zero
		if err := e.store.SaveStream(ctx, stream); err != nil {
			return fmt.Errorf("unable to save stream %d: %w", id, err)
		}

		op.emit(events.TopicStreamCancelled, events.StreamCancelled{
			StreamId: id,
			Sender:   stream.Sender,
			Refund:   refund,
		})
		return nil
	})
	if err != nil {
		return amount.Zero, err
	}

	zap.L().Info("Stream cancelled",
		zap.Uint32("stream_id", id),
		zap.String("refund", refund.String()))
	return refund, nil
}

// GetRecipientInfo reports a recipient's withdrawn total and current accrual.
func (e *Engine) GetRecipientInfo(ctx context.Context, id uint32, recipient string) (*models.RecipientInfo, error) {
	stream, err := e.loadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if !stream.HasRecipient(recipient) {
		return nil, fmt.Errorf("%w: %s on stream %d", ErrNotRecipient, recipient, id)
	}
	info := recipientInfo(stream, recipient, e.clock.Now())
	return &info, nil
}

// GetAllRecipientsInfo returns one snapshot per recipient, in recipient order,
// all computed at the same instant.
func (e *Engine) GetAllRecipientsInfo(ctx context.Context, id uint32) ([]models.RecipientInfo, error) {
	stream, err := e.loadStream(ctx, id)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	infos := make([]models.RecipientInfo, 0, len(stream.Recipients))
	for _, r := range stream.Recipients {
		infos = append(infos, recipientInfo(stream, r, now))
	}
	return infos, nil
}

func recipientInfo(stream *models.Stream, recipient string, now uint64) models.RecipientInfo {
	return models.RecipientInfo{
		Recipient:      recipient,
		TotalWithdrawn: stream.TotalWithdrawnOf(recipient),
		Accrued:        cappedAccrual(stream, recipient, now),
		LastWithdraw:   stream.LastWithdrawOf(recipient),
	}
}

func (e *Engine) loadStream(ctx context.Context, id uint32) (*models.Stream, error) {
	stream, err := e.store.GetStream(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrStreamNotFound, id)
		}
		return nil, fmt.Errorf("unable to load stream %d: %w", id, err)
	}
	return stream, nil
}
