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

type CreateSubscriptionParams struct {
	Subscriber        string
	Receiver          string
	Asset             string
	AmountPerInterval decimal.Decimal
	IntervalSeconds   uint64
	// FirstPaymentTime may lie in the past; the first charge then settles the backlog.
	FirstPaymentTime uint64
	Title            string
	Description      string
}

// CreateSubscription registers an empty subscription escrow. Funds arrive
// through DepositToSubscription.
func (e *Engine) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (uint32, error) {
	var id uint32
	err := e.execute(ctx, "create_subscription", func(ctx context.Context, op *operation) error {
		if err := e.authorize(ctx, params.Subscriber); err != nil {
			return err
		}

		asset, err := e.resolveAsset(params.Asset)
		if err != nil {
			return err
		}
		if params.Receiver == "" {
			return fmt.Errorf("%w: receiver is required", ErrInvalidParameters)
		}
		if err := requirePositive("amount per interval", params.AmountPerInterval); err != nil {
			return err
		}
		if params.IntervalSeconds == 0 {
			return fmt.Errorf("%w: interval must be positive", ErrInvalidParameters)
		}
		if params.FirstPaymentTime > maxScheduleTime {
			return fmt.Errorf("%w: first payment time %d", ErrScheduleOverflow, params.FirstPaymentTime)
		}

		id, err = e.store.NextSubscriptionId(ctx)
		if err != nil {
			return fmt.Errorf("unable to allocate subscription id: %w", err)
		}

		sub := &models.Subscription{
			Id:                id,
			Subscriber:        params.Subscriber,
			Receiver:          params.Receiver,
			Asset:             asset,
			AmountPerInterval: params.AmountPerInterval,
			IntervalSeconds:   params.IntervalSeconds,
			NextPaymentTime:   params.FirstPaymentTime,
			Balance:           amount.Zero,
			Active:            true,
			Title:             optionalText(params.Title),
			Description:       optionalText(params.Description),
		}
		if err := e.store.SaveSubscription(ctx, sub); err != nil {
			return fmt.Errorf("unable to save subscription %d: %w", id, err)
		}

		if err := e.store.AppendIndex(ctx, store.IndexSubscriberSubscriptions, params.Subscriber, id); err != nil {
			return fmt.Errorf("unable to index subscription %d: %w", id, err)
		}
		if err := e.store.AppendIndex(ctx, store.IndexReceiverSubscriptions, params.Receiver, id); err != nil {
			return fmt.Errorf("unable to index subscription %d: %w", id, err)
		}

		op.emit(events.TopicSubscriptionCreated, events.SubscriptionCreated{
			SubscriptionId:    id,
			Subscriber:        params.Subscriber,
			Receiver:          params.Receiver,
			Asset:             asset,
			AmountPerInterval: params.AmountPerInterval,
			IntervalSeconds:   params.IntervalSeconds,
			NextPaymentTime:   params.FirstPaymentTime,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("Subscription created",
		zap.Uint32("subscription_id", id),
		zap.String("subscriber", params.Subscriber),
		zap.String("receiver", params.Receiver),
		zap.Uint64("next_payment_time", params.FirstPaymentTime))
	return id, nil
}

// DepositToSubscription moves funds from the subscriber into the
// subscription's isolated balance.
func (e *Engine) DepositToSubscription(ctx context.Context, id uint32, value decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := e.execute(ctx, "deposit_subscription", func(ctx context.Context, op *operation) error {
		sub, err := e.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, sub.Subscriber); err != nil {
			return err
		}
		if !sub.Active {
			return fmt.Errorf("%w: subscription %d", ErrSubscriptionInactive, id)
		}
		if err := requirePositive("deposit", value); err != nil {
			return err
		}

		if err := e.transfer(ctx, sub.Subscriber, e.holdingAccount, sub.Asset, value, "subscription deposit"); err != nil {
			return err
		}

		sub.Balance = amount.Add(sub.Balance, value)
		if err := e.store.SaveSubscription(ctx, sub); err != nil {
			return fmt.Errorf("unable to save subscription %d: %w", id, err)
		}
		balance = sub.Balance

		op.moved("subscription_deposit", sub.Asset, value)
		op.emit(events.TopicSubscriptionDeposited, events.SubscriptionDeposited{
			SubscriptionId: id,
			Amount:         value,
			Balance:        balance,
		})
		return nil
	})
	if err != nil {
		return amount.Zero, err
	}

	zap.L().Info("Subscription funded",
		zap.Uint32("subscription_id", id),
		zap.String("amount", value.String()),
		zap.String("balance", balance.String()))
	return balance, nil
}

// ChargeSubscription collects every interval that has come due since the
// last charge in one transfer to the receiver. Anyone may call it.
func (e *Engine) ChargeSubscription(ctx context.Context, id uint32) (*models.ChargeResult, error) {
	var result *models.ChargeResult
	err := e.execute(ctx, "charge_subscription", func(ctx context.Context, op *operation) error {
		sub, err := e.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		if !sub.Active {
			return fmt.Errorf("%w: subscription %d", ErrSubscriptionInactive, id)
		}
		if op.now < sub.NextPaymentTime {
			return fmt.Errorf("%w: subscription %d due at %d", ErrNotDueYet, id, sub.NextPaymentTime)
		}

		due := dueIntervals(op.now, sub.NextPaymentTime, sub.IntervalSeconds)
		charge := amount.Mul(sub.AmountPerInterval, amount.FromSeconds(due))
		if sub.Balance.LessThan(charge) {
			return fmt.Errorf("%w: subscription %d holds %s, %s due",
				ErrInsufficientEscrow, id, sub.Balance.String(), charge.String())
		}
		next, ok := advanceSchedule(sub.NextPaymentTime, due, sub.IntervalSeconds)
		if !ok {
			return fmt.Errorf("%w: subscription %d", ErrScheduleOverflow, id)
		}

		if err := e.transfer(ctx, e.holdingAccount, sub.Receiver, sub.Asset, charge, "subscription charge"); err != nil {
			return err
		}

		sub.Balance = amount.Sub(sub.Balance, charge)
		sub.NextPaymentTime = next
		if err := e.store.SaveSubscription(ctx, sub); err != nil {
			return fmt.Errorf("unable to save subscription %d: %w", id, err)
		}

		result = &models.ChargeResult{
			SubscriptionId:  id,
			DueIntervals:    due,
			Amount:          charge,
			NextPaymentTime: next,
			Balance:         sub.Balance,
		}
		op.moved("subscription_charge", sub.Asset, charge)
		op.emit(events.TopicSubscriptionCharged, events.SubscriptionCharged{
			SubscriptionId:  id,
			Receiver:        sub.Receiver,
			Amount:          charge,
			DueIntervals:    due,
			NextPaymentTime: next,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Subscription charged",
		zap.Uint32("subscription_id", id),
		zap.Uint64("due_intervals", result.DueIntervals),
		zap.String("amount", result.Amount.String()),
		zap.Uint64("next_payment_time", result.NextPaymentTime))
	return result, nil
}

// CancelSubscription refunds the whole remaining balance to the subscriber
// and deactivates the subscription.
func (e *Engine) CancelSubscription(ctx context.Context, id uint32) (decimal.Decimal, error) {
	refund := amount.Zero
	err := e.execute(ctx, "cancel_subscription", func(ctx context.Context, op *operation) error {
		sub, err := e.loadSubscription(ctx, id)
		if err != nil {
			return err
		}
		if err := e.authorize(ctx, sub.Subscriber); err != nil {
			return err
		}
		if !sub.Active {
			return fmt.Errorf("%w: subscription %d", ErrSubscriptionInactive, id)
		}

		if sub.Balance.IsPositive() {
			if err := e.transfer(ctx, e.holdingAccount, sub.Subscriber, sub.Asset, sub.Balance, "subscription refund"); err != nil {
				return err
			}
			refund = sub.Balance
			op.moved("subscription_refund", sub.Asset, refund)
		}

		sub.Balance = amount.Zero
		sub.Active = false
		if err := e.store.SaveSubscription(ctx, sub); err != nil {
			return fmt.Errorf("unable to save subscription %d: %w", id, err)
		}

		op.emit(events.TopicSubscriptionCancelled, events.SubscriptionCancelled{
			SubscriptionId: id,
			Subscriber:     sub.Subscriber,
			Refund:         refund,
		})
		return nil
	})
	if err != nil {
		return amount.Zero, err
	}

	zap.L().Info("Subscription cancelled",
		zap.Uint32("subscription_id", id),
		zap.String("refund", refund.String()))
	return refund, nil
}

func (e *Engine) loadSubscription(ctx context.Context, id uint32) (*models.Subscription, error) {
	sub, err := e.store.GetSubscription(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSubscriptionNotFound, id)
		}
		return nil, fmt.Errorf("unable to load subscription %d: %w", id, err)
	}
	return sub, nil
}
