package escrow

import (
	"context"
	"fmt"

	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (e *Engine) GetStream(ctx context.Context, id uint32) (*models.Stream, error) {
	return e.loadStream(ctx, id)
}

func (e *Engine) GetSubscription(ctx context.Context, id uint32) (*models.Subscription, error) {
	return e.loadSubscription(ctx, id)
}

func (e *Engine) ListSentStreamIds(ctx context.Context, user string) ([]uint32, error) {
	return e.listIndex(ctx, store.IndexSentStreams, user)
}

func (e *Engine) ListReceivedStreamIds(ctx context.Context, user string) ([]uint32, error) {
	return e.listIndex(ctx, store.IndexReceivedStreams, user)
}

func (e *Engine) ListSentStreams(ctx context.Context, user string) ([]models.Stream, error) {
	ids, err := e.ListSentStreamIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadStreams(ctx, ids)
}

func (e *Engine) ListReceivedStreams(ctx context.Context, user string) ([]models.Stream, error) {
	ids, err := e.ListReceivedStreamIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadStreams(ctx, ids)
}

// ListUserStreams returns the streams user sent followed by those they
// receive, each stream once.
func (e *Engine) ListUserStreams(ctx context.Context, user string) ([]models.Stream, error) {
	sent, err := e.ListSentStreamIds(ctx, user)
	if err != nil {
		return nil, err
	}
	received, err := e.ListReceivedStreamIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadStreams(ctx, mergeIds(sent, received))
}

func (e *Engine) ListSubscriberSubscriptionIds(ctx context.Context, user string) ([]uint32, error) {
	return e.listIndex(ctx, store.IndexSubscriberSubscriptions, user)
}

func (e *Engine) ListReceiverSubscriptionIds(ctx context.Context, user string) ([]uint32, error) {
	return e.listIndex(ctx, store.IndexReceiverSubscriptions, user)
}

func (e *Engine) ListSubscriberSubscriptions(ctx context.Context, user string) ([]models.Subscription, error) {
	ids, err := e.ListSubscriberSubscriptionIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadSubscriptions(ctx, ids)
}

func (e *Engine) ListReceiverSubscriptions(ctx context.Context, user string) ([]models.Subscription, error) {
	ids, err := e.ListReceiverSubscriptionIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadSubscriptions(ctx, ids)
}

// ListUserSubscriptions returns subscriptions user pays followed by those
// paying them, each subscription once.
func (e *Engine) ListUserSubscriptions(ctx context.Context, user string) ([]models.Subscription, error) {
	paying, err := e.ListSubscriberSubscriptionIds(ctx, user)
	if err != nil {
		return nil, err
	}
	receiving, err := e.ListReceiverSubscriptionIds(ctx, user)
	if err != nil {
		return nil, err
	}
	return e.loadSubscriptions(ctx, mergeIds(paying, receiving))
}

// ListDueSubscriptions returns up to limit active subscriptions whose next
// payment time has passed, oldest first, resuming after the cursor.
func (e *Engine) ListDueSubscriptions(ctx context.Context, after models.DueCursor, limit int) ([]models.Subscription, error) {
	subs, err := e.store.ListDueSubscriptions(ctx, e.clock.Now(), after, limit)
	if err != nil {
		return nil, fmt.Errorf("unable to list due subscriptions: %w", err)
	}
	return subs, nil
}

func (e *Engine) GetBalance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	asset, err := e.resolveAsset(asset)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := e.store.GetBalance(ctx, account, asset)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to get balance: %w", err)
	}
	return balance, nil
}

func (e *Engine) ListBalances(ctx context.Context, account string) ([]models.AccountBalance, error) {
	balances, err := e.store.ListBalances(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("unable to list balances: %w", err)
	}
	return balances, nil
}

// Fund credits account from outside the ledger. It is an operator action
// and is not exposed to ordinary callers.
func (e *Engine) Fund(ctx context.Context, account, asset string, value decimal.Decimal, externalTxId string) error {
	err := e.execute(ctx, "fund", func(ctx context.Context, op *operation) error {
		if account == "" {
			return fmt.Errorf("%w: account is required", ErrInvalidParameters)
		}
		resolved, err := e.resolveAsset(asset)
		if err != nil {
			return err
		}
		if err := requirePositive("amount", value); err != nil {
			return err
		}
		if err := e.store.Fund(ctx, store.FundParams{
			Account:      account,
			Asset:        resolved,
			Amount:       value,
			ExternalTxId: externalTxId,
			Reference:    "external funding",
		}); err != nil {
			return fmt.Errorf("unable to fund %s: %w", account, err)
		}
		op.moved("external_funding", resolved, value)
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Account funded",
		zap.String("account", account),
		zap.String("amount", value.String()),
		zap.String("external_tx_id", externalTxId))
	return nil
}

func (e *Engine) listIndex(ctx context.Context, kind store.IndexKind, user string) ([]uint32, error) {
	ids, err := e.store.ListIndex(ctx, kind, user)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s for %s: %w", kind, user, err)
	}
	zap.L().Debug("Listed index",
		zap.String("kind", string(kind)),
		zap.String("user", user),
		zap.Int("count", len(ids)))
	return ids, nil
}

func (e *Engine) loadStreams(ctx context.Context, ids []uint32) ([]models.Stream, error) {
	streams := make([]models.Stream, 0, len(ids))
	for _, id := range ids {
		s, err := e.loadStream(ctx, id)
		if err != nil {
			return nil, err
		}
		streams = append(streams, *s)
	}
	return streams, nil
}

func (e *Engine) loadSubscriptions(ctx context.Context, ids []uint32) ([]models.Subscription, error) {
	subs := make([]models.Subscription, 0, len(ids))
	for _, id := range ids {
		s, err := e.loadSubscription(ctx, id)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, nil
}

// mergeIds concatenates the lists keeping the first occurrence of each id.
func mergeIds(lists ...[]uint32) []uint32 {
	seen := make(map[uint32]struct{})
	var out []uint32
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
