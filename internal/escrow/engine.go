// Package escrow implements the stream accrual and subscription billing
// engines. Every mutating operation runs as one store transaction: load,
// validate, authorize, compute, transfer, persist, index. Notifications are
// published only after the transaction commits.
package escrow

import (
	"context"
	"errors"
	"fmt"

	"stream-escrow-go/internal/auth"
	"stream-escrow-go/internal/clock"
	"stream-escrow-go/internal/events"
	"stream-escrow-go/internal/metrics"
	"stream-escrow-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EngineConfig wires the engine to its collaborators. Store and
// HoldingAccount are required; the rest have defaults.
type EngineConfig struct {
	Store          store.EscrowStore
	Clock          clock.Clock
	Authorizer     auth.Authorizer
	Publisher      events.Publisher
	Metrics        *metrics.Recorder
	HoldingAccount string
	DefaultAsset   string
	// Assets restricts the accepted assets; empty accepts any.
	Assets []string
}

type Engine struct {
	store          store.EscrowStore
	clock          clock.Clock
	authorizer     auth.Authorizer
	publisher      events.Publisher
	metrics        *metrics.Recorder
	holdingAccount string
	defaultAsset   string
	assets         map[string]struct{}
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.HoldingAccount == "" {
		return nil, fmt.Errorf("holding account is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem()
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = auth.NewContextAuthorizer()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewLogPublisher(zap.L())
	}

	var assets map[string]struct{}
	if len(cfg.Assets) > 0 {
		assets = make(map[string]struct{}, len(cfg.Assets))
		for _, a := range cfg.Assets {
			assets[a] = struct{}{}
		}
		if cfg.DefaultAsset != "" {
			if _, ok := assets[cfg.DefaultAsset]; !ok {
				return nil, fmt.Errorf("default asset %s is not in the asset list", cfg.DefaultAsset)
			}
		}
	}

	return &Engine{
		store:          cfg.Store,
		clock:          cfg.Clock,
		authorizer:     cfg.Authorizer,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		holdingAccount: cfg.HoldingAccount,
		defaultAsset:   cfg.DefaultAsset,
		assets:         assets,
	}, nil
}

// HoldingAccount is the ledger account custodying all escrowed funds.
func (e *Engine) HoldingAccount() string {
	return e.holdingAccount
}

// operation carries the per-call time snapshot and the side effects to
// release once the transaction has committed.
type operation struct {
	name   string
	now    uint64
	events []pendingEvent
	flows  []flow
}

type pendingEvent struct {
	topic string
	data  any
}

type flow struct {
	name   string
	asset  string
	amount decimal.Decimal
}

func (op *operation) emit(topic string, data any) {
	op.events = append(op.events, pendingEvent{topic: topic, data: data})
}

func (op *operation) moved(name, asset string, amount decimal.Decimal) {
	op.flows = append(op.flows, flow{name: name, asset: asset, amount: amount})
}

// execute reads the clock once and runs fn inside one store transaction.
func (e *Engine) execute(ctx context.Context, name string, fn func(ctx context.Context, op *operation) error) error {
	op := &operation{name: name, now: e.clock.Now()}

	err := e.store.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx, op)
	})
	if err != nil {
		kind := KindOf(err)
		e.metrics.ObserveOperation(name, string(kind))
		if kind == KindInternal {
			zap.L().Error("Operation failed", zap.String("operation", name), zap.Error(err))
		} else {
			zap.L().Warn("Operation rejected",
				zap.String("operation", name),
				zap.String("kind", string(kind)),
				zap.Error(err))
		}
		return err
	}

	e.metrics.ObserveOperation(name, "ok")
	for _, f := range op.flows {
		e.metrics.AddTransferred(f.name, f.asset, f.amount)
	}
	for _, ev := range op.events {
		e.publish(ctx, ev.topic, op.now, ev.data)
	}
	return nil
}

// publish is fire-and-forget: failures are logged and counted, never returned.
func (e *Engine) publish(ctx context.Context, topic string, now uint64, data any) {
	payload, err := events.Encode(topic, now, data)
	if err != nil {
		zap.L().Error("Failed to encode event", zap.String("topic", topic), zap.Error(err))
		e.metrics.ObservePublishFailure(topic)
		return
	}
	if err := e.publisher.Publish(ctx, topic, payload); err != nil {
		zap.L().Warn("Failed to publish event", zap.String("topic", topic), zap.Error(err))
		e.metrics.ObservePublishFailure(topic)
	}
}

func (e *Engine) authorize(ctx context.Context, principal string) error {
	if err := e.authorizer.Require(ctx, principal); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return fmt.Errorf("authorization check failed: %w", err)
	}
	return nil
}

// transfer moves funds through the ledger inside the operation's transaction.
func (e *Engine) transfer(ctx context.Context, from, to, asset string, amount decimal.Decimal, reference string) error {
	err := e.store.Transfer(ctx, store.TransferParams{
		From:      from,
		To:        to,
		Asset:     asset,
		Amount:    amount,
		Reference: reference,
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientFunds) {
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}
		return fmt.Errorf("transfer failed: %w", err)
	}
	return nil
}

func (e *Engine) resolveAsset(asset string) (string, error) {
	if asset == "" {
		asset = e.defaultAsset
	}
	if asset == "" {
		return "", fmt.Errorf("%w: asset is required", ErrInvalidParameters)
	}
	if e.assets != nil {
		if _, ok := e.assets[asset]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
		}
	}
	return asset, nil
}

func optionalText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
