/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package keeper

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/metrics"
	"stream-escrow-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Charger is the part of the engine the keeper drives.
type Charger interface {
	ListDueSubscriptions(ctx context.Context, after models.DueCursor, limit int) ([]models.Subscription, error)
	ChargeSubscription(ctx context.Context, id uint32) (*models.ChargeResult, error)
}

// Config contains configuration for Keeper
type Config struct {
	Engine           Charger
	Metrics          *metrics.Recorder
	PollingInterval  time.Duration
	BatchSize        int
	ChargesPerSecond float64
	// Output receives the per-pass console summary; nil means stdout.
	Output io.Writer
}

// Stats summarizes one pass over the due subscriptions.
type Stats struct {
	Scanned int
	Charged int
	Skipped int
	Failed  int
}

// Keeper periodically charges every subscription that has come due.
type Keeper struct {
	engine          Charger
	metrics         *metrics.Recorder
	limiter         *rate.Limiter
	pollingInterval time.Duration
	batchSize       int
	out             io.Writer

	mu      sync.Mutex
	running bool

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) (*Keeper, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}

	limit := rate.Inf
	burst := 1
	if cfg.ChargesPerSecond > 0 {
		limit = rate.Limit(cfg.ChargesPerSecond)
		burst = max(1, int(cfg.ChargesPerSecond))
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	return &Keeper{
		engine:          cfg.Engine,
		metrics:         cfg.Metrics,
		limiter:         rate.NewLimiter(limit, burst),
		pollingInterval: cfg.PollingInterval,
		batchSize:       cfg.BatchSize,
		out:             out,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}, nil
}

// Start launches the polling loop. It returns immediately.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return fmt.Errorf("keeper already started")
	}
	k.running = true

	go k.pollLoop(ctx)

	zap.L().Info("Keeper started",
		zap.Duration("polling_interval", k.pollingInterval),
		zap.Int("batch_size", k.batchSize),
		zap.Float64("charges_per_second", float64(k.limiter.Limit())))
	return nil
}

// Stop gracefully stops the keeper and waits for the current pass to end.
func (k *Keeper) Stop() {
	k.mu.Lock()
	running := k.running
	k.running = false
	k.mu.Unlock()
	if !running {
		return
	}

	zap.L().Info("Stopping keeper")
	close(k.stopChan)
	<-k.doneChan
	zap.L().Info("Keeper stopped")
}

func (k *Keeper) pollLoop(ctx context.Context) {
	defer close(k.doneChan)

	ticker := time.NewTicker(k.pollingInterval)
	defer ticker.Stop()

	k.runPass(ctx)

	for {
		select {
		case <-ticker.C:
			k.runPass(ctx)
		case <-k.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (k *Keeper) runPass(ctx context.Context) {
	if _, err := k.RunOnce(ctx); err != nil {
		zap.L().Error("Keeper pass failed", zap.Error(err))
	}
}

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// RunOnce charges every subscription that is due, listing them BatchSize at
// a time. Subscriptions that cannot pay are passed over so they never hide
// the ones behind them. A failed charge is logged and counted; only failing
// to list a page is returned as an error.
func (k *Keeper) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	var cursor models.DueCursor

	for {
		page, err := k.engine.ListDueSubscriptions(ctx, cursor, k.batchSize)
		if err != nil {
			return stats, fmt.Errorf("failed to list due subscriptions: %w", err)
		}
		if len(page) > 0 && stats.Scanned == 0 {
			fmt.Fprintf(k.out, "\n%s[%s] Charging due subscriptions%s\n",
				colorCyan, time.Now().Format("15:04:05"), colorReset)
		}
		stats.Scanned += len(page)

		for _, sub := range page {
			if err := k.limiter.Wait(ctx); err != nil {
				return stats, fmt.Errorf("keeper interrupted: %w", err)
			}
			k.charge(ctx, sub, &stats)
			cursor = sub.Cursor()
		}

		if len(page) < k.batchSize {
			break
		}
	}

	if stats.Scanned == 0 {
		zap.L().Debug("No subscriptions due")
		return stats, nil
	}

	zap.L().Info("Keeper pass complete",
		zap.Int("scanned", stats.Scanned),
		zap.Int("charged", stats.Charged),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

func (k *Keeper) charge(ctx context.Context, sub models.Subscription, stats *Stats) {
	result, err := k.engine.ChargeSubscription(ctx, sub.Id)
	switch kind := escrow.KindOf(err); {
	case err == nil:
		stats.Charged++
		k.metrics.ObserveKeeperCharge("charged")
		fmt.Fprintf(k.out, "  %s✓ #%d %s %s x%d → %s%s\n",
			colorGreen, sub.Id, sub.Asset, result.Amount.String(), result.DueIntervals, sub.Receiver, colorReset)
	case kind == escrow.KindInsufficientFunds, kind == escrow.KindNotDue, kind == escrow.KindState:
		stats.Skipped++
		k.metrics.ObserveKeeperCharge(string(kind))
		fmt.Fprintf(k.out, "  %s~ #%d %s%s\n", colorYellow, sub.Id, kind, colorReset)
		zap.L().Warn("Skipped subscription charge",
			zap.Uint32("subscription_id", sub.Id),
			zap.String("kind", string(kind)),
			zap.Error(err))
	default:
		stats.Failed++
		k.metrics.ObserveKeeperCharge("failed")
		fmt.Fprintf(k.out, "  %s✗ #%d %s%s\n", colorRed, sub.Id, err, colorReset)
		zap.L().Error("Failed to charge subscription",
			zap.Uint32("subscription_id", sub.Id),
			zap.Error(err))
	}
}
