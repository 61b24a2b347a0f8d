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

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-escrow-go/internal/common"
	"stream-escrow-go/internal/config"
	"stream-escrow-go/internal/keeper"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Run a single charging pass and exit")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting subscription keeper")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	k, err := keeper.New(keeper.Config{
		Engine:           services.Engine,
		Metrics:          services.Metrics,
		PollingInterval:  cfg.Keeper.PollingInterval,
		BatchSize:        cfg.Keeper.BatchSize,
		ChargesPerSecond: float64(cfg.Keeper.ChargesPerSecond),
	})
	if err != nil {
		zap.L().Fatal("Failed to create keeper", zap.Error(err))
	}

	if *once {
		stats, err := k.RunOnce(ctx)
		if err != nil {
			zap.L().Fatal("Keeper pass failed", zap.Error(err))
		}
		zap.L().Info("Single pass complete",
			zap.Int("charged", stats.Charged),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed))
		return
	}

	if err := k.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start keeper", zap.Error(err))
	}
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping keeper...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		k.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Keeper stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
