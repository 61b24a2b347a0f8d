package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stream-escrow-go/internal/api"
	"stream-escrow-go/internal/auth"
	"stream-escrow-go/internal/common"
	"stream-escrow-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := auth.NewTokenService(cfg.Api.TokenSecret, cfg.Api.TokenTtl)
	if err != nil {
		zap.L().Fatal("Invalid API token settings (set API_TOKEN_SECRET)", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	handler, err := api.NewServer(api.ServerConfig{
		Engine:  services.Engine,
		Tokens:  tokens,
		Health:  services.DbService,
		Metrics: services.Metrics,
	})
	if err != nil {
		zap.L().Fatal("Failed to create API server", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Api.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("HTTP API listening", zap.String("addr", cfg.Api.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping HTTP API...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		return
	}
	zap.L().Info("HTTP API stopped gracefully")
}
