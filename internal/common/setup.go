package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"stream-escrow-go/internal/database"
	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/events"
	"stream-escrow-go/internal/metrics"
	"stream-escrow-go/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		// Only log if the file exists but couldn't be read
		// (godotenv returns an error if .env doesn't exist)
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService *database.Service
	Publisher events.Publisher
	Metrics   *metrics.Recorder
	Engine    *escrow.Engine
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database, connects the notification sink and
// builds the escrow engine on top of them.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()

	zap.L().Info("Connecting notification publisher", zap.String("backend", cfg.Events.Backend))
	publisher, err := events.NewPublisher(ctx, cfg.Events, recorder)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("unable to create publisher: %w", err)
	}

	var assets []string
	if cfg.Engine.AssetsFile != "" {
		assets, err = LoadAssetSymbols(cfg.Engine.AssetsFile)
		if err != nil {
			closePublisher(publisher)
			dbService.Close()
			return nil, err
		}
		zap.L().Info("Asset registry loaded", zap.Strings("assets", assets))
	}

	engine, err := escrow.NewEngine(escrow.EngineConfig{
		Store:          dbService,
		Publisher:      publisher,
		Metrics:        recorder,
		HoldingAccount: cfg.Engine.HoldingAccount,
		DefaultAsset:   cfg.Engine.DefaultAsset,
		Assets:         assets,
	})
	if err != nil {
		closePublisher(publisher)
		dbService.Close()
		return nil, fmt.Errorf("unable to create engine: %w", err)
	}

	zap.L().Info("Escrow engine ready",
		zap.String("holding_account", cfg.Engine.HoldingAccount),
		zap.String("default_asset", cfg.Engine.DefaultAsset))

	return &Services{
		DbService: dbService,
		Publisher: publisher,
		Metrics:   recorder,
		Engine:    engine,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without the engine
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.Publisher != nil {
		closePublisher(cs.Publisher)
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func closePublisher(p events.Publisher) {
	if err := p.Close(); err != nil {
		zap.L().Warn("Failed to close publisher", zap.Error(err))
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
