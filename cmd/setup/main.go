package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"stream-escrow-go/internal/common"
	"stream-escrow-go/internal/config"
	"stream-escrow-go/internal/escrow"

	"go.uber.org/zap"
)

// fundEntry credits a single funding plan entry. Entries already applied are
// reported as skipped so the plan can be re-run safely.
func fundEntry(ctx context.Context, services *common.Services, entry common.FundingEntry) (bool, error) {
	value, err := entry.ParsedAmount()
	if err != nil {
		return false, err
	}

	externalTxId := entry.ExternalTxId
	if externalTxId == "" {
		externalTxId = fmt.Sprintf("setup-%s-%s-%s", entry.Account, entry.Asset, entry.Amount)
	}

	err = services.Engine.Fund(ctx, entry.Account, entry.Asset, value, externalTxId)
	if escrow.KindOf(err) == escrow.KindState {
		zap.L().Info("Funding entry already applied",
			zap.String("account", entry.Account),
			zap.String("external_tx_id", externalTxId))
		return false, nil
	}
	if err != nil {
		zap.L().Error("Error funding account",
			zap.String("account", entry.Account),
			zap.String("asset", entry.Asset),
			zap.String("amount", entry.Amount),
			zap.Error(err))
		return false, err
	}
	return true, nil
}

func applyFundingPlan(ctx context.Context, services *common.Services, path string) error {
	zap.L().Info("Loading funding plan", zap.String("file", path))
	entries, err := common.LoadFundingPlan(path)
	if err != nil {
		return fmt.Errorf("failed to load funding plan: %w", err)
	}
	zap.L().Info("Funding plan loaded", zap.Int("count", len(entries)))

	var funded, skipped int
	var failed []string

	for _, entry := range entries {
		applied, err := fundEntry(ctx, services, entry)
		switch {
		case err != nil:
			failed = append(failed, fmt.Sprintf("%s/%s", entry.Account, entry.Asset))
		case applied:
			funded++
		default:
			skipped++
		}
	}

	if len(failed) > 0 {
		zap.L().Warn("Funding completed with some failures",
			zap.Int("funded", funded),
			zap.Int("skipped", skipped),
			zap.Strings("failed_account_assets", failed))
		return errors.New("funding plan partially applied")
	}

	zap.L().Info("Funding completed successfully",
		zap.Int("funded", funded),
		zap.Int("skipped", skipped))
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	fundingFile := flag.String("funding", "funding.yaml", "YAML file with initial account balances")
	schemaOnly := flag.Bool("init", false, "Only create the database schema")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *schemaOnly {
		zap.L().Info("Initialization complete")
		return
	}

	if err := applyFundingPlan(ctx, services, *fundingFile); err != nil {
		zap.L().Error("Setup failed", zap.Error(err))
		return
	}
	zap.L().Info("Setup complete")
}
