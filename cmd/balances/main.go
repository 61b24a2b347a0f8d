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
	"fmt"
	"os"

	"stream-escrow-go/internal/common"
	"stream-escrow-go/internal/config"
	"stream-escrow-go/internal/database"
	"stream-escrow-go/internal/models"

	"go.uber.org/zap"
)

type balanceStats struct {
	totalAccounts        int
	totalBalances        int
	accountsWithBalances int
}

func formatTransactionId(txId string) string {
	if txId == "" {
		return "none"
	}
	if len(txId) > 8 {
		return txId[:8] + "..."
	}
	return txId
}

func formatBalance(balance models.AccountBalance) string {
	return fmt.Sprintf("%-15s: %40s (v%d, last_tx: %s, updated: %s)",
		balance.Asset,
		balance.Balance.String(),
		balance.Version,
		formatTransactionId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printAccount(report *common.Report, account string, holding bool, balances []models.AccountBalance) {
	label := "Account"
	if holding {
		label = "Holding account"
	}
	lines := make([]string, len(balances))
	for i, balance := range balances {
		lines[i] = formatBalance(balance)
	}
	report.Section(fmt.Sprintf("%s: %s", label, account), fmt.Sprintf("Assets: %d", len(balances)))
	report.Items(lines)
}

func formatTransaction(tx models.Transaction) string {
	return fmt.Sprintf("%s %-8s %20s -> %-20s %-12s %s",
		tx.CreatedAt.Format("2006-01-02 15:04:05"),
		tx.TransactionType,
		tx.Amount.String(),
		tx.BalanceAfter.String(),
		tx.Counterparty,
		tx.Reference)
}

func printHistory(ctx context.Context, report *common.Report, dbService *database.Service, account, asset string, limit int) error {
	history, err := dbService.GetTransactionHistory(ctx, account, asset, limit, 0)
	if err != nil {
		return fmt.Errorf("failed to get history for %s: %w", asset, err)
	}
	lines := make([]string, len(history))
	for i, tx := range history {
		lines[i] = formatTransaction(tx)
	}
	report.Section(fmt.Sprintf("History: %s %s", account, asset), fmt.Sprintf("Latest %d transactions", len(history)))
	report.Items(lines)
	return nil
}

func processAccount(ctx context.Context, report *common.Report, account, holdingAccount string, dbService *database.Service, reconcile bool, historyLimit int) (int, error) {
	balances, err := dbService.ListBalances(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("failed to get balances: %w", err)
	}

	if len(balances) == 0 {
		return 0, nil
	}

	printAccount(report, account, account == holdingAccount, balances)

	if historyLimit > 0 {
		for _, balance := range balances {
			if err := printHistory(ctx, report, dbService, account, balance.Asset, historyLimit); err != nil {
				return len(balances), err
			}
		}
	}

	if reconcile {
		for _, balance := range balances {
			if err := dbService.ReconcileBalance(ctx, account, balance.Asset); err != nil {
				return len(balances), fmt.Errorf("reconciliation failed for %s: %w", balance.Asset, err)
			}
		}
	}

	return len(balances), nil
}

func processAccountsAndGenerateReport(ctx context.Context, report *common.Report, accounts []string, holdingAccount string, dbService *database.Service, reconcile bool, historyLimit int, logger *zap.Logger) balanceStats {
	stats := balanceStats{}

	for _, account := range accounts {
		stats.totalAccounts++

		balanceCount, err := processAccount(ctx, report, account, holdingAccount, dbService, reconcile, historyLimit)
		if err != nil {
			logger.Error("Failed to process account",
				zap.String("account", account),
				zap.Error(err))
			continue
		}

		if balanceCount > 0 {
			stats.accountsWithBalances++
			stats.totalBalances += balanceCount
		}
	}

	return stats
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	// Parse command line flags
	accountFlag := flag.String("account", "", "Filter by specific account (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Verify each balance against its transaction history")
	historyFlag := flag.Int("history", 0, "Also print the latest N transactions per balance")
	flag.Parse()

	logger.Info("Starting balance query")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only: no engine or publisher needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	accounts, err := common.InitializeAccounts(ctx, dbService, *accountFlag, logger)
	if err != nil {
		logger.Fatal("Failed to initialize accounts", zap.Error(err))
	}

	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Header("ACCOUNT BALANCE REPORT")

	stats := processAccountsAndGenerateReport(ctx, report, accounts, cfg.Engine.HoldingAccount, dbService, *reconcileFlag, *historyFlag, logger)

	// Print footer summary
	summary := fmt.Sprintf("SUMMARY: %d accounts with balances (%d total balances across %d accounts queried)",
		stats.accountsWithBalances, stats.totalBalances, stats.totalAccounts)
	report.Footer(summary)

	logger.Info("Balance query completed",
		zap.Int("accounts_queried", stats.totalAccounts),
		zap.Int("accounts_with_balances", stats.accountsWithBalances),
		zap.Int("total_balances", stats.totalBalances))
}
