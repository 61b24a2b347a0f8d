package common

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// AccountLister lists every account that has ever held a balance.
type AccountLister interface {
	ListAccounts(ctx context.Context) ([]string, error)
}

// InitializeAccounts resolves the accounts a command-line utility reports on.
// If accountFilter is provided, returns just that account.
// If accountFilter is empty, returns all known accounts.
func InitializeAccounts(ctx context.Context, lister AccountLister, accountFilter string, logger *zap.Logger) ([]string, error) {
	if accountFilter != "" {
		logger.Info("Reporting single account", zap.String("account", accountFilter))
		return []string{accountFilter}, nil
	}

	accounts, err := lister.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	logger.Info("Retrieved accounts", zap.Int("count", len(accounts)))
	return accounts, nil
}
