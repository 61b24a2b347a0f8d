package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	txTypeDeposit     = "deposit"
	txTypeTransferOut = "transfer_out"
	txTypeTransferIn  = "transfer_in"
)

// postEntryParams describes one leg applied to one account balance.
type postEntryParams struct {
	Account         string
	Counterparty    string
	Asset           string
	TransactionType string
	Amount          decimal.Decimal // signed; negative debits the account
	TransferId      string
	ExternalTxId    string
	Reference       string
}

// Transfer atomically debits From and credits To. It joins the caller's
// transaction when ctx carries one.
func (s *SubledgerService) Transfer(ctx context.Context, params store.TransferParams) error {
	if !params.Amount.IsPositive() {
		return fmt.Errorf("transfer amount must be positive, got %s", params.Amount.String())
	}
	if params.From == "" || params.To == "" || params.Asset == "" {
		return fmt.Errorf("transfer requires from, to and asset")
	}

	transferId := uuid.New().String()

	err := withinTx(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.postEntry(ctx, postEntryParams{
			Account:         params.From,
			Counterparty:    params.To,
			Asset:           params.Asset,
			TransactionType: txTypeTransferOut,
			Amount:          params.Amount.Neg(),
			TransferId:      transferId,
			Reference:       params.Reference,
		}); err != nil {
			return err
		}

		_, err := s.postEntry(ctx, postEntryParams{
			Account:         params.To,
			Counterparty:    params.From,
			Asset:           params.Asset,
			TransactionType: txTypeTransferIn,
			Amount:          params.Amount,
			TransferId:      transferId,
			Reference:       params.Reference,
		})
		return err
	})
	if err != nil {
		return err
	}

	zap.L().Debug("Transfer posted",
		zap.String("transfer_id", transferId),
		zap.String("from", params.From),
		zap.String("to", params.To),
		zap.String("asset", params.Asset),
		zap.String("amount", params.Amount.String()),
		zap.String("reference", params.Reference))
	return nil
}

// Fund credits an account from outside the ledger.
func (s *SubledgerService) Fund(ctx context.Context, params store.FundParams) error {
	if !params.Amount.IsPositive() {
		return fmt.Errorf("fund amount must be positive, got %s", params.Amount.String())
	}

	return withinTx(ctx, s.db, func(ctx context.Context) error {
		if params.ExternalTxId != "" {
			var existingTxId string
			err := conn(ctx, s.db).QueryRowContext(ctx, queryCheckDuplicateTransaction, params.ExternalTxId).Scan(&existingTxId)
			if err == nil {
				zap.L().Warn("Duplicate external transaction Id detected, skipping",
					zap.String("external_tx_id", params.ExternalTxId),
					zap.String("existing_internal_tx_id", existingTxId))
				return fmt.Errorf("%w: external_transaction_id %s already exists", store.ErrDuplicateTransaction, params.ExternalTxId)
			} else if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check for duplicate transaction: %w", err)
			}
		}

		_, err := s.postEntry(ctx, postEntryParams{
			Account:         params.Account,
			Asset:           params.Asset,
			TransactionType: txTypeDeposit,
			Amount:          params.Amount,
			ExternalTxId:    params.ExternalTxId,
			Reference:       params.Reference,
		})
		return err
	})
}

// postEntry updates one balance and records the transaction row. It must run
// inside a transaction.
func (s *SubledgerService) postEntry(ctx context.Context, params postEntryParams) (*models.Transaction, error) {
	ex := conn(ctx, s.db)

	var currentBalanceStr string
	var accountId string
	var version int64

	err := ex.QueryRowContext(ctx, queryGetAccountBalance, params.Account, params.Asset).Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		_, err = ex.ExecContext(ctx, queryInsertAccountBalance, accountId, params.Account, params.Asset, "0", 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(params.Amount)
	if params.Amount.IsNegative() && newBalance.IsNegative() {
		zap.L().Warn("Insufficient funds for debit",
			zap.String("account", params.Account),
			zap.String("asset", params.Asset),
			zap.String("balance", currentBalance.String()),
			zap.String("amount", params.Amount.Neg().String()))
		return nil, fmt.Errorf("%w: account %s holds %s %s, needs %s",
			store.ErrInsufficientFunds, params.Account, currentBalance.String(), params.Asset, params.Amount.Neg().String())
	}

	transaction := &models.Transaction{
		Id:              uuid.New().String(),
		Account:         params.Account,
		Counterparty:    params.Counterparty,
		Asset:           params.Asset,
		TransactionType: params.TransactionType,
		Amount:          params.Amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		TransferId:      params.TransferId,
		ExternalTxId:    params.ExternalTxId,
		Reference:       params.Reference,
		CreatedAt:       time.Now(),
	}

	_, err = ex.ExecContext(ctx, queryInsertTransaction,
		transaction.Id, transaction.Account, transaction.Counterparty, transaction.Asset, transaction.TransactionType,
		transaction.Amount.String(), transaction.BalanceBefore.String(), transaction.BalanceAfter.String(),
		transaction.TransferId, transaction.ExternalTxId, transaction.Reference, transaction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	// Update account balance (with optimistic locking)
	result, err := ex.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transaction.Id, params.Account, params.Asset, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, ex, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	zap.L().Debug("Ledger entry posted",
		zap.String("transaction_id", transaction.Id),
		zap.String("account", params.Account),
		zap.String("asset", params.Asset),
		zap.String("type", params.TransactionType),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, ex executor, transaction *models.Transaction) error {
	accountAsset := fmt.Sprintf("%s_%s", transaction.Account, transaction.Asset)

	var entries []journalEntry
	switch transaction.TransactionType {
	case txTypeDeposit:
		// Account asset increases (debit); the ledger now owes the external depositor (credit)
		entries = append(entries,
			journalEntry{"account_asset", accountAsset, transaction.Amount, decimal.Zero},
			journalEntry{"system_liability", fmt.Sprintf("external_deposits_%s", transaction.Asset), decimal.Zero, transaction.Amount})

	case txTypeTransferOut:
		entries = append(entries,
			journalEntry{"account_asset", accountAsset, decimal.Zero, transaction.Amount.Neg()})

	case txTypeTransferIn:
		entries = append(entries,
			journalEntry{"account_asset", accountAsset, transaction.Amount, decimal.Zero})
	}

	for _, entry := range entries {
		_, err := ex.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId, entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionHistory returns paginated transaction history for an account
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, account, asset string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("account", account),
		zap.String("asset", asset),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := conn(ctx, s.db).QueryContext(ctx, queryGetTransactionHistory, account, asset, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var amountStr, balanceBeforeStr, balanceAfterStr string
		err := rows.Scan(&tx.Id, &tx.Account, &tx.Counterparty, &tx.Asset, &tx.TransactionType,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&tx.TransferId, &tx.ExternalTxId, &tx.Reference, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		if tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance before '%s': %w", balanceBeforeStr, err)
		}
		if tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance after '%s': %w", balanceAfterStr, err)
		}

		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
