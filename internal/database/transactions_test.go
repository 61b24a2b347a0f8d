package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"stream-escrow-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func setupTestDb(t *testing.T) (*SubledgerService, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := NewSubledgerService(db)

	// Use the actual schema initialization
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func fund(t *testing.T, service *SubledgerService, account, asset string, amount int64) {
	t.Helper()
	err := service.Fund(context.Background(), store.FundParams{
		Account: account,
		Asset:   asset,
		Amount:  decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
}

func TestFund_CreditsAccount(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fund(t, service, "alice", "USDC", 1500)

	balance, err := service.GetBalance(ctx, "alice", "USDC")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected balance 1500, got %s", balance.String())
	}

	history, err := service.GetTransactionHistory(ctx, "alice", "USDC", 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(history))
	}
	if history[0].TransactionType != txTypeDeposit {
		t.Errorf("Expected type %s, got %s", txTypeDeposit, history[0].TransactionType)
	}
	if !history[0].BalanceAfter.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected balance_after 1500, got %s", history[0].BalanceAfter.String())
	}
}

func TestFund_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := store.FundParams{
		Account:      "alice",
		Asset:        "USDC",
		Amount:       decimal.NewFromInt(100),
		ExternalTxId: "duplicate-tx",
	}

	if err := service.Fund(ctx, params); err != nil {
		t.Fatalf("First Fund failed: %v", err)
	}

	err := service.Fund(ctx, params)
	if !errors.Is(err, store.ErrDuplicateTransaction) {
		t.Fatalf("Expected duplicate transaction error, got: %v", err)
	}

	balance, _ := service.GetBalance(ctx, "alice", "USDC")
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected balance 100 after duplicate, got %s", balance.String())
	}
}

func TestFund_RejectsNonPositive(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	for _, amount := range []int64{0, -5} {
		err := service.Fund(context.Background(), store.FundParams{Account: "alice", Asset: "USDC", Amount: decimal.NewFromInt(amount)})
		if err == nil {
			t.Errorf("Expected error for amount %d", amount)
		}
	}
}

func TestTransfer_MovesFunds(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fund(t, service, "alice", "USDC", 1000)

	err := service.Transfer(ctx, store.TransferParams{
		From:      "alice",
		To:        "escrow-holding",
		Asset:     "USDC",
		Amount:    decimal.NewFromInt(400),
		Reference: "stream:1:create",
	})
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	alice, _ := service.GetBalance(ctx, "alice", "USDC")
	holding, _ := service.GetBalance(ctx, "escrow-holding", "USDC")
	if !alice.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Expected alice 600, got %s", alice.String())
	}
	if !holding.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Expected holding 400, got %s", holding.String())
	}

	out, err := service.GetTransactionHistory(ctx, "alice", "USDC", 1, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	in, err := service.GetTransactionHistory(ctx, "escrow-holding", "USDC", 1, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if out[0].TransferId == "" || out[0].TransferId != in[0].TransferId {
		t.Errorf("Expected both legs to share a transfer id, got %q and %q", out[0].TransferId, in[0].TransferId)
	}
	if out[0].Counterparty != "escrow-holding" || in[0].Counterparty != "alice" {
		t.Errorf("Unexpected counterparties %q / %q", out[0].Counterparty, in[0].Counterparty)
	}
	if out[0].Reference != "stream:1:create" {
		t.Errorf("Expected reference to be recorded, got %q", out[0].Reference)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fund(t, service, "alice", "USDC", 100)

	err := service.Transfer(ctx, store.TransferParams{From: "alice", To: "bob", Asset: "USDC", Amount: decimal.NewFromInt(101)})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds error, got: %v", err)
	}

	alice, _ := service.GetBalance(ctx, "alice", "USDC")
	bob, _ := service.GetBalance(ctx, "bob", "USDC")
	if !alice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected alice unchanged at 100, got %s", alice.String())
	}
	if !bob.IsZero() {
		t.Errorf("Expected bob unchanged at 0, got %s", bob.String())
	}
}

func TestTransfer_AssetsAreIsolated(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	fund(t, service, "alice", "XLM", 1000)

	err := service.Transfer(context.Background(), store.TransferParams{From: "alice", To: "bob", Asset: "USDC", Amount: decimal.NewFromInt(1)})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds error, got: %v", err)
	}
}

func TestTransfer_RollsBackWithOuterTransaction(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	fund(t, service, "alice", "USDC", 500)

	boom := errors.New("boom")
	err := withinTx(ctx, service.db, func(ctx context.Context) error {
		if err := service.Transfer(ctx, store.TransferParams{From: "alice", To: "bob", Asset: "USDC", Amount: decimal.NewFromInt(200)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected outer error, got %v", err)
	}

	alice, _ := service.GetBalance(ctx, "alice", "USDC")
	if !alice.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Expected rollback to restore alice to 500, got %s", alice.String())
	}
}

func TestTransfer_DoesNotLogInfoBeforeCommit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	ctx := context.Background()
	fund(t, service, "alice", "USDC", 500)

	boom := errors.New("boom")
	err := withinTx(ctx, service.db, func(ctx context.Context) error {
		if err := service.Transfer(ctx, store.TransferParams{From: "alice", To: "bob", Asset: "USDC", Amount: decimal.NewFromInt(200)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected outer error, got %v", err)
	}

	if n := logs.FilterMessage("Transfer posted").Len(); n != 0 {
		t.Errorf("Expected no info-level transfer log for a rolled back transfer, got %d", n)
	}
}

func TestTransfer_LargeAmountsKeepPrecision(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	huge := decimal.RequireFromString("170141183460469231731687303715884105727")
	if err := service.Fund(ctx, store.FundParams{Account: "whale", Asset: "USDC", Amount: huge}); err != nil {
		t.Fatalf("Fund failed: %v", err)
	}
	if err := service.Transfer(ctx, store.TransferParams{From: "whale", To: "bob", Asset: "USDC", Amount: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	balance, _ := service.GetBalance(ctx, "whale", "USDC")
	expected := huge.Sub(decimal.NewFromInt(1))
	if !balance.Equal(expected) {
		t.Errorf("Expected %s, got %s", expected.String(), balance.String())
	}

	if err := service.ReconcileBalance(ctx, "whale", "USDC"); err != nil {
		t.Errorf("ReconcileBalance failed: %v", err)
	}
}

func TestGetTransactionHistory_Pagination(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		fund(t, service, "alice", "USDC", 10)
	}

	page, err := service.GetTransactionHistory(ctx, "alice", "USDC", 2, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(page))
	}
	if !page[0].BalanceAfter.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected newest first with balance_after 50, got %s", page[0].BalanceAfter.String())
	}

	rest, _ := service.GetTransactionHistory(ctx, "alice", "USDC", 10, 2)
	if len(rest) != 3 {
		t.Errorf("Expected 3 remaining transactions, got %d", len(rest))
	}
}
