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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.EscrowStore.
var _ store.EscrowStore = (*Service)(nil)

const memoryPath = ":memory:"

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dataSourceName(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	if cfg.Path == memoryPath {
		// Each connection to :memory: is a separate database; keep exactly one alive.
		cfg.MaxOpenConns, cfg.MaxIdleConns = 1, 1
		cfg.ConnMaxLifetime, cfg.ConnMaxIdleTime = 0, 0
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceFromDB(db)
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceFromDB(db *sql.DB) *Service {
	return &Service{db: db, subledger: NewSubledgerService(db)}
}

func dataSourceName(path string) string {
	if path == memoryPath {
		return memoryPath
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_foreign_keys=on"
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping verifies the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// WithinTx runs fn in one SQLite transaction. Store calls made with the
// context passed to fn join it; any error rolls everything back.
func (s *Service) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withinTx(ctx, s.db, fn)
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS streams (
		id INTEGER PRIMARY KEY,
		sender TEXT NOT NULL,
		asset TEXT NOT NULL,
		deposit TEXT NOT NULL,
		start_time INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		title TEXT,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- NULL last_withdraw / total_withdrawn mean "never recorded"
	CREATE TABLE IF NOT EXISTS stream_recipients (
		stream_id INTEGER NOT NULL REFERENCES streams(id),
		position INTEGER NOT NULL,
		recipient TEXT NOT NULL,
		rate TEXT NOT NULL,
		last_withdraw INTEGER,
		total_withdrawn TEXT,
		PRIMARY KEY (stream_id, recipient)
	);

	CREATE INDEX IF NOT EXISTS idx_stream_recipients_position ON stream_recipients(stream_id, position);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id INTEGER PRIMARY KEY,
		subscriber TEXT NOT NULL,
		receiver TEXT NOT NULL,
		asset TEXT NOT NULL,
		amount_per_interval TEXT NOT NULL,
		interval_seconds INTEGER NOT NULL,
		next_payment_time INTEGER NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		active BOOLEAN NOT NULL DEFAULT 1,
		title TEXT,
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_due ON subscriptions(active, next_payment_time);

	CREATE TABLE IF NOT EXISTS user_index (
		kind TEXT NOT NULL,
		user_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		entity_id INTEGER NOT NULL,
		PRIMARY KEY (kind, user_id, seq)
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.subledger.InitSchema(); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return nil
}

// Subledger convenience methods

func (s *Service) Transfer(ctx context.Context, params store.TransferParams) error {
	return s.subledger.Transfer(ctx, params)
}

func (s *Service) Fund(ctx context.Context, params store.FundParams) error {
	if err := s.subledger.Fund(ctx, params); err != nil {
		return err
	}

	zap.L().Debug("Account funded",
		zap.String("account", params.Account),
		zap.String("asset", params.Asset),
		zap.String("amount", params.Amount.String()),
		zap.String("external_tx_id", params.ExternalTxId))
	return nil
}

func (s *Service) GetBalance(ctx context.Context, account, asset string) (decimal.Decimal, error) {
	return s.subledger.GetBalance(ctx, account, asset)
}

func (s *Service) ListBalances(ctx context.Context, account string) ([]models.AccountBalance, error) {
	return s.subledger.GetAllBalances(ctx, account)
}

func (s *Service) ListAccounts(ctx context.Context) ([]string, error) {
	return s.subledger.ListAccounts(ctx)
}

func (s *Service) GetTransactionHistory(ctx context.Context, account, asset string, limit, offset int) ([]models.Transaction, error) {
	return s.subledger.GetTransactionHistory(ctx, account, asset, limit, offset)
}

func (s *Service) ReconcileBalance(ctx context.Context, account, asset string) error {
	return s.subledger.ReconcileBalance(ctx, account, asset)
}
