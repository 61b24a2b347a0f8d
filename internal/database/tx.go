package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type sqliteTxKey struct{}

// sqliteTxInfo holds the SQLite transaction carried by a context.
type sqliteTxInfo struct {
	tx *sql.Tx
}

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func withSQLiteTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqliteTxKey{}, sqliteTxInfo{tx: tx})
}

func sqliteTxFromContext(ctx context.Context) (*sql.Tx, bool) {
	info, ok := ctx.Value(sqliteTxKey{}).(sqliteTxInfo)
	if !ok || info.tx == nil {
		return nil, false
	}
	return info.tx, true
}

// conn returns the transaction joined by ctx, or db when there is none.
// With a single pooled connection, querying db while a transaction is open
// would block forever, so every query must go through conn.
func conn(ctx context.Context, db *sql.DB) executor {
	if tx, ok := sqliteTxFromContext(ctx); ok {
		return tx
	}
	return db
}

// withinTx runs fn inside a transaction. If ctx already carries one, fn joins
// it and the outermost caller decides whether to commit.
func withinTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) error {
	if _, ok := sqliteTxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(withSQLiteTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
