package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance represents current balance state (hot data)
type AccountBalance struct {
	Id                string          `db:"id" json:"id"`
	Account           string          `db:"account" json:"account"`
	Asset             string          `db:"asset" json:"asset"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	LastTransactionId string          `db:"last_transaction_id" json:"last_transaction_id"`
	Version           int64           `db:"version" json:"version"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction represents immutable transfer history (cold data)
type Transaction struct {
	Id              string          `db:"id"`
	Account         string          `db:"account"`
	Counterparty    string          `db:"counterparty"`
	Asset           string          `db:"asset"`
	TransactionType string          `db:"transaction_type"`
	Amount          decimal.Decimal `db:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	TransferId      string          `db:"transfer_id"`
	ExternalTxId    string          `db:"external_transaction_id"`
	Reference       string          `db:"reference"`
	CreatedAt       time.Time       `db:"created_at"`
}
