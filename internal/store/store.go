package store

import (
	"context"
	"errors"

	"stream-escrow-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrStreamNotFound         = errors.New("stream not found")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// IndexKind names one of the per-user id lists.
type IndexKind string

const (
	IndexSentStreams             IndexKind = "sent_streams"
	IndexReceivedStreams         IndexKind = "received_streams"
	IndexSubscriberSubscriptions IndexKind = "subscriber_subscriptions"
	IndexReceiverSubscriptions   IndexKind = "receiver_subscriptions"
)

// Valid reports whether k is one of the known index kinds.
func (k IndexKind) Valid() bool {
	switch k {
	case IndexSentStreams, IndexReceivedStreams, IndexSubscriberSubscriptions, IndexReceiverSubscriptions:
		return true
	}
	return false
}

// TransferParams moves Amount of Asset from one ledger account to another.
// The debit fails with ErrInsufficientFunds if From cannot cover it.
type TransferParams struct {
	From      string
	To        string
	Asset     string
	Amount    decimal.Decimal
	Reference string
}

// FundParams credits an account from outside the ledger (an external deposit).
// A repeated non-empty ExternalTxId is rejected with ErrDuplicateTransaction.
type FundParams struct {
	Account      string
	Asset        string
	Amount       decimal.Decimal
	ExternalTxId string
	Reference    string
}

// EscrowStore defines the contract every persistence backend must satisfy.
//
// Calls made with a context returned inside WithinTx join that transaction;
// everything else runs in its own implicit transaction.
type EscrowStore interface {
	// --- Transactions ---
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// --- Streams ---
	NextStreamId(ctx context.Context) (uint32, error)
	GetStream(ctx context.Context, id uint32) (*models.Stream, error)
	SaveStream(ctx context.Context, stream *models.Stream) error

	// --- Subscriptions ---
	NextSubscriptionId(ctx context.Context) (uint32, error)
	GetSubscription(ctx context.Context, id uint32) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	ListDueSubscriptions(ctx context.Context, now uint64, after models.DueCursor, limit int) ([]models.Subscription, error)

	// --- User indexes ---
	AppendIndex(ctx context.Context, kind IndexKind, user string, id uint32) error
	ListIndex(ctx context.Context, kind IndexKind, user string) ([]uint32, error)

	// --- Ledger ---
	Transfer(ctx context.Context, params TransferParams) error
	Fund(ctx context.Context, params FundParams) error
	GetBalance(ctx context.Context, account, asset string) (decimal.Decimal, error)
	ListBalances(ctx context.Context, account string) ([]models.AccountBalance, error)
	GetTransactionHistory(ctx context.Context, account, asset string, limit, offset int) ([]models.Transaction, error)
	ReconcileBalance(ctx context.Context, account, asset string) error

	// --- Lifecycle ---
	Close()
}
