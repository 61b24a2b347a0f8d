package escrow

import (
	"context"
	"math"
	"testing"
	"time"

	"stream-escrow-go/internal/amount"
	"stream-escrow-go/internal/clock"
	"stream-escrow-go/internal/database"
	"stream-escrow-go/internal/events"
	"stream-escrow-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testHolding = "escrow-holding"
	testAsset   = "USDC"
	testStart   = uint64(1_000)
)

type testEnv struct {
	engine    *Engine
	clock     *clock.Manual
	publisher *events.MemoryPublisher
	store     *database.Service
}

func setupTestEngine(t *testing.T) *testEnv {
	t.Helper()

	svc, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	clk := clock.NewManual(testStart)
	pub := events.NewMemoryPublisher()
	engine, err := NewEngine(EngineConfig{
		Store:          svc,
		Clock:          clk,
		Publisher:      pub,
		HoldingAccount: testHolding,
		DefaultAsset:   testAsset,
		Assets:         []string{testAsset, "EURC"},
	})
	require.NoError(t, err)

	return &testEnv{engine: engine, clock: clk, publisher: pub, store: svc}
}

func as(principal string) context.Context {
	return models.WithCaller(context.Background(), principal)
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (env *testEnv) fund(t *testing.T, account string, value int64) {
	t.Helper()
	require.NoError(t, env.engine.Fund(context.Background(), account, testAsset, dec(value), ""))
}

func (env *testEnv) balance(t *testing.T, account string) decimal.Decimal {
	t.Helper()
	b, err := env.engine.GetBalance(context.Background(), account, testAsset)
	require.NoError(t, err)
	return b
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %d, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestNewEngine_Validation(t *testing.T) {
	env := setupTestEngine(t)

	_, err := NewEngine(EngineConfig{HoldingAccount: testHolding})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{Store: env.store})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{
		Store:          env.store,
		HoldingAccount: testHolding,
		DefaultAsset:   "BTC",
		Assets:         []string{testAsset},
	})
	assert.Error(t, err)

	e, err := NewEngine(EngineConfig{Store: env.store, HoldingAccount: testHolding})
	require.NoError(t, err)
	assert.Equal(t, testHolding, e.HoldingAccount())
}

func TestFund_RejectsDuplicateExternalId(t *testing.T) {
	env := setupTestEngine(t)
	ctx := context.Background()

	require.NoError(t, env.engine.Fund(ctx, "alice", "", dec(100), "wire-1"))
	err := env.engine.Fund(ctx, "alice", "", dec(100), "wire-1")
	require.Error(t, err)
	assert.Equal(t, KindState, KindOf(err))
	assertDecimal(t, 100, env.balance(t, "alice"))

	err = env.engine.Fund(ctx, "alice", "", dec(0), "")
	assert.ErrorIs(t, err, ErrInvalidParameters)

	err = env.engine.Fund(ctx, "alice", "DOGE", dec(5), "")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)
}

func TestKindOfAndCodeOf(t *testing.T) {
	wrapped := ErrNotDueYet
	assert.Equal(t, KindNotDue, KindOf(wrapped))
	assert.Equal(t, CodeNotDueYet, CodeOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, Code(0), CodeOf(assert.AnError))
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, CodeInsufficientContractBalance, CodeOf(ErrInsufficientEscrow))
	assert.Equal(t, CodeContractInsufficientBalance, CodeOf(ErrInsufficientFunds))
}

func TestAccrualHelpers(t *testing.T) {
	assert.True(t, deriveRate(dec(5), 10).IsZero())
	assertDecimal(t, 1, deriveRate(dec(10), 10))
	assertDecimal(t, 3, deriveRate(dec(7), 2))

	assert.Equal(t, uint64(1), dueIntervals(100, 100, 100))
	assert.Equal(t, uint64(1), dueIntervals(199, 100, 100))
	assert.Equal(t, uint64(2), dueIntervals(200, 100, 100))
	assert.Equal(t, uint64(3), dueIntervals(350, 100, 100))

	next, ok := advanceSchedule(100, 3, 100)
	assert.True(t, ok)
	assert.Equal(t, uint64(400), next)

	_, ok = advanceSchedule(^uint64(0)-10, 1, 100)
	assert.False(t, ok)
	_, ok = advanceSchedule(0, ^uint64(0), 2)
	assert.False(t, ok)
	_, ok = advanceSchedule(math.MaxInt64-10, 1, 100)
	assert.False(t, ok)
	next, ok = advanceSchedule(math.MaxInt64-100, 1, 100)
	assert.True(t, ok)
	assert.Equal(t, uint64(math.MaxInt64), next)

	s := &models.Stream{
		Recipients: []string{"a"},
		Rates:      map[string]decimal.Decimal{"a": dec(10)},
		Deposit:    amount.MustParse("1000"),
		StartTime:  100,
	}
	assertDecimal(t, 500, remainingDeposit(s, 150))
	assertDecimal(t, 1000, remainingDeposit(s, 50))
	assertDecimal(t, -1000, remainingDeposit(s, 300))
	assertDecimal(t, 0, cappedAccrual(s, "a", 300))
	assertDecimal(t, 500, cappedAccrual(s, "a", 150))
}
