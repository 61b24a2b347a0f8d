package escrow

import (
	"context"
	"testing"

	"stream-escrow-go/internal/events"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (env *testEnv) createStream(t *testing.T, sender string, recipients []string, amounts []int64, period uint64, deposit int64) uint32 {
	t.Helper()
	perPeriod := make([]decimal.Decimal, len(amounts))
	for i, a := range amounts {
		perPeriod[i] = dec(a)
	}
	id, err := env.engine.CreateStream(as(sender), CreateStreamParams{
		Sender:           sender,
		Recipients:       recipients,
		AmountsPerPeriod: perPeriod,
		PeriodSeconds:    period,
		Deposit:          dec(deposit),
	})
	require.NoError(t, err)
	return id
}

func TestCreateStream_EscrowsDeposit(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 5000)

	id, err := env.engine.CreateStream(as("alice"), CreateStreamParams{
		Sender:           "alice",
		Recipients:       []string{"bob", "carol"},
		AmountsPerPeriod: []decimal.Decimal{dec(60), dec(120)},
		PeriodSeconds:    60,
		Deposit:          dec(3000),
		Title:            "payroll",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)

	assertDecimal(t, 2000, env.balance(t, "alice"))
	assertDecimal(t, 3000, env.balance(t, testHolding))

	stream, err := env.engine.GetStream(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "alice", stream.Sender)
	assert.Equal(t, []string{"bob", "carol"}, stream.Recipients)
	assert.Equal(t, testAsset, stream.Asset)
	assertDecimal(t, 1, stream.RateOf("bob"))
	assertDecimal(t, 2, stream.RateOf("carol"))
	assert.Equal(t, testStart, stream.StartTime)
	assert.True(t, stream.IsActive)
	require.NotNil(t, stream.Title)
	assert.Equal(t, "payroll", *stream.Title)
	assert.Nil(t, stream.Description)
	assert.Equal(t, testStart, stream.LastWithdrawOf("bob"))
	assertDecimal(t, 0, stream.TotalWithdrawnOf("carol"))

	assert.Equal(t, []string{events.TopicStreamCreated}, env.publisher.Topics())
}

func TestCreateStream_RateTruncation(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)

	_, err := env.engine.CreateStream(as("alice"), CreateStreamParams{
		Sender:           "alice",
		Recipients:       []string{"bob"},
		AmountsPerPeriod: []decimal.Decimal{dec(5)},
		PeriodSeconds:    10,
		Deposit:          dec(100),
	})
	assert.ErrorIs(t, err, ErrRateTooLow)
	assert.Equal(t, CodeInvalidParameters, CodeOf(err))
	assertDecimal(t, 1000, env.balance(t, "alice"))

	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 10, 100)
	assert.Equal(t, uint32(1), id)
}

func TestCreateStream_RejectsInvalidParameters(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)

	base := CreateStreamParams{
		Sender:           "alice",
		Recipients:       []string{"bob"},
		AmountsPerPeriod: []decimal.Decimal{dec(10)},
		PeriodSeconds:    1,
		Deposit:          dec(100),
	}

	tests := []struct {
		name   string
		mutate func(p *CreateStreamParams)
		want   error
	}{
		{"no recipients", func(p *CreateStreamParams) { p.Recipients = nil; p.AmountsPerPeriod = nil }, ErrInvalidParameters},
		{"length mismatch", func(p *CreateStreamParams) { p.AmountsPerPeriod = []decimal.Decimal{dec(1), dec(2)} }, ErrInvalidParameters},
		{"zero period", func(p *CreateStreamParams) { p.PeriodSeconds = 0 }, ErrInvalidParameters},
		{"zero deposit", func(p *CreateStreamParams) { p.Deposit = dec(0) }, ErrInvalidParameters},
		{"fractional deposit", func(p *CreateStreamParams) { p.Deposit = decimal.RequireFromString("1.5") }, ErrInvalidParameters},
		{"negative amount", func(p *CreateStreamParams) { p.AmountsPerPeriod = []decimal.Decimal{dec(-1)} }, ErrInvalidParameters},
		{"duplicate recipient", func(p *CreateStreamParams) {
			p.Recipients = []string{"bob", "bob"}
			p.AmountsPerPeriod = []decimal.Decimal{dec(1), dec(1)}
		}, ErrDuplicateRecipient},
		{"unsupported asset", func(p *CreateStreamParams) { p.Asset = "DOGE" }, ErrUnsupportedAsset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			_, err := env.engine.CreateStream(as("alice"), p)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}

	assertDecimal(t, 1000, env.balance(t, "alice"))
	assert.Empty(t, env.publisher.Messages())
}

func TestCreateStream_Unauthorized(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)

	params := CreateStreamParams{
		Sender:           "alice",
		Recipients:       []string{"bob"},
		AmountsPerPeriod: []decimal.Decimal{dec(10)},
		PeriodSeconds:    1,
		Deposit:          dec(100),
	}

	_, err := env.engine.CreateStream(as("mallory"), params)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindAuthorization, KindOf(err))

	_, err = env.engine.CreateStream(context.Background(), params)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assertDecimal(t, 1000, env.balance(t, "alice"))
}

func TestCreateStream_InsufficientFundsRollsBack(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 50)

	_, err := env.engine.CreateStream(as("alice"), CreateStreamParams{
		Sender:           "alice",
		Recipients:       []string{"bob"},
		AmountsPerPeriod: []decimal.Decimal{dec(10)},
		PeriodSeconds:    1,
		Deposit:          dec(100),
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, KindInsufficientFunds, KindOf(err))

	ids, err := env.engine.ListSentStreamIds(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)

	// The failed attempt must not have consumed an id.
	env.fund(t, "alice", 100)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 100)
	assert.Equal(t, uint32(1), id)
}

func TestWithdrawStream_MultiRecipientIndependence(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 10000)
	id := env.createStream(t, "alice", []string{"bob", "carol"}, []int64{10, 20}, 1, 10000)

	env.clock.Advance(100)
	ctx := context.Background()

	got, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assertDecimal(t, 1000, got)

	got, err = env.engine.WithdrawStream(ctx, id, "carol")
	require.NoError(t, err)
	assertDecimal(t, 2000, got)

	assertDecimal(t, 1000, env.balance(t, "bob"))
	assertDecimal(t, 2000, env.balance(t, "carol"))
	assertDecimal(t, 7000, env.balance(t, testHolding))

	stream, err := env.engine.GetStream(ctx, id)
	require.NoError(t, err)
	assert.True(t, stream.IsActive)
	assert.Equal(t, testStart+100, stream.LastWithdrawOf("bob"))
	assertDecimal(t, 2000, stream.TotalWithdrawnOf("carol"))
}

func TestWithdrawStream_SameInstantIsNoop(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 1000)
	ctx := context.Background()

	got, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	env.clock.Advance(10)
	got, err = env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assertDecimal(t, 100, got)

	got, err = env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	assertDecimal(t, 100, env.balance(t, "bob"))
	assert.Equal(t, []string{events.TopicStreamCreated, events.TopicStreamWithdrawn}, env.publisher.Topics())
}

func TestWithdrawStream_ExhaustionIsTerminal(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 1000)
	ctx := context.Background()

	// Withdrawals do not slow depletion: at t+50 half the deposit has been
	// distributed and bob's 500 takes the rest.
	env.clock.Advance(50)
	got, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assertDecimal(t, 500, got)

	stream, err := env.engine.GetStream(ctx, id)
	require.NoError(t, err)
	assert.False(t, stream.IsActive)

	env.clock.Advance(10)
	_, err = env.engine.WithdrawStream(ctx, id, "bob")
	assert.ErrorIs(t, err, ErrStreamInactive)
	assert.Equal(t, KindState, KindOf(err))

	_, err = env.engine.CancelStream(as("alice"), id)
	assert.ErrorIs(t, err, ErrStreamInactive)
}

func TestWithdrawStream_DepositConservation(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob", "carol"}, []int64{10, 20}, 1, 1000)
	ctx := context.Background()

	env.clock.Advance(20)
	got, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	assertDecimal(t, 200, got)

	// carol has accrued 600 but only 100 of the shared deposit is left.
	env.clock.Advance(10)
	got, err = env.engine.WithdrawStream(ctx, id, "carol")
	require.NoError(t, err)
	assertDecimal(t, 100, got)

	stream, err := env.engine.GetStream(ctx, id)
	require.NoError(t, err)
	assert.False(t, stream.IsActive)

	withdrawn := stream.TotalWithdrawnOf("bob").Add(stream.TotalWithdrawnOf("carol"))
	assert.True(t, withdrawn.LessThanOrEqual(dec(1000)))
	assertDecimal(t, 1000, withdrawn.Add(env.balance(t, testHolding)))
}

func TestWithdrawStream_NothingToWithdraw(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob", "carol"}, []int64{10, 10}, 1, 1000)
	ctx := context.Background()

	env.clock.Advance(30)
	_, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)

	// Everything has been distributed by t+50; carol's claim on it is gone.
	env.clock.Advance(30)
	_, err = env.engine.WithdrawStream(ctx, id, "carol")
	assert.ErrorIs(t, err, ErrNothingToWithdraw)
	assert.Equal(t, CodeNothingToWithdraw, CodeOf(err))

	stream, err := env.engine.GetStream(ctx, id)
	require.NoError(t, err)
	assert.True(t, stream.IsActive)
	assertDecimal(t, 0, stream.TotalWithdrawnOf("carol"))
}

func TestWithdrawStream_Errors(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 1000)
	ctx := context.Background()

	_, err := env.engine.WithdrawStream(ctx, 99, "bob")
	assert.ErrorIs(t, err, ErrStreamNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = env.engine.WithdrawStream(ctx, id, "mallory")
	assert.ErrorIs(t, err, ErrNotRecipient)
}

func TestCancelStream_RefundsRemaining(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 1000)

	env.clock.Advance(50)

	_, err := env.engine.CancelStream(as("bob"), id)
	assert.ErrorIs(t, err, ErrUnauthorized)

	refund, err := env.engine.CancelStream(as("alice"), id)
	require.NoError(t, err)
	assertDecimal(t, 500, refund)
	assertDecimal(t, 500, env.balance(t, "alice"))

	stream, err := env.engine.GetStream(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, stream.IsActive)
	assert.True(t, stream.Deposit.IsZero())

	info, err := env.engine.GetRecipientInfo(context.Background(), id, "bob")
	require.NoError(t, err)
	assert.True(t, info.Accrued.IsZero())

	msgs := env.publisher.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, events.TopicStreamCancelled, msgs[1].Topic)
	assert.Contains(t, string(msgs[1].Payload), `"refund":"500"`)
}

func TestCancelStream_AfterFullDistributionRefundsNothing(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob"}, []int64{10}, 1, 1000)

	env.clock.Advance(150)
	refund, err := env.engine.CancelStream(as("alice"), id)
	require.NoError(t, err)
	assert.True(t, refund.IsZero())
	assertDecimal(t, 0, env.balance(t, "alice"))
}

func TestRecipientInfo(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	id := env.createStream(t, "alice", []string{"bob", "carol"}, []int64{10, 20}, 1, 1000)
	ctx := context.Background()

	env.clock.Advance(10)
	_, err := env.engine.WithdrawStream(ctx, id, "bob")
	require.NoError(t, err)
	env.clock.Advance(5)

	info, err := env.engine.GetRecipientInfo(ctx, id, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", info.Recipient)
	assertDecimal(t, 100, info.TotalWithdrawn)
	assertDecimal(t, 50, info.Accrued)
	assert.Equal(t, testStart+10, info.LastWithdraw)

	all, err := env.engine.GetAllRecipientsInfo(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "carol", all[1].Recipient)
	assertDecimal(t, 300, all[1].Accrued)
	assert.Equal(t, testStart, all[1].LastWithdraw)

	// Past exhaustion the reported accrual is capped to zero.
	env.clock.Advance(100)
	info, err = env.engine.GetRecipientInfo(ctx, id, "carol")
	require.NoError(t, err)
	assert.True(t, info.Accrued.IsZero())

	_, err = env.engine.GetRecipientInfo(ctx, id, "dave")
	assert.ErrorIs(t, err, ErrNotRecipient)
	_, err = env.engine.GetAllRecipientsInfo(ctx, 42)
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestStreamListings(t *testing.T) {
	env := setupTestEngine(t)
	env.fund(t, "alice", 1000)
	env.fund(t, "bob", 1000)
	ctx := context.Background()

	first := env.createStream(t, "alice", []string{"bob", "alice"}, []int64{1, 1}, 1, 100)
	second := env.createStream(t, "bob", []string{"alice"}, []int64{1}, 1, 100)

	sent, err := env.engine.ListSentStreamIds(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint32{first}, sent)

	received, err := env.engine.ListReceivedStreamIds(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint32{first, second}, received)

	all, err := env.engine.ListUserStreams(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first, all[0].Id)
	assert.Equal(t, second, all[1].Id)

	sentStreams, err := env.engine.ListSentStreams(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, sentStreams, 1)
	assert.Equal(t, second, sentStreams[0].Id)

	receivedStreams, err := env.engine.ListReceivedStreams(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, receivedStreams, 1)
	assert.Equal(t, first, receivedStreams[0].Id)

	none, err := env.engine.ListUserStreams(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
