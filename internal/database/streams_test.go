package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"stream-escrow-go/internal/models"
	"stream-escrow-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupServiceTestDb(t *testing.T) (*Service, func()) {
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return service, service.Close
}

func strPtr(s string) *string { return &s }

func TestNextStreamId_StartsAtOneAndIncrements(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for want := uint32(1); want <= 3; want++ {
		id, err := service.NextStreamId(ctx)
		if err != nil {
			t.Fatalf("NextStreamId failed: %v", err)
		}
		if id != want {
			t.Errorf("Expected id %d, got %d", want, id)
		}
	}

	// Subscriptions use their own counter
	subId, err := service.NextSubscriptionId(ctx)
	if err != nil {
		t.Fatalf("NextSubscriptionId failed: %v", err)
	}
	if subId != 1 {
		t.Errorf("Expected first subscription id 1, got %d", subId)
	}
}

func TestSaveStream_RoundTrip(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	ctx := context.Background()
	stream := &models.Stream{
		Id:         7,
		Sender:     "alice",
		Recipients: []string{"carol", "bob"},
		Asset:      "USDC",
		Rates: map[string]decimal.Decimal{
			"carol": decimal.NewFromInt(20),
			"bob":   decimal.NewFromInt(10),
		},
		Deposit:        decimal.NewFromInt(10000),
		StartTime:      1000,
		LastWithdraw:   map[string]uint64{"bob": 1100},
		TotalWithdrawn: map[string]decimal.Decimal{"carol": decimal.Zero, "bob": decimal.NewFromInt(1000)},
		IsActive:       true,
		Title:          strPtr("Payroll"),
	}

	if err := service.SaveStream(ctx, stream); err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}

	got, err := service.GetStream(ctx, 7)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}

	if len(got.Recipients) != 2 || got.Recipients[0] != "carol" || got.Recipients[1] != "bob" {
		t.Errorf("Expected recipient order [carol bob], got %v", got.Recipients)
	}
	if !got.RateOf("carol").Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected carol rate 20, got %s", got.RateOf("carol").String())
	}
	if _, ok := got.LastWithdraw["carol"]; ok {
		t.Error("Expected carol to have no recorded last withdraw")
	}
	if got.LastWithdrawOf("carol") != 1000 {
		t.Errorf("Expected carol last withdraw to default to start 1000, got %d", got.LastWithdrawOf("carol"))
	}
	if got.LastWithdrawOf("bob") != 1100 {
		t.Errorf("Expected bob last withdraw 1100, got %d", got.LastWithdrawOf("bob"))
	}
	if _, ok := got.TotalWithdrawn["carol"]; !ok {
		t.Error("Expected explicit zero total for carol to be kept")
	}
	if !got.TotalWithdrawnOf("bob").Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected bob total 1000, got %s", got.TotalWithdrawnOf("bob").String())
	}
	if got.Title == nil || *got.Title != "Payroll" {
		t.Errorf("Expected title Payroll, got %v", got.Title)
	}
	if got.Description != nil {
		t.Errorf("Expected nil description, got %q", *got.Description)
	}
	if !got.IsActive {
		t.Error("Expected stream to be active")
	}
}

func TestSaveStream_UpdatesMutableFields(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	ctx := context.Background()
	stream := &models.Stream{
		Id:             1,
		Sender:         "alice",
		Recipients:     []string{"bob"},
		Asset:          "USDC",
		Rates:          map[string]decimal.Decimal{"bob": decimal.NewFromInt(10)},
		Deposit:        decimal.NewFromInt(1000),
		StartTime:      500,
		LastWithdraw:   map[string]uint64{},
		TotalWithdrawn: map[string]decimal.Decimal{"bob": decimal.Zero},
		IsActive:       true,
	}
	if err := service.SaveStream(ctx, stream); err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}

	stream.Deposit = decimal.Zero
	stream.IsActive = false
	stream.LastWithdraw["bob"] = 550
	stream.TotalWithdrawn["bob"] = decimal.NewFromInt(500)
	if err := service.SaveStream(ctx, stream); err != nil {
		t.Fatalf("SaveStream update failed: %v", err)
	}

	got, err := service.GetStream(ctx, 1)
	if err != nil {
		t.Fatalf("GetStream failed: %v", err)
	}
	if got.IsActive || !got.Deposit.IsZero() {
		t.Errorf("Expected inactive stream with zero deposit, got active=%v deposit=%s", got.IsActive, got.Deposit.String())
	}
	if got.LastWithdrawOf("bob") != 550 || !got.TotalWithdrawnOf("bob").Equal(decimal.NewFromInt(500)) {
		t.Errorf("Unexpected bob state: last=%d total=%s", got.LastWithdrawOf("bob"), got.TotalWithdrawnOf("bob").String())
	}
}

func TestGetStream_NotFound(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	_, err := service.GetStream(context.Background(), 42)
	if !errors.Is(err, store.ErrStreamNotFound) {
		t.Fatalf("Expected ErrStreamNotFound, got %v", err)
	}
}

func TestWithinTx_RollbackDiscardsEverything(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("boom")
	err := service.WithinTx(ctx, func(ctx context.Context) error {
		id, err := service.NextStreamId(ctx)
		if err != nil {
			return err
		}
		stream := &models.Stream{
			Id:         id,
			Sender:     "alice",
			Recipients: []string{"bob"},
			Asset:      "USDC",
			Rates:      map[string]decimal.Decimal{"bob": decimal.NewFromInt(1)},
			Deposit:    decimal.NewFromInt(10),
			IsActive:   true,
		}
		if err := service.SaveStream(ctx, stream); err != nil {
			return err
		}
		if err := service.AppendIndex(ctx, store.IndexSentStreams, "alice", id); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	if _, err := service.GetStream(ctx, 1); !errors.Is(err, store.ErrStreamNotFound) {
		t.Errorf("Expected stream to be rolled back, got %v", err)
	}
	ids, _ := service.ListIndex(ctx, store.IndexSentStreams, "alice")
	if len(ids) != 0 {
		t.Errorf("Expected empty index after rollback, got %v", ids)
	}
	id, _ := service.NextStreamId(ctx)
	if id != 1 {
		t.Errorf("Expected counter rollback to hand out 1 again, got %d", id)
	}
}

func TestSaveStream_RejectsOutOfRangeTimestamp(t *testing.T) {
	service, cleanup := setupServiceTestDb(t)
	defer cleanup()

	stream := &models.Stream{
		Id:         1,
		Sender:     "alice",
		Recipients: []string{"bob"},
		Rates:      map[string]decimal.Decimal{"bob": decimal.NewFromInt(1)},
		Deposit:    decimal.NewFromInt(10),
		StartTime:  1 << 63,
	}
	if err := service.SaveStream(context.Background(), stream); err == nil {
		t.Error("Expected error for start time beyond int64")
	}
}
