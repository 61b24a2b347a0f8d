package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher defines the interface for delivering notifications to a sink.
type Publisher interface {
	// Publish sends one payload under topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Close releases any connection held by the publisher.
	Close() error
}

const (
	TopicStreamCreated         = "stream.created"
	TopicStreamWithdrawn       = "stream.withdrawn"
	TopicStreamCancelled       = "stream.cancelled"
	TopicSubscriptionCreated   = "subscription.created"
	TopicSubscriptionDeposited = "subscription.deposited"
	TopicSubscriptionCharged   = "subscription.charged"
	TopicSubscriptionCancelled = "subscription.cancelled"
)

// Envelope is the JSON body of every notification.
type Envelope struct {
	Id         string `json:"id"`
	Topic      string `json:"topic"`
	OccurredAt uint64 `json:"occurred_at"`
	Data       any    `json:"data"`
}

// Encode wraps data in an Envelope with a fresh id.
func Encode(topic string, occurredAt uint64, data any) ([]byte, error) {
	payload, err := json.Marshal(Envelope{
		Id:         uuid.New().String(),
		Topic:      topic,
		OccurredAt: occurredAt,
		Data:       data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return payload, nil
}

type StreamCreated struct {
	StreamId   uint32          `json:"stream_id"`
	Sender     string          `json:"sender"`
	Recipients []string        `json:"recipients"`
	Asset      string          `json:"asset"`
	Deposit    decimal.Decimal `json:"deposit"`
}

type StreamWithdrawn struct {
	StreamId  uint32          `json:"stream_id"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Exhausted bool            `json:"exhausted"`
}

type StreamCancelled struct {
	StreamId uint32          `json:"stream_id"`
	Sender   string          `json:"sender"`
	Refund   decimal.Decimal `json:"refund"`
}

type SubscriptionCreated struct {
	SubscriptionId    uint32          `json:"subscription_id"`
	Subscriber        string          `json:"subscriber"`
	Receiver          string          `json:"receiver"`
	Asset             string          `json:"asset"`
	AmountPerInterval decimal.Decimal `json:"amount_per_interval"`
	IntervalSeconds   uint64          `json:"interval_seconds"`
	NextPaymentTime   uint64          `json:"next_payment_time"`
}

type SubscriptionDeposited struct {
	SubscriptionId uint32          `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Balance        decimal.Decimal `json:"balance"`
}

type SubscriptionCharged struct {
	SubscriptionId  uint32          `json:"subscription_id"`
	Receiver        string          `json:"receiver"`
	Amount          decimal.Decimal `json:"amount"`
	DueIntervals    uint64          `json:"due_intervals"`
	NextPaymentTime uint64          `json:"next_payment_time"`
}

type SubscriptionCancelled struct {
	SubscriptionId uint32          `json:"subscription_id"`
	Subscriber     string          `json:"subscriber"`
	Refund         decimal.Decimal `json:"refund"`
}
