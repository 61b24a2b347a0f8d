package models

import "github.com/shopspring/decimal"

// Subscription is an isolated escrow paying AmountPerInterval to Receiver
// once per IntervalSeconds, charged on demand.
type Subscription struct {
	Id                uint32          `json:"id"`
	Subscriber        string          `json:"subscriber"`
	Receiver          string          `json:"receiver"`
	Asset             string          `json:"asset"`
	AmountPerInterval decimal.Decimal `json:"amount_per_interval"`
	IntervalSeconds   uint64          `json:"interval_seconds"`
	NextPaymentTime   uint64          `json:"next_payment_time"`
	Balance           decimal.Decimal `json:"balance"`
	Active            bool            `json:"active"`
	Title             *string         `json:"title,omitempty"`
	Description       *string         `json:"description,omitempty"`
}

// ChargeResult describes a settled charge.
type ChargeResult struct {
	SubscriptionId  uint32          `json:"subscription_id"`
	DueIntervals    uint64          `json:"due_intervals"`
	Amount          decimal.Decimal `json:"amount"`
	NextPaymentTime uint64          `json:"next_payment_time"`
	Balance         decimal.Decimal `json:"balance"`
}

// DueCursor marks a position in the due-subscription ordering. The zero
// value starts from the beginning.
type DueCursor struct {
	NextPaymentTime uint64
	Id              uint32
}

// Cursor returns the position just past s in the due ordering.
func (s Subscription) Cursor() DueCursor {
	return DueCursor{NextPaymentTime: s.NextPaymentTime, Id: s.Id}
}
