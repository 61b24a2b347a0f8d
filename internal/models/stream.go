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

package models

import (
	"github.com/shopspring/decimal"
)

// Stream is a shared, depleting deposit accruing continuously to its recipients.
//
// The per-recipient maps are sparse. An absent LastWithdraw entry means the
// recipient has never withdrawn and reads as StartTime; an absent
// TotalWithdrawn entry reads as zero. Use the accessor methods rather than
// indexing the maps so the defaults are applied consistently.
type Stream struct {
	Id             uint32                     `json:"id"`
	Sender         string                     `json:"sender"`
	Recipients     []string                   `json:"recipients"`
	Asset          string                     `json:"asset"`
	Rates          map[string]decimal.Decimal `json:"rates"`
	Deposit        decimal.Decimal            `json:"deposit"`
	StartTime      uint64                     `json:"start_time"`
	LastWithdraw   map[string]uint64          `json:"last_withdraw"`
	TotalWithdrawn map[string]decimal.Decimal `json:"total_withdrawn"`
	IsActive       bool                       `json:"is_active"`
	Title          *string                    `json:"title,omitempty"`
	Description    *string                    `json:"description,omitempty"`
}

// HasRecipient reports whether account is one of the stream's recipients.
func (s *Stream) HasRecipient(account string) bool {
	for _, r := range s.Recipients {
		if r == account {
			return true
		}
	}
	return false
}

// RateOf returns the recipient's per-second rate, zero for non-members.
func (s *Stream) RateOf(recipient string) decimal.Decimal {
	if rate, ok := s.Rates[recipient]; ok {
		return rate
	}
	return decimal.Zero
}

// LastWithdrawOf returns the recipient's last withdrawal time, or StartTime
// when the recipient has never withdrawn.
func (s *Stream) LastWithdrawOf(recipient string) uint64 {
	if ts, ok := s.LastWithdraw[recipient]; ok {
		return ts
	}
	return s.StartTime
}

// TotalWithdrawnOf returns the cumulative amount paid to the recipient.
func (s *Stream) TotalWithdrawnOf(recipient string) decimal.Decimal {
	if total, ok := s.TotalWithdrawn[recipient]; ok {
		return total
	}
	return decimal.Zero
}

// RecipientInfo is a read-only accrual snapshot for one recipient.
type RecipientInfo struct {
	Recipient      string          `json:"recipient"`
	TotalWithdrawn decimal.Decimal `json:"total_withdrawn"`
	Accrued        decimal.Decimal `json:"accrued"`
	LastWithdraw   uint64          `json:"last_withdraw"`
}
