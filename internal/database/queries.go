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

const (
	// Counter queries
	queryNextCounterValue = `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`

	// Stream queries
	queryUpsertStream = `
		INSERT INTO streams (id, sender, asset, deposit, start_time, is_active, title, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			deposit = excluded.deposit,
			is_active = excluded.is_active,
			title = excluded.title,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`

	queryUpsertStreamRecipient = `
		INSERT INTO stream_recipients (stream_id, position, recipient, rate, last_withdraw, total_withdrawn)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(stream_id, recipient) DO UPDATE SET
			last_withdraw = excluded.last_withdraw,
			total_withdrawn = excluded.total_withdrawn`

	queryGetStream = `
		SELECT id, sender, asset, deposit, start_time, is_active, title, description
		FROM streams
		WHERE id = ?`

	queryGetStreamRecipients = `
		SELECT recipient, rate, last_withdraw, total_withdrawn
		FROM stream_recipients
		WHERE stream_id = ?
		ORDER BY position`

	// Subscription queries
	queryUpsertSubscription = `
		INSERT INTO subscriptions (
			id, subscriber, receiver, asset, amount_per_interval, interval_seconds,
			next_payment_time, balance, active, title, description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_payment_time = excluded.next_payment_time,
			balance = excluded.balance,
			active = excluded.active,
			title = excluded.title,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`

	querySelectSubscription = `
		SELECT id, subscriber, receiver, asset, amount_per_interval, interval_seconds,
		       next_payment_time, balance, active, title, description
		FROM subscriptions`

	queryGetSubscription = querySelectSubscription + `
		WHERE id = ?`

	queryListDueSubscriptions = querySelectSubscription + `
		WHERE active = 1 AND next_payment_time <= ?
		  AND (next_payment_time > ? OR (next_payment_time = ? AND id > ?))
		ORDER BY next_payment_time, id
		LIMIT ?`

	// User index queries
	queryAppendUserIndex = `
		INSERT INTO user_index (kind, user_id, seq, entity_id)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?
		FROM user_index
		WHERE kind = ? AND user_id = ?`

	queryListUserIndex = `
		SELECT entity_id
		FROM user_index
		WHERE kind = ? AND user_id = ?
		ORDER BY seq`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE account = ? AND asset = ?`

	queryGetAllAccountBalances = `
		SELECT id, account, asset, balance, last_transaction_id, version, updated_at
		FROM account_balances
		WHERE account = ? AND balance != '0'
		ORDER BY asset`

	queryListAccounts = `
		SELECT DISTINCT account
		FROM account_balances
		ORDER BY account`

	queryReconcileAmounts = `
		SELECT amount
		FROM transactions
		WHERE account = ? AND asset = ?`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE external_transaction_id = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE account = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, account, asset, balance, last_transaction_id, version)
		VALUES (?, ?, ?, ?, '', ?)`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, account, counterparty, asset, transaction_type, amount, balance_before, balance_after,
			transfer_id, external_transaction_id, reference, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account = ? AND asset = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, account, counterparty, asset, transaction_type, amount, balance_before, balance_after,
		       transfer_id, external_transaction_id, reference, created_at
		FROM transactions
		WHERE account = ? AND asset = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
)
