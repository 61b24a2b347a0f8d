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

package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountBalance is the public view of one ledger balance.
type AccountBalance struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

// handleAccountBalances returns all non-zero balances for an account
func (s *Server) handleAccountBalances(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]

	balances, err := s.engine.ListBalances(r.Context(), account)
	if err != nil {
		zap.L().Error("Failed to get account balances", zap.String("account", account), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve balances")
		return
	}

	result := make([]AccountBalance, len(balances))
	for i, balance := range balances {
		result[i] = AccountBalance{
			Asset:   balance.Asset,
			Balance: balance.Balance,
		}
	}

	writeJSON(w, http.StatusOK, result)
}
