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
	"context"
	"fmt"
	"net/http"

	"stream-escrow-go/internal/auth"
	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/metrics"

	"github.com/gorilla/mux"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type ServerConfig struct {
	Engine  *escrow.Engine
	Tokens  *auth.TokenService
	Health  HealthChecker
	Metrics *metrics.Recorder
}

// Server exposes the escrow engine over HTTP.
type Server struct {
	engine  *escrow.Engine
	tokens  *auth.TokenService
	health  HealthChecker
	metrics *metrics.Recorder
	router  *mux.Router
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}

	s := &Server{
		engine:  cfg.Engine,
		tokens:  cfg.Tokens,
		health:  cfg.Health,
		metrics: cfg.Metrics,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.authenticate)

	v1.HandleFunc("/streams", s.handleCreateStream).Methods(http.MethodPost)
	v1.HandleFunc("/streams/{id:[0-9]+}", s.handleGetStream).Methods(http.MethodGet)
	v1.HandleFunc("/streams/{id:[0-9]+}/withdraw", s.handleWithdrawStream).Methods(http.MethodPost)
	v1.HandleFunc("/streams/{id:[0-9]+}/cancel", s.handleCancelStream).Methods(http.MethodPost)
	v1.HandleFunc("/streams/{id:[0-9]+}/recipients", s.handleListRecipients).Methods(http.MethodGet)
	v1.HandleFunc("/streams/{id:[0-9]+}/recipients/{recipient}", s.handleGetRecipient).Methods(http.MethodGet)

	v1.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{id:[0-9]+}", s.handleGetSubscription).Methods(http.MethodGet)
	v1.HandleFunc("/subscriptions/{id:[0-9]+}/deposit", s.handleDepositSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{id:[0-9]+}/charge", s.handleChargeSubscription).Methods(http.MethodPost)
	v1.HandleFunc("/subscriptions/{id:[0-9]+}/cancel", s.handleCancelSubscription).Methods(http.MethodPost)

	v1.HandleFunc("/users/{user}/streams", s.handleUserStreams).Methods(http.MethodGet)
	v1.HandleFunc("/users/{user}/subscriptions", s.handleUserSubscriptions).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{account}/balances", s.handleAccountBalances).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
