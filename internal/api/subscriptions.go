package api

import (
	"net/http"

	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/models"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createSubscriptionRequest struct {
	Subscriber        string          `json:"subscriber"`
	Receiver          string          `json:"receiver"`
	Asset             string          `json:"asset"`
	AmountPerInterval decimal.Decimal `json:"amount_per_interval"`
	IntervalSeconds   uint64          `json:"interval_seconds"`
	FirstPaymentTime  uint64          `json:"first_payment_time"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Subscriber == "" {
		req.Subscriber = models.CallerFromContext(r.Context())
	}

	id, err := s.engine.CreateSubscription(r.Context(), escrow.CreateSubscriptionParams{
		Subscriber:        req.Subscriber,
		Receiver:          req.Receiver,
		Asset:             req.Asset,
		AmountPerInterval: req.AmountPerInterval,
		IntervalSeconds:   req.IntervalSeconds,
		FirstPaymentTime:  req.FirstPaymentTime,
		Title:             req.Title,
		Description:       req.Description,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Id: id})
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := s.engine.GetSubscription(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDepositSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := s.engine.DepositToSubscription(r.Context(), id, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

func (s *Server) handleChargeSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.engine.ChargeSubscription(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	refund, err := s.engine.CancelSubscription(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{Refund: refund})
}

func (s *Server) handleUserSubscriptions(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	var (
		subs []models.Subscription
		err  error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "subscriber":
		subs, err = s.engine.ListSubscriberSubscriptions(r.Context(), user)
	case "receiver":
		subs, err = s.engine.ListReceiverSubscriptions(r.Context(), user)
	case "", "all":
		subs, err = s.engine.ListUserSubscriptions(r.Context(), user)
	default:
		writeError(w, http.StatusBadRequest, "role must be subscriber, receiver or all")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
