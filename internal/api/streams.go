package api

import (
	"net/http"

	"stream-escrow-go/internal/escrow"
	"stream-escrow-go/internal/models"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type createStreamRequest struct {
	Sender           string            `json:"sender"`
	Recipients       []string          `json:"recipients"`
	Asset            string            `json:"asset"`
	AmountsPerPeriod []decimal.Decimal `json:"amounts_per_period"`
	PeriodSeconds    uint64            `json:"period_seconds"`
	Deposit          decimal.Decimal   `json:"deposit"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
}

type withdrawRequest struct {
	Recipient string `json:"recipient"`
}

type createdResponse struct {
	Id uint32 `json:"id"`
}

type amountResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

type refundResponse struct {
	Refund decimal.Decimal `json:"refund"`
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req createStreamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Sender == "" {
		req.Sender = models.CallerFromContext(r.Context())
	}

	id, err := s.engine.CreateStream(r.Context(), escrow.CreateStreamParams{
		Sender:           req.Sender,
		Recipients:       req.Recipients,
		Asset:            req.Asset,
		AmountsPerPeriod: req.AmountsPerPeriod,
		PeriodSeconds:    req.PeriodSeconds,
		Deposit:          req.Deposit,
		Title:            req.Title,
		Description:      req.Description,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Id: id})
}

func (s *Server) handleGetStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stream, err := s.engine.GetStream(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stream)
}

// handleWithdrawStream pays the named recipient, or the caller when the body
// names nobody. Withdrawal needs no authorization: funds only ever go to
// the recipient.
func (s *Server) handleWithdrawStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Recipient == "" {
		req.Recipient = models.CallerFromContext(r.Context())
	}
	if req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}

	paid, err := s.engine.WithdrawStream(r.Context(), id, req.Recipient)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse{Amount: paid})
}

func (s *Server) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	refund, err := s.engine.CancelStream(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, refundResponse{Refund: refund})
}

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	infos, err := s.engine.GetAllRecipientsInfo(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := s.engine.GetRecipientInfo(r.Context(), id, mux.Vars(r)["recipient"])
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleUserStreams(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	var (
		streams []models.Stream
		err     error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "sent":
		streams, err = s.engine.ListSentStreams(r.Context(), user)
	case "received":
		streams, err = s.engine.ListReceivedStreams(r.Context(), user)
	case "", "all":
		streams, err = s.engine.ListUserStreams(r.Context(), user)
	default:
		writeError(w, http.StatusBadRequest, "role must be sent, received or all")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streams)
}
