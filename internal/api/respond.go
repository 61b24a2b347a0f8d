package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"stream-escrow-go/internal/escrow"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  int    `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeEngineError maps an engine error onto an HTTP status. Internal
// failures are logged and reported without detail.
func writeEngineError(w http.ResponseWriter, err error) {
	kind := escrow.KindOf(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeJSON(w, status, errorResponse{
		Error: err.Error(),
		Kind:  string(kind),
		Code:  int(escrow.CodeOf(err)),
	})
}

func statusForKind(kind escrow.Kind) int {
	switch kind {
	case escrow.KindNotFound:
		return http.StatusNotFound
	case escrow.KindState:
		return http.StatusConflict
	case escrow.KindAuthorization:
		return http.StatusForbidden
	case escrow.KindValidation:
		return http.StatusBadRequest
	case escrow.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case escrow.KindNotDue:
		return http.StatusTooEarly
	case escrow.KindNothingToWithdraw:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func pathId(r *http.Request) (uint32, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint32(id), nil
}
