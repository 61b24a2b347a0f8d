package api

import (
	"net/http"
	"strings"

	"stream-escrow-go/internal/models"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// authenticate attaches the bearer token's principal to the request context.
// Requests without a token continue anonymously; operations that need a
// caller reject them later. A token that fails verification is a 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "malformed authorization header")
			return
		}

		principal, err := s.tokens.Verify(token)
		if err != nil {
			zap.L().Debug("Rejected bearer token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(models.WithCaller(r.Context(), principal)))
	})
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return s.metrics.InstrumentHandler(routeTemplate, next)
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
