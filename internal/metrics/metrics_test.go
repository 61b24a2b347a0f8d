package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveOperation("stream.create", "ok")
		r.AddTransferred("stream_withdraw", "USDC", decimal.NewFromInt(5))
		r.ObserveKeeperCharge("charged")
		r.ObservePublishFailure("stream.created")
		r.SetBreakerState("amqp", 2)
	})
	assert.Nil(t, r.Registry())
}

func TestRecorder_CountsOperations(t *testing.T) {
	r := NewRecorder()
	r.ObserveOperation("stream.withdraw", "ok")
	r.ObserveOperation("stream.withdraw", "ok")
	r.ObserveOperation("stream.withdraw", "nothing_to_withdraw")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.operations.WithLabelValues("stream.withdraw", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.operations.WithLabelValues("stream.withdraw", "nothing_to_withdraw")))
}

func TestRecorder_AddTransferredIgnoresNonPositive(t *testing.T) {
	r := NewRecorder()
	r.AddTransferred("subscription_charge", "USDC", decimal.NewFromInt(30))
	r.AddTransferred("subscription_charge", "USDC", decimal.Zero)

	assert.Equal(t, float64(30), testutil.ToFloat64(r.transferred.WithLabelValues("subscription_charge", "USDC")))
}

func TestRecorder_HandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveKeeperCharge("charged")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "stream_escrow_keeper_charges_total"))
}

func TestRecorder_InstrumentHandler(t *testing.T) {
	r := NewRecorder()
	h := r.InstrumentHandler(func(*http.Request) string { return "/v1/streams/{id}" },
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/streams/9", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.httpRequests.WithLabelValues(http.MethodGet, "/v1/streams/{id}", "404")))
}
