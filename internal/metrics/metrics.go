package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "stream_escrow"

// Recorder owns the Prometheus collectors for one process. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations      *prometheus.CounterVec
	transferred     *prometheus.CounterVec
	keeperCharges   *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations by name and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		transferred: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "transferred_units_total",
				Help:      "Units moved through the holding account, by flow and asset. Approximate above 2^53.",
			},
			[]string{"flow", "asset"},
		),
		keeperCharges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "charges_total",
				Help:      "Subscription charges attempted by the keeper, by result.",
			},
			[]string{"result"},
		),
		publishFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "publish_failures_total",
				Help:      "Notifications that could not be delivered, by topic.",
			},
			[]string{"topic"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "breaker_state",
				Help:      "Publisher circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"method", "route"},
		),
	}

	r.registry.MustRegister(
		r.operations,
		r.transferred,
		r.keeperCharges,
		r.publishFailures,
		r.breakerState,
		r.httpRequests,
		r.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveOperation counts one engine operation. outcome is "ok" or an error kind.
func (r *Recorder) ObserveOperation(operation, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, outcome).Inc()
}

// AddTransferred records units moved for a flow such as "stream_withdraw".
func (r *Recorder) AddTransferred(flow, asset string, amount decimal.Decimal) {
	if r == nil || !amount.IsPositive() {
		return
	}
	r.transferred.WithLabelValues(flow, asset).Add(amount.InexactFloat64())
}

// ObserveKeeperCharge counts one keeper attempt. result is "charged", "skipped" or "failed".
func (r *Recorder) ObserveKeeperCharge(result string) {
	if r == nil {
		return
	}
	r.keeperCharges.WithLabelValues(result).Inc()
}

func (r *Recorder) ObservePublishFailure(topic string) {
	if r == nil {
		return
	}
	r.publishFailures.WithLabelValues(topic).Inc()
}

func (r *Recorder) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

// InstrumentHandler wraps next with request counting. route labels the
// request with its route template rather than the raw path.
func (r *Recorder) InstrumentHandler(route func(*http.Request) string, next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, req)

		name := route(req)
		r.httpRequests.WithLabelValues(req.Method, name, strconv.Itoa(rec.status)).Inc()
		r.httpDuration.WithLabelValues(req.Method, name).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
