package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spendwise"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultFallback = "fallback"
	ResultDisabled = "disabled"
	ResultEmpty    = "empty"
)

// Metrics holds the Prometheus collectors for the application. Each
// instance owns its registry so tests can create as many as they like.
//
// Metrics:
//   - spendwise_http_requests_total{method,route,status}
//   - spendwise_http_request_duration_seconds{method,route}
//   - spendwise_expense_mutations_total{op,result}
//   - spendwise_categorizations_total{result}
//   - spendwise_summaries_total{result}
//   - spendwise_exports_total{format,result}
//   - spendwise_live_subscribers
//   - spendwise_amqp_publish_total{result}
//   - spendwise_cache_requests_total{result}
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ExpenseMutations    *prometheus.CounterVec
	Categorizations     *prometheus.CounterVec
	Summaries           *prometheus.CounterVec
	Exports             *prometheus.CounterVec
	LiveSubscribers     prometheus.Gauge
	AMQPPublishes       *prometheus.CounterVec
	CacheRequests       *prometheus.CounterVec
}

// New creates and registers every collector on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled",
		}, []string{"method", "route", "status"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ExpenseMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_mutations_total",
			Help:      "Expense create/update/delete attempts by outcome",
		}, []string{"op", "result"}),

		Categorizations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorizations_total",
			Help:      "Category inference attempts by outcome",
		}, []string{"result"}),

		Summaries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summary generation attempts by outcome",
		}, []string{"result"}),

		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Export requests by format and outcome",
		}, []string{"format", "result"}),

		LiveSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscribers",
			Help:      "Current number of live snapshot subscribers",
		}),

		AMQPPublishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "amqp_publish_total",
			Help:      "Expense events published to the message broker by outcome",
		}, []string{"result"}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Expense list cache lookups by hit or miss",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
