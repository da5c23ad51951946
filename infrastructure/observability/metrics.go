package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"artion-backend/application/ports"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Saga metrics
	SagaOutcomes  *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Probes        *prometheus.CounterVec
	LedgerTxs     *prometheus.CounterVec
	Compensations *prometheus.CounterVec
}

var _ ports.SagaMetrics = (*Collector)(nil)

// NewCollector creates a collector on its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SagaOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundle_saga_outcomes_total",
				Help:      "Bundle commit sagas by terminal outcome",
			},
			[]string{"outcome"},
		),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "bundle_saga_phase_duration_seconds",
				Help:      "Duration of each saga phase",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"phase", "result"},
		),
		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_probes_total",
				Help:      "Per-contract authorization probe results",
			},
			[]string{"result"},
		),
		LedgerTxs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_transactions_total",
				Help:      "Ledger transactions by kind and result",
			},
			[]string{"kind", "result"},
		),
		Compensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bundle_compensations_total",
				Help:      "Compensating deletes of off-chain bundles",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.SagaOutcomes,
		c.PhaseDuration,
		c.Probes,
		c.LedgerTxs,
		c.Compensations,
	)
	return c
}

func (c *Collector) RecordProbe(result string) {
	c.Probes.WithLabelValues(result).Inc()
}

func (c *Collector) RecordLedgerTx(kind, result string) {
	c.LedgerTxs.WithLabelValues(kind, result).Inc()
}

func (c *Collector) RecordPhase(phase string, d time.Duration, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	c.PhaseDuration.WithLabelValues(phase, result).Observe(d.Seconds())
}

func (c *Collector) RecordOutcome(outcome string) {
	c.SagaOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCompensation(result string) {
	c.Compensations.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
