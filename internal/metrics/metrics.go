// Package metrics exposes labeller activity to Prometheus
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry; nothing is registered globally
type Metrics struct {
	// Current state
	ProcessingActive atomic.Uint64 // 0 = idle, 1 = an operation is running
	EventClients     atomic.Uint64

	predictorCalls   *prometheus.CounterVec
	predictorLatency *prometheus.HistogramVec
	propagatedMasks  prometheus.Counter
	operations       *prometheus.CounterVec
	exports          *prometheus.CounterVec
	videosLoaded     prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotulador_predictor_calls_total",
			Help: "Predictor calls by operation and outcome",
		}, []string{"op", "status"}),
		predictorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rotulador_predictor_call_seconds",
			Help:    "Predictor call latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"op"}),
		propagatedMasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotulador_propagated_masks_total",
			Help: "Masks produced by propagation runs",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotulador_operations_total",
			Help: "Orchestrator operations by name and outcome",
		}, []string{"op", "status"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rotulador_exports_total",
			Help: "Dataset exports by outcome",
		}, []string{"status"}),
		videosLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rotulador_videos_loaded_total",
			Help: "Videos opened for annotation",
		}),
	}
	m.registry.MustRegister(
		m.predictorCalls,
		m.predictorLatency,
		m.propagatedMasks,
		m.operations,
		m.exports,
		m.videosLoaded,
	)
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "rotulador_processing",
			Help: "1 while an orchestrator operation is in flight",
		},
		func() float64 { return float64(m.ProcessingActive.Load()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "rotulador_event_clients",
			Help: "Connected event stream clients",
		},
		func() float64 { return float64(m.EventClients.Load()) },
	))
	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObservePredictorCall(op string, elapsed time.Duration, err error) {
	m.predictorCalls.WithLabelValues(op, status(err)).Inc()
	m.predictorLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePropagatedMasks(n int) {
	m.propagatedMasks.Add(float64(n))
}

func (m *Metrics) ObserveOperation(op string, err error) {
	m.operations.WithLabelValues(op, status(err)).Inc()
}

func (m *Metrics) ObserveExport(err error) {
	m.exports.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) ObserveVideoLoaded() {
	m.videosLoaded.Inc()
}

func (m *Metrics) SetProcessing(active bool) {
	if active {
		m.ProcessingActive.Store(1)
	} else {
		m.ProcessingActive.Store(0)
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
