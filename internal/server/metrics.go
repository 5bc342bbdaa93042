package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/motionrelay/internal/model"
	"github.com/alfredjeanlab/motionrelay/internal/presence"
)

const metricsNamespace = "motionrelay"

// Metrics holds the relay's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	samplesReceived prometheus.Counter
	samplesRejected *prometheus.CounterVec
	lastSample      *prometheus.GaugeVec
	streamClients   *prometheus.GaugeVec
	ingestDuration  prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	rpcs            *prometheus.CounterVec
}

func newMetrics(tracker *presence.Tracker, hub *streamHub) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "samples_received_total",
			Help:      "Motion samples accepted and recorded.",
		}),
		samplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "samples_rejected_total",
			Help:      "Motion samples rejected, by reason.",
		}, []string{"reason"}),
		lastSample: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_sample_acceleration",
			Help:      "Most recent acceleration per axis in m/s².",
		}, []string{"axis"}),
		streamClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "stream_clients",
			Help:      "Connected live watchers, by transport.",
		}, []string{"transport"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to validate and record one sample.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by status code and method.",
		}, []string{"code", "method"}),
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC calls, by full method and status code.",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		m.samplesReceived,
		m.samplesRejected,
		m.lastSample,
		m.streamClients,
		m.ingestDuration,
		m.httpRequests,
		m.rpcs,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_reporters",
			Help:      "Reporters that are not idle.",
		}, func() float64 { return float64(tracker.Active()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_events_dropped_total",
			Help:      "Events dropped for watchers that fell behind.",
		}, func() float64 { return float64(hub.dropped.Load()) }),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) observeSample(s model.MotionSample, took time.Duration) {
	m.samplesReceived.Inc()
	m.lastSample.WithLabelValues("x").Set(s.X)
	m.lastSample.WithLabelValues("y").Set(s.Y)
	m.lastSample.WithLabelValues("z").Set(s.Z)
	m.ingestDuration.Observe(took.Seconds())
}

// instrument counts requests passing through next.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.httpRequests, next)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
