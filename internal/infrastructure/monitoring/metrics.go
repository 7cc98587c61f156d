package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. Each Metrics value
// owns its registry, so no process-wide collector state is shared.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Merge engine metrics
	FramesMerged      prometheus.Counter
	LandmarksAccepted prometheus.Counter
	LandmarksRejected prometheus.Counter

	// Observable store metrics
	ObserverPanics prometheus.Counter

	// Broadcast metrics
	WSConnections   prometheus.Gauge
	BroadcastTicks  prometheus.Counter
	BroadcastSends  prometheus.Counter
	BroadcastErrors prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		startTime: time.Now(),
		registry:  registry,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posestream_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "posestream_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),

		FramesMerged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_frames_merged_total",
				Help: "Total number of detection frames merged into the pose state",
			},
		),
		LandmarksAccepted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_landmarks_accepted_total",
				Help: "Total number of landmark observations accepted by the visibility gate",
			},
		),
		LandmarksRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_landmarks_rejected_total",
				Help: "Total number of landmark observations rejected by the visibility gate",
			},
		),

		ObserverPanics: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_observer_panics_total",
				Help: "Total number of contained pose observer panics",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posestream_ws_connections",
				Help: "Number of currently connected broadcast clients",
			},
		),
		BroadcastTicks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_broadcast_ticks_total",
				Help: "Total number of broadcast timer ticks",
			},
		),
		BroadcastSends: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_broadcast_sends_total",
				Help: "Total number of successful per-client payload sends",
			},
		),
		BroadcastErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "posestream_broadcast_errors_total",
				Help: "Total number of failed per-client payload sends",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "posestream_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
}

// RecordHTTPRequest records metrics for one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordMerge records the per-landmark gate outcome of one merged frame.
func (m *Metrics) RecordMerge(accepted, rejected int) {
	m.FramesMerged.Inc()
	m.LandmarksAccepted.Add(float64(accepted))
	m.LandmarksRejected.Add(float64(rejected))
}

// Handler returns an HTTP handler serving this collector's registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UptimeSeconds returns seconds since the collector was created.
func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.startTime).Seconds()
}
