package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	clientsConnected prometheus.Gauge
	sessionsActive   *prometheus.GaugeVec

	// Counters
	eventsPublished  *prometheus.CounterVec
	framesDropped    prometheus.Counter
	framesPushed     *prometheus.CounterVec
	framesSuppressed *prometheus.CounterVec

	// Histograms
	aggregationDuration prometheus.Histogram
	aggregationPoints   prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		clientsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "campuspulse_clients_connected",
			Help: "Number of websocket clients currently connected",
		}),

		sessionsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "campuspulse_stream_sessions_active",
			Help: "Number of live streaming sessions",
		}, []string{"kind"}),

		eventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspulse_events_published_total",
			Help: "Total number of domain events fanned out by the hub",
		}, []string{"type"}),

		framesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "campuspulse_frames_dropped_total",
			Help: "Total number of frames dropped on full subscriber buffers",
		}),

		framesPushed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspulse_stream_frames_pushed_total",
			Help: "Total number of data frames pushed to streaming sessions",
		}, []string{"kind"}),

		framesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "campuspulse_stream_frames_suppressed_total",
			Help: "Total number of unchanged frames suppressed by fingerprinting",
		}, []string{"kind"}),

		aggregationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "campuspulse_aggregation_duration_seconds",
			Help:    "Duration of heatmap aggregation runs",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),

		aggregationPoints: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "campuspulse_aggregation_points",
			Help:    "Number of heatmap points produced per aggregation run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
}

func (p *PrometheusCollector) ClientConnected() {
	p.clientsConnected.Inc()
}

func (p *PrometheusCollector) ClientDisconnected() {
	p.clientsConnected.Dec()
}

func (p *PrometheusCollector) EventPublished(eventType string) {
	p.eventsPublished.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) FrameDropped() {
	p.framesDropped.Inc()
}

func (p *PrometheusCollector) SessionStarted(kind string) {
	p.sessionsActive.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) SessionEnded(kind string) {
	p.sessionsActive.WithLabelValues(kind).Dec()
}

func (p *PrometheusCollector) FramePushed(kind string) {
	p.framesPushed.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) FrameSuppressed(kind string) {
	p.framesSuppressed.WithLabelValues(kind).Inc()
}

func (p *PrometheusCollector) ObserveAggregation(duration time.Duration, points int) {
	p.aggregationDuration.Observe(duration.Seconds())
	p.aggregationPoints.Observe(float64(points))
}
