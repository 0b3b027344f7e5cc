package monitor

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "perimeter"

type metrics struct {
	framesProcessed *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	activeTracks    *prometheus.GaugeVec
	processSeconds  prometheus.Histogram
	feeds           prometheus.Gauge
}

func newMetrics(reg *prometheus.Registry) *metrics {
	f := promauto.With(reg)
	return &metrics{
		framesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_processed_total",
			Help:      "Frames run through the engine, per feed",
		}, []string{"feed"}),
		framesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_dropped_total",
			Help:      "Frames replaced by a newer frame before a feed worker got to them",
		}, []string{"feed"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_total",
			Help:      "Alerts emitted after deduplication, by type",
		}, []string{"type"}),
		activeTracks: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_tracks",
			Help:      "Live body tracks, per feed",
		}, []string{"feed"}),
		processSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "frame_process_seconds",
			Help:      "Time taken to process one frame",
			Buckets:   []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		feeds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "feeds",
			Help:      "Number of feeds with a running worker",
		}),
	}
}

func feedLabel(feedID int64) string {
	return strconv.FormatInt(feedID, 10)
}

func (m *metrics) forgetFeed(feedID int64) {
	lbl := feedLabel(feedID)
	m.framesProcessed.DeleteLabelValues(lbl)
	m.framesDropped.DeleteLabelValues(lbl)
	m.activeTracks.DeleteLabelValues(lbl)
}
