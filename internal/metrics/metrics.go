// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	registry        *prometheus.Registry
	samplesIngested *prometheus.CounterVec
	framesRejected  *prometheus.CounterVec
	overlayActive   prometheus.Gauge
	storeVersion    prometheus.Gauge
	wsClients       prometheus.Gauge
	alertsPublished *prometheus.CounterVec
	feedConnects    *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samplesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helios_samples_ingested_total",
			Help: "Samples applied to the store by metric and source.",
		}, []string{"metric", "source"}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helios_frames_rejected_total",
			Help: "Feed frames dropped without a state change, by reason.",
		}, []string{"origin", "reason"}),
		overlayActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helios_simulation_overlay_active",
			Help: "1 while a simulation overlay is visible.",
		}),
		storeVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helios_store_version",
			Help: "Number of committed store mutations.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "helios_ws_clients",
			Help: "Connected dashboard WebSocket clients.",
		}),
		alertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helios_alerts_published_total",
			Help: "Tier-change alerts handed to each sink, by outcome.",
		}, []string{"sink", "outcome"}),
		feedConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "helios_feed_connection_events_total",
			Help: "Upstream feed connection transitions by status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.samplesIngested,
		m.framesRejected,
		m.overlayActive,
		m.storeVersion,
		m.wsClients,
		m.alertsPublished,
		m.feedConnects,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SampleIngested(metric, source string) {
	m.samplesIngested.WithLabelValues(metric, source).Inc()
}

func (m *Metrics) FrameRejected(origin, reason string) {
	m.framesRejected.WithLabelValues(origin, reason).Inc()
}

func (m *Metrics) StoreCommitted(version uint64, overlay bool) {
	m.storeVersion.Set(float64(version))
	if overlay {
		m.overlayActive.Set(1)
	} else {
		m.overlayActive.Set(0)
	}
}

func (m *Metrics) ClientConnected()    { m.wsClients.Inc() }
func (m *Metrics) ClientDisconnected() { m.wsClients.Dec() }

func (m *Metrics) AlertPublished(sink string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.alertsPublished.WithLabelValues(sink, outcome).Inc()
}

func (m *Metrics) FeedStatus(status string) {
	m.feedConnects.WithLabelValues(status).Inc()
}
