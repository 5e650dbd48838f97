package haven

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes operational counters and gauges for one monitoring
// group. Each Coordinator owns its own registry so multiple groups in one
// process do not collide on metric names.
type Metrics struct {
	registry *prometheus.Registry

	EventsIngested          prometheus.Counter
	EventsDropped           *prometheus.CounterVec
	AnomaliesDetected       *prometheus.CounterVec
	NotificationsSent       *prometheus.CounterVec
	Retrains                prometheus.Counter
	SnapshotSaves           *prometheus.CounterVec
	Confidence              prometheus.Gauge
	WelfareLevel            prometheus.Gauge
	ActivityScore           prometheus.Gauge
	MLSampleCount           prometheus.Gauge
	CrossSensorPatternCount prometheus.Gauge
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "haven_events_ingested_total",
			Help: "State-change events recorded into the pattern store",
		}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_events_dropped_total",
			Help: "State-change events filtered before recording",
		}, []string{"reason"}), // unmonitored, holiday, snoozed, insignificant
		AnomaliesDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_anomalies_detected_total",
			Help: "Anomalies flagged per detection source",
		}, []string{"source"}), // statistical, ml, cross_sensor
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_notifications_sent_total",
			Help: "Notifications dispatched per category",
		}, []string{"category"}),
		Retrains: factory.NewCounter(prometheus.CounterOpts{
			Name: "haven_model_retrains_total",
			Help: "Streaming model rebuilds by history replay",
		}),
		SnapshotSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_snapshot_saves_total",
			Help: "Snapshot persistence attempts",
		}, []string{"status"}), // ok, error
		Confidence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_learning_confidence_percent",
			Help: "Statistical baseline confidence, 0 to 100",
		}),
		WelfareLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_welfare_level",
			Help: "Current welfare level: 0 ok, 1 check, 2 concern, 3 alert",
		}),
		ActivityScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_activity_score",
			Help: "Activity score relative to baseline, 0 to 100",
		}),
		MLSampleCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_ml_samples",
			Help: "Events the streaming model has processed",
		}),
		CrossSensorPatternCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_cross_sensor_patterns",
			Help: "Strong cross-sensor patterns currently held",
		}),
	}
}

// Registry returns the underlying registry for HTTP exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
