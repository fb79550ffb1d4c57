package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// Metrics exports ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	ingestedTotal   *prometheus.CounterVec
	rejectedTotal   prometheus.Counter
	duplicatesTotal prometheus.Counter
	historyLength   prometheus.Gauge
	lastReport      prometheus.Gauge
}

// NewMetrics creates the collector metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carpi_reports_ingested_total",
			Help: "Reports applied to the collector state, by kind.",
		}, []string{"kind"}),
		rejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carpi_batches_rejected_total",
			Help: "Batches rejected for a bad auth token.",
		}),
		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carpi_reports_duplicate_total",
			Help: "Replayed reports skipped because their id was already applied.",
		}),
		historyLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carpi_position_history_length",
			Help: "Positions currently retained in the collector history.",
		}),
		lastReport: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "carpi_last_report_timestamp_seconds",
			Help: "Device timestamp of the last heartbeat or shutdown report.",
		}),
	}
	reg.MustRegister(m.ingestedTotal, m.rejectedTotal, m.duplicatesTotal, m.historyLength, m.lastReport)
	return m
}

func (m *Metrics) ingested(kind report.Kind) {
	if m == nil {
		return
	}
	label := "other"
	switch kind {
	case report.KindHeartbeat, report.KindSensorAlert, report.KindShutdown:
		label = string(kind)
	}
	m.ingestedTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) batchRejected() {
	if m != nil {
		m.rejectedTotal.Inc()
	}
}

func (m *Metrics) duplicate() {
	if m != nil {
		m.duplicatesTotal.Inc()
	}
}

func (m *Metrics) observe(s Snapshot) {
	if m == nil {
		return
	}
	m.historyLength.Set(float64(s.HistoryLen))
	if s.Timestamp.Valid {
		m.lastReport.Set(float64(s.Timestamp.Value) / 1000)
	}
}
