// Package metrics holds the Prometheus collectors of the ledger service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles ledger metrics. It satisfies ledger.Recorder.
type Metrics struct {
	WritesTotal     *prometheus.CounterVec
	ViewEmissions   *prometheus.CounterVec
	WriteQueueDepth prometheus.Gauge
	ExportsTotal    *prometheus.CounterVec
}

// New constructs the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_writes_total",
				Help: "Ledger writes by operation and result",
			},
			[]string{"op", "result"},
		),
		ViewEmissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_view_emissions_total",
				Help: "Values emitted by live views",
			},
			[]string{"view"},
		),
		WriteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_write_queue_depth",
			Help: "Writes waiting for the writer goroutine",
		}),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_period_exports_total",
				Help: "Archived period exports by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		m.WritesTotal,
		m.ViewEmissions,
		m.WriteQueueDepth,
		m.ExportsTotal,
	)
	return m
}

func (m *Metrics) WriteCompleted(op string, err error) {
	m.WritesTotal.WithLabelValues(op, result(err)).Inc()
}

func (m *Metrics) ViewEmitted(view string) {
	m.ViewEmissions.WithLabelValues(view).Inc()
}

func (m *Metrics) QueueDepth(n int) {
	m.WriteQueueDepth.Set(float64(n))
}

func (m *Metrics) PeriodExported(err error) {
	m.ExportsTotal.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
