package dues

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to build with a nil registerer; the collectors are then
// created but never exported.
type Metrics struct {
	editsTotal        *prometheus.CounterVec
	guardRestores     *prometheus.CounterVec
	recordsCreated    prometheus.Counter
	confirmations     prometheus.Counter
	savesTotal        *prometheus.CounterVec
	saveLatency       prometheus.Histogram
	membersGauge      prometheus.Gauge
	paymentsGauge     prometheus.Gauge
	openPeriodsGauge  prometheus.Gauge
	snapshotLoadsByOK *prometheus.CounterVec
}

func NewMetrics(promRegistry prometheus.Registerer) *Metrics {
	m := &Metrics{}
	promautoFactory := promauto.With(promRegistry)
	m.editsTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "dues_field_edits_total",
		Help: "payment field edits applied, by field",
	}, []string{"field"})
	m.guardRestores = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "dues_guard_restores_total",
		Help: "fields restored by the post-edit preservation check, by field",
	}, []string{"field"})
	m.recordsCreated = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "dues_records_created_total",
		Help: "payment records created implicitly or explicitly",
	})
	m.confirmations = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "dues_public_confirmations_total",
		Help: "payments confirmed through member links",
	})
	m.savesTotal = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "dues_snapshot_saves_total",
		Help: "snapshot saves by outcome (ok, local_only, failed)",
	}, []string{"outcome"})
	m.saveLatency = promautoFactory.NewHistogram(prometheus.HistogramOpts{
		Name:    "dues_snapshot_save_seconds",
		Help:    "time spent writing a snapshot to all sources",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	m.membersGauge = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "dues_members",
		Help: "members in the directory",
	})
	m.paymentsGauge = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "dues_payment_records",
		Help: "payment records in the store",
	})
	m.openPeriodsGauge = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "dues_open_periods",
		Help: "open periods across active members at the last summary",
	})
	m.snapshotLoadsByOK = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "dues_snapshot_loads_total",
		Help: "snapshot loads by source and result",
	}, []string{"source", "result"})
	return m
}
