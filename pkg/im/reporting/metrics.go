package reporting

import "github.com/prometheus/client_golang/prometheus"

const (
	insertResultMerged    = "merged"
	insertResultAllocated = "allocated"
)

// Metrics provides Prometheus metrics for the reporting engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	dirtyPaths        prometheus.Gauge
	dirtyPathInserts  *prometheus.CounterVec
	escalations       *prometheus.CounterVec
	schedulerNodes    prometheus.Gauge
	reportsInFlight   prometheus.Gauge
	reportsSent       prometheus.Counter
	reportBuildErrors prometheus.Counter
}

// NewMetrics creates the reporting metrics and registers them on reg.
// Returns nil if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		dirtyPaths: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "dirty_paths",
			Help:      "Number of live records in the dirty path set",
		}),
		dirtyPathInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "dirty_path_inserts_total",
			Help:      "Dirty path insertions by result (merged into a record or allocated a slot)",
		}, []string{"result"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "dirty_path_escalations_total",
			Help:      "Dirty set collapses under pool pressure by level",
		}, []string{"level"}),
		schedulerNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "scheduler_nodes",
			Help:      "Number of read handlers registered with the report scheduler",
		}),
		reportsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "reports_in_flight",
			Help:      "Reports sent and awaiting a status response",
		}),
		reportsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "reports_sent_total",
			Help:      "Total number of reports sent",
		}),
		reportBuildErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matter",
			Subsystem: "reporting",
			Name:      "report_build_errors_total",
			Help:      "Total number of reports abandoned because an attribute failed to encode",
		}),
	}

	reg.MustRegister(
		m.dirtyPaths,
		m.dirtyPathInserts,
		m.escalations,
		m.schedulerNodes,
		m.reportsInFlight,
		m.reportsSent,
		m.reportBuildErrors,
	)
	return m
}

func (m *Metrics) dirtyPathInserted(result string, live int) {
	if m == nil {
		return
	}
	m.dirtyPathInserts.WithLabelValues(result).Inc()
	m.dirtyPaths.Set(float64(live))
}

func (m *Metrics) dirtySetEscalated(level escalationLevel, live int) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(level.String()).Inc()
	m.dirtyPaths.Set(float64(live))
}

func (m *Metrics) setDirtyPaths(live int) {
	if m == nil {
		return
	}
	m.dirtyPaths.Set(float64(live))
}

func (m *Metrics) setSchedulerNodes(n int) {
	if m == nil {
		return
	}
	m.schedulerNodes.Set(float64(n))
}

func (m *Metrics) reportSent(inFlight int) {
	if m == nil {
		return
	}
	m.reportsSent.Inc()
	m.reportsInFlight.Set(float64(inFlight))
}

func (m *Metrics) setReportsInFlight(inFlight int) {
	if m == nil {
		return
	}
	m.reportsInFlight.Set(float64(inFlight))
}

func (m *Metrics) reportBuildFailed() {
	if m == nil {
		return
	}
	m.reportBuildErrors.Inc()
}
