package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the admin panel
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	GatesMounted     prometheus.Gauge
	StaleResolutions prometheus.Counter
	AuditEnqueueErrs prometheus.Counter
}

// New creates the metrics and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notes_admin_resolutions_total",
			Help: "Session resolutions by verdict and reason",
		}, []string{"verdict", "reason"}),
		ResolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notes_admin_resolve_duration_seconds",
			Help:    "Time spent resolving a session verdict",
			Buckets: prometheus.DefBuckets,
		}),
		GatesMounted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notes_admin_gates_mounted",
			Help: "Admin gates currently mounted",
		}),
		StaleResolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "notes_admin_stale_resolutions_total",
			Help: "Resolutions dropped because a newer one was started",
		}),
		AuditEnqueueErrs: factory.NewCounter(prometheus.CounterOpts{
			Name: "notes_admin_audit_enqueue_errors_total",
			Help: "Audit tasks that could not be enqueued",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tests and tools
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
