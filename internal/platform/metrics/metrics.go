package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared by the login guard and the
// audit writer. Construct exactly once per process; collectors register on
// the default registry.
type Metrics struct {
	LoginFailuresRecorded prometheus.Counter
	LoginLockouts         prometheus.Counter
	AuditEventsWritten    prometheus.Counter
	AuditFlushFailures    prometheus.Counter
	AuditEventsDropped    prometheus.Counter
	AuditQueueDepth       prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	return &Metrics{
		LoginFailuresRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastion_login_failures_recorded_total",
			Help: "Total failed login attempts recorded by the login guard",
		}),
		LoginLockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastion_login_lockouts_total",
			Help: "Total account lockouts triggered by the login guard",
		}),
		AuditEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastion_audit_events_written_total",
			Help: "Total audit events durably persisted",
		}),
		AuditFlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastion_audit_flush_failures_total",
			Help: "Total audit batch flushes that failed and were requeued",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bastion_audit_events_dropped_total",
			Help: "Total audit events shed because the queue cap was exceeded",
		}),
		AuditQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "bastion_audit_queue_depth",
			Help: "Current number of audit events waiting to be flushed",
		}),
	}
}
