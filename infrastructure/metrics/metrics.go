package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workflowguard"

// Metrics owns a private registry so that tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	versionsCreated  *prometheus.CounterVec
	rollbacks        *prometheus.CounterVec
	auditFailures    *prometheus.CounterVec
	reportsGenerated prometheus.Counter
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New creates the collectors. Process and Go runtime collectors are added when
// withRuntime is true.
func New(withRuntime bool) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	if withRuntime {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Metrics{
		registry: registry,
		versionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_created_total",
			Help:      "Workflow versions appended, by snapshot type",
		}, []string{"snapshot_type"}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Rollback requests, by outcome",
		}, []string{"outcome"}),
		auditFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit log writes that failed and were skipped",
		}, []string{"action"}),
		reportsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compliance_reports_total",
			Help:      "Compliance reports generated",
		}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled",
		}, []string{"method", "route", "status_code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) VersionCreated(snapshotType string) {
	m.versionsCreated.WithLabelValues(snapshotType).Inc()
}

func (m *Metrics) RollbackCompleted(outcome string) {
	m.rollbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AuditWriteFailed(action string) {
	m.auditFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) ReportGenerated() {
	m.reportsGenerated.Inc()
}

// ObserveRequest records one HTTP exchange. route is the mux path template.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
