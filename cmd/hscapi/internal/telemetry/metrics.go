package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exposed on /metrics.
// A nil *Metrics is valid and records nothing, so services and tests can
// run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	reconcileRuns    *prometheus.CounterVec
	grantChanges     *prometheus.CounterVec
	roleAssignments  *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
	accessDecisions  *prometheus.CounterVec
	auditWriteErrors prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hsc_iam_reconcile_runs_total",
			Help: "Permission reconcile runs by outcome.",
		}, []string{"outcome"}),
		grantChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hsc_iam_grant_changes_total",
			Help: "Grants added or removed by reconcile, per group.",
		}, []string{"group", "change"}),
		roleAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hsc_iam_role_assignments_total",
			Help: "Role assignments by target role.",
		}, []string{"role"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hsc_auth_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hsc_access_decisions_total",
			Help: "Access guard decisions.",
		}, []string{"decision", "reason"}),
		auditWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hsc_audit_write_errors_total",
			Help: "Audit entries that could not be written.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.reconcileRuns,
		m.grantChanges,
		m.roleAssignments,
		m.loginAttempts,
		m.accessDecisions,
		m.auditWriteErrors,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records request count, latency and in-flight gauge. The
// route label is the chi route pattern, so path parameters do not explode
// cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

// ObserveReconcile counts one reconcile run.
func (m *Metrics) ObserveReconcile(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.reconcileRuns.WithLabelValues(outcome).Inc()
}

// ObserveGrantChanges counts grants added and removed for a group.
func (m *Metrics) ObserveGrantChanges(group string, added, removed int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.grantChanges.WithLabelValues(group, "added").Add(float64(added))
	}
	if removed > 0 {
		m.grantChanges.WithLabelValues(group, "removed").Add(float64(removed))
	}
}

func (m *Metrics) ObserveRoleAssignment(role string) {
	if m == nil {
		return
	}
	m.roleAssignments.WithLabelValues(role).Inc()
}

// ObserveLogin counts a login attempt; outcome is "success" or a short
// failure label.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAccessDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.accessDecisions.WithLabelValues(decision, reason).Inc()
}

func (m *Metrics) ObserveAuditWriteError() {
	if m == nil {
		return
	}
	m.auditWriteErrors.Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
