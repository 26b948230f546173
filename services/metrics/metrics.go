// Package metrics exposes Prometheus counters for the token lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry        *prometheus.Registry
	operations      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	reuse           *prometheus.CounterVec
	storageRetries  *prometheus.CounterVec
	storageFailures *prometheus.CounterVec
	revoked         *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_operations_total",
			Help:      "Login, refresh, logout and logout-all calls by outcome.",
		}, []string{"operation", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_rejections_total",
			Help:      "Authentication rejections by kind.",
		}, []string{"operation", "kind"}),
		reuse: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_token_reuse_total",
			Help:      "Rotated refresh tokens presented again, by applied policy.",
		}, []string{"policy"}),
		storageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_store_retries_total",
			Help:      "Session store calls retried after a transient failure.",
		}, []string{"op"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_store_failures_total",
			Help:      "Session store calls that failed after retries.",
		}, []string{"op"}),
		revoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_revoked_total",
			Help:      "Refresh token records revoked, by reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		m.operations,
		m.rejections,
		m.reuse,
		m.storageRetries,
		m.storageFailures,
		m.revoked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveRejection(operation, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) ObserveReuse(policy string) {
	if m == nil {
		return
	}
	m.reuse.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveRevoked(reason string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.revoked.WithLabelValues(reason).Add(float64(count))
}

func (m *Metrics) ObserveStorageRetry(op string) {
	if m == nil {
		return
	}
	m.storageRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveStorageFailure(op string) {
	if m == nil {
		return
	}
	m.storageFailures.WithLabelValues(op).Inc()
}
