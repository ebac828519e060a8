package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/csc/internal/ir"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "csc"

// EngineMetrics tracks attempts, fires, windows, scope advances and reloads.
type EngineMetrics struct {
	registry *prometheus.Registry

	attemptsTotal *prometheus.CounterVec
	firesTotal    *prometheus.CounterVec
	windowsTotal  *prometheus.CounterVec
	advancesTotal *prometheus.CounterVec
	reloadsTotal  *prometheus.CounterVec
}

// New creates and registers engine metrics. A nil registry gets a fresh one.
func New(namespace string, registry *prometheus.Registry) *EngineMetrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &EngineMetrics{
		registry: registry,

		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "attempts_total",
				Help:      "Total number of journaled rule attempts",
			},
			[]string{"rule_id", "reason"},
		),

		firesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fires_total",
				Help:      "Total number of rule attempts that produced an intent",
			},
			[]string{"rule_id", "verb"},
		),

		windowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "windows_total",
				Help:      "Total number of decision windows evaluated",
			},
			[]string{"window", "fired"},
		),

		advancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scope_advances_total",
				Help:      "Total number of scope advance signals",
			},
			[]string{"axis"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of rule set reloads by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.attemptsTotal,
		m.firesTotal,
		m.windowsTotal,
		m.advancesTotal,
		m.reloadsTotal,
	)

	return m
}

// AttemptRecorded counts one journaled attempt.
func (m *EngineMetrics) AttemptRecorded(a ir.DecisionAttempt) {
	m.attemptsTotal.WithLabelValues(a.RuleID, reasonLabel(a.Reason)).Inc()
	if a.Fired() {
		m.firesTotal.WithLabelValues(a.RuleID, a.Verb).Inc()
	}
}

// WindowEvaluated counts one window evaluation.
func (m *EngineMetrics) WindowEvaluated(window string, fired bool) {
	m.windowsTotal.WithLabelValues(window, strconv.FormatBool(fired)).Inc()
}

// ScopeAdvanced counts one scope advance.
func (m *EngineMetrics) ScopeAdvanced(axis ir.Axis) {
	m.advancesTotal.WithLabelValues(string(axis)).Inc()
}

// RecordReload counts a reload attempt. err is the compile error, if any.
func (m *EngineMetrics) RecordReload(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
}

// Registry returns the registry the metrics live in.
func (m *EngineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *EngineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func reasonLabel(r ir.ReasonCode) string {
	if r == ir.ReasonNone {
		return "none"
	}
	return string(r)
}
