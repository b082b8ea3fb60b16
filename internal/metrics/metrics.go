// Package metrics holds the Prometheus instruments of the bot.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dispatchbot"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
	OutcomeUnhandled = "unhandled"
)

// Metrics contains the bot's instruments and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	InteractionsTotal   *prometheus.CounterVec
	InteractionDuration *prometheus.HistogramVec
	HandlerErrorsTotal  *prometheus.CounterVec
	TaskRunsTotal       *prometheus.CounterVec
	TaskDuration        *prometheus.HistogramVec
	CommandSyncOpsTotal *prometheus.CounterVec
}

// New creates the instruments and registers them, together with the Go
// runtime and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		InteractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "interactions_total",
				Help:      "Interactions dispatched, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		InteractionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "duration_seconds",
				Help:      "Time spent dispatching an interaction",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		HandlerErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "handled_total",
				Help:      "Errors routed to the error handler registry, by context kind",
			},
			[]string{"kind"},
		),

		TaskRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tasks",
				Name:      "runs_total",
				Help:      "Scheduled task runs, by task and outcome",
			},
			[]string{"task", "outcome"},
		),

		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tasks",
				Name:      "duration_seconds",
				Help:      "Scheduled task run duration",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),

		CommandSyncOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commands",
				Name:      "sync_operations_total",
				Help:      "Remote command registry writes, by scope, operation and outcome",
			},
			[]string{"scope", "op", "outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.InteractionsTotal,
		m.InteractionDuration,
		m.HandlerErrorsTotal,
		m.TaskRunsTotal,
		m.TaskDuration,
		m.CommandSyncOpsTotal,
	)

	return m
}

// Registry returns the Prometheus registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveInteraction records one dispatched interaction.
func (m *Metrics) ObserveInteraction(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.InteractionsTotal.WithLabelValues(kind, outcome).Inc()
	m.InteractionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveHandledError records an error routed to an error handler.
func (m *Metrics) ObserveHandledError(kind string) {
	if m == nil {
		return
	}
	m.HandlerErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveTaskRun records one scheduled task run.
func (m *Metrics) ObserveTaskRun(task string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.TaskRunsTotal.WithLabelValues(task, outcomeOf(err)).Inc()
	m.TaskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// ObserveCommandSync records one remote command registry write.
func (m *Metrics) ObserveCommandSync(scope, op string, err error) {
	if m == nil {
		return
	}
	m.CommandSyncOpsTotal.WithLabelValues(scope, op, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
