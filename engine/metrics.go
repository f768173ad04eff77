package engine

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records loop activity as Prometheus metrics.
type Metrics struct {
	commands *prometheus.CounterVec
	faults   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	stopped  prometheus.Counter
}

// NewMetrics registers the engine metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ifai_engine_commands_total",
			Help: "Total number of commands processed by the engine loop, partitioned by kind.",
		}, []string{"kind"}),
		faults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ifai_engine_faults_total",
			Help: "Total number of commands whose processing failed, partitioned by kind.",
		}, []string{"kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ifai_engine_command_duration_seconds",
			Help:    "Time spent handling a command and publishing its messages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		stopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ifai_engine_stops_total",
			Help: "Total number of engine loops that reached the stopped state.",
		}),
	}
}

// Hooks returns the hooks that feed m. Pass them through Options.Hooks.
func (m *Metrics) Hooks() []Hook {
	return []Hook{
		NewFunctionHook(HookAfterCommand, func(_ context.Context, hc *HookContext) error {
			kind := string(hc.Command.Kind())
			m.commands.WithLabelValues(kind).Inc()
			m.duration.WithLabelValues(kind).Observe(hc.Duration.Seconds())
			return nil
		}),
		NewFunctionHook(HookOnFault, func(_ context.Context, hc *HookContext) error {
			m.faults.WithLabelValues(string(hc.Command.Kind())).Inc()
			return nil
		}),
		NewFunctionHook(HookOnStop, func(context.Context, *HookContext) error {
			m.stopped.Inc()
			return nil
		}),
	}
}
