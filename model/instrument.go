package model

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/ifai/core"
	"github.com/hupe1980/ifai/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// InstrumentOptions configures Instrument.
type InstrumentOptions struct {
	// Registerer receives the metrics; nil uses prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	Logger     logging.Logger
}

// Instrumented is a Provider that records metrics and logs every call
// before delegating to the wrapped provider.
type Instrumented struct {
	next   Provider
	logger logging.Logger

	requests  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	replies   *prometheus.CounterVec
	latencies *prometheus.HistogramVec
}

// Instrument wraps next. Metrics are labelled with the provider name so
// several instrumented providers may share one registry; registering the
// same provider twice on one registry panics, as promauto does.
func Instrument(next Provider, optFns ...func(o *InstrumentOptions)) *Instrumented {
	opts := InstrumentOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"provider": next.Info().Provider, "model": next.Info().Name}

	return &Instrumented{
		next:   next,
		logger: logging.OrNoOp(opts.Logger),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ifai_provider_requests_total",
			Help:        "Total number of chat requests sent to the model provider.",
			ConstLabels: labels,
		}, nil),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ifai_provider_failures_total",
			Help:        "Total number of failed chat requests, partitioned by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		replies: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "ifai_provider_reply_messages_total",
			Help:        "Total number of messages returned by the model provider.",
			ConstLabels: labels,
		}, nil),
		latencies: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "ifai_provider_request_duration_seconds",
			Help:        "Duration of chat requests to the model provider.",
			ConstLabels: labels,
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, nil),
	}
}

// Chat implements Provider.
func (p *Instrumented) Chat(ctx context.Context, msgs []core.ChatMessage) ([]core.ChatMessage, error) {
	start := time.Now()
	p.requests.WithLabelValues().Inc()
	p.logger.Debug("provider request", "provider", p.next.Info().Provider, "messages", len(msgs))

	out, err := p.next.Chat(ctx, msgs)
	elapsed := time.Since(start)
	p.latencies.WithLabelValues().Observe(elapsed.Seconds())

	if err != nil {
		p.failures.WithLabelValues(failureReason(ctx, err)).Inc()
		p.logger.Warn("provider request failed", "provider", p.next.Info().Provider, "duration", elapsed, "error", err)
		return nil, err
	}
	p.replies.WithLabelValues().Add(float64(len(out)))
	p.logger.Debug("provider response", "provider", p.next.Info().Provider, "messages", len(out), "duration", elapsed)
	return out, nil
}

// Info implements Provider.
func (p *Instrumented) Info() Info { return p.next.Info() }

// Unwrap returns the wrapped provider.
func (p *Instrumented) Unwrap() Provider { return p.next }

func failureReason(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
