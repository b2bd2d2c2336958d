// Package metrics records Prometheus metrics for completion calls.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/germanamz/claudeproxy/pkg/completion"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
)

// Metrics holds the proxy collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	CompletionsTotal   *prometheus.CounterVec
	CompletionDuration *prometheus.HistogramVec
	TokensTotal        *prometheus.CounterVec
	RateLimitRemaining prometheus.Gauge
}

// New creates the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CompletionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudeproxy_completions_total",
				Help: "Total number of completion calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		CompletionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "claudeproxy_completion_duration_seconds",
				Help:    "Completion call duration in seconds",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		TokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claudeproxy_completion_tokens_total",
				Help: "Tokens reported by the remote endpoint",
			},
			[]string{"direction"},
		),
		RateLimitRemaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "claudeproxy_ratelimit_remaining_tokens",
				Help: "Remaining token budget from the last rate limit headers",
			},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one finished completion call.
func (m *Metrics) Observe(model string, res completion.Result, err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = completion.KindOf(err).String()
	}

	m.CompletionsTotal.WithLabelValues(model, outcome).Inc()
	m.CompletionDuration.WithLabelValues(model).Observe(elapsed.Seconds())

	if err != nil {
		return
	}

	m.TokensTotal.WithLabelValues("input").Add(float64(res.Usage.InputTokens))
	m.TokensTotal.WithLabelValues("output").Add(float64(res.Usage.OutputTokens))

	if res.RateLimit != nil {
		m.RateLimitRemaining.Set(float64(res.RateLimit.RemainingTokens))
	}
}

// Instrument wraps c so every call is observed.
func (m *Metrics) Instrument(c completion.Completer) completion.Completer {
	return completion.CompleterFunc(func(ctx context.Context, req completion.Request) (completion.Result, error) {
		start := time.Now()
		res, err := c.Complete(ctx, req)
		m.Observe(req.Model, res, err, time.Since(start))

		return res, err
	})
}
