package logger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// levelCounter is registered once; Init may run more than once in tests.
var levelCounter *prometheus.CounterVec //nolint:gochecknoglobals

// PrometheusHook counts emitted log statements per level.
type PrometheusHook struct{}

// Run implements zerolog.Hook.
func (h PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level != zerolog.NoLevel {
		levelCounter.WithLabelValues(level.String()).Inc()
	}
}

// NewPrometheusHook returns the hook, registering the counter on first use.
func NewPrometheusHook(service string) PrometheusHook {
	if levelCounter == nil {
		levelCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "log_statements_total",
				Help:        "Number of log statements, differentiated by log level.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level"},
		)
	}

	return PrometheusHook{}
}
