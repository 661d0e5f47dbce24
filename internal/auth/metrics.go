package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// attempts counts authentication attempts by outcome.
var attempts = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "authentication_attempts_total",
		Help: "Number of authentication attempts, differentiated by outcome.",
	},
	[]string{"outcome"},
)

func observeAuthentication(outcome string) {
	attempts.WithLabelValues(outcome).Inc()
}
