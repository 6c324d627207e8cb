package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_resolver_attempts_total",
		Help: "Backend attempts by operation, backend and outcome.",
	}, []string{"op", "backend", "outcome"})

	attemptSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "helpdesk_resolver_attempt_seconds",
		Help:    "Wall-clock time of backend attempts.",
		Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30},
	}, []string{"op", "backend"})

	fallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "helpdesk_resolver_fallback_total",
		Help: "Calls answered by the rule-based fallback.",
	}, []string{"op"})
)
