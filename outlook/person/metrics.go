package person

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	strategyRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outlook_person_directory_strategy_total",
		Help: "Directory search strategy runs by strategy and outcome (hit, miss, error).",
	}, []string{"strategy", "outcome"})

	sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outlook_person_source_failures_total",
		Help: "Person sources that failed during a lookup.",
	}, []string{"source"})

	findDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "outlook_person_find_duration_seconds",
		Help:    "FindPerson latency.",
		Buckets: prometheus.DefBuckets,
	})
)
