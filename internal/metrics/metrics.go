// Package metrics registers and updates the Prometheus instruments
// exposed on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_queries_total",
			Help: "Total number of workflow runs by intent and terminal state.",
		},
		[]string{"intent", "state"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_query_duration_seconds",
			Help:    "End-to-end workflow latency by intent.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)
	retriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_sql_retries_total",
			Help: "Total number of SQL repair passes.",
		},
	)
	feedbackCapturedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlpilot_feedback_captured_total",
			Help: "Total number of successful generations written back to the store.",
		},
	)
	examplesStored = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlpilot_examples_stored",
			Help: "Current number of examples in the knowledge store.",
		},
	)
	retrievalHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_retrieval_hits",
			Help:    "Number of examples returned per retrieval.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
)

func init() {
	prometheus.MustRegister(
		queriesTotal,
		queryDurationSeconds,
		retriesTotal,
		feedbackCapturedTotal,
		examplesStored,
		retrievalHits,
	)
}

// ObserveQuery records one finished workflow run.
func ObserveQuery(intent, state string, elapsed time.Duration) {
	queriesTotal.WithLabelValues(intent, state).Inc()
	queryDurationSeconds.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// IncrementRetry counts one repair pass.
func IncrementRetry() {
	retriesTotal.Inc()
}

// IncrementFeedbackCaptured counts one successful write-back.
func IncrementFeedbackCaptured() {
	feedbackCapturedTotal.Inc()
}

// SetExamplesStored updates the store size gauge.
func SetExamplesStored(n int) {
	examplesStored.Set(float64(n))
}

// ObserveRetrievalHits records how many examples a retrieval returned.
func ObserveRetrievalHits(n int) {
	retrievalHits.Observe(float64(n))
}
