package sqlexec

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_query_executions_total",
			Help: "Total number of query executions by mode.",
		},
		[]string{"mode"},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "costlens_query_duration_seconds",
			Help:    "Query execution latency by mode.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)
	queryPartitions = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "costlens_query_partitions",
			Help:    "Partition count per parallel query execution.",
			Buckets: []float64{1, 2, 3, 4, 6, 9, 12, 18, 24, 36},
		},
	)
	partitionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "costlens_partition_failures_total",
			Help: "Total number of failed partition executions.",
		},
	)
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "costlens_validations_total",
			Help: "Total number of SQL validations by outcome category.",
		},
		[]string{"category"},
	)
)

func init() {
	prometheus.MustRegister(
		queryExecutionsTotal,
		queryDurationSeconds,
		queryPartitions,
		partitionFailuresTotal,
		validationsTotal,
	)
}

func observeExecution(mode string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(mode).Inc()
	queryDurationSeconds.WithLabelValues(mode).Observe(elapsed.Seconds())
}

func observePartitions(partitions, failed int) {
	queryPartitions.Observe(float64(partitions))
	if failed > 0 {
		partitionFailuresTotal.Add(float64(failed))
	}
}

// ObserveValidation records a validation outcome. Valid statements are
// counted under "valid".
func ObserveValidation(result ValidationResult) {
	category := "valid"
	if !result.Valid && result.Error != nil {
		category = string(result.Error.Category)
	}
	validationsTotal.WithLabelValues(category).Inc()
}
