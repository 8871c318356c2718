// Package metrics provides Prometheus metrics for the summary pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Request results
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultEmpty = "empty"
)

var (
	// summaryRequestsTotal counts GetOrGenerate calls.
	// Labels:
	//   - result: "hit", "miss" or "empty"
	summaryRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_requests_total",
			Help: "Total number of daily summary requests by cache result",
		},
		[]string{"result"},
	)

	// generationsTotal counts calls to the generation service.
	// Labels:
	//   - status: "success" or "failed"
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summary_generations_total",
			Help: "Total number of generation calls",
		},
		[]string{"status"},
	)

	// generationDuration records how long generation calls take.
	// Buckets: 0.5s up to 5 minutes
	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summary_generation_duration_seconds",
			Help:    "Duration of generation calls in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	validationErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_validation_errors_total",
			Help: "Total number of field validation errors in model responses",
		},
	)

	cacheWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "summary_cache_write_failures_total",
			Help: "Total number of generated summaries that could not be stored",
		},
	)
)

func init() {
	prometheus.MustRegister(summaryRequestsTotal)
	prometheus.MustRegister(generationsTotal)
	prometheus.MustRegister(generationDuration)
	prometheus.MustRegister(validationErrorsTotal)
	prometheus.MustRegister(cacheWriteFailuresTotal)
}

// RecordRequest records a summary request with its cache result
func RecordRequest(result string) {
	summaryRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveGeneration records one generation call and its duration
func ObserveGeneration(success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "failed"
	}
	generationsTotal.WithLabelValues(status).Inc()
	generationDuration.Observe(durationSeconds)
}

// RecordValidationErrors adds n field validation errors
func RecordValidationErrors(n int) {
	if n > 0 {
		validationErrorsTotal.Add(float64(n))
	}
}

// RecordCacheWriteFailure records a summary that was generated but not stored
func RecordCacheWriteFailure() {
	cacheWriteFailuresTotal.Inc()
}
