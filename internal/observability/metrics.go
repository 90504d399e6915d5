package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	httpRequestsTotal    *prometheus.CounterVec
	httpLatencySeconds   *prometheus.HistogramVec
	httpErrorsTotal      *prometheus.CounterVec
	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	uploadLatencySeconds prometheus.Histogram
	lifecycleTransitions *prometheus.CounterVec
	submissionsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erducate_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5, 10, 30},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_upload_requests_total",
			Help: "Stored uploads by purpose and mime type.",
		}, []string{"purpose", "mime"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "erducate_upload_latency_seconds",
			Help:    "Time spent validating and storing uploads.",
			Buckets: prometheus.DefBuckets,
		})

		lifecycleTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_exercise_transitions_total",
			Help: "Exercise lifecycle transitions by source and target status.",
		}, []string{"from", "to"})

		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erducate_submissions_total",
			Help: "Submission attempts by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
			lifecycleTransitions, submissionsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// UploadRequests counts stored uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts uploads rejected before or during storage.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency observes upload handling time.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// LifecycleTransitions counts exercise status changes.
func LifecycleTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return lifecycleTransitions
}

// Submissions counts submission attempts by outcome.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}
