package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Payment request creation
	swishSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swish_submissions_total",
		Help: "Total payment request submissions to Swish",
	}, []string{
		"outcome", // created, not_created, unknown
	})

	// Status polling
	swishPollAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swish_poll_attempts_total",
		Help: "Total status requests made while waiting for a payment to resolve",
	}, []string{
		"result", // CREATED, PAID, DECLINED, ERROR, CANCELLED, failed
	})

	// End-to-end payment lifecycle
	swishPaymentResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swish_payment_results_total",
		Help: "Total payment lifecycles by final status or failing stage",
	}, []string{
		"result", // terminal status, or credential/channel/submission/poll/poll_timeout/validation
	})

	swishPaymentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "swish_payment_duration_seconds",
		Help: "Time from submission to a terminal status or failure",
		// Buckets: 1s to 5m (payer has to open the app and approve)
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 180, 300},
	}, []string{
		"result",
	})
)

// RecordSubmission records one payment request creation attempt
func RecordSubmission(outcome string) {
	swishSubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordPollAttempt records one status request and what it returned
func RecordPollAttempt(result string) {
	swishPollAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordPaymentResult records how a payment lifecycle ended
func RecordPaymentResult(result string, duration time.Duration) {
	swishPaymentResultsTotal.WithLabelValues(result).Inc()
	swishPaymentDuration.WithLabelValues(result).Observe(duration.Seconds())
}
