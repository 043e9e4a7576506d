package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(billingCallsTotal, billingAttemptFailuresTotal, billingCallLatency)
}

var (
	billingCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_calls_total",
			Help: "Billing API calls by endpoint and final result (ok|exhausted).",
		},
		[]string{"endpoint", "result"},
	)

	billingAttemptFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_attempt_failures_total",
			Help: "Individual failed attempts against the billing API.",
		},
		[]string{"endpoint"},
	)

	billingCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "billing_call_duration_seconds",
			Help:    "Wall time of a billing call including retries and backoff.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 96},
		},
		[]string{"endpoint"},
	)
)

func ObserveBillingCall(endpoint, result string, d time.Duration) {
	billingCallsTotal.WithLabelValues(norm(endpoint), norm(result)).Inc()
	billingCallLatency.WithLabelValues(norm(endpoint)).Observe(d.Seconds())
}

func IncBillingAttemptFailure(endpoint string) {
	billingAttemptFailuresTotal.WithLabelValues(norm(endpoint)).Inc()
}
