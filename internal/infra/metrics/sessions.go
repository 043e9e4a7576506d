package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(sessionsActive, sessionsExpiredTotal, sessionLookupsTotal)
}

var (
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Sessions currently held by the in-memory store.",
		},
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Sessions dropped by the idle sweeper.",
		},
	)

	sessionLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_lookups_total",
			Help: "Session store reads by backend and result (hit|miss).",
		},
		[]string{"backend", "result"},
	)
)

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

func AddSessionsExpired(n int) {
	sessionsExpiredTotal.Add(float64(n))
}

func IncSessionLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	sessionLookupsTotal.WithLabelValues(norm(backend), result).Inc()
}
