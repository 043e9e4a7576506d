package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolStats, journalWritesTotal) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the journal connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	journalWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_writes_total",
			Help: "Operation journal inserts by result.",
		},
		[]string{"result"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

func IncJournalWrite(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	journalWritesTotal.WithLabelValues(result).Inc()
}
