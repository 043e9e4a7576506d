package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(flowsStartedTotal, flowOutcomesTotal)
}

var (
	flowsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flows_started_total",
			Help: "Dialogues started, by flow.",
		},
		[]string{"flow"},
	)

	flowOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_outcomes_total",
			Help: "Turn outcomes by flow and category (invalid, success, known_failure, ...).",
		},
		[]string{"flow", "outcome"},
	)
)

func IncFlowStarted(flow string) {
	flowsStartedTotal.WithLabelValues(norm(flow)).Inc()
}

func IncFlowOutcome(flow, outcome string) {
	flowOutcomesTotal.WithLabelValues(norm(flow), norm(outcome)).Inc()
}
