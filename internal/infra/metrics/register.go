// Package metrics holds the bot's Prometheus collectors: billing calls and
// retries, flow starts and outcomes, session store activity, Telegram traffic
// and the journal pool. Each file registers its collectors from init and
// cmd/app registers them once at startup; /metrics serves the default registry.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called by init() in each metrics file to enqueue collectors.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers all enqueued collectors with the default registry
// exactly once. Tests that build several servers may call it repeatedly.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}

// norm folds label values such as command names so /FACT and /fact share a series.
func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
