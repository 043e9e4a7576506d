package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBillingCounters(t *testing.T) {
	before := testutil.ToFloat64(billingCallsTotal.WithLabelValues("epay/checkndfact", "ok"))
	ObserveBillingCall(" epay/checkNdFact ", "OK", 150*time.Millisecond)
	after := testutil.ToFloat64(billingCallsTotal.WithLabelValues("epay/checkndfact", "ok"))
	assert.Equal(t, before+1, after)
}

func TestSessionLookupLabels(t *testing.T) {
	IncSessionLookup("memory", true)
	IncSessionLookup("memory", false)
	assert.GreaterOrEqual(t, testutil.ToFloat64(sessionLookupsTotal.WithLabelValues("memory", "hit")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(sessionLookupsTotal.WithLabelValues("memory", "miss")), 1.0)
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}

func TestCommandLabelsAreFolded(t *testing.T) {
	before := testutil.ToFloat64(telegramCommandsReceivedTotal.WithLabelValues("fact"))
	IncTelegramCommand("FACT")
	IncTelegramCommand(" fact ")
	assert.Equal(t, before+2, testutil.ToFloat64(telegramCommandsReceivedTotal.WithLabelValues("fact")))
}

func TestSetBuildInfo(t *testing.T) {
	SetBuildInfo("v1.2.3", "abc123")
	assert.Equal(t, 1.0, testutil.ToFloat64(buildInfo.WithLabelValues("v1.2.3", "abc123")))
}
