package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(CSRFTokensIssued)
	CSRFTokensIssued.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(CSRFTokensIssued))
}

func TestLabeledCounters(t *testing.T) {
	CSRFValidations.WithLabelValues("failure", "missing_cookie").Inc()
	CSRFValidations.WithLabelValues("failure", "missing_cookie").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(CSRFValidations.WithLabelValues("failure", "missing_cookie")))

	ChainTimeRequests.WithLabelValues("client", "fallback").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(ChainTimeRequests.WithLabelValues("client", "fallback")))
}

func TestGauges(t *testing.T) {
	AuctionsActive.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(AuctionsActive))

	ChainClockDrift.Set(-1.5)
	assert.Equal(t, -1.5, testutil.ToFloat64(ChainClockDrift))
}
