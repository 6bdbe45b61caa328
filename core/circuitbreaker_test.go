package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, cfg BreakerConfig) *Breaker {
	t.Helper()
	b, err := NewBreaker(cfg)
	require.NoError(t, err)
	return b
}

func TestBreakerConfigValidation(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     BreakerConfig
		wantErr bool
	}{
		{"valid", BreakerConfig{FailureThreshold: 3, Cooldown: time.Second, HalfOpenProbes: 1}, false},
		{"zero threshold", BreakerConfig{Cooldown: time.Second, HalfOpenProbes: 1}, true},
		{"zero cooldown", BreakerConfig{FailureThreshold: 3, HalfOpenProbes: 1}, true},
		{"zero probes", BreakerConfig{FailureThreshold: 3, Cooldown: time.Second}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBreaker(tc.cfg)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBreakerConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustNewBreaker(t *testing.T) {
	assert.NotNil(t, MustNewBreaker(DefaultBreakerConfig()))
	assert.Panics(t, func() { MustNewBreaker(BreakerConfig{}) })
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker(t, BreakerConfig{FailureThreshold: 3, Cooldown: time.Minute, HalfOpenProbes: 1})

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.Failure()
	}

	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, Cooldown: 50 * time.Millisecond, HalfOpenProbes: 1})

	// Open the circuit at a fixed point in time, then move the clock past
	// the cooldown instead of sleeping.
	base := time.Now()
	b.now = func() time.Time { return base }
	b.Failure()
	require.Equal(t, BreakerOpen, b.State())

	b.now = func() time.Time { return base.Add(100 * time.Millisecond) }

	// First probe allowed, second rejected while the probe is in flight.
	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrBreakerSaturated)

	b.Success()
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, Cooldown: 50 * time.Millisecond, HalfOpenProbes: 1})

	base := time.Now()
	b.now = func() time.Time { return base }
	b.Failure()

	b.now = func() time.Time { return base.Add(time.Second) }
	require.NoError(t, b.Allow())

	b.Failure()
	assert.Equal(t, BreakerOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
}

func TestBreakerReset(t *testing.T) {
	b := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute, HalfOpenProbes: 1})

	b.Failure()
	require.Equal(t, BreakerOpen, b.State())

	b.Reset()
	assert.Equal(t, BreakerClosed, b.State())
	assert.NoError(t, b.Allow())
}
