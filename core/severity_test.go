package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityIsValid(t *testing.T) {
	testCases := []struct {
		severity Severity
		valid    bool
	}{
		{SeverityLow, true},
		{SeverityMedium, true},
		{SeverityHigh, true},
		{SeverityCritical, true},
		{Severity("urgent"), false},
		{Severity(""), false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.severity), func(t *testing.T) {
			assert.Equal(t, tc.valid, tc.severity.IsValid())
		})
	}
}

func TestSeverityAtLeast(t *testing.T) {
	assert.True(t, SeverityHigh.AtLeast(SeverityMedium))
	assert.True(t, SeverityHigh.AtLeast(SeverityHigh))
	assert.False(t, SeverityMedium.AtLeast(SeverityHigh))
	assert.True(t, SeverityCritical.AtLeast(SeverityLow))

	// Unknown severities never clear a threshold.
	assert.False(t, Severity("unknown").AtLeast(SeverityLow))
}
