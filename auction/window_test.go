package auction

import (
	"testing"

	"bidhouse/chain"

	"github.com/stretchr/testify/assert"
)

func TestComputeEndTimes(t *testing.T) {
	tests := []struct {
		name          string
		start         int64
		durationHours float64
		includeBuffer bool
		want          EndTimes
	}{
		{
			name:          "one hour with buffer",
			start:         1000,
			durationHours: 1,
			includeBuffer: true,
			want:          EndTimes{UserEndTime: 4600, ActualEndTime: 4780, BufferSeconds: 180},
		},
		{
			name:          "one hour without buffer",
			start:         1000,
			durationHours: 1,
			includeBuffer: false,
			want:          EndTimes{UserEndTime: 4600, ActualEndTime: 4600, BufferSeconds: 0},
		},
		{
			name:          "fractional hours truncate to whole seconds",
			start:         0,
			durationHours: 0.5,
			includeBuffer: true,
			want:          EndTimes{UserEndTime: 1800, ActualEndTime: 1980, BufferSeconds: 180},
		},
		{
			name:          "multi day auction",
			start:         1700000000,
			durationHours: 72,
			includeBuffer: true,
			want:          EndTimes{UserEndTime: 1700259200, ActualEndTime: 1700259380, BufferSeconds: 180},
		},
		{
			name:          "zero duration",
			start:         5000,
			durationHours: 0,
			includeBuffer: false,
			want:          EndTimes{UserEndTime: 5000, ActualEndTime: 5000, BufferSeconds: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEndTimes(tt.start, tt.durationHours, tt.includeBuffer)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got.ActualEndTime, got.UserEndTime)
		})
	}
}

func TestCanAcceptBids(t *testing.T) {
	tests := []struct {
		name    string
		end     int64
		reading chain.Reading
		grace   int64
		want    Decision
	}{
		{
			name:    "open window with chain time",
			end:     2000,
			reading: chain.Reading{Timestamp: 1000, Accurate: true},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: true, TimeRemaining: 970},
		},
		{
			name:    "open window with local fallback",
			end:     2000,
			reading: chain.Reading{Timestamp: 1000, Accurate: false},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: true, TimeRemaining: 970},
		},
		{
			name:    "exactly zero remaining is closed",
			end:     1030,
			reading: chain.Reading{Timestamp: 1000, Accurate: true},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: false, TimeRemaining: 0, Reason: "ended according to blockchain time"},
		},
		{
			name:    "ended by chain time",
			end:     1000,
			reading: chain.Reading{Timestamp: 2000, Accurate: true},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: false, TimeRemaining: -1030, Reason: "ended according to blockchain time"},
		},
		{
			name:    "ended by local time",
			end:     1000,
			reading: chain.Reading{Timestamp: 2000, Accurate: false},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: false, TimeRemaining: -1030, Reason: "ended according to local time (blockchain time unavailable)"},
		},
		{
			name:    "one second inside the window",
			end:     1031,
			reading: chain.Reading{Timestamp: 1000, Accurate: true},
			grace:   DefaultGraceSeconds,
			want:    Decision{CanBid: true, TimeRemaining: 1},
		},
		{
			name:    "zero grace keeps the full window",
			end:     1030,
			reading: chain.Reading{Timestamp: 1000, Accurate: true},
			grace:   0,
			want:    Decision{CanBid: true, TimeRemaining: 30},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanAcceptBids(tt.end, tt.reading, tt.grace)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanAcceptBidsReasonOnlyWhenClosed(t *testing.T) {
	open := CanAcceptBids(10000, chain.Reading{Timestamp: 0, Accurate: true}, DefaultGraceSeconds)
	assert.True(t, open.CanBid)
	assert.Empty(t, open.Reason)
}

func TestFormatDuration(t *testing.T) {
	const now int64 = 1700000000

	tests := []struct {
		name        string
		userEnd     int64
		actualEnd   int64
		wantDisplay string
	}{
		{
			name:        "ended",
			userEnd:     now - 1,
			actualEnd:   now - 1,
			wantDisplay: "Auction Ended",
		},
		{
			name:        "ends exactly now",
			userEnd:     now,
			actualEnd:   now,
			wantDisplay: "Auction Ended",
		},
		{
			name:        "days remaining",
			userEnd:     now + 90061, // 1d 1h 1m 1s
			actualEnd:   now + 90061,
			wantDisplay: "1d 1h 1m",
		},
		{
			name:        "hours remaining",
			userEnd:     now + 3661, // 1h 1m 1s
			actualEnd:   now + 3661,
			wantDisplay: "1h 1m 1s",
		},
		{
			name:        "minutes remaining",
			userEnd:     now + 61,
			actualEnd:   now + 61,
			wantDisplay: "1m 1s",
		},
		{
			name:        "under a minute",
			userEnd:     now + 59,
			actualEnd:   now + 59,
			wantDisplay: "0m 59s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDuration(tt.userEnd, tt.actualEnd, now)
			assert.Equal(t, tt.wantDisplay, got.UserDisplay)
		})
	}
}

func TestFormatDurationBufferNeverLeaksIntoDisplay(t *testing.T) {
	const now int64 = 1700000000
	userEnd := now + 60
	actualEnd := userEnd + EndBufferSeconds

	got := FormatDuration(userEnd, actualEnd, now)

	assert.Equal(t, "1m 0s", got.UserDisplay)
	assert.Equal(t, int64(240), got.ActualRemaining)
	assert.True(t, got.HasBuffer)

	// Once the visible window closes the display flips even though the
	// settlement buffer is still open.
	late := FormatDuration(userEnd, actualEnd, userEnd+1)
	assert.Equal(t, "Auction Ended", late.UserDisplay)
	assert.Equal(t, EndBufferSeconds-1, late.ActualRemaining)
	assert.True(t, late.HasBuffer)
}

func TestFormatDurationNoBuffer(t *testing.T) {
	const now int64 = 1000
	got := FormatDuration(now+120, now+120, now)

	assert.Equal(t, "2m 0s", got.UserDisplay)
	assert.Equal(t, int64(120), got.ActualRemaining)
	assert.False(t, got.HasBuffer)
}
