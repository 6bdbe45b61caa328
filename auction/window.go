// Package auction implements the time window arithmetic and bid gating
// rules for auctions anchored to chain time.
//
// All window math lives in three pure functions so that HTTP handlers, the
// service layer, and the background sweeper share a single authority on
// whether an auction is open. None of them read the wall clock; callers
// supply a chain.Reading or an explicit timestamp.
package auction

import (
	"fmt"

	"bidhouse/chain"
)

const (
	// EndBufferSeconds is the settlement window appended after the
	// user-visible end time so in-flight bid transactions can still land.
	// Bidders see the auction close at UserEndTime; the house accepts
	// late-confirming bids until ActualEndTime.
	EndBufferSeconds int64 = 180

	// DefaultGraceSeconds shortens the biddable window to absorb chain
	// timestamp jitter near the close.
	DefaultGraceSeconds int64 = 30
)

// Close reasons returned by CanAcceptBids. Clients key UI copy off these
// exact strings.
const (
	ReasonEndedChainTime = "ended according to blockchain time"
	ReasonEndedLocalTime = "ended according to local time (blockchain time unavailable)"
)

// EndTimes is the derived pair of deadlines for one auction.
// ActualEndTime >= UserEndTime always holds.
type EndTimes struct {
	UserEndTime   int64 `json:"user_end_time"`
	ActualEndTime int64 `json:"actual_end_time"`
	BufferSeconds int64 `json:"buffer_seconds"`
}

// ComputeEndTimes derives the deadlines for an auction starting at
// startTimestamp and running durationHours. Fractional hours are truncated
// to whole seconds. With includeBuffer the settlement buffer is appended to
// the actual deadline; the user-visible deadline never includes it.
func ComputeEndTimes(startTimestamp int64, durationHours float64, includeBuffer bool) EndTimes {
	durationSeconds := int64(durationHours * 3600)

	var bufferSeconds int64
	if includeBuffer {
		bufferSeconds = EndBufferSeconds
	}

	userEnd := startTimestamp + durationSeconds
	return EndTimes{
		UserEndTime:   userEnd,
		ActualEndTime: userEnd + bufferSeconds,
		BufferSeconds: bufferSeconds,
	}
}

// Decision is the outcome of a bid gating check. Reason is empty while the
// auction is biddable.
type Decision struct {
	CanBid        bool   `json:"can_bid"`
	TimeRemaining int64  `json:"time_remaining"`
	Reason        string `json:"reason,omitempty"`
}

// CanAcceptBids decides whether an auction ending at auctionEndTime still
// accepts bids at the time carried by t. The grace period is subtracted
// from the remaining window, so the window closes grace seconds early; a
// remaining time of exactly zero is closed. The close reason names which
// clock made the call, driven by t.Accurate.
func CanAcceptBids(auctionEndTime int64, t chain.Reading, graceSeconds int64) Decision {
	remaining := auctionEndTime - t.Timestamp - graceSeconds

	d := Decision{
		CanBid:        remaining > 0,
		TimeRemaining: remaining,
	}
	if d.CanBid {
		return d
	}

	if t.Accurate {
		d.Reason = ReasonEndedChainTime
	} else {
		d.Reason = ReasonEndedLocalTime
	}
	return d
}

// Countdown is the display form of an auction's remaining time.
type Countdown struct {
	UserDisplay     string `json:"user_display"`
	ActualRemaining int64  `json:"actual_remaining"`
	HasBuffer       bool   `json:"has_buffer"`
}

// FormatDuration renders the countdown shown to bidders. UserDisplay is
// derived from userEndTime only; the settlement buffer changes
// ActualRemaining and HasBuffer but never the visible countdown.
func FormatDuration(userEndTime, actualEndTime, currentTime int64) Countdown {
	c := Countdown{
		ActualRemaining: actualEndTime - currentTime,
		HasBuffer:       actualEndTime > userEndTime,
	}

	remaining := userEndTime - currentTime
	if remaining <= 0 {
		c.UserDisplay = "Auction Ended"
		return c
	}

	days := remaining / 86400
	hours := (remaining % 86400) / 3600
	minutes := (remaining % 3600) / 60
	seconds := remaining % 60

	switch {
	case days > 0:
		c.UserDisplay = fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		c.UserDisplay = fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	default:
		c.UserDisplay = fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return c
}
