// Package a contains allowed time.Now() usage.
package a

import "time"

var startedAt time.Time

// init functions may read the wall clock.
func init() {
	startedAt = time.Now() // OK - init
}

// Injected clock defaults are the canonical exemption.
func newClockDefault() func() time.Time {
	// clockcheck:exempt reason="fallback local clock default"
	return time.Now // not a call; the exempt line documents intent
}

func exemptedRead() time.Time {
	return time.Now() /* clockcheck:exempt */ // OK
}
