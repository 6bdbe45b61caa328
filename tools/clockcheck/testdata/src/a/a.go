// Package a contains flagged cases for the clockcheck analyzer.
package a

import "time"

// Gate-style comparison against the wall clock: flagged.
func gateOnWallClock(endTime int64) bool {
	return endTime-time.Now().Unix() > 0 // want "time.Now\\(\\) used in gateOnWallClock"
}

// Deriving an auction window from the wall clock: flagged.
func windowFromWallClock() time.Time {
	return time.Now().Add(time.Hour) // want "time.Now\\(\\) used in windowFromWallClock"
}

// Multiple violations in one function are each reported.
func repeatedReads() int64 {
	a := time.Now().Unix() // want "time.Now\\(\\) used in repeatedReads"
	b := time.Now().Unix() // want "time.Now\\(\\) used in repeatedReads"
	return b - a
}
