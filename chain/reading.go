package chain

import "time"

// Reading is a single resolved time observation. Accurate reports whether
// the timestamp came from an actual chain query; local-clock fallbacks carry
// Accurate=false and BlockNumber=0.
type Reading struct {
	Timestamp   int64  `json:"timestamp"`
	BlockNumber uint64 `json:"block_number"`
	Accurate    bool   `json:"is_accurate"`
}

// Time converts the reading's timestamp to a time.Time in UTC.
func (r Reading) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// localReading builds the degraded fallback reading from a local clock.
func localReading(now func() time.Time) Reading {
	return Reading{
		Timestamp:   now().Unix(),
		BlockNumber: 0,
		Accurate:    false,
	}
}
