package core

// Severity classifies security events and notifications.
type Severity string

const (
	// SeverityLow indicates informational events with no action required
	SeverityLow Severity = "low"
	// SeverityMedium indicates events worth reviewing (missing tokens, lockouts)
	SeverityMedium Severity = "medium"
	// SeverityHigh indicates likely attack traffic (signature tampering, token mismatch)
	SeverityHigh Severity = "high"
	// SeverityCritical indicates confirmed compromise or data loss risk
	SeverityCritical Severity = "critical"
)

// severityOrder maps severities to a comparable rank.
var severityOrder = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// String returns the string representation
func (s Severity) String() string {
	return string(s)
}

// IsValid checks if the severity is a known level
func (s Severity) IsValid() bool {
	_, ok := severityOrder[s]
	return ok
}

// AtLeast reports whether s ranks at or above min. Unknown severities
// rank below every valid level.
func (s Severity) AtLeast(min Severity) bool {
	return severityOrder[s] >= severityOrder[min]
}
