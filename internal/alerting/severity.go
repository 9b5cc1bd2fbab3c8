package alerting

import "strings"

// Severity is the closed set of alert severities.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// criticalClassPrefixes name the check ID classes that escalate straight to
// critical at threshold: security and data-integrity checks.
var criticalClassPrefixes = []string{
	"S5-",      // security negatives
	"S6-",      // backup/restore integrity
	"firewall", // exposure introspection
}

// severityFor derives severity from the check ID class and the failure
// count. Severity is never sourced from the check body.
func severityFor(checkID string, failures, threshold int) Severity {
	for _, prefix := range criticalClassPrefixes {
		if strings.HasPrefix(checkID, prefix) {
			return SeverityCritical
		}
	}
	switch {
	case failures >= 3*threshold:
		return SeverityCritical
	case failures >= 2*threshold:
		return SeverityHigh
	default:
		return SeverityWarning
	}
}
