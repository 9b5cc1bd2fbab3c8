// Package checks defines the check contract, the immutable Result record,
// per-check statistics, and the static check registry.
package checks

import (
	"fmt"
	"time"
)

// Status is the closed set of check outcomes.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Valid reports whether s belongs to the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusWarn, StatusFail:
		return true
	default:
		return false
	}
}

// Result is the immutable record of one check execution. It is produced
// exactly once per scheduled run and never mutated after emission.
type Result struct {
	CheckID   string         `json:"check_id"`
	Timestamp time.Time      `json:"timestamp"`
	Status    Status         `json:"status"`
	LatencyMS float64        `json:"latency_ms"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewResult stamps a result with the current UTC instant.
func NewResult(checkID string, status Status, latencyMS float64, message string, details map[string]any) Result {
	return Result{
		CheckID:   checkID,
		Timestamp: time.Now().UTC(),
		Status:    status,
		LatencyMS: latencyMS,
		Message:   message,
		Details:   details,
	}
}

// Validate rejects results that must not enter persistence.
func (r Result) Validate() error {
	if r.CheckID == "" {
		return fmt.Errorf("result missing check_id")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("invalid status %q for check %s", r.Status, r.CheckID)
	}
	if r.LatencyMS < 0 {
		return fmt.Errorf("negative latency %.3fms for check %s", r.LatencyMS, r.CheckID)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("result missing timestamp for check %s", r.CheckID)
	}
	return nil
}
