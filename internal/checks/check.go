package checks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Check is a named, independently schedulable probe. Run must emit exactly
// one Result per invocation; any number of HTTP probes may happen inside.
type Check interface {
	ID() string
	Description() string
	Run(ctx context.Context) Result
}

// Executor wraps check bodies with the uniform execution discipline:
// panic-to-fail conversion, check ID enforcement, timeout handling, and
// statistics updates.
type Executor struct {
	stats *Tracker
}

// NewExecutor creates an executor recording into the given tracker.
func NewExecutor(stats *Tracker) *Executor {
	if stats == nil {
		stats = NewTracker()
	}
	return &Executor{stats: stats}
}

// Stats exposes the underlying tracker.
func (e *Executor) Stats() *Tracker {
	return e.stats
}

// Execute runs the check body, normalizes panics into fail results, and
// rewrites mismatched check IDs.
func (e *Executor) Execute(ctx context.Context, c Check) Result {
	res := runGuarded(ctx, c)
	e.stats.Record(res)
	return res
}

// ExecuteWithTimeout behaves like Execute but emits a synthetic fail result
// when the body does not complete within d. The latency of a timeout result
// equals the timeout itself; a parent-context cancel reports the elapsed
// wall clock instead, since no deadline was actually hit.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, c Check, d time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- runGuarded(runCtx, c)
	}()

	select {
	case res := <-done:
		e.stats.Record(res)
		return res
	case <-runCtx.Done():
		res := Result{
			CheckID:   c.ID(),
			Timestamp: time.Now().UTC(),
			Status:    StatusFail,
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("check", c.ID()).Dur("timeout", d).Msg("Check timed out")
			res.LatencyMS = float64(d.Milliseconds())
			res.Message = fmt.Sprintf("Check timed out after %s", d)
		} else {
			log.Warn().Str("check", c.ID()).Msg("Check cancelled before completion")
			res.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
			res.Message = "Check cancelled before completion"
		}
		e.stats.Record(res)
		return res
	}
}

// runGuarded executes the check body with panic recovery and identity
// enforcement. The body owns its own latency measurement; a panic result
// carries the elapsed wall clock up to the panic.
func runGuarded(ctx context.Context, c Check) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("check", c.ID()).Interface("panic", r).Msg("Check body panicked")
			res = Result{
				CheckID:   c.ID(),
				Timestamp: time.Now().UTC(),
				Status:    StatusFail,
				LatencyMS: float64(time.Since(start).Microseconds()) / 1000.0,
				Message:   fmt.Sprintf("Check execution failed: %v", r),
				Details: map[string]any{
					"exception_type":    fmt.Sprintf("%T", r),
					"exception_message": fmt.Sprint(r),
				},
			}
		}
	}()

	res = c.Run(ctx)

	if res.CheckID != c.ID() {
		log.Warn().Str("expected", c.ID()).Str("got", res.CheckID).Msg("Check emitted mismatched ID, rewriting")
		res.CheckID = c.ID()
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return res
}
