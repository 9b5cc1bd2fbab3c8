// Package runner drives the monitoring engine: the fixed-interval scheduler,
// the per-tick concurrent check fan-out, and the result pipeline into
// persistence, ring buffers, and the alert manager.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/verimem/sentinel/internal/buffer"
	"github.com/verimem/sentinel/internal/checks"
	"github.com/verimem/sentinel/internal/metrics"
	"github.com/verimem/sentinel/internal/summary"
)

// Ring buffer hard caps.
const (
	failuresCap = 200
	reportsCap  = 50
	tracesCap   = 500
)

// Trace is the lightweight execution record kept for the query API.
type Trace struct {
	Timestamp time.Time     `json:"timestamp"`
	CheckID   string        `json:"check_id"`
	Status    checks.Status `json:"status"`
	LatencyMS float64       `json:"latency_ms"`
}

// Store is the persistence slice the runner writes and reads.
type Store interface {
	StoreResult(r checks.Result) error
	QueryHistory(checkID string, limit int) ([]checks.Result, error)
}

// ResultHandler consumes persisted results; satisfied by *alerting.Manager.
type ResultHandler interface {
	HandleResult(ctx context.Context, r checks.Result)
}

// Config holds scheduler tunables.
type Config struct {
	Interval     time.Duration // tick period, default 60s
	CheckTimeout time.Duration // per-check hard timeout, must stay below Interval
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.CheckTimeout <= 0 || c.CheckTimeout >= c.Interval {
		c.CheckTimeout = c.Interval - 5*time.Second
		if c.CheckTimeout < time.Second {
			c.CheckTimeout = c.Interval / 2
		}
	}
	return c
}

// Status is the read-only snapshot served to the dashboard.
type Status struct {
	Running        bool                    `json:"running"`
	TotalChecks    int                     `json:"total_checks"`
	EnabledChecks  int                     `json:"enabled_checks"`
	RecentFailures int                     `json:"recent_failures"`
	PerCheckStats  map[string]checks.Stats `json:"per_check_stats"`
	LastCycleTime  time.Time               `json:"last_cycle_time"`
	LastCycleMS    float64                 `json:"last_cycle_ms"`
}

// Runner owns the tick loop and all process-local shared state derived from
// the result stream.
type Runner struct {
	cfg     Config
	store   Store
	handler ResultHandler
	exec    *checks.Executor
	checks  []checks.Check

	failures *buffer.Ring[checks.Result]
	reports  *buffer.Ring[summary.Report]
	traces   *buffer.Ring[Trace]

	// onResult, when set, receives every processed result (ws broadcast).
	onResult func(checks.Result)

	mu            sync.RWMutex
	running       bool
	lastCycleTime time.Time
	lastCycleDur  time.Duration
}

// New constructs the runner over an instantiated check set.
func New(cfg Config, store Store, handler ResultHandler, active []checks.Check) *Runner {
	return &Runner{
		cfg:      cfg.withDefaults(),
		store:    store,
		handler:  handler,
		exec:     checks.NewExecutor(checks.NewTracker()),
		checks:   active,
		failures: buffer.NewRing[checks.Result](failuresCap),
		reports:  buffer.NewRing[summary.Report](reportsCap),
		traces:   buffer.NewRing[Trace](tracesCap),
	}
}

// SetResultHook registers a callback invoked for every processed result.
func (r *Runner) SetResultHook(fn func(checks.Result)) {
	r.onResult = fn
}

// Reports exposes the reports ring shared with the summary generator.
func (r *Runner) Reports() *buffer.Ring[summary.Report] {
	return r.reports
}

// Run executes the tick loop until ctx is cancelled. The in-flight cycle is
// always completed before returning so its results are never left
// unpersisted.
func (r *Runner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	log.Info().
		Int("checks", len(r.checks)).
		Dur("interval", r.cfg.Interval).
		Dur("checkTimeout", r.cfg.CheckTimeout).
		Msg("Runner starting")

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Runner stopping after completed cycle")
			return ctx.Err()
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle fans all checks out concurrently, joins, then pipes each result
// through persistence, ring buffers, and the alert manager in that order.
func (r *Runner) runCycle(ctx context.Context) {
	start := time.Now()
	results := make([]checks.Result, len(r.checks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range r.checks {
		g.Go(func() error {
			results[i] = r.exec.ExecuteWithTimeout(gctx, c, r.cfg.CheckTimeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		r.processResult(ctx, res)
	}

	elapsed := time.Since(start)
	r.mu.Lock()
	r.lastCycleTime = start
	r.lastCycleDur = elapsed
	r.mu.Unlock()
	metrics.CycleDuration.Observe(elapsed.Seconds())

	log.Info().
		Int("checks", len(r.checks)).
		Dur("duration", elapsed).
		Msg("Check cycle completed")
}

// processResult moves one result through the pipeline. Persistence failures
// are logged; the in-memory path and alerting still run so a broken disk
// cannot silence the engine.
func (r *Runner) processResult(ctx context.Context, res checks.Result) {
	if err := r.store.StoreResult(res); err != nil {
		metrics.ResultsPersistFailures.Inc()
		log.Error().Err(err).Str("check", res.CheckID).Msg("Failed to persist result")
	}

	r.traces.Push(Trace{
		Timestamp: res.Timestamp,
		CheckID:   res.CheckID,
		Status:    res.Status,
		LatencyMS: res.LatencyMS,
	})
	if res.Status != checks.StatusPass {
		r.failures.Push(res)
	}
	metrics.ChecksRun.WithLabelValues(res.CheckID, string(res.Status)).Inc()

	if r.onResult != nil {
		r.onResult(res)
	}
	if r.handler != nil {
		r.handler.HandleResult(ctx, res)
	}
}

// StatusSummary snapshots runner state for the query API.
func (r *Runner) StatusSummary() Status {
	r.mu.RLock()
	running := r.running
	lastTime := r.lastCycleTime
	lastDur := r.lastCycleDur
	r.mu.RUnlock()

	return Status{
		Running:        running,
		TotalChecks:    len(checks.Definitions()),
		EnabledChecks:  len(r.checks),
		RecentFailures: r.failures.Len(),
		PerCheckStats:  r.exec.Stats().Snapshot(),
		LastCycleTime:  lastTime,
		LastCycleMS:    float64(lastDur.Microseconds()) / 1000.0,
	}
}

// CheckHistory delegates to persistence.
func (r *Runner) CheckHistory(checkID string, limit int) ([]checks.Result, error) {
	return r.store.QueryHistory(checkID, limit)
}

// RecentFailures returns a snapshot of the failures ring, oldest first.
func (r *Runner) RecentFailures() []checks.Result {
	return r.failures.Snapshot()
}

// RecentTraces returns a snapshot of the traces ring, oldest first.
func (r *Runner) RecentTraces() []Trace {
	return r.traces.Snapshot()
}

// RecentReports returns a snapshot of the reports ring, oldest first.
func (r *Runner) RecentReports() []summary.Report {
	return r.reports.Snapshot()
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}
