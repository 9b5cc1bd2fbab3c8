// Package alerting converts the append-only result stream into a bounded,
// deduplicated, severity-aware alert stream and fans it out to channels.
package alerting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/checks"
	"github.com/verimem/sentinel/internal/metrics"
)

// State is the per-check health state maintained by the manager.
type State string

const (
	StateOK       State = "ok"
	StateDegraded State = "degraded"
	StateFailing  State = "failing"
)

// AlertTypeThreshold and AlertTypeRecovery are the alert_history event types.
const (
	AlertTypeThreshold = "failure_threshold"
	AlertTypeRecovery  = "recovery"
)

// Event is one alert dispatched to the channels.
type Event struct {
	ID          string    `json:"id"`
	CheckID     string    `json:"check_id"`
	Type        string    `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
}

// Channel delivers one alert rendering. Implementations must be safe for
// concurrent use across events; dispatch per channel object is serial.
type Channel interface {
	Name() string
	Dispatch(ctx context.Context, ev Event, res checks.Result) error
}

// Store is the slice of the persistence layer the manager consumes.
// Resolution is guarded by ResolveAlertEvent's bool, so no separate
// open-alert lookup is needed here.
type Store interface {
	CountRecentFailures(checkID string, window time.Duration) (int, error)
	StoreAlertEvent(checkID, alertType, message string, ts time.Time) error
	ResolveAlertEvent(checkID string, at time.Time) (bool, error)
}

// Config holds the manager tunables.
type Config struct {
	ThresholdFailures int           // failures within FailureWindow to escalate
	FailureWindow     time.Duration // default 5m
	DedupWindow       time.Duration // per-fingerprint suppression window
}

func (c Config) withDefaults() Config {
	if c.ThresholdFailures <= 0 {
		c.ThresholdFailures = 3
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 5 * time.Minute
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = 30 * time.Minute
	}
	return c
}

// Manager owns the dedup map, the per-check state machine, and channel
// fan-out. Results must already be persisted when they reach HandleResult.
type Manager struct {
	mu             sync.Mutex
	cfg            Config
	store          Store
	channels       []Channel
	lastDispatched map[string]time.Time
	suppressed     map[string]int
	states         map[string]State
	failTimes      map[string][]time.Time // in-memory fallback for store outages
	now            func() time.Time
}

// New constructs the alert manager.
func New(store Store, channels []Channel, cfg Config) *Manager {
	return &Manager{
		cfg:            cfg.withDefaults(),
		store:          store,
		channels:       channels,
		lastDispatched: make(map[string]time.Time),
		suppressed:     make(map[string]int),
		states:         make(map[string]State),
		failTimes:      make(map[string][]time.Time),
		now:            time.Now,
	}
}

// HandleResult consumes one result. Non-fail results only update the
// bookkeeping (and may auto-resolve); fail results are checked against the
// escalation threshold. The manager never aborts because a channel failed.
func (m *Manager) HandleResult(ctx context.Context, r checks.Result) {
	switch r.Status {
	case checks.StatusPass:
		m.handlePass(ctx, r)
	case checks.StatusWarn:
		// warn counts toward neither success nor failure thresholds.
		m.mu.Lock()
		if m.states[r.CheckID] == StateOK || m.states[r.CheckID] == "" {
			m.states[r.CheckID] = StateDegraded
		}
		m.mu.Unlock()
	case checks.StatusFail:
		m.handleFail(ctx, r)
	}
}

func (m *Manager) handleFail(ctx context.Context, r checks.Result) {
	now := m.now()

	m.mu.Lock()
	m.states[r.CheckID] = StateFailing
	m.recordFailLocked(r.CheckID, now)
	memCount := len(m.failTimes[r.CheckID])
	m.mu.Unlock()

	count, err := m.store.CountRecentFailures(r.CheckID, m.cfg.FailureWindow)
	if err != nil {
		log.Error().Err(err).Str("check", r.CheckID).Msg("Failure count query failed, using in-memory count")
		count = memCount
	}
	if count < m.cfg.ThresholdFailures {
		return
	}

	sev := severityFor(r.CheckID, count, m.cfg.ThresholdFailures)
	fp := Fingerprint(r.CheckID, string(r.Status), r.Message)

	m.mu.Lock()
	if last, ok := m.lastDispatched[fp]; ok && now.Sub(last) < m.cfg.DedupWindow {
		m.suppressed[fp]++
		suppressions := m.suppressed[fp]
		m.mu.Unlock()
		log.Debug().
			Str("check", r.CheckID).
			Str("fingerprint", fp).
			Int("suppressed", suppressions).
			Msg("Alert suppressed inside dedup window")
		return
	}
	// Counted as dispatched up front so channel failures cannot cause loops.
	m.lastDispatched[fp] = now
	m.mu.Unlock()

	ev := Event{
		ID:          uuid.NewString(),
		CheckID:     r.CheckID,
		Type:        AlertTypeThreshold,
		Severity:    sev,
		Message:     fmt.Sprintf("%s failing (%d failures in %s): %s", r.CheckID, count, m.cfg.FailureWindow, r.Message),
		Fingerprint: fp,
		Timestamp:   now,
	}

	// Persist at creation; a storage failure is logged and dispatch proceeds.
	if err := m.store.StoreAlertEvent(ev.CheckID, ev.Type, ev.Message, ev.Timestamp); err != nil {
		log.Error().Err(err).Str("check", ev.CheckID).Msg("Failed to persist alert event")
	}

	log.Warn().
		Str("check", ev.CheckID).
		Str("severity", string(ev.Severity)).
		Int("failures", count).
		Msg("Escalation threshold reached, dispatching alert")

	m.dispatch(ctx, ev, r)
}

func (m *Manager) handlePass(ctx context.Context, r checks.Result) {
	now := m.now()

	m.mu.Lock()
	wasFailing := m.states[r.CheckID] == StateFailing
	m.states[r.CheckID] = StateOK
	delete(m.failTimes, r.CheckID)
	m.mu.Unlock()

	if !wasFailing {
		return
	}

	resolved, err := m.store.ResolveAlertEvent(r.CheckID, now)
	if err != nil {
		log.Error().Err(err).Str("check", r.CheckID).Msg("Failed to resolve alert event")
		return
	}
	if !resolved {
		return
	}

	message := fmt.Sprintf("%s recovered", r.CheckID)
	fp := Fingerprint(r.CheckID, string(checks.StatusPass), message)

	m.mu.Lock()
	if last, ok := m.lastDispatched[fp]; ok && now.Sub(last) < m.cfg.DedupWindow {
		m.suppressed[fp]++
		m.mu.Unlock()
		return
	}
	m.lastDispatched[fp] = now
	m.mu.Unlock()

	ev := Event{
		ID:          uuid.NewString(),
		CheckID:     r.CheckID,
		Type:        AlertTypeRecovery,
		Severity:    SeverityInfo,
		Message:     message,
		Fingerprint: fp,
		Timestamp:   now,
	}
	if err := m.store.StoreAlertEvent(ev.CheckID, ev.Type, ev.Message, ev.Timestamp); err != nil {
		log.Error().Err(err).Str("check", ev.CheckID).Msg("Failed to persist recovery event")
	}

	log.Info().Str("check", r.CheckID).Msg("Alert auto-resolved, dispatching recovery notice")
	m.dispatch(ctx, ev, r)
}

// dispatch fans the event out to all channels concurrently. A channel that
// errors is logged and skipped; the others still receive the alert.
func (m *Manager) dispatch(ctx context.Context, ev Event, r checks.Result) {
	var wg sync.WaitGroup
	for _, ch := range m.channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()
			if err := ch.Dispatch(ctx, ev, r); err != nil {
				log.Error().
					Err(err).
					Str("channel", ch.Name()).
					Str("check", ev.CheckID).
					Msg("Alert channel dispatch failed")
				return
			}
			metrics.AlertsDispatched.WithLabelValues(string(ev.Severity), ch.Name()).Inc()
		}(ch)
	}
	wg.Wait()
}

func (m *Manager) recordFailLocked(checkID string, now time.Time) {
	cutoff := now.Add(-m.cfg.FailureWindow)
	kept := m.failTimes[checkID][:0]
	for _, t := range m.failTimes[checkID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.failTimes[checkID] = append(kept, now)
}

// CheckState returns the manager's state for one check.
func (m *Manager) CheckState(checkID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[checkID]; ok {
		return s
	}
	return StateOK
}

// SuppressedCount returns how many candidates a fingerprint suppressed.
func (m *Manager) SuppressedCount(fingerprint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed[fingerprint]
}
