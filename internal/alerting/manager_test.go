package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimem/sentinel/internal/checks"
)

// memStore is an in-memory Store for manager tests.
type memStore struct {
	mu         sync.Mutex
	failTimes  map[string][]time.Time
	openAlerts map[string]int
	events     []string
	countErr   error
	resolveErr error
	now        func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		failTimes:  make(map[string][]time.Time),
		openAlerts: make(map[string]int),
		now:        time.Now,
	}
}

func (s *memStore) recordFail(checkID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTimes[checkID] = append(s.failTimes[checkID], at)
}

func (s *memStore) CountRecentFailures(checkID string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	cutoff := s.now().Add(-window)
	count := 0
	for _, t := range s.failTimes[checkID] {
		if t.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *memStore) StoreAlertEvent(checkID, alertType, message string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("%s/%s", checkID, alertType))
	if alertType == AlertTypeThreshold {
		s.openAlerts[checkID]++
	}
	return nil
}

func (s *memStore) ResolveAlertEvent(checkID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolveErr != nil {
		return false, s.resolveErr
	}
	if s.openAlerts[checkID] == 0 {
		return false, nil
	}
	s.openAlerts[checkID]--
	return true, nil
}

// recordingChannel captures dispatched events.
type recordingChannel struct {
	mu     sync.Mutex
	name   string
	err    error
	events []Event
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Dispatch(_ context.Context, ev Event, _ checks.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *recordingChannel) last() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func failResult(checkID, message string) checks.Result {
	return checks.NewResult(checkID, checks.StatusFail, 10, message, nil)
}

func passResult(checkID string) checks.Result {
	return checks.NewResult(checkID, checks.StatusPass, 5, "ok", nil)
}

// feedFailures pushes n identical failures through store and manager.
func feedFailures(m *Manager, store *memStore, checkID, message string, n int) {
	for i := 0; i < n; i++ {
		store.recordFail(checkID, time.Now())
		m.HandleResult(context.Background(), failResult(checkID, message))
	}
}

func TestNoAlertBelowThreshold(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3})

	feedFailures(m, store, "S2-golden-fact-recall", "recall below threshold", 2)

	assert.Zero(t, ch.count())
	assert.Empty(t, store.events)
	assert.Equal(t, StateFailing, m.CheckState("S2-golden-fact-recall"))
}

func TestAlertFiresAtThresholdOnAllChannels(t *testing.T) {
	store := newMemStore()
	chA := &recordingChannel{name: "log"}
	chB := &recordingChannel{name: "telegram"}
	m := New(store, []Channel{chA, chB}, Config{ThresholdFailures: 3})

	feedFailures(m, store, "S2-golden-fact-recall", "recall below threshold", 3)

	require.Equal(t, 1, chA.count())
	require.Equal(t, 1, chB.count())

	ev := chA.last()
	assert.Equal(t, AlertTypeThreshold, ev.Type)
	assert.Equal(t, SeverityWarning, ev.Severity)
	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Fingerprint)
	assert.Contains(t, ev.Message, "S2-golden-fact-recall failing")
	assert.Equal(t, []string{"S2-golden-fact-recall/failure_threshold"}, store.events)
}

func TestDedupSuppressesRepeats(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3, DedupWindow: 30 * time.Minute})

	feedFailures(m, store, "S5-security-negatives", "auth bypass detected", 6)

	require.Equal(t, 1, ch.count(), "repeats inside the dedup window are suppressed")
	fp := ch.last().Fingerprint
	assert.Equal(t, 3, m.SuppressedCount(fp))
}

func TestDedupWindowExpiryRefires(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3, DedupWindow: 30 * time.Minute})

	current := time.Now()
	m.now = func() time.Time { return current }
	store.now = func() time.Time { return current }

	feedFailures(m, store, "S2", "recall broken", 4)
	require.Equal(t, 1, ch.count())

	current = current.Add(31 * time.Minute)
	store.recordFail("S2", current)
	store.recordFail("S2", current)
	store.recordFail("S2", current)
	m.HandleResult(context.Background(), failResult("S2", "recall broken"))

	assert.Equal(t, 2, ch.count(), "a new alert fires after the dedup window lapses")
}

func TestMessageVariantsShareNoFingerprintButDigitsNormalize(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 1})

	feedFailures(m, store, "S8", "latency 1234ms over budget", 1)
	feedFailures(m, store, "S8", "latency 9876ms over budget", 1)
	assert.Equal(t, 1, ch.count(), "messages differing only in long digit runs dedup together")

	feedFailures(m, store, "S8", "connection refused", 1)
	assert.Equal(t, 2, ch.count(), "a genuinely different message is a new alert")
}

func TestWarnDoesNotCountTowardThreshold(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3})

	for i := 0; i < 5; i++ {
		m.HandleResult(context.Background(), checks.NewResult("S1", checks.StatusWarn, 5, "degraded", nil))
	}
	feedFailures(m, store, "S1", "down", 2)

	assert.Zero(t, ch.count())
	assert.Equal(t, StateFailing, m.CheckState("S1"))
}

func TestWarnSetsDegradedState(t *testing.T) {
	m := New(newMemStore(), nil, Config{})
	m.HandleResult(context.Background(), checks.NewResult("S1", checks.StatusWarn, 5, "degraded", nil))
	assert.Equal(t, StateDegraded, m.CheckState("S1"))
}

func TestAutoResolveEmitsRecovery(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3})

	feedFailures(m, store, "S2", "recall broken", 3)
	require.Equal(t, 1, ch.count())

	m.HandleResult(context.Background(), passResult("S2"))

	require.Equal(t, 2, ch.count())
	ev := ch.last()
	assert.Equal(t, AlertTypeRecovery, ev.Type)
	assert.Equal(t, SeverityInfo, ev.Severity)
	assert.Contains(t, ev.Message, "recovered")
	assert.Equal(t, StateOK, m.CheckState("S2"))
	assert.Contains(t, store.events, "S2/recovery")
}

func TestPassWithoutOpenAlertStaysSilent(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3})

	m.HandleResult(context.Background(), passResult("S1"))
	feedFailures(m, store, "S1", "blip", 1)
	m.HandleResult(context.Background(), passResult("S1"))

	assert.Zero(t, ch.count(), "recovery fires only when an open alert was resolved")
}

func TestChannelErrorDoesNotBlockOthers(t *testing.T) {
	store := newMemStore()
	broken := &recordingChannel{name: "tickets", err: fmt.Errorf("api down")}
	healthy := &recordingChannel{name: "log"}
	m := New(store, []Channel{broken, healthy}, Config{ThresholdFailures: 1})

	feedFailures(m, store, "S1", "down", 1)

	assert.Equal(t, 1, healthy.count())
}

func TestStoreOutageFallsBackToMemoryCount(t *testing.T) {
	store := newMemStore()
	store.countErr = fmt.Errorf("disk gone")
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 3})

	for i := 0; i < 3; i++ {
		m.HandleResult(context.Background(), failResult("S1", "down"))
	}

	assert.Equal(t, 1, ch.count(), "the in-memory failure window still escalates")
}

func TestSeverityEscalatesWithFailureCount(t *testing.T) {
	store := newMemStore()
	ch := &recordingChannel{name: "log"}
	m := New(store, []Channel{ch}, Config{ThresholdFailures: 2, DedupWindow: time.Nanosecond})

	feedFailures(m, store, "S2", "broken", 6)

	require.GreaterOrEqual(t, ch.count(), 1)
	assert.Equal(t, SeverityCritical, ch.last().Severity, "6 failures at threshold 2 is critical")
}
