package checks

import (
	"sync"
)

// Stats is the mutable in-memory aggregate for one check. Reset only on
// process restart.
type Stats struct {
	TotalRuns      int64   `json:"total_runs"`
	Pass           int64   `json:"pass"`
	Warn           int64   `json:"warn"`
	Fail           int64   `json:"fail"`
	TotalLatencyMS float64 `json:"total_latency_ms"`
	LastResult     *Result `json:"last_result,omitempty"`
}

// MeanLatencyMS returns the average latency across all recorded runs.
func (s Stats) MeanLatencyMS() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return s.TotalLatencyMS / float64(s.TotalRuns)
}

// Tracker accumulates per-check statistics, keyed by check ID.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*Stats
}

// NewTracker creates an empty statistics tracker.
func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*Stats)}
}

// Record folds one result into the aggregate for its check.
func (t *Tracker) Record(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[r.CheckID]
	if !ok {
		s = &Stats{}
		t.stats[r.CheckID] = s
	}
	s.TotalRuns++
	switch r.Status {
	case StatusPass:
		s.Pass++
	case StatusWarn:
		s.Warn++
	case StatusFail:
		s.Fail++
	}
	s.TotalLatencyMS += r.LatencyMS
	last := r
	s.LastResult = &last
}

// Get returns a copy of the stats for one check.
func (t *Tracker) Get(checkID string) (Stats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.stats[checkID]
	if !ok {
		return Stats{}, false
	}
	return *s, true
}

// Snapshot returns a copy of all per-check statistics.
func (t *Tracker) Snapshot() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Stats, len(t.stats))
	for id, s := range t.stats {
		out[id] = *s
	}
	return out
}
