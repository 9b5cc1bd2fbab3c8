package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// goldenFact is one store-then-retrieve trial: a small structured fact, the
// natural-language query that should surface it, and the substring the
// retrieval payload must contain.
type goldenFact struct {
	content map[string]any
	query   string
	expect  string
}

var goldenFacts = []goldenFact{
	{
		content: map[string]any{"name": "Matt"},
		query:   "What's my name?",
		expect:  "Matt",
	},
	{
		content: map[string]any{"favorite_color": "teal"},
		query:   "What is my favorite color?",
		expect:  "teal",
	},
	{
		content: map[string]any{"project": "sentinel-rollout", "phase": "beta"},
		query:   "Which project am I working on?",
		expect:  "sentinel-rollout",
	},
	{
		content: map[string]any{"meeting_day": "Thursday"},
		query:   "When is my weekly meeting?",
		expect:  "Thursday",
	},
	{
		content: map[string]any{"city": "Lisbon"},
		query:   "Which city do I live in?",
		expect:  "Lisbon",
	},
}

const goldenFactPassRate = 0.8

// probeCaller is the slice of the probe client the golden-fact check needs.
type probeCaller interface {
	CallJSON(ctx context.Context, method, path string, body any, expectedStatus int, timeout time.Duration) (bool, string, float64, map[string]any)
}

// GoldenFactCheck stores small structured facts and queries them back through
// the natural-language retrieval endpoint. It passes when retrieval contains
// the expected substring for at least 80% of trials.
type GoldenFactCheck struct {
	client  probeCaller
	trials  int
	timeout time.Duration
	author  string
}

// NewGoldenFactCheck builds the golden-fact recall check. trials is clamped
// to the size of the built-in fact set.
func NewGoldenFactCheck(client probeCaller, trials int, timeout time.Duration) *GoldenFactCheck {
	if trials <= 0 || trials > len(goldenFacts) {
		trials = len(goldenFacts)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoldenFactCheck{
		client:  client,
		trials:  trials,
		timeout: timeout,
		author:  "sentinel-golden-fact",
	}
}

func (g *GoldenFactCheck) ID() string { return "S2-golden-fact-recall" }

func (g *GoldenFactCheck) Description() string {
	return "Stores structured facts and verifies natural-language retrieval"
}

// Run executes the configured number of trials and emits one result with the
// aggregate success rate in details.
func (g *GoldenFactCheck) Run(ctx context.Context) Result {
	var totalLatency float64
	hits := 0
	var failures []string

	for i := 0; i < g.trials; i++ {
		fact := goldenFacts[i]

		ok, msg, latency := g.storeFact(ctx, fact)
		totalLatency += latency
		if !ok {
			failures = append(failures, fmt.Sprintf("trial %d store: %s", i+1, msg))
			continue
		}

		ok, msg, latency = g.retrieveFact(ctx, fact)
		totalLatency += latency
		if !ok {
			failures = append(failures, fmt.Sprintf("trial %d retrieve: %s", i+1, msg))
			continue
		}
		hits++
	}

	rate := float64(hits) / float64(g.trials)
	details := map[string]any{
		"success_rate": rate,
		"trials":       g.trials,
		"hits":         hits,
	}
	if len(failures) > 0 {
		details["failures"] = failures
	}

	if rate >= goldenFactPassRate {
		return NewResult(g.ID(), StatusPass, totalLatency,
			fmt.Sprintf("golden fact recall %d/%d trials", hits, g.trials), details)
	}
	return NewResult(g.ID(), StatusFail, totalLatency,
		fmt.Sprintf("golden fact recall below threshold: %d/%d trials", hits, g.trials), details)
}

func (g *GoldenFactCheck) storeFact(ctx context.Context, fact goldenFact) (bool, string, float64) {
	body := map[string]any{
		"content":  fact.content,
		"type":     "log",
		"author":   g.author,
		"metadata": map[string]any{"source": "sentinel", "purpose": "golden-fact-recall"},
	}
	ok, msg, latency, _ := g.client.CallJSON(ctx, http.MethodPost, "/tools/store_context", body, http.StatusOK, g.timeout)
	return ok, msg, latency
}

func (g *GoldenFactCheck) retrieveFact(ctx context.Context, fact goldenFact) (bool, string, float64) {
	body := map[string]any{
		"query":   fact.query,
		"limit":   5,
		"filters": map[string]any{"author": g.author},
	}
	ok, msg, latency, parsed := g.client.CallJSON(ctx, http.MethodPost, "/tools/retrieve_context", body, http.StatusOK, g.timeout)
	if !ok {
		return false, msg, latency
	}
	results, _ := parsed["results"].([]any)
	if len(results) == 0 {
		return false, "retrieval returned no results", latency
	}
	for _, raw := range results {
		encoded, err := json.Marshal(raw)
		if err != nil {
			continue
		}
		if strings.Contains(string(encoded), fact.expect) {
			return true, "hit", latency
		}
	}
	return false, fmt.Sprintf("expected substring %q not found in %d results", fact.expect, len(results)), latency
}
