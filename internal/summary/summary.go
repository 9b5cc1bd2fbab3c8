// Package summary generates the periodic status digest from stored results
// and emits it, notification-silenced, through the chat sink.
package summary

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/buffer"
	"github.com/verimem/sentinel/internal/checks"
	"github.com/verimem/sentinel/internal/telegram"
)

const defaultTopN = 5

// Store is the persistence slice the generator reads.
type Store interface {
	QueryWindow(start time.Time) ([]checks.Result, error)
}

// Sender delivers the rendered digest; satisfied by *telegram.Sink.
type Sender interface {
	Send(m telegram.Message) bool
}

// CheckFailures pairs a check with its failure count inside the window.
type CheckFailures struct {
	CheckID  string `json:"check_id"`
	Failures int    `json:"failures"`
}

// Report is one generated digest, also kept in the reports ring buffer.
type Report struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	WindowStart  time.Time       `json:"window_start"`
	Total        int             `json:"total"`
	Pass         int             `json:"pass"`
	Warn         int             `json:"warn"`
	Fail         int             `json:"fail"`
	UptimePct    float64         `json:"uptime_pct"`
	AvgLatencyMS float64         `json:"avg_latency_ms"`
	TopFailures  []CheckFailures `json:"top_failures"`
	Text         string          `json:"text"`
}

// Generator aggregates the trailing window on a fixed cadence.
type Generator struct {
	store    Store
	sender   Sender
	reports  *buffer.Ring[Report]
	interval time.Duration
	topN     int
	now      func() time.Time
}

// New builds a generator. sender may be nil (digest is then log-only).
func New(store Store, sender Sender, reports *buffer.Ring[Report], interval time.Duration) *Generator {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Generator{
		store:    store,
		sender:   sender,
		reports:  reports,
		interval: interval,
		topN:     defaultTopN,
		now:      time.Now,
	}
}

// Run emits a digest every interval until ctx is cancelled.
func (g *Generator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Summary generator stopped")
			return
		case <-ticker.C:
			g.emit()
		}
	}
}

func (g *Generator) emit() {
	report, ok := g.Generate(g.now())
	if !ok {
		log.Debug().Msg("No results in summary window, skipping digest")
		return
	}
	if g.reports != nil {
		g.reports.Push(*report)
	}
	if g.sender != nil {
		g.sender.Send(telegram.Message{Text: report.Text, Silent: true})
	}
	log.Info().
		Int("total", report.Total).
		Float64("uptimePct", report.UptimePct).
		Msg("Emitted periodic summary")
}

// Generate aggregates [now - interval, now]. Returns false when the window
// holds zero results. Running it twice over the same stored window produces
// identical aggregate counts.
func (g *Generator) Generate(now time.Time) (*Report, bool) {
	windowStart := now.Add(-g.interval)
	results, err := g.store.QueryWindow(windowStart)
	if err != nil {
		log.Error().Err(err).Msg("Summary window query failed")
		return nil, false
	}
	if len(results) == 0 {
		return nil, false
	}

	report := &Report{
		GeneratedAt: now.UTC(),
		WindowStart: windowStart.UTC(),
		Total:       len(results),
	}
	failuresByCheck := make(map[string]int)
	var totalLatency float64
	for _, r := range results {
		totalLatency += r.LatencyMS
		switch r.Status {
		case checks.StatusPass:
			report.Pass++
		case checks.StatusWarn:
			report.Warn++
		case checks.StatusFail:
			report.Fail++
			failuresByCheck[r.CheckID]++
		}
	}
	report.AvgLatencyMS = totalLatency / float64(report.Total)
	report.UptimePct = 100 * float64(report.Pass) / float64(report.Total)
	report.TopFailures = topFailures(failuresByCheck, g.topN)
	report.Text = renderDigest(report)
	return report, true
}

func topFailures(byCheck map[string]int, n int) []CheckFailures {
	out := make([]CheckFailures, 0, len(byCheck))
	for id, count := range byCheck {
		out = append(out, CheckFailures{CheckID: id, Failures: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Failures == out[j].Failures {
			return out[i].CheckID < out[j].CheckID
		}
		return out[i].Failures > out[j].Failures
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func renderDigest(r *Report) string {
	var b strings.Builder
	b.WriteString("\U0001f4ca <b>Sentinel Status Digest</b>\n\n")
	fmt.Fprintf(&b, "<b>Window:</b> %s → %s\n",
		r.WindowStart.Format("2006-01-02 15:04"),
		r.GeneratedAt.Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "<b>Results:</b> %d total, %d pass / %d warn / %d fail\n",
		r.Total, r.Pass, r.Warn, r.Fail)
	fmt.Fprintf(&b, "<b>Uptime:</b> %.1f%%\n", r.UptimePct)
	fmt.Fprintf(&b, "<b>Avg latency:</b> %.1fms\n", r.AvgLatencyMS)

	if len(r.TopFailures) > 0 {
		b.WriteString("\n<b>Top failing checks:</b>\n")
		for _, tf := range r.TopFailures {
			fmt.Fprintf(&b, "• %s: %d failures\n", html.EscapeString(tf.CheckID), tf.Failures)
		}
	} else {
		b.WriteString("\nNo failures in this window. \U0001f389\n")
	}
	return b.String()
}
