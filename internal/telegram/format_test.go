package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAlertRendersAllFields(t *testing.T) {
	ts := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	out := FormatAlert(AlertPayload{
		CheckID:   "S2-golden-fact-recall",
		Status:    "fail",
		Severity:  "critical",
		Timestamp: ts,
		LatencyMS: 152.4,
		Message:   "recall below threshold",
		Details:   map[string]any{"success_rate": 0.4, "hits": 2},
	})

	assert.Contains(t, out, "CRITICAL ALERT")
	assert.Contains(t, out, "<b>Check:</b> S2-golden-fact-recall")
	assert.Contains(t, out, "<b>Status:</b> fail")
	assert.Contains(t, out, "2026-08-26T10:30:00Z")
	assert.Contains(t, out, "152.4ms")
	assert.Contains(t, out, "recall below threshold")
	assert.Contains(t, out, "• hits: 2")
	assert.Contains(t, out, "• success_rate: 0.4")
}

func TestFormatAlertEscapesHTML(t *testing.T) {
	out := FormatAlert(AlertPayload{
		CheckID:  "check<script>",
		Severity: "warning",
		Message:  `body contains <b> & "quotes"`,
		Details:  map[string]any{"k<": "v>"},
	})

	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "check&lt;script&gt;")
	assert.Contains(t, out, "&lt;b&gt; &amp;")
	assert.Contains(t, out, "k&lt;")
	assert.Contains(t, out, "v&gt;")
}

func TestFormatAlertUnknownSeverityFallsBackToInfo(t *testing.T) {
	out := FormatAlert(AlertPayload{CheckID: "c", Severity: "mystery", Message: "m"})
	assert.Contains(t, out, "INFO")
}

func TestFormatAlertSeverityHeaders(t *testing.T) {
	for _, sev := range []string{"info", "warning", "high", "critical"} {
		out := FormatAlert(AlertPayload{CheckID: "c", Severity: sev, Message: "m"})
		assert.Contains(t, out, "<b>", "severity %s renders a bold header", sev)
	}
}
