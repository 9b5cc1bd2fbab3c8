package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
)

// AlertPayload is the channel-neutral alert content the sink renders.
type AlertPayload struct {
	CheckID   string
	Status    string
	Severity  string
	Timestamp time.Time
	LatencyMS float64
	Message   string
	Details   map[string]any
}

var severityHeaders = map[string]string{
	"info":     "ℹ️ <b>INFO</b>",
	"warning":  "⚠️ <b>WARNING</b>",
	"high":     "\U0001f536 <b>HIGH ALERT</b>",
	"critical": "\U0001f6a8 <b>CRITICAL ALERT</b>",
}

// FormatAlert renders the HTML message body for one alert. Every field is
// escaped; details render as bullet points.
func FormatAlert(p AlertPayload) string {
	header, ok := severityHeaders[p.Severity]
	if !ok {
		header = severityHeaders["info"]
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "<b>Check:</b> %s\n", html.EscapeString(p.CheckID))
	fmt.Fprintf(&b, "<b>Status:</b> %s\n", html.EscapeString(p.Status))
	fmt.Fprintf(&b, "<b>Time:</b> %s\n", p.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "<b>Latency:</b> %.1fms\n", p.LatencyMS)
	fmt.Fprintf(&b, "<b>Message:</b> %s\n", html.EscapeString(p.Message))

	if len(p.Details) > 0 {
		b.WriteString("\n<b>Details:</b>\n")
		keys := make([]string, 0, len(p.Details))
		for k := range p.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "• %s: %s\n",
				html.EscapeString(k),
				html.EscapeString(fmt.Sprint(p.Details[k])))
		}
	}
	return b.String()
}
