package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/checks"
	"github.com/verimem/sentinel/internal/telegram"
	"github.com/verimem/sentinel/internal/tickets"
)

// LogChannel renders alerts as structured log events. Always configured.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Dispatch(_ context.Context, ev Event, r checks.Result) error {
	entry := log.Warn()
	if ev.Severity == SeverityCritical || ev.Severity == SeverityHigh {
		entry = log.Error()
	} else if ev.Severity == SeverityInfo {
		entry = log.Info()
	}
	entry.
		Str("alertID", ev.ID).
		Str("check", ev.CheckID).
		Str("type", ev.Type).
		Str("severity", string(ev.Severity)).
		Str("status", string(r.Status)).
		Float64("latencyMs", r.LatencyMS).
		Time("at", ev.Timestamp).
		Msg(ev.Message)
	return nil
}

// TelegramChannel renders alerts as HTML chat messages. Info-severity
// events (recoveries) are delivered notification-silenced.
type TelegramChannel struct {
	Sink *telegram.Sink
}

func (TelegramChannel) Name() string { return "telegram" }

func (c TelegramChannel) Dispatch(_ context.Context, ev Event, r checks.Result) error {
	payload := telegram.AlertPayload{
		CheckID:   ev.CheckID,
		Status:    string(r.Status),
		Severity:  string(ev.Severity),
		Timestamp: ev.Timestamp,
		LatencyMS: r.LatencyMS,
		Message:   ev.Message,
		Details:   r.Details,
	}
	// A queued message is a rate-limit event, not a failure; the sink logs
	// actual delivery errors itself.
	c.Sink.Send(telegram.Message{
		Text:   telegram.FormatAlert(payload),
		Silent: ev.Severity == SeverityInfo,
	})
	return nil
}

// TicketChannel opens or comments on tracker issues keyed by fingerprint.
type TicketChannel struct {
	Client *tickets.Client
}

func (TicketChannel) Name() string { return "tickets" }

func (c TicketChannel) Dispatch(ctx context.Context, ev Event, r checks.Result) error {
	title := fmt.Sprintf("[sentinel] %s: %s", ev.Severity, ev.CheckID)
	body := fmt.Sprintf("**%s** `%s`\n\n%s\n\n- status: `%s`\n- latency: %.1fms\n- at: %s",
		ev.Severity, ev.CheckID, ev.Message, r.Status, r.LatencyMS, ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
	return c.Client.EnsureIssue(ctx, ev.Fingerprint, title, body)
}
