// Package telegram delivers alerts to a Telegram bot chat with a strict
// per-minute send budget and a bounded overflow queue.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/buffer"
)

const (
	defaultAPIBase  = "https://api.telegram.org"
	overflowCap     = 100
	rateWindow      = 60 * time.Second
	drainDelay      = 100 * time.Millisecond
	requestTimeout  = 10 * time.Second
	defaultRateEach = 20
)

// Message is one outbound chat message.
type Message struct {
	Text   string
	Silent bool // disable_notification
}

// Sink sends HTML messages to a single chat, enforcing at most rateLimit
// sends in any rolling 60-second window. Over-budget messages are queued;
// the queue tail-drops its oldest entry on overflow so the freshest alert
// survives.
type Sink struct {
	mu        sync.Mutex
	token     string
	chatID    string
	rateLimit int
	apiBase   string
	httpc     *http.Client
	sent      []time.Time
	queue     *buffer.Ring[Message]
	now       func() time.Time
}

// New builds a sink. rateLimit <= 0 falls back to the default budget.
func New(token, chatID string, rateLimit int) *Sink {
	if rateLimit <= 0 {
		rateLimit = defaultRateEach
	}
	return &Sink{
		token:     token,
		chatID:    chatID,
		rateLimit: rateLimit,
		apiBase:   defaultAPIBase,
		httpc:     &http.Client{Timeout: requestTimeout},
		queue:     buffer.NewRing[Message](overflowCap),
		now:       time.Now,
	}
}

// Send attempts synchronous delivery. Returns false when the message was
// queued (or dropped on delivery failure) instead of sent.
func (s *Sink) Send(m Message) bool {
	s.mu.Lock()
	if !s.budgetAvailableLocked() {
		s.enqueueLocked(m)
		s.mu.Unlock()
		return false
	}
	s.recordSendLocked()
	s.mu.Unlock()

	if err := s.deliver(m); err != nil {
		log.Error().Err(err).Msg("Telegram delivery failed")
		return false
	}
	return true
}

// ProcessQueue drains as many queued messages as the current budget allows,
// pausing briefly between sends to avoid bursts. Returns the count sent.
func (s *Sink) ProcessQueue() int {
	sent := 0
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || !s.budgetAvailableLocked() {
			s.mu.Unlock()
			return sent
		}
		m, _ := s.queue.Pop()
		s.recordSendLocked()
		s.mu.Unlock()

		if err := s.deliver(m); err != nil {
			log.Error().Err(err).Msg("Telegram queue delivery failed")
		} else {
			sent++
		}
		time.Sleep(drainDelay)
	}
}

// QueueLen returns the current overflow queue depth.
func (s *Sink) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// TestConnection performs a cheap identity call against the bot API.
func (s *Sink) TestConnection() bool {
	resp, err := s.httpc.Get(fmt.Sprintf("%s/bot%s/getMe", s.apiBase, s.token))
	if err != nil {
		log.Warn().Err(err).Msg("Telegram connection test failed")
		return false
	}
	defer resp.Body.Close()
	var envelope struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return false
	}
	return envelope.OK
}

// budgetAvailableLocked prunes the rolling window and reports whether another
// send fits the budget.
func (s *Sink) budgetAvailableLocked() bool {
	cutoff := s.now().Add(-rateWindow)
	kept := s.sent[:0]
	for _, t := range s.sent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	s.sent = kept
	return len(s.sent) < s.rateLimit
}

func (s *Sink) recordSendLocked() {
	s.sent = append(s.sent, s.now())
}

func (s *Sink) enqueueLocked(m Message) {
	if s.queue.Len() >= s.queue.Cap() {
		log.Warn().Int("cap", s.queue.Cap()).Msg("Telegram overflow queue full, dropping oldest message")
	}
	s.queue.Push(m)
	log.Debug().Int("queued", s.queue.Len()).Msg("Telegram message queued, rate budget exhausted")
}

func (s *Sink) deliver(m Message) error {
	payload := map[string]any{
		"chat_id":                  s.chatID,
		"text":                     m.Text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
		"disable_notification":     m.Silent,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendMessage payload: %w", err)
	}

	resp, err := s.httpc.Post(
		fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.token),
		"application/json",
		bytes.NewReader(encoded),
	)
	if err != nil {
		return fmt.Errorf("sendMessage request: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram API rejected message: %s", envelope.Description)
	}
	return nil
}
