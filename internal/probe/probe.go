// Package probe provides the uniform outbound HTTP primitives every check
// consumes: a health GET and a JSON call helper with consistent
// authentication, timeout, and latency measurement discipline.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verimem/sentinel/internal/config"
)

const maxBodyBytes = 4 << 20

// Client issues probes against the target service. Failures never surface
// as errors; every outcome is reduced to (ok, message, latency).
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// New builds a probe client for the given base URL. Only the key portion of
// the credential is ever transmitted; the redacted prefix is logged once at
// debug level.
func New(baseURL string, cred config.Credential) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if !cred.IsZero() {
		log.Debug().Str("keyPrefix", cred.Prefix()).Msg("Probe client authenticated")
	} else {
		log.Debug().Msg("Probe client running without credential")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cred.Key,
		httpc: &http.Client{
			// Per-request timeouts come from contexts; this is a hard backstop.
			Timeout: 60 * time.Second,
		},
	}
}

// BaseURL returns the configured target base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CheckEndpointHealth issues a GET against path and compares the response
// status. Latency is measured regardless of outcome.
func (c *Client) CheckEndpointHealth(ctx context.Context, path string, expectedStatus int, timeout time.Duration) (bool, string, float64) {
	ok, msg, latency, _ := c.CallJSON(ctx, http.MethodGet, path, nil, expectedStatus, timeout)
	return ok, msg, latency
}

// CallJSON issues an HTTP request with an optional JSON body and decodes a
// JSON object response. A response that matches expectedStatus but fails to
// parse as JSON is still a success with a nil parsed body.
func (c *Client) CallJSON(ctx context.Context, method, path string, body any, expectedStatus int, timeout time.Duration) (bool, string, float64, map[string]any) {
	start := time.Now()
	latency := func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000.0
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Sprintf("request body encoding failed: %v", err), latency(), nil
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Sprintf("request construction failed: %v", err), latency(), nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return false, fmt.Sprintf("request to %s timed out after %s", path, timeout), latency(), nil
		}
		return false, fmt.Sprintf("request to %s failed: %v", path, err), latency(), nil
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := latency()

	if resp.StatusCode != expectedStatus {
		return false, fmt.Sprintf("%s returned HTTP %d, expected %d", path, resp.StatusCode, expectedStatus), elapsed, nil
	}
	if readErr != nil {
		return true, fmt.Sprintf("%s OK (body read truncated: %v)", path, readErr), elapsed, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Status matched; a non-JSON body is not a probe failure.
		return true, fmt.Sprintf("%s OK (non-JSON body)", path), elapsed, nil
	}
	return true, fmt.Sprintf("%s OK", path), elapsed, parsed
}
