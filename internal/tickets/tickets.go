// Package tickets is the optional issue-tracker alert sink. When a token and
// a repository are configured it opens an issue per alert fingerprint, or
// comments on the already-open one. Every failure here is non-fatal.
package tickets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.github.com"
	issueLabel     = "sentinel"
	requestTimeout = 15 * time.Second
)

// Client talks to the GitHub issues API for one owner/repo.
type Client struct {
	token   string
	repo    string // "owner/repo"
	apiBase string
	httpc   *http.Client
}

// New builds a ticket client.
func New(token, repo string) *Client {
	return &Client{
		token:   token,
		repo:    repo,
		apiBase: defaultAPIBase,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// fingerprintMarker is embedded in issue bodies so later alerts with the
// same fingerprint find their issue.
func fingerprintMarker(fingerprint string) string {
	return fmt.Sprintf("<!-- sentinel:fp:%s -->", fingerprint)
}

// EnsureIssue opens a new issue for the fingerprint when no open issue
// carries its marker, otherwise comments on the existing one.
func (c *Client) EnsureIssue(ctx context.Context, fingerprint, title, body string) error {
	number, err := c.findOpenIssue(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("search open issues: %w", err)
	}
	if number > 0 {
		return c.comment(ctx, number, body)
	}
	return c.open(ctx, title, body+"\n\n"+fingerprintMarker(fingerprint))
}

func (c *Client) findOpenIssue(ctx context.Context, fingerprint string) (int, error) {
	url := fmt.Sprintf("%s/repos/%s/issues?state=open&labels=%s&per_page=100", c.apiBase, c.repo, issueLabel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	c.auth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("list issues returned HTTP %d", resp.StatusCode)
	}

	var issues []struct {
		Number int    `json:"number"`
		Body   string `json:"body"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&issues); err != nil {
		return 0, fmt.Errorf("decode issues: %w", err)
	}

	marker := fingerprintMarker(fingerprint)
	for _, issue := range issues {
		if strings.Contains(issue.Body, marker) {
			return issue.Number, nil
		}
	}
	return 0, nil
}

func (c *Client) open(ctx context.Context, title, body string) error {
	payload := map[string]any{
		"title":  title,
		"body":   body,
		"labels": []string{issueLabel},
	}
	return c.post(ctx, fmt.Sprintf("%s/repos/%s/issues", c.apiBase, c.repo), payload, http.StatusCreated)
}

func (c *Client) comment(ctx context.Context, number int, body string) error {
	payload := map[string]any{"body": body}
	return c.post(ctx, fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.apiBase, c.repo, number), payload, http.StatusCreated)
}

func (c *Client) post(ctx context.Context, url string, payload any, expect int) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != expect {
		return fmt.Errorf("%s returned HTTP %d, expected %d", url, resp.StatusCode, expect)
	}
	return nil
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
}
