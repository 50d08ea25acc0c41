package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	logx "jirabell/pkg/logx"
)

// Config holds everything needed to run the saved search.
type Config struct {
	BaseURL    string
	Email      string
	APIToken   string
	JQL        string
	MaxResults int           // 0 means 50
	Timeout    time.Duration // 0 means 15s
}

const (
	defaultMaxResults = 50
	defaultTimeout    = 15 * time.Second

	// Cap on error-body bytes we pull into an error message.
	errBodyLimit = 512
)

// Issue is the slice of a Jira issue this daemon cares about.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary string `json:"summary"`
}

// Summary returns the issue summary, or a placeholder when Jira returns an
// issue with no summary field.
func (i Issue) Summary() string {
	s := strings.TrimSpace(i.Fields.Summary)
	if s == "" {
		return "No summary"
	}
	return s
}

// Client runs JQL searches against Jira Cloud's REST API v3.
// Safe for concurrent use; Apply swaps config between searches.
type Client struct {
	mu  sync.RWMutex
	cfg Config

	hc  *http.Client
	log logx.Logger
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	c := &Client{
		// Timeout is enforced per request via context so Apply can change it
		// without rebuilding the underlying transport.
		hc:  &http.Client{},
		log: log,
	}
	c.Apply(cfg)
	return c
}

// Apply installs new search settings. Takes effect on the next Search call.
func (c *Client) Apply(cfg Config) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.JQL = strings.TrimSpace(cfg.JQL)
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Client) snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// JQL reports the currently configured query (for status output).
func (c *Client) JQL() string { return c.snapshot().JQL }

type searchRequest struct {
	JQL        string   `json:"jql"`
	MaxResults int      `json:"maxResults"`
	Fields     []string `json:"fields"`
}

type searchResponse struct {
	Issues []Issue `json:"issues"`
}

// Search runs the configured JQL query and returns matching issues in the
// order Jira returns them.
func (c *Client) Search(ctx context.Context) ([]Issue, error) {
	cfg := c.snapshot()
	if cfg.BaseURL == "" {
		return nil, errors.New("jira base_url is not configured")
	}
	if cfg.JQL == "" {
		return nil, errors.New("jira jql is not configured")
	}

	body, err := json.Marshal(searchRequest{
		JQL:        cfg.JQL,
		MaxResults: cfg.MaxResults,
		Fields:     []string{"summary"},
	})
	if err != nil {
		return nil, fmt.Errorf("jira search: encode request: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, cfg.BaseURL+"/rest/api/3/search/jql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("jira search: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(cfg.Email, cfg.APIToken)

	started := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira search: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errBodyLimit))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("jira search: status %d: %s", resp.StatusCode, compact(snippet))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("jira search: decode response: %w", err)
	}

	c.log.Debug("jira search ok",
		logx.Int("issues", len(out.Issues)),
		logx.Duration("took", time.Since(started)),
	)
	return out.Issues, nil
}

// BrowseURL returns the human-facing issue link.
func (c *Client) BrowseURL(key string) string {
	return c.snapshot().BaseURL + "/browse/" + key
}

// compact collapses an HTTP error body into a single loggable line.
func compact(b []byte) string {
	s := strings.Join(strings.Fields(string(b)), " ")
	if s == "" {
		return "(empty body)"
	}
	return s
}
