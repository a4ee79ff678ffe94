// Package rerank is an HTTP client for cross-encoder rerank servers that
// speak the text-embeddings-inference /rerank protocol.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kailas-cloud/sieve/internal/domain"
)

var _ domain.Reranker = (*Client)(nil)

// DefaultTimeout bounds one rerank request.
const DefaultTimeout = 30 * time.Second

// Client scores passages against a query on a remote cross-encoder.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends a bearer token with every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a rerank client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank implements domain.Reranker. Scores are aligned with passages.
func (c *Client) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Texts: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	var scores []rerankScore
	if err := c.do(ctx, http.MethodPost, "/rerank", body, &scores); err != nil {
		return nil, err
	}
	if len(scores) != len(passages) {
		return nil, fmt.Errorf("got %d scores for %d passages: %w",
			len(scores), len(passages), domain.ErrRerankerError)
	}

	out := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(out) || seen[s.Index] {
			return nil, fmt.Errorf("invalid score index %d: %w", s.Index, domain.ErrRerankerError)
		}
		out[s.Index] = s.Score
		seen[s.Index] = true
	}
	return out, nil
}

// HealthCheck probes the server health endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w: %w", domain.ErrRerankerError, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read rerank response: %w: %w", domain.ErrRerankerError, err)
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("rerank server status %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("rerank server status %d: %s: %w",
			resp.StatusCode, strings.TrimSpace(string(data)), domain.ErrRerankerError)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse rerank response: %w: %w", domain.ErrRerankerError, err)
	}
	return nil
}
