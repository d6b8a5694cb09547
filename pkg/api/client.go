package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors for conditions the UI distinguishes.
var (
	// ErrNotFound covers both unknown analysis ids and private/missing repositories.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited means the service refused the request; retry later.
	ErrRateLimited = errors.New("rate limited")
)

// Client is the HTTP SDK for the analysis service.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new analysis service client.
// endpoint defaults to "http://127.0.0.1:8000" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8000"
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Analyze submits a repository for analysis and returns its assigned id.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	if req.RepoURL == "" {
		return AnalyzeResponse{}, fmt.Errorf("invalid request: repoUrl is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/analyze", bytes.NewReader(body))
	if err != nil {
		return AnalyzeResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return AnalyzeResponse{}, fmt.Errorf("service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return AnalyzeResponse{}, err
	}

	var out AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return AnalyzeResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

// GetAnalysis fetches the current snapshot of an analysis.
// Used to seed a session before the stream resumes tailing it.
func (c *Client) GetAnalysis(ctx context.Context, id string) (AnalysisResult, error) {
	var out AnalysisResult
	err := c.getJSON(ctx, fmt.Sprintf("/api/analysis/%s", url.PathEscape(id)), &out)
	return out, err
}

// GetFindings fetches the authoritative findings list, valid once completed.
func (c *Client) GetFindings(ctx context.Context, id string, opts FindingsOptions) (FindingsPage, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	if opts.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}
	if opts.Severity != "" {
		q.Set("severity", string(opts.Severity))
	}
	if opts.Agent != "" {
		q.Set("agent", opts.Agent)
	}

	var out FindingsPage
	err := c.getJSON(ctx, fmt.Sprintf("/api/analysis/%s/findings?%s", url.PathEscape(id), q.Encode()), &out)
	return out, err
}

// GetFixes fetches the generated fixes and their summary.
func (c *Client) GetFixes(ctx context.Context, id string) (FixesResponse, error) {
	var out FixesResponse
	err := c.getJSON(ctx, fmt.Sprintf("/api/analysis/%s/fixes", url.PathEscape(id)), &out)
	return out, err
}

// GetChains fetches the vulnerability chains.
func (c *Client) GetChains(ctx context.Context, id string) ([]VulnerabilityChain, error) {
	var out ChainsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/api/analysis/%s/chains", url.PathEscape(id)), &out); err != nil {
		return nil, err
	}
	return out.Chains, nil
}

// GetGraph fetches the repository graph for a view mode
// (structure|dependencies|vulnerabilities). Used to backfill the graph when
// attaching to an analysis that already completed.
func (c *Client) GetGraph(ctx context.Context, id, view string) (GraphResponse, error) {
	if view == "" {
		view = "vulnerabilities"
	}
	var out GraphResponse
	err := c.getJSON(ctx, fmt.Sprintf("/api/analysis/%s/graph?view=%s", url.PathEscape(id), url.QueryEscape(view)), &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatus maps HTTP status codes to the client error taxonomy.
func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("unexpected status: %d", code)
	}
}
