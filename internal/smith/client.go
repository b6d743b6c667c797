package smith

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dyluth/lsq/internal/config"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 4096

// Client talks to the runs API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int

	// newBackOff builds the retry schedule for a single call.
	newBackOff func() backoff.BackOff
}

// NewClient creates a client from the loaded configuration.
// An empty API key is an authentication error.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, &AuthError{Message: "no API key configured"}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}, nil
}

// ResolveProjectID maps a project name to its ID. UUIDs are returned as-is.
func (c *Client) ResolveProjectID(ctx context.Context, name string) (string, error) {
	if _, err := uuid.Parse(name); err == nil {
		return name, nil
	}

	var projects []Project
	path := "/api/v1/sessions?" + url.Values{"name": {name}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &projects); err != nil {
		return "", err
	}

	for _, p := range projects {
		if p.Name == name {
			return p.ID, nil
		}
	}
	return "", &NotFoundError{Kind: "project", Name: name}
}

// QueryRuns fetches runs matching q.
func (c *Client) QueryRuns(ctx context.Context, q RunQuery) ([]Run, error) {
	log.Debug().
		Strs("projects", q.ProjectIDs).
		Str("filter", q.Filter).
		Int("limit", q.Limit).
		Msg("querying runs")

	var resp queryRunsResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs/query", q, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// ListProjects returns one page of projects.
func (c *Client) ListProjects(ctx context.Context, limit, offset int) ([]Project, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/sessions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var projects []Project
	if err := c.do(ctx, http.MethodGet, path, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// RunStats fetches aggregate metrics for the runs matching q. Numbers are
// returned as json.Number so counts and rates print as the API sent them.
func (c *Client) RunStats(ctx context.Context, q RunQuery) (map[string]interface{}, error) {
	log.Debug().
		Strs("projects", q.ProjectIDs).
		Str("filter", q.Filter).
		Msg("fetching run stats")

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs/stats", q, &raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var stats map[string]interface{}
	if err := dec.Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode run stats: %w", err)
	}
	return stats, nil
}

// ReadRun fetches a single run by ID. The full payload is kept in Run.Raw.
func (c *Client) ReadRun(ctx context.Context, id string) (*Run, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+url.PathEscape(id), nil, &raw); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{Kind: "run", Name: id}
		}
		return nil, err
	}

	var run Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	run.Raw = raw
	return &run, nil
}

// do performs one API call, retrying transient failures with exponential backoff.
// Client errors other than 429 are permanent.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		log.Debug().Err(err).Int("attempt", attempt).Str("path", path).Msg("retrying request")
		return err
	}

	var b backoff.BackOff = c.newBackOff()
	b = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(operation, b)
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", req.URL.String()).Msg("sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &AuthError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		}
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
