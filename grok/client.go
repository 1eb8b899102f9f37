// Package grok is a client for the xAI Grok chat completion API.
//
// A Client holds connection settings and session defaults; a Session keeps
// the transcript of one conversation and resends it on every turn.
package grok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-1"
	DefaultTimeout = 30 * time.Second

	contentTypeJSON = "application/json"
	userAgent       = "grokchat/0.1"
)

// Client issues requests against the API. It is immutable once built and
// may be shared between sessions and goroutines.
type Client struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	model        string
	systemPrompt string
	options      Options
	pool         connPool
	httpClient   *http.Client
	customHTTP   bool
	logger       *slog.Logger
}

// New creates a client with the given options applied over the defaults.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		model:   DefaultModel,
		options: Options{},
		pool:    defaultConnPool(),
	}
	return c.apply(opts)
}

// With returns a copy of the client with additional options applied. The
// receiver is left untouched.
func (c *Client) With(opts ...Option) *Client {
	clone := *c
	clone.options = c.options.Clone()
	if !clone.customHTTP {
		clone.httpClient = nil
	}
	return clone.apply(opts)
}

func (c *Client) apply(opts []Option) *Client {
	for _, opt := range opts {
		opt(c)
	}

	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.options == nil {
		c.options = Options{}
	}
	if c.httpClient == nil {
		c.httpClient = c.pool.httpClient(c.timeout)
		c.customHTTP = false
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the API origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Model returns the default model of new sessions.
func (c *Client) Model() string { return c.model }

// SystemPrompt returns the system message seeded into new sessions.
func (c *Client) SystemPrompt() string { return c.systemPrompt }

// Timeout returns the configured per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// HasAPIKey reports whether a bearer token is configured.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// Options returns a copy of the default call options.
func (c *Client) Options() Options { return c.options.Clone() }

// HTTPClient returns the HTTP client requests are sent with.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// NewSession creates a session seeded with the client's defaults without
// sending anything.
func (c *Client) NewSession() (*Session, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("create session: %w", ErrMissingAPIKey)
	}
	return newSession(c, c.model, c.systemPrompt, c.options), nil
}

// CreateSession creates a session seeded with the client's defaults and
// immediately sends initialPrompt as the first turn. When the turn fails
// the session is still returned, alongside the error.
func (c *Client) CreateSession(ctx context.Context, initialPrompt string) (*Session, error) {
	s, err := c.NewSession()
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, initialPrompt)
}

// ChatCompletion sends messages to the chat completions endpoint. The
// payload is {"model", "messages"} overlaid with opts, so an option named
// "model" or "messages" replaces the explicit value.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, model string, opts Options) (Response, error) {
	if messages == nil {
		messages = []Message{}
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	for k, v := range opts {
		payload[k] = v
	}

	var resp Response
	status, err := c.do(ctx, http.MethodPost, "/chat/completions", payload, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.HasChoices() {
		return nil, &APIError{StatusCode: status, Message: ErrNoChoices.Error(), Err: ErrNoChoices}
	}
	return resp, nil
}

// ListModels returns the models available to the API key.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var raw any
	status, err := c.do(ctx, http.MethodGet, "/models", nil, &raw)
	if err != nil {
		return nil, err
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		data, ok := v["data"].([]any)
		if !ok {
			return nil, &APIError{StatusCode: status, Message: "models response did not include data"}
		}
		items = data
	default:
		return nil, &APIError{StatusCode: status, Message: "unexpected models response"}
	}

	result := make([]ModelInfo, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			result = append(result, ModelInfo(m))
		}
	}
	return result, nil
}

// GetModel returns the descriptor of a single model.
func (c *Client) GetModel(ctx context.Context, id string) (ModelInfo, error) {
	var info ModelInfo
	if _, err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(id), nil, &info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, target any) (int, error) {
	if c.apiKey == "" {
		return 0, ErrMissingAPIKey
	}

	req, err := c.newRequest(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "grok request failed", "method", method, "path", path, "err", err)
		return 0, &TransportError{Method: method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "grok request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 400 {
		return resp.StatusCode, parseAPIError(resp)
	}

	if err := decodeJSON(resp.Body, target); err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return resp.StatusCode, &TransportError{Method: method, URL: req.URL.String(), Err: err}
		}
		return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func decodeJSON(reader io.Reader, target any) error {
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
