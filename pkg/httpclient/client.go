// Package httpclient provides a JSON HTTP client with per-request timeouts, retries with
// exponential backoff and request statistics.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/moogar0880/problems"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxJitter   = time.Second

	maxDetailLength = 300
)

// Config configures a Client. Zero values fall back to the defaults.
type Config struct {
	BaseURL string
	Headers map[string]string

	// Timeout bounds every single attempt.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts, the first one included.
	MaxAttempts int
	// BaseDelay is the backoff unit: attempt n waits BaseDelay*2^n plus jitter.
	BaseDelay time.Duration
	// MaxJitter is the upper bound of the random delay added to each backoff.
	MaxJitter time.Duration
}

// Option customizes a Client after defaults are applied.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBackoff overrides the backoff unit and jitter, zero values included.
func WithBackoff(baseDelay, maxJitter time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxJitter = maxJitter
	}
}

// WithTimeout bounds each attempt. Non-positive values keep the current timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithMaxAttempts sets the total number of attempts. Non-positive values keep the current setting.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// WithBaseDelay sets the backoff unit. Non-positive values keep the current delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.baseDelay = delay
		}
	}
}

// RequestOptions describes a single request.
type RequestOptions struct {
	Method  string
	Query   url.Values
	Headers map[string]string
	// Body is sent as-is when it is a []byte or string and JSON encoded otherwise.
	Body any
}

// Stats holds request counters.
type Stats struct {
	TotalRequests   int64 `json:"totalRequests"`
	RetriedRequests int64 `json:"retriedRequests"`
	FailedRequests  int64 `json:"failedRequests"`
}

// Client executes HTTP requests against a base URL.
type Client struct {
	baseURL     string
	headers     map[string]string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration
	httpClient  *http.Client
	logger      *slog.Logger

	totalRequests   atomic.Int64
	retriedRequests atomic.Int64
	failedRequests  atomic.Int64
}

// New creates a Client.
func New(config Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		headers:     config.Headers,
		timeout:     config.Timeout,
		maxAttempts: config.MaxAttempts,
		baseDelay:   config.BaseDelay,
		maxJitter:   config.MaxJitter,
		httpClient:  &http.Client{},
		logger:      logger.With("module", "http_client"),
	}

	if client.timeout <= 0 {
		client.timeout = defaultTimeout
	}

	if client.maxAttempts <= 0 {
		client.maxAttempts = defaultMaxAttempts
	}

	if client.baseDelay <= 0 {
		client.baseDelay = defaultBaseDelay
	}

	if client.maxJitter <= 0 {
		client.maxJitter = defaultMaxJitter
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the URL relative endpoints are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stats returns a snapshot of the request counters.
func (c *Client) Stats() Stats {
	return Stats{
		TotalRequests:   c.totalRequests.Load(),
		RetriedRequests: c.retriedRequests.Load(),
		FailedRequests:  c.failedRequests.Load(),
	}
}

// Request executes the request and returns the decoded body: a JSON value when the body
// parses as JSON, the raw text otherwise and nil for an empty body.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (any, error) {
	body, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}

	return parseBody(body), nil
}

// RequestJSON executes the request and decodes a JSON body into out.
func (c *Client) RequestJSON(ctx context.Context, endpoint string, opts RequestOptions, out any) error {
	body, err := c.Do(ctx, endpoint, opts)
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}

	return nil
}

// Do executes the request with retries and returns the raw response body.
func (c *Client) Do(ctx context.Context, endpoint string, opts RequestOptions) ([]byte, error) {
	c.totalRequests.Add(1)

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.buildURL(endpoint, opts.Query)
	if err != nil {
		c.failedRequests.Add(1)

		return nil, &RequestError{Method: method, URL: endpoint, Attempts: 1, Err: err}
	}

	payload, err := encodeBody(opts.Body)
	if err != nil {
		c.failedRequests.Add(1)

		return nil, &RequestError{Method: method, URL: target, Attempts: 1, Err: err}
	}

	var lastErr *RequestError

	for attempt := range c.maxAttempts {
		if attempt > 0 {
			delay := c.backoff(attempt - 1)
			c.logger.WarnContext(ctx, "Retrying request",
				"method", method,
				"url", target,
				"attempt", attempt+1,
				"max_attempts", c.maxAttempts,
				"delay", delay,
				"error", lastErr,
			)

			err = sleep(ctx, delay)
			if err != nil {
				lastErr = &RequestError{Method: method, URL: target, Attempts: attempt, Err: err}

				break
			}

			c.retriedRequests.Add(1)
		}

		body, reqErr, retry := c.attempt(ctx, method, target, payload, opts.Headers)
		if reqErr == nil {
			return body, nil
		}

		reqErr.Attempts = attempt + 1
		lastErr = reqErr

		if !retry {
			break
		}
	}

	c.failedRequests.Add(1)
	c.logger.ErrorContext(ctx, "Request failed", "method", method, "url", target, "error", lastErr)

	return nil, lastErr
}

func (c *Client) attempt(
	ctx context.Context,
	method, target string,
	payload []byte,
	headers map[string]string,
) ([]byte, *RequestError, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, target, bodyReader)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)}, false
	}

	req.Header.Set("Accept", "application/json")

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := networkCode(err)

		// the caller gave up; another attempt would fail the same way
		if ctx.Err() != nil {
			return nil, &RequestError{Method: method, URL: target, Code: code, Err: ctx.Err()}, false
		}

		return nil, &RequestError{Method: method, URL: target, Code: code, Err: err}, code != ""
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		code := networkCode(err)

		return nil, &RequestError{Method: method, URL: target, Code: code, Err: err}, code != "" && ctx.Err() == nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		parsed := parseBody(raw)

		return nil, &RequestError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(raw, parsed),
			Body:       parsed,
		}, retryableStatus(resp.StatusCode)
	}

	return raw, nil, false
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<attempt)
	if c.maxJitter > 0 {
		delay += rand.N(c.maxJitter)
	}

	return delay
}

func (c *Client) buildURL(endpoint string, query url.Values) (string, error) {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if c.baseURL == "" {
			return "", fmt.Errorf("%w: %q has no base URL", ErrInvalidEndpoint, endpoint)
		}

		target = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}

	if len(query) > 0 {
		values := parsed.Query()
		for key, list := range query {
			for _, value := range list {
				values.Add(key, value)
			}
		}

		parsed.RawQuery = values.Encode()
	}

	return parsed.String(), nil
}

func encodeBody(body any) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	default:
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}

		return payload, nil
	}
}

func parseBody(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}

	var decoded any

	err := json.Unmarshal(trimmed, &decoded)
	if err != nil {
		return string(raw)
	}

	return decoded
}

// errorDetail pulls a human readable message out of an error body. RFC 7807 problem
// documents are preferred, then the {"message": "..."} shape, then the raw text.
func errorDetail(raw []byte, parsed any) string {
	var problem problems.Problem

	err := json.Unmarshal(raw, &problem)
	if err == nil {
		if problem.Detail != "" {
			return problem.Detail
		}

		if problem.Title != "" {
			return problem.Title
		}
	}

	switch value := parsed.(type) {
	case map[string]any:
		if message, ok := value["message"].(string); ok {
			return message
		}
	case string:
		text := strings.TrimSpace(value)
		if len(text) > maxDetailLength {
			text = text[:maxDetailLength]
		}

		return text
	}

	return ""
}

func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
