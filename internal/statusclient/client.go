package statusclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits; many page sessions usually share one upstream host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// ErrUnexpectedStatus is wrapped into [Response.Error] when the status
// endpoint answers with a non-2xx HTTP code and a body that is not a status
// document. A non-2xx answer carrying a status document is not an error.
var ErrUnexpectedStatus = errors.New("unexpected HTTP status")

// Payload is the JSON document served by GET /status/{sessionId}.
type Payload struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

// Response holds the result of one status request made by [Client].
type Response struct {
	// Payload is the decoded body. Zero when Error is set.
	Payload Payload

	// StatusCode is the HTTP status code.
	// Zero if the request failed before receiving a response.
	StatusCode int

	// Latency is the total time taken for the request.
	Latency time.Duration

	// Error contains any transport, HTTP or decode error.
	Error error
}

// Client fetches job status documents from the upstream application.
//
// Timeouts are applied per request via context. An optional rate limiter
// caps the request rate across every session sharing the client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient replaces the pooled default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter makes every request wait for a token from l.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// New creates a [Client] for the application rooted at baseURL.
//
// The base URL must be absolute (http or https). A trailing slash is ignored.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base URL must use http or https, got %q", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base URL must include a host, got %q", baseURL)
	}

	c := &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusURL returns the status resource URL for a session.
func (c *Client) StatusURL(sessionID string) string {
	return c.baseURL + "/status/" + url.PathEscape(sessionID)
}

// Fetch performs one GET of the session's status resource.
//
// Fetch always returns a Response; errors are captured in the Error field
// so the caller can report latency alongside failures.
func (c *Client) Fetch(ctx context.Context, sessionID string, timeout time.Duration) Response {
	start := time.Now()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{
				Latency: time.Since(start),
				Error:   fmt.Errorf("rate limiter: %w", err),
			}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StatusURL(sessionID), nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	// the HTTP code alone does not fail a poll: a JSON body is applied
	// whatever the status line says
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err = fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		} else {
			err = fmt.Errorf("failed to decode status payload: %w", err)
		}
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      err,
		}
	}

	return Response{
		Payload:    payload,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes idle connections in the pool. Safe to call multiple times
// and on a nil receiver; the client stays usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
