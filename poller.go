package clipwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/clipwatch/internal/loop"
	"github.com/jpalmerr/clipwatch/internal/statusclient"
)

const (
	defaultInterval       = 2 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// ErrEmptySessionID is returned by [Poller.Poll] for an empty session id.
var ErrEmptySessionID = errors.New("session id cannot be empty")

// ErrUnexpectedStatus is wrapped into a handle's error when the status
// endpoint answers with a non-2xx HTTP code and no status document.
var ErrUnexpectedStatus = statusclient.ErrUnexpectedStatus

// Poller watches job status for page sessions.
//
// A Poller is created once per upstream application with [New] and can
// watch any number of sessions; each call to [Poller.Poll] starts an
// independent poll loop and returns its [Handle]. Sessions share the HTTP
// connection pool and, if configured, the rate limit.
//
// Each loop requests GET {baseURL}/status/{sessionID}, applies the payload
// to the view, and schedules the next request only after the previous one
// was handled. The loop ends when the job reports "completed", when a
// request fails, or when the handle is stopped.
type Poller struct {
	client          *statusclient.Client
	interval        time.Duration
	requestTimeout  time.Duration
	view            View
	logger          *slog.Logger
	statusCallbacks []func(PollResult)
	sleep           loop.Sleeper
}

// New creates a [Poller] for the application rooted at baseURL.
//
// Defaults:
//   - Interval: 2 seconds
//   - Request timeout: 10 seconds
//   - View: empty (no elements are touched)
//   - Logger: slog.Default()
//
// Returns an error if baseURL is not an absolute http(s) URL or if any
// option is invalid.
//
// Example:
//
//	doc := page.NewProgressPage()
//	p, err := clipwatch.New("http://localhost:5000",
//	    clipwatch.WithView(clipwatch.DocumentView(doc)),
//	)
func New(baseURL string, opts ...Option) (*Poller, error) {
	cfg := &pollerConfig{
		interval:       defaultInterval,
		requestTimeout: defaultRequestTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	var clientOpts []statusclient.Option
	if cfg.httpClient != nil {
		clientOpts = append(clientOpts, statusclient.WithHTTPClient(cfg.httpClient))
	}
	if cfg.limiter != nil {
		clientOpts = append(clientOpts, statusclient.WithLimiter(cfg.limiter))
	}

	client, err := statusclient.New(baseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		client:          client,
		interval:        cfg.interval,
		requestTimeout:  cfg.requestTimeout,
		view:            cfg.view,
		logger:          logger,
		statusCallbacks: cfg.statusCallbacks,
		sleep:           cfg.sleep,
	}, nil
}

// Interval returns the configured delay between polls.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// StatusURL returns the status resource polled for a session.
func (p *Poller) StatusURL(sessionID string) string {
	return p.client.StatusURL(sessionID)
}

// Poll starts watching sessionID, writing to the view configured with
// [WithView]. The first request is issued immediately.
//
// The returned [Handle] owns the loop: stop it when the page session goes
// away. Cancelling ctx has the same effect.
func (p *Poller) Poll(ctx context.Context, sessionID string) (*Handle, error) {
	return p.PollInto(ctx, sessionID, p.view)
}

// PollInto is like [Poller.Poll] but writes to the given view instead of the
// configured one. Use it when one Poller serves many pages.
func (p *Poller) PollInto(ctx context.Context, sessionID string, view View) (*Handle, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	var loopOpts []loop.Option
	if p.sleep != nil {
		loopOpts = append(loopOpts, loop.WithSleeper(p.sleep))
	}

	h := &Handle{sessionID: sessionID}
	h.loop = loop.New(p.step(sessionID, view), p.interval, loopOpts...)

	p.logger.Debug("watching session", "session_id", sessionID, "url", p.client.StatusURL(sessionID))
	h.loop.Start(ctx)
	return h, nil
}

// Close releases idle connections held by the Poller. Running handles keep
// working; new connections are opened as needed.
func (p *Poller) Close() {
	p.client.Close()
}

// step builds the loop step for one session: one request, applied to view.
func (p *Poller) step(sessionID string, view View) loop.Step {
	statusURL := p.client.StatusURL(sessionID)

	return func(ctx context.Context) (bool, error) {
		resp := p.client.Fetch(ctx, sessionID, p.requestTimeout)

		result := PollResult{
			SessionID:  sessionID,
			URL:        statusURL,
			State:      StateProcessing,
			Latency:    resp.Latency,
			CheckedAt:  time.Now(),
			StatusCode: resp.StatusCode,
		}

		if resp.Error != nil {
			if ctx.Err() != nil {
				// stopped mid-request; not a poll failure
				return false, ctx.Err()
			}
			result.Error = resp.Error
			p.logger.Error("status check failed",
				"session_id", sessionID,
				"url", statusURL,
				"status_code", resp.StatusCode,
				"error", resp.Error.Error(),
			)
			p.notify(result)
			return false, fmt.Errorf("poll session %s: %w", sessionID, resp.Error)
		}

		payload := Payload(resp.Payload)
		result.Payload = payload
		view.applyProgress(payload)

		logAttrs := []any{
			"session_id", sessionID,
			"status", payload.Status,
			"progress", payload.Progress,
			"latency_ms", resp.Latency.Milliseconds(),
		}

		if payload.Completed() {
			view.showCompleted()
			result.State = StateCompleted
			p.logger.Info("session completed", logAttrs...)
			p.notify(result)
			return true, nil
		}

		if payload.Status == failedStatus {
			p.logger.Warn("job reported failure", append(logAttrs, "message", payload.Message)...)
		} else {
			p.logger.Debug("status polled", logAttrs...)
		}
		p.notify(result)
		return false, nil
	}
}

// notify invokes every status callback with panic recovery.
func (p *Poller) notify(result PollResult) {
	for _, cb := range p.statusCallbacks {
		invokeCallbackSafe(cb, result, p.logger)
	}
}

// invokeCallbackSafe calls a status callback with panic recovery.
// Panics are logged with a correlation id and do not propagate.
func invokeCallbackSafe(cb func(PollResult), result PollResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("status callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"session_id", result.SessionID,
			)
		}
	}()
	cb(result)
}

// Handle controls the poll loop of one session.
//
// All methods are safe for concurrent use.
type Handle struct {
	sessionID string
	loop      *loop.Loop
}

// SessionID returns the watched session.
func (h *Handle) SessionID() string {
	return h.sessionID
}

// Stop cancels the pending poll (or aborts the in-flight request) and waits
// for the loop to exit. Stop is idempotent; stopping a finished loop is a
// no-op.
func (h *Handle) Stop() {
	h.loop.Stop()
}

// Done returns a channel closed when the loop has ended for any reason.
func (h *Handle) Done() <-chan struct{} {
	return h.loop.Done()
}

// State reports [StateCompleted] once the job has completed, otherwise
// [StateProcessing].
func (h *Handle) State() State {
	if h.loop.Outcome() == loop.Finished {
		return StateCompleted
	}
	return StateProcessing
}

// Stopped reports whether the loop was cancelled by Stop or its context.
func (h *Handle) Stopped() bool {
	return h.loop.Outcome() == loop.Cancelled
}

// Err returns the poll failure that halted the loop, or nil.
func (h *Handle) Err() error {
	return h.loop.Err()
}

// Wait blocks until the loop ends or ctx is cancelled. It returns the poll
// failure, if any, or ctx's error.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.loop.Done():
		return h.loop.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
