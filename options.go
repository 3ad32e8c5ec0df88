package clipwatch

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jpalmerr/clipwatch/internal/loop"
	"golang.org/x/time/rate"
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	interval        time.Duration
	requestTimeout  time.Duration
	view            View
	logger          *slog.Logger
	statusCallbacks []func(PollResult)
	limiter         *rate.Limiter
	httpClient      *http.Client
	sleep           loop.Sleeper
}

// Option is a function that configures a [Poller] during construction.
//
// Options return an error if validation fails.
type Option func(*pollerConfig) error

// WithInterval sets the delay between the end of one poll and the start of
// the next. Defaults to 2 seconds.
//
// Returns an error if the duration is zero or negative.
func WithInterval(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithRequestTimeout sets the timeout of each status request.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithView sets the page elements updated by [Poller.Poll].
//
// Example:
//
//	doc := page.NewProgressPage()
//	p, err := clipwatch.New(baseURL, clipwatch.WithView(clipwatch.DocumentView(doc)))
func WithView(v View) Option {
	return func(cfg *pollerConfig) error {
		cfg.view = v
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithStatusCallback registers a function called after every poll,
// including failed ones.
//
// Callbacks run synchronously on the session's poll goroutine, so a slow
// callback delays that session's next poll. Panics are recovered and logged.
// Nil callbacks are ignored.
func WithStatusCallback(cb func(PollResult)) Option {
	return func(cfg *pollerConfig) error {
		if cb == nil {
			return nil
		}
		cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		return nil
	}
}

// WithRateLimit caps status requests across every session sharing the
// Poller. Each request waits for a token.
//
// Returns an error if r is not positive or burst is less than 1.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(cfg *pollerConfig) error {
		if r <= 0 {
			return errors.New("rate limit must be positive")
		}
		if burst < 1 {
			return errors.New("rate limit burst must be at least 1")
		}
		cfg.limiter = rate.NewLimiter(r, burst)
		return nil
	}
}

// WithHTTPClient replaces the default pooled HTTP client.
//
// Returns an error if the client is nil.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *pollerConfig) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		cfg.httpClient = hc
		return nil
	}
}

// withSleeper replaces the inter-poll timer. Used by tests to observe and
// skip the delay.
func withSleeper(s loop.Sleeper) Option {
	return func(cfg *pollerConfig) error {
		cfg.sleep = s
		return nil
	}
}
