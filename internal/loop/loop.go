package loop

import (
	"context"
	"sync"
	"time"
)

// Step performs one iteration of the loop.
//
// Returning done=true or a non-nil error ends the loop. Otherwise the loop
// waits one interval and calls Step again.
type Step func(ctx context.Context) (done bool, err error)

// Sleeper waits for d or until ctx is cancelled. It reports whether the full
// duration elapsed.
type Sleeper func(ctx context.Context, d time.Duration) bool

// Outcome describes why a loop ended.
type Outcome int

const (
	// Running means the loop has not ended yet.
	Running Outcome = iota

	// Finished means a step reported done.
	Finished

	// Failed means a step returned an error.
	Failed

	// Cancelled means Stop was called or the parent context ended.
	Cancelled
)

// String returns a lowercase name for the outcome.
func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Loop runs a [Step] repeatedly with a fixed delay between iterations.
//
// Iterations are strictly sequential: the next step is scheduled only after
// the previous one has returned, so two steps never overlap. The pending
// delay is a real timer that [Loop.Stop] cancels.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Loop struct {
	step     Step
	interval time.Duration
	sleep    Sleeper

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	outcome Outcome
	err     error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures a [Loop].
type Option func(*Loop)

// WithSleeper replaces the timer-based wait between steps.
func WithSleeper(s Sleeper) Option {
	return func(l *Loop) {
		if s != nil {
			l.sleep = s
		}
	}
}

// New creates a Loop that calls step every interval until it ends.
//
// The loop must be started with [Loop.Start].
func New(step Step, interval time.Duration, opts ...Option) *Loop {
	l := &Loop{
		step:     step,
		interval: interval,
		sleep:    TimerSleep,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TimerSleep is the default [Sleeper]. It stops its timer when ctx ends.
func TimerSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Start runs the first step immediately in a background goroutine.
//
// Start is idempotent. If Stop was called before Start, Start is a no-op and
// the loop is reported as cancelled.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	l.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer l.closeOnce.Do(func() { close(l.done) })
		defer cancel()

		for {
			done, err := l.step(runCtx)
			switch {
			case err != nil && runCtx.Err() != nil:
				// step failed because we were cancelled mid-flight
				l.finish(Cancelled, nil)
				return
			case err != nil:
				l.finish(Failed, err)
				return
			case done:
				l.finish(Finished, nil)
				return
			}

			if !l.sleep(runCtx, l.interval) {
				l.finish(Cancelled, nil)
				return
			}
		}
	}()
}

// Stop cancels any pending delay or in-flight step and waits for the loop
// goroutine to exit. Stop is idempotent and safe to call before Start.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.stopped {
		l.stopped = true
		if l.cancel != nil {
			l.cancel()
		}
	}
	started := l.started
	l.mu.Unlock()

	l.wg.Wait()

	if !started {
		l.finish(Cancelled, nil)
		l.closeOnce.Do(func() { close(l.done) })
	}
}

// Done returns a channel that is closed when the loop has ended.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Outcome reports why the loop ended, or [Running].
func (l *Loop) Outcome() Outcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcome
}

// Err returns the step error that ended the loop, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) finish(o Outcome, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.outcome != Running {
		return
	}
	l.outcome = o
	l.err = err
}
