package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSleeper returns immediately and records every requested delay.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err() == nil
}

func (r *recordingSleeper) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func waitDone(t *testing.T, l *Loop) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for loop to end")
	}
}

func TestLoop_RunsUntilDone(t *testing.T) {
	var calls int32
	step := func(ctx context.Context) (bool, error) {
		n := atomic.AddInt32(&calls, 1)
		return n == 3, nil
	}

	sleeper := &recordingSleeper{}
	l := New(step, 2*time.Second, WithSleeper(sleeper.sleep))
	l.Start(context.Background())
	waitDone(t, l)

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("step calls = %d, want 3", got)
	}
	delays := sleeper.recorded()
	if len(delays) != 2 {
		t.Fatalf("sleeps = %d, want 2 (none after the final step)", len(delays))
	}
	for i, d := range delays {
		if d != 2*time.Second {
			t.Errorf("delay[%d] = %v, want 2s", i, d)
		}
	}
	if l.Outcome() != Finished {
		t.Errorf("Outcome() = %v, want finished", l.Outcome())
	}
	if l.Err() != nil {
		t.Errorf("Err() = %v, want nil", l.Err())
	}
}

func TestLoop_StepErrorHalts(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	step := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, boom
	}

	sleeper := &recordingSleeper{}
	l := New(step, time.Second, WithSleeper(sleeper.sleep))
	l.Start(context.Background())
	waitDone(t, l)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("step calls = %d, want 1", got)
	}
	if len(sleeper.recorded()) != 0 {
		t.Error("no delay should be scheduled after a failed step")
	}
	if l.Outcome() != Failed {
		t.Errorf("Outcome() = %v, want failed", l.Outcome())
	}
	if !errors.Is(l.Err(), boom) {
		t.Errorf("Err() = %v, want boom", l.Err())
	}
}

func TestLoop_StopCancelsPendingDelay(t *testing.T) {
	var calls int32
	step := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	l := New(step, time.Hour)
	l.Start(context.Background())

	// let the first step run and the hour-long timer begin
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not cancel the pending timer")
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("step calls = %d, want 1", got)
	}
	if l.Outcome() != Cancelled {
		t.Errorf("Outcome() = %v, want cancelled", l.Outcome())
	}
}

func TestLoop_ParentContextCancellation(t *testing.T) {
	step := func(ctx context.Context) (bool, error) { return false, nil }

	ctx, cancel := context.WithCancel(context.Background())
	l := New(step, time.Hour)
	l.Start(ctx)
	cancel()

	waitDone(t, l)
	if l.Outcome() != Cancelled {
		t.Errorf("Outcome() = %v, want cancelled", l.Outcome())
	}
}

func TestLoop_CancelDuringStepIsNotFailure(t *testing.T) {
	entered := make(chan struct{})
	step := func(ctx context.Context) (bool, error) {
		close(entered)
		<-ctx.Done()
		return false, ctx.Err()
	}

	l := New(step, time.Second)
	l.Start(context.Background())
	<-entered
	l.Stop()

	if l.Outcome() != Cancelled {
		t.Errorf("Outcome() = %v, want cancelled", l.Outcome())
	}
	if l.Err() != nil {
		t.Errorf("Err() = %v, want nil", l.Err())
	}
}

func TestLoop_StepsNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight, calls int32
	step := func(ctx context.Context) (bool, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return atomic.AddInt32(&calls, 1) == 10, nil
	}

	l := New(step, time.Millisecond)
	l.Start(context.Background())
	waitDone(t, l)

	if got := atomic.LoadInt32(&maxInFlight); got != 1 {
		t.Errorf("max concurrent steps = %d, want 1", got)
	}
}

func TestLoop_Lifecycle(t *testing.T) {
	step := func(ctx context.Context) (bool, error) { return false, nil }

	t.Run("stop before start", func(t *testing.T) {
		l := New(step, time.Hour)
		l.Stop()
		l.Start(context.Background())
		waitDone(t, l)
		if l.Outcome() != Cancelled {
			t.Errorf("Outcome() = %v, want cancelled", l.Outcome())
		}
	})

	t.Run("stop twice", func(t *testing.T) {
		l := New(step, time.Hour)
		l.Start(context.Background())
		l.Stop()
		l.Stop()
	})

	t.Run("start twice", func(t *testing.T) {
		var calls int32
		counting := func(ctx context.Context) (bool, error) {
			atomic.AddInt32(&calls, 1)
			return false, nil
		}
		l := New(counting, time.Hour)
		l.Start(context.Background())
		l.Start(context.Background())
		time.Sleep(20 * time.Millisecond)
		l.Stop()
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("step calls = %d, want 1", got)
		}
	})

	t.Run("concurrent start stop", func(t *testing.T) {
		for i := 0; i < 100; i++ {
			l := New(step, time.Hour)
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				l.Start(context.Background())
			}()
			go func() {
				defer wg.Done()
				l.Stop()
			}()
			wg.Wait()
			l.Stop()
			waitDone(t, l)
		}
	})
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Running:     "running",
		Finished:    "finished",
		Failed:      "failed",
		Cancelled:   "cancelled",
		Outcome(42): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
