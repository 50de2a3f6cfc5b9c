package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/tableflow/internal/remote"
	"github.com/shaiso/tableflow/internal/telemetry"
)

func newTestDispatcher(concurrency int) *Dispatcher {
	return New(Config{
		Concurrency: concurrency,
		Retry: RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
		CallTimeout: time.Second,
		Logger:      telemetry.Discard(),
	})
}

func TestDispatch_ConcurrencyBound(t *testing.T) {
	d := newTestDispatcher(10)

	var inFlight, maxInFlight atomic.Int32
	call := func(ctx context.Context, index int) (map[string]any, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return map[string]any{"row": index}, nil
	}

	results, err := d.Dispatch(context.Background(), 100, call, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := maxInFlight.Load(); got > 10 {
		t.Errorf("expected at most 10 calls in flight, observed %d", got)
	}
	if len(results) != 100 {
		t.Fatalf("expected 100 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Index != i || r.Err != nil || r.Value["row"] != i {
			t.Errorf("result %d out of order or failed: %+v", i, r)
		}
	}
}

func TestDispatch_FailedRowDoesNotAbortBatch(t *testing.T) {
	d := newTestDispatcher(4)

	var attempts sync.Map
	call := func(ctx context.Context, index int) (map[string]any, error) {
		n, _ := attempts.LoadOrStore(index, new(atomic.Int32))
		n.(*atomic.Int32).Add(1)
		if index == 3 {
			return nil, errors.New("upstream unavailable")
		}
		return map[string]any{"ok": true}, nil
	}

	results, err := d.Dispatch(context.Background(), 8, call, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range results {
		if i == 3 {
			if r.Err == nil {
				t.Error("row 3 should have failed")
			}
			if r.Attempts != 3 {
				t.Errorf("row 3: expected 3 attempts, got %d", r.Attempts)
			}
			continue
		}
		if r.Err != nil {
			t.Errorf("row %d: unexpected error %v", i, r.Err)
		}
	}

	n, _ := attempts.Load(3)
	if got := n.(*atomic.Int32).Load(); got != 3 {
		t.Errorf("expected 3 calls for row 3, got %d", got)
	}
}

func TestDispatch_RetryThenSuccess(t *testing.T) {
	d := newTestDispatcher(1)

	var calls atomic.Int32
	call := func(ctx context.Context, index int) (map[string]any, error) {
		if calls.Add(1) < 2 {
			return nil, &remote.HTTPError{StatusCode: 503, Body: "busy"}
		}
		return map[string]any{"v": 1}, nil
	}

	results, err := d.Dispatch(context.Background(), 1, call, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Err != nil || results[0].Attempts != 2 {
		t.Errorf("expected success on attempt 2, got %+v", results[0])
	}
}

func TestDispatch_PermanentErrorNotRetried(t *testing.T) {
	d := newTestDispatcher(1)

	var calls atomic.Int32
	call := func(ctx context.Context, index int) (map[string]any, error) {
		calls.Add(1)
		return nil, &remote.HTTPError{StatusCode: 400, Body: "bad lead"}
	}

	results, _ := d.Dispatch(context.Background(), 1, call, Options{})
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if results[0].Attempts != 1 || results[0].Err == nil {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestDispatch_Progress(t *testing.T) {
	d := newTestDispatcher(3)

	var seen []int
	call := func(ctx context.Context, index int) (map[string]any, error) {
		return nil, nil
	}

	_, err := d.Dispatch(context.Background(), 5, call, Options{
		OnProgress: func(done, total int) {
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
			seen = append(seen, done)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{1, 2, 3, 4, 5}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("expected %v, got %v", want, seen)
			break
		}
	}
}

func TestDispatch_PauseStopsLaunching(t *testing.T) {
	d := newTestDispatcher(2)

	var pause atomic.Bool
	var started atomic.Int32
	call := func(ctx context.Context, index int) (map[string]any, error) {
		if started.Add(1) == 2 {
			pause.Store(true)
		}
		time.Sleep(time.Millisecond)
		return map[string]any{}, nil
	}

	results, err := d.Dispatch(context.Background(), 50, call, Options{
		ShouldPause: pause.Load,
	})
	if !errors.Is(err, ErrPaused) {
		t.Fatalf("expected ErrPaused, got %v", err)
	}

	launched := int(started.Load())
	if launched >= 50 {
		t.Fatalf("expected dispatch to stop early, launched %d", launched)
	}

	completed := 0
	for _, r := range results {
		switch {
		case r.Err == nil:
			completed++
		case !errors.Is(r.Err, ErrNotStarted):
			t.Errorf("unexpected row error: %v", r.Err)
		}
	}
	// Все запущенные вызовы дожидаются завершения
	if completed != launched {
		t.Errorf("expected %d completed rows, got %d", launched, completed)
	}
}

func TestDispatch_ContextCancel(t *testing.T) {
	d := newTestDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())

	call := func(ctx context.Context, index int) (map[string]any, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := d.Dispatch(ctx, 3, call, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCalculateBackoff_Exponential(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "exponential",
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped at MaxDelay
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		got := calculateBackoff(tt.attempt, policy)
		if got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestCalculateBackoff_Fixed(t *testing.T) {
	policy := RetryPolicy{
		Backoff:      "fixed",
		InitialDelay: 2 * time.Second,
		MaxDelay:     10 * time.Second,
	}

	// Все попытки — одинаковая задержка
	for attempt := 1; attempt <= 5; attempt++ {
		got := calculateBackoff(attempt, policy)
		if got != 2*time.Second {
			t.Errorf("attempt %d: expected 2s, got %v", attempt, got)
		}
	}
}

func TestCalculateBackoff_ZeroValues(t *testing.T) {
	got := calculateBackoff(1, RetryPolicy{})
	if got != time.Second {
		t.Errorf("expected 1s default, got %v", got)
	}
}

func TestNew_DefaultConfig(t *testing.T) {
	d := New(Config{})

	if d.Concurrency() != defaultConcurrency {
		t.Errorf("expected concurrency %d, got %d", defaultConcurrency, d.Concurrency())
	}
	if d.retry.MaxAttempts != defaultMaxAttempts {
		t.Errorf("expected %d attempts, got %d", defaultMaxAttempts, d.retry.MaxAttempts)
	}
	if d.callTimeout != defaultCallTimeout {
		t.Errorf("expected call timeout %v, got %v", defaultCallTimeout, d.callTimeout)
	}
}

func TestDispatch_CallTimeout(t *testing.T) {
	d := New(Config{
		Concurrency: 4,
		Retry: RetryPolicy{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			MaxDelay:     time.Millisecond,
		},
		CallTimeout: 20 * time.Millisecond,
		Logger:      telemetry.Discard(),
	})

	// Строка 1 висит, пока не истечёт таймаут попытки
	call := func(ctx context.Context, index int) (map[string]any, error) {
		if index == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return map[string]any{"ok": index}, nil
	}

	start := time.Now()
	results, err := d.Dispatch(context.Background(), 3, call, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dispatch took %v, the hanging row was not bounded", elapsed)
	}

	hung := results[1]
	if !errors.Is(hung.Err, context.DeadlineExceeded) {
		t.Errorf("row 1: expected context.DeadlineExceeded, got %v", hung.Err)
	}
	if hung.Attempts != 2 {
		t.Errorf("row 1: expected 2 attempts, got %d", hung.Attempts)
	}

	for _, i := range []int{0, 2} {
		if results[i].Err != nil || results[i].Value["ok"] != i {
			t.Errorf("row %d: unexpected result %+v", i, results[i])
		}
	}
}
