package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestInvoker() (*Invoker, *[]time.Duration) {
	var sleeps []time.Duration
	iv := NewInvoker(5, 10, 60)
	iv.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return iv, &sleeps
}

func TestDoRetriesThrottleThenSucceeds(t *testing.T) {
	iv, sleeps := newTestInvoker()

	calls := 0
	err := iv.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls <= 2 {
			return &ThrottleError{Message: "slow down"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(*sleeps))
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("sleep %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}
}

func TestDoBackoffCapped(t *testing.T) {
	iv := NewInvoker(5, 10, 60)
	want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second}
	for i, d := range want {
		if got := iv.Backoff(i + 1); got != d {
			t.Errorf("backoff attempt %d: expected %v, got %v", i+1, d, got)
		}
	}
	if got := iv.Backoff(10); got != 60*time.Second {
		t.Errorf("expected cap 60s, got %v", got)
	}
}

func TestDoFailsFastOnNonThrottle(t *testing.T) {
	iv, sleeps := newTestInvoker()

	boom := errors.New("schema validation failed")
	calls := 0
	err := iv.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected single call, got %d", calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("expected no sleeps, got %v", *sleeps)
	}
}

func TestDoExhaustion(t *testing.T) {
	iv, sleeps := newTestInvoker()

	calls := 0
	err := iv.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("ThrottlingException: Too many requests")
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 5 {
		t.Errorf("expected 5 attempts recorded, got %d", exhausted.Attempts)
	}
	if calls != 5 {
		t.Errorf("expected 5 calls, got %d", calls)
	}
	if len(*sleeps) != 4 {
		t.Errorf("expected 4 sleeps, got %d", len(*sleeps))
	}
}

func TestDoCancelDuringBackoff(t *testing.T) {
	iv := NewInvoker(5, 10, 60)
	ctx, cancel := context.WithCancel(context.Background())
	iv.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	calls := 0
	err := iv.Do(ctx, func(ctx context.Context) error {
		calls++
		return &ThrottleError{Message: "busy"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancel, got %d", calls)
	}
}

func TestIsThrottle(t *testing.T) {
	if !IsThrottle(&ThrottleError{Message: "x"}) {
		t.Error("typed throttle not recognized")
	}
	if !IsThrottle(errors.New("upstream said Too many requests")) {
		t.Error("message-based throttle not recognized")
	}
	if IsThrottle(errors.New("invalid payload")) {
		t.Error("non-throttle misclassified")
	}
}
