package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	transient := errors.New("upstream hiccup")

	cases := []struct {
		name      string
		failures  int
		wantCalls int
	}{
		{name: "first_try", failures: 0, wantCalls: 1},
		{name: "two_failures_then_success", failures: 2, wantCalls: 3},
		{name: "succeeds_on_last_attempt", failures: 3, wantCalls: 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			val, err := Do(context.Background(), 3, time.Millisecond, func() (string, error) {
				calls++
				if calls <= tc.failures {
					return "", transient
				}
				return "ok", nil
			})
			if err != nil {
				t.Fatalf("Do returned error: %v", err)
			}
			if val != "ok" {
				t.Fatalf("Do returned %q, want %q", val, "ok")
			}
			if calls != tc.wantCalls {
				t.Fatalf("op called %d times, want %d", calls, tc.wantCalls)
			}
		})
	}
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	lastErr := errors.New("still failing")
	calls := 0
	_, err := Do(context.Background(), 2, time.Millisecond, func() (int, error) {
		calls++
		return 0, lastErr
	})
	if calls != 3 {
		t.Fatalf("op called %d times, want 3", calls)
	}
	if err != lastErr {
		t.Fatalf("Do returned %v, want the original error unchanged", err)
	}
}

func TestDoStopsImmediatelyOnFatal(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	_, err := Do(context.Background(), 5, time.Millisecond, func() (int, error) {
		calls++
		return 0, Fatal(boom)
	})
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
	if err != boom {
		t.Fatalf("Do returned %v, want the unwrapped fatal error", err)
	}
}

func TestDoHonorsContextCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, 3, time.Hour, func() (int, error) {
			calls++
			return 0, errors.New("transient")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Do returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
	if calls != 1 {
		t.Fatalf("op called %d times, want 1", calls)
	}
}

func TestFatalNilIsNil(t *testing.T) {
	if Fatal(nil) != nil {
		t.Fatal("Fatal(nil) should be nil")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(errors.New("plain")) {
		t.Fatal("plain error reported fatal")
	}
	if !IsFatal(Fatal(errors.New("x"))) {
		t.Fatal("Fatal error not reported fatal")
	}
}
