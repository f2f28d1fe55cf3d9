package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicyAfterGrowsToCeiling(t *testing.T) {
	cases := []struct {
		policy Policy
		k      int
		want   time.Duration
	}{
		{RunPolicy, 0, 2 * time.Second},
		{RunPolicy, 1, 3 * time.Second},
		{RunPolicy, 2, 4500 * time.Millisecond},
		{RunPolicy, 20, 30 * time.Second},
		{WorkspacePolicy, 1, 2400 * time.Millisecond},
		{WorkspacePolicy, 20, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := tc.policy.After(tc.k); got != tc.want {
			t.Fatalf("After(%d) with %+v = %s, want %s", tc.k, tc.policy, got, tc.want)
		}
	}
}

func TestIntervalGrowMatchesAfter(t *testing.T) {
	interval := NewInterval(RunPolicy)
	for k := 1; k <= 10; k++ {
		got := interval.Grow()
		if want := RunPolicy.After(k); got != want {
			t.Fatalf("tick %d: got %s, want %s", k, got, want)
		}
	}
	if interval.Current() != RunPolicy.Ceiling {
		t.Fatalf("expected ceiling, got %s", interval.Current())
	}
	if interval.Reset() != RunPolicy.Floor {
		t.Fatalf("expected reset to floor")
	}
}

func TestPolicyNormalizesInvalidValues(t *testing.T) {
	p := Policy{Floor: 5 * time.Second, Ceiling: time.Second, Multiplier: 0.1}
	interval := NewInterval(p)
	if interval.Grow() != 5*time.Second {
		t.Fatalf("expected ceiling raised to floor and multiplier clamped, got %s", interval.Current())
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{Attempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, expected := range want {
		got, ok := p.NextDelay(i + 1)
		if !ok || got != expected {
			t.Fatalf("attempt %d: got %s ok=%v, want %s", i+1, got, ok, expected)
		}
	}
	if _, ok := p.NextDelay(4); ok {
		t.Fatalf("expected attempts to be exhausted")
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy(), func(err error) bool { return !errors.Is(err, fatal) }, noSleep, func() error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("expected single fatal call, got calls=%d err=%v", calls, err)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy(), nil, noSleep, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got calls=%d err=%v", calls, err)
	}
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), RetryPolicy{Attempts: 2}, nil, noSleep, func() error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 calls then failure, got calls=%d err=%v", calls, err)
	}
}

func noSleep(context.Context, time.Duration) error { return nil }
