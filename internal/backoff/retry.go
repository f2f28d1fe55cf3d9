package backoff

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a single failed operation is attempted again.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:     3,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     4 * time.Second,
	}
}

// NextDelay reports the wait before retry number attempt (1-based) and
// whether that retry is allowed at all.
func (p RetryPolicy) NextDelay(attempt int) (time.Duration, bool) {
	if attempt <= 0 {
		attempt = 1
	}
	if attempt > p.Attempts {
		return 0, false
	}
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		if delay >= maxDelay {
			return maxDelay, true
		}
		delay *= 2
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay, true
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op until it succeeds, returns an error retryable rejects, or the
// policy runs out of attempts. The last error is returned.
func Do(ctx context.Context, policy RetryPolicy, retryable func(error) bool, sleep Sleeper, op func() error) error {
	if sleep == nil {
		sleep = Sleep
	}
	attempt := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		attempt++
		delay, ok := policy.NextDelay(attempt)
		if !ok {
			return err
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}
