package backoff

import (
	"context"
	"time"
)

// Clock is the time source polling loops schedule ticks with.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type systemClock struct{}

func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (systemClock) Now() time.Time                         { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// ClockSleeper adapts clock into a Sleeper for Do.
func ClockSleeper(clock Clock) Sleeper {
	if clock == nil {
		return Sleep
	}
	return func(ctx context.Context, d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(d):
			return nil
		}
	}
}
