package backoff

import (
	"time"
)

// Policy describes a poll interval that starts at Floor, grows by
// Multiplier on every idle tick and never exceeds Ceiling.
type Policy struct {
	Floor      time.Duration
	Ceiling    time.Duration
	Multiplier float64
}

var (
	RunPolicy = Policy{
		Floor:      2 * time.Second,
		Ceiling:    30 * time.Second,
		Multiplier: 1.5,
	}
	WorkspacePolicy = Policy{
		Floor:      2 * time.Second,
		Ceiling:    10 * time.Second,
		Multiplier: 1.2,
	}
)

func (p Policy) normalized() Policy {
	if p.Floor <= 0 {
		p.Floor = RunPolicy.Floor
	}
	if p.Ceiling < p.Floor {
		p.Ceiling = p.Floor
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Clamp bounds d to [Floor, Ceiling].
func (p Policy) Clamp(d time.Duration) time.Duration {
	p = p.normalized()
	if d < p.Floor {
		return p.Floor
	}
	if d > p.Ceiling {
		return p.Ceiling
	}
	return d
}

// After returns the interval that follows k consecutive idle ticks:
// min(Floor * Multiplier^k, Ceiling).
func (p Policy) After(k int) time.Duration {
	p = p.normalized()
	d := p.Floor
	for i := 0; i < k; i++ {
		if d >= p.Ceiling {
			return p.Ceiling
		}
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return p.Clamp(d)
}

// Interval tracks the current delay of one polling loop. It is not safe for
// concurrent use; each loop owns its own.
type Interval struct {
	policy  Policy
	current time.Duration
}

func NewInterval(policy Policy) *Interval {
	policy = policy.normalized()
	return &Interval{policy: policy, current: policy.Floor}
}

func (i *Interval) Current() time.Duration {
	return i.current
}

func (i *Interval) Policy() Policy {
	return i.policy
}

// Reset drops the delay back to the floor.
func (i *Interval) Reset() time.Duration {
	i.current = i.policy.Floor
	return i.current
}

// Grow multiplies the delay, capped at the ceiling.
func (i *Interval) Grow() time.Duration {
	next := time.Duration(float64(i.current) * i.policy.Multiplier)
	i.current = i.policy.Clamp(next)
	return i.current
}
