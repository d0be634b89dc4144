package live

import "time"

const (
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 30 * time.Second
	defaultResetAfter = time.Minute
)

// RetryPolicy bounds the reconnect loop of a live channel.
// MaxAttempts <= 0 means retry forever.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	// ResetAfter: a connection that survived this long resets the
	// attempt counter.
	ResetAfter time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		MaxAttempts: 5,
		ResetAfter:  defaultResetAfter,
	}
}

// Delay returns the backoff before reconnect attempt n (1-based),
// doubling from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func (p RetryPolicy) Exhausted(attempt int) bool {
	if p.MaxAttempts <= 0 {
		return false
	}
	return attempt > p.MaxAttempts
}

func (p RetryPolicy) resetAfter() time.Duration {
	if p.ResetAfter <= 0 {
		return defaultResetAfter
	}
	return p.ResetAfter
}
