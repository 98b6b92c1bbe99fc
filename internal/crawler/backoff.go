package crawler

import "time"

// RetryPolicy controls how a task retries transient fetch failures.
// Retrying happens inside the task while it holds its worker slot, so
// a wave's barrier still covers every retry of every URL in the wave.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries per URL, including the
	// first one. Must be at least 1.
	MaxAttempts int

	// BaseDelay is the wait before the first retry. Each further retry
	// doubles it.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt, starting
// at half a second.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
}

// Delay returns the wait after the given 1-based failed attempt:
// BaseDelay after the first failure, doubling with each one after that.
// The shift is capped so pathological attempt counts cannot overflow.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 16 {
		shift = 16
	}
	return p.BaseDelay << shift
}
