package ratelimit

import "time"

// RetryConfig bounds how often a ticket failing with a transient rate-limit
// error is put back at the front of the queue.
type RetryConfig struct {
	// MaxAttempts is the maximum number of executions (including the first).
	MaxAttempts int

	// InitialBackoff is the pause before the first retry. Zero means
	// 2 × Policy.MinDelay().
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the backoff after each failed attempt.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    0,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// normalize fills unset fields from the defaults.
func (c RetryConfig) normalize() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = def.BackoffMultiplier
	}
	return c
}

// Backoff returns the wait before retry number attempt (1-based count of
// failed executions so far) for the given policy.
func (c RetryConfig) Backoff(attempt int, p Policy) time.Duration {
	backoff := c.InitialBackoff
	if backoff <= 0 {
		backoff = 2 * p.MinDelay()
	}
	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * c.BackoffMultiplier)
		if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		return c.MaxBackoff
	}
	return backoff
}
