package ratelimit

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is wrapped by QuotaExceededError.
	ErrQuotaExceeded = errors.New("daily request quota exceeded")

	// ErrCancelled is wrapped by CancellationError.
	ErrCancelled = errors.New("ticket cancelled")

	// ErrTransientRateLimit marks an error as a retryable rate-limit failure.
	// Adapters may wrap it instead of implementing RateLimited.
	ErrTransientRateLimit = errors.New("transient rate limit")

	// ErrRetryExhausted is wrapped when a transient failure used up all attempts.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// QuotaExceededError is returned for tickets rejected because the daily
// counter reached RequestsPerDay. It is fatal for a session.
type QuotaExceededError struct {
	Count   int
	Limit   int
	DateKey string
}

// Error implements the error interface.
func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exhausted: %d/%d requests on %s", e.Count, e.Limit, e.DateKey)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *QuotaExceededError) Unwrap() error {
	return ErrQuotaExceeded
}

// CancellationError is returned for tickets that never executed because the
// queue was cleared or their context ended while they were waiting.
type CancellationError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ticket cancelled: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ticket cancelled: %s", e.Reason)
}

// Unwrap exposes both ErrCancelled and the underlying cause.
func (e *CancellationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCancelled, e.Err}
	}
	return []error{ErrCancelled}
}

// TransientRateLimitError is returned when a ticket kept failing with
// transient rate-limit errors until its retry budget ran out.
type TransientRateLimitError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TransientRateLimitError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransientRateLimitError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Err}
}

// rateLimited is implemented by adapter errors that carry their own kind.
type rateLimited interface {
	RateLimited() bool
}

// IsTransient reports whether err is a retryable rate-limit failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientRateLimit) {
		return true
	}
	var rl rateLimited
	if errors.As(err, &rl) {
		return rl.RateLimited()
	}
	return false
}

// IsQuotaExceeded reports whether err came from an exhausted daily counter.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsCancelled reports whether err is a CancellationError.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
