package generation

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a generation failure.
type Kind string

// Error kinds.
const (
	// KindRateLimit is a per-minute throttle. Retryable.
	KindRateLimit Kind = "rate_limit"

	// KindQuota means the daily quota of the account is used up. Fatal.
	KindQuota Kind = "quota"

	// KindCredential means the API key is missing, invalid or revoked. Fatal.
	KindCredential Kind = "credential"

	// KindInvalidResponse means the service answered but the payload was unusable.
	KindInvalidResponse Kind = "invalid_response"

	// KindServer is a 5xx from the service.
	KindServer Kind = "server"

	// KindNetwork is a transport failure.
	KindNetwork Kind = "network"

	// KindTimeout means the request exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindCancelled means the caller abandoned the request.
	KindCancelled Kind = "cancelled"

	// KindOther is anything else.
	KindOther Kind = "other"
)

// Error is a classified generation failure.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("generation %s error (status %d): %s: %v", e.Kind, e.StatusCode, e.Message, e.Err)
		}
		return fmt.Sprintf("generation %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("generation %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("generation %s error: %s", e.Kind, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the failure is a retryable throttle. The rate
// limiter uses it to decide whether to re-queue a ticket.
func (e *Error) RateLimited() bool {
	return e.Kind == KindRateLimit
}

// KindOf returns the Kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindOther
}

// IsFatal reports whether err ends a session: an invalid credential or an
// exhausted daily quota.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindCredential, KindQuota:
		return true
	}
	return false
}

// ClassifyStatus maps an HTTP status code and response body to a Kind.
// A 429 whose body mentions a per-day limit is a quota failure; any other 429
// is a per-minute throttle.
func ClassifyStatus(statusCode int, body string) Kind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		if mentionsDailyLimit(body) {
			return KindQuota
		}
		return KindRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return KindCredential
	case statusCode == http.StatusBadRequest && mentionsCredential(body):
		return KindCredential
	case statusCode >= 500:
		return KindServer
	case statusCode >= 400:
		return KindOther
	}
	return KindOther
}

// ClassifyMessage maps a free-form failure message to a Kind. Adapters use it
// where no usable status code exists: transport errors and error payloads
// delivered with a 2xx status.
func ClassifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case mentionsCredential(m):
		return KindCredential
	case mentionsDailyLimit(m):
		return KindQuota
	case strings.Contains(m, "rate limit"),
		strings.Contains(m, "resource_exhausted"),
		strings.Contains(m, "resource exhausted"),
		strings.Contains(m, "too many requests"),
		strings.Contains(m, "status 429"),
		strings.Contains(m, "code 429"),
		strings.Contains(m, "quota"):
		return KindRateLimit
	}
	return KindOther
}

func mentionsDailyLimit(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "perday") ||
		strings.Contains(b, "per_day") ||
		strings.Contains(b, "per day") ||
		strings.Contains(b, "daily")
}

func mentionsCredential(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "api_key_invalid") ||
		strings.Contains(b, "api key not valid") ||
		strings.Contains(b, "invalid api key") ||
		strings.Contains(b, "permission_denied") ||
		strings.Contains(b, "unauthenticated")
}
