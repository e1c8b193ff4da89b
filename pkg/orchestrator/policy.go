package orchestrator

import (
	"errors"

	"github.com/FiratKiziltepe/pagebatch/pkg/extract"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

// ContinuationPolicy decides whether a batch failure stops the session.
// It returns stop=false to continue with the next batch.
type ContinuationPolicy func(err error) (stop bool, reason StopReason)

// DefaultContinuationPolicy stops on account-level failures (an exhausted
// daily quota or an invalid credential) and on cancellation. Every other
// failure is recorded and the session continues.
func DefaultContinuationPolicy(err error) (bool, StopReason) {
	switch {
	case ratelimit.IsQuotaExceeded(err):
		return true, StopQuotaExceeded
	case ratelimit.IsCancelled(err):
		return true, StopCancelled
	}

	switch generation.KindOf(err) {
	case generation.KindQuota:
		return true, StopQuotaExceeded
	case generation.KindCredential:
		return true, StopCredentialInvalid
	}
	return false, ""
}

// errorKind labels err for BatchError.Kind and metrics.
func errorKind(err error) string {
	var ee *extract.Error
	switch {
	case ratelimit.IsQuotaExceeded(err):
		return "quota"
	case ratelimit.IsCancelled(err):
		return "cancelled"
	case errors.As(err, &ee):
		return "extraction"
	}
	return string(generation.KindOf(err))
}
