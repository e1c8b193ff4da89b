// Package orchestrator drives a batch processing session end to end: it plans
// batches, extracts their content, submits one generation request per batch
// through a rate limiter and aggregates the results.
//
// Exactly one batch and one remote call are in flight at any time. The
// session can be paused, resumed and cancelled from other goroutines; these
// controls propagate to the rate limiter so admission stops in lockstep.
package orchestrator

import (
	"errors"
	"time"

	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is running or paused.
	ErrAlreadyRunning = errors.New("session already running")

	// ErrNotRunning is returned by Pause, Resume and Cancel without an active session.
	ErrNotRunning = errors.New("no active session")
)

// State is the session state.
type State string

// Session states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// Active reports whether a session is running or paused.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}

// StopReason tells why the batch loop ended.
type StopReason string

// Stop reasons.
const (
	StopCompleted         StopReason = "completed"
	StopCancelled         StopReason = "cancelled"
	StopQuotaExceeded     StopReason = "quota_exceeded"
	StopCredentialInvalid StopReason = "credential_invalid"
)

// Config describes one session.
type Config struct {
	// DocumentID labels the session in logs and the summary.
	DocumentID string `json:"document_id,omitempty"`

	// UnitIDs are the units to process, in order.
	UnitIDs []int `json:"unit_ids"`

	// Strategy and BatchSize are passed to batch.Plan.
	Strategy  batch.Strategy `json:"strategy"`
	BatchSize int            `json:"batch_size"`

	// TypeHints and DesiredCount are forwarded to the generator per batch.
	TypeHints    []string `json:"type_hints,omitempty"`
	DesiredCount int      `json:"desired_count,omitempty"`

	// Model is the remote model identifier.
	Model string `json:"model"`
}

// BatchError records a failed batch.
type BatchError struct {
	BatchID   int       `json:"batch_id"`
	Range     string    `json:"range"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	Err error `json:"-"`
}

// ProgressSnapshot is emitted after every batch settles.
type ProgressSnapshot struct {
	CompletedBatches int              `json:"completed_batches"`
	TotalBatches     int              `json:"total_batches"`
	ResultCount      int              `json:"result_count"`
	ErrorCount       int              `json:"error_count"`
	Limiter          ratelimit.Status `json:"limiter"`
	ETA              time.Duration    `json:"eta"`
}

// Summary describes a finished (or in-progress) session.
type Summary struct {
	SessionID        string            `json:"session_id"`
	State            State             `json:"state"`
	TotalBatches     int               `json:"total_batches"`
	CompletedBatches int               `json:"completed_batches"`
	TotalResultCount int               `json:"total_result_count"`
	ErrorCount       int               `json:"error_count"`
	StartedAt        time.Time         `json:"started_at"`
	Duration         time.Duration     `json:"duration"`
	Cancelled        bool              `json:"cancelled"`
	StopReason       StopReason        `json:"stop_reason,omitempty"`
	Errors           []BatchError      `json:"errors"`
	Results          []generation.Item `json:"results"`
	Config           Config            `json:"config"`
}
