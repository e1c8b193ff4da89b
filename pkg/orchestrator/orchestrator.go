package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/extract"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
	"github.com/FiratKiziltepe/pagebatch/pkg/logging"
	"github.com/FiratKiziltepe/pagebatch/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver sets the session observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithClock overrides the time source used for timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithContinuationPolicy replaces DefaultContinuationPolicy.
func WithContinuationPolicy(p ContinuationPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// Orchestrator runs sessions. It owns the result list, the error list and the
// session state; the limiter never touches them. A limiter should serve a
// single orchestrator since Cancel clears the limiter queue.
type Orchestrator struct {
	limiter   *ratelimit.Limiter
	extractor extract.Extractor
	generator generation.Generator
	observer  Observer
	policy    ContinuationPolicy
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   State
	sess    *session
	cancel  context.CancelFunc
	resumed chan struct{} // non-nil while paused, closed on resume
}

// session holds the per-run data reset by Start.
type session struct {
	id         string
	cfg        Config
	batches    []batch.Batch
	startedAt  time.Time
	finishedAt time.Time
	completed  int
	results    []generation.Item
	errors     []BatchError
	stopReason StopReason
}

// New creates an orchestrator.
func New(limiter *ratelimit.Limiter, extractor extract.Extractor, generator generation.Generator, opts ...Option) (*Orchestrator, error) {
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}

	o := &Orchestrator{
		limiter:   limiter,
		extractor: extractor,
		generator: generator,
		observer:  ObserverFuncs{},
		policy:    DefaultContinuationPolicy,
		logger:    logging.NewLogger("orchestrator"),
		now:       time.Now,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start runs a session to completion and returns its summary. It fails with
// ErrAlreadyRunning while another session is running or paused. Cancelling
// ctx has the same effect as Cancel.
func (o *Orchestrator) Start(ctx context.Context, cfg Config) (*Summary, error) {
	batches, err := batch.Plan(cfg.UnitIDs, cfg.Strategy, cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("plan batches: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	if o.state.Active() {
		o.mu.Unlock()
		cancel()
		return nil, ErrAlreadyRunning
	}
	s := &session{
		id:        uuid.NewString(),
		cfg:       cfg,
		batches:   batches,
		startedAt: o.now(),
		results:   []generation.Item{},
		errors:    []BatchError{},
	}
	o.sess = s
	o.state = StateRunning
	o.cancel = cancel
	o.resumed = nil
	o.mu.Unlock()

	stop := context.AfterFunc(sessCtx, o.abort)
	defer func() {
		stop()
		cancel()
	}()

	sessionActive.Set(1)
	logger := logging.WithSession(o.logger, s.id)
	logger.Info().
		Str("document", cfg.DocumentID).
		Str("model", cfg.Model).
		Str("strategy", string(cfg.Strategy)).
		Int("batches", len(batches)).
		Msg("Session started")

	for _, b := range batches {
		if !o.proceed(sessCtx) {
			break
		}

		items, err := o.runBatch(sessCtx, s, b)
		if err != nil {
			if o.cancelledBy(sessCtx, err) {
				break
			}

			be := o.recordError(s, b, err)
			logger.Warn().
				Int("batch", b.ID).
				Str("range", b.DisplayRange).
				Str("kind", be.Kind).
				Err(err).
				Msg("Batch failed")
			o.observer.OnError(be, b)

			if halt, reason := o.policy(err); halt {
				o.mu.Lock()
				s.stopReason = reason
				o.mu.Unlock()
				logger.Error().
					Str("stop_reason", string(reason)).
					Int("batch", b.ID).
					Msg("Fatal batch failure - stopping session")
				o.observer.OnProgress(o.Progress())
				break
			}
		} else {
			o.observer.OnBatchComplete(b, items)
		}

		o.observer.OnProgress(o.Progress())
	}

	if sessCtx.Err() != nil {
		o.abort()
	}
	summary := o.finish(s)
	sessionActive.Set(0)
	sessionsTotal.WithLabelValues(string(summary.StopReason)).Inc()
	sessionDuration.Observe(summary.Duration.Seconds())

	logger.Info().
		Str("state", string(summary.State)).
		Str("stop_reason", string(summary.StopReason)).
		Int("completed", summary.CompletedBatches).
		Int("total", summary.TotalBatches).
		Int("results", summary.TotalResultCount).
		Int("errors", summary.ErrorCount).
		Dur("duration", summary.Duration).
		Msg("Session finished")

	o.observer.OnComplete(summary)
	return summary, nil
}

// cancelledBy reports whether err is the session being cancelled rather than
// a batch failure. Such errors are not recorded.
func (o *Orchestrator) cancelledBy(ctx context.Context, err error) bool {
	if ctxErr := ctx.Err(); ctxErr != nil && (ratelimit.IsCancelled(err) || errors.Is(err, ctxErr)) {
		return true
	}
	return ratelimit.IsCancelled(err) && o.State() == StateCancelled
}

// runBatch extracts the batch content and submits one generation request
// through the limiter. Returned items are tagged with the batch of origin.
func (o *Orchestrator) runBatch(ctx context.Context, s *session, b batch.Batch) ([]generation.Item, error) {
	content, err := extract.Concat(ctx, o.extractor, b.UnitIDs)
	if err != nil {
		return nil, err
	}

	req := generation.Request{
		Model:        s.cfg.Model,
		Content:      content,
		TypeHints:    s.cfg.TypeHints,
		DesiredCount: s.cfg.DesiredCount,
	}
	meta := ratelimit.Metadata{
		"session": s.id,
		"batch":   strconv.Itoa(b.ID),
		"range":   b.DisplayRange,
	}

	var res *generation.Result
	err = o.limiter.Do(ctx, meta, func(ctx context.Context) error {
		r, err := o.generator.Generate(ctx, req)
		if err != nil {
			return err
		}
		if r == nil {
			r = &generation.Result{}
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]generation.Item, 0, len(res.Items))
	for _, it := range res.Items {
		it.BatchID = b.ID
		it.Range = b.DisplayRange
		items = append(items, it)
	}

	o.mu.Lock()
	s.results = append(s.results, items...)
	s.completed++
	o.mu.Unlock()

	batchesTotal.WithLabelValues("success").Inc()
	itemsTotal.Add(float64(len(items)))
	return items, nil
}

func (o *Orchestrator) recordError(s *session, b batch.Batch, err error) BatchError {
	be := BatchError{
		BatchID:   b.ID,
		Range:     b.DisplayRange,
		Kind:      errorKind(err),
		Message:   err.Error(),
		Timestamp: o.now(),
		Err:       err,
	}
	o.mu.Lock()
	s.errors = append(s.errors, be)
	o.mu.Unlock()

	batchesTotal.WithLabelValues("failed").Inc()
	return be
}

// proceed is the session-level pause point. It blocks while the session is
// paused and reports whether the next batch may start.
func (o *Orchestrator) proceed(ctx context.Context) bool {
	o.mu.Lock()
	ch := o.resumed
	cancelled := o.state == StateCancelled
	o.mu.Unlock()
	if cancelled || ctx.Err() != nil {
		return false
	}

	if ch != nil {
		o.logger.Debug().Msg("Session paused, waiting for resume")
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil && o.State() != StateCancelled
}

func (o *Orchestrator) finish(s *session) *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	s.finishedAt = o.now()
	if o.state == StateCancelled {
		s.stopReason = StopCancelled
	} else {
		o.state = StateCompleted
		if s.stopReason == "" {
			s.stopReason = StopCompleted
		}
	}
	o.resumed = nil
	o.cancel = nil
	return o.summaryLocked()
}

// Pause stops the session before the next batch and pauses the limiter. A
// batch already in flight finishes.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	switch o.state {
	case StatePaused:
		o.mu.Unlock()
		return nil
	case StateRunning:
	default:
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.state = StatePaused
	o.resumed = make(chan struct{})
	o.mu.Unlock()

	o.limiter.Pause()
	o.logger.Info().Msg("Session paused")
	return nil
}

// Resume continues a paused session from the next batch.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	switch o.state {
	case StateRunning:
		o.mu.Unlock()
		return nil
	case StatePaused:
	default:
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.state = StateRunning
	close(o.resumed)
	o.resumed = nil
	o.mu.Unlock()

	o.limiter.Resume()
	o.logger.Info().Msg("Session resumed")
	return nil
}

// Cancel ends the session. Tickets still waiting in the limiter are rejected;
// a batch already in flight finishes and its result is kept.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	if !o.state.Active() {
		o.mu.Unlock()
		return ErrNotRunning
	}
	cancel := o.cancel
	o.mu.Unlock()

	o.abort()
	if cancel != nil {
		cancel()
	}
	o.logger.Info().Msg("Session cancelled")
	return nil
}

// abort moves an active session to cancelled and drains the limiter. It runs
// from Cancel and when the Start context ends, and is idempotent.
func (o *Orchestrator) abort() {
	o.mu.Lock()
	if !o.state.Active() {
		o.mu.Unlock()
		return
	}
	wasPaused := o.state == StatePaused
	o.state = StateCancelled
	if o.resumed != nil {
		close(o.resumed)
		o.resumed = nil
	}
	o.mu.Unlock()

	o.limiter.ClearQueue()
	if wasPaused {
		o.limiter.Resume()
	}
}

// Progress returns a fresh snapshot of the current session.
func (o *Orchestrator) Progress() ProgressSnapshot {
	status := o.limiter.Status()

	o.mu.Lock()
	defer o.mu.Unlock()

	snap := ProgressSnapshot{Limiter: status}
	if o.sess == nil {
		return snap
	}
	s := o.sess
	snap.CompletedBatches = s.completed
	snap.TotalBatches = len(s.batches)
	snap.ResultCount = len(s.results)
	snap.ErrorCount = len(s.errors)

	if o.state.Active() {
		remaining := snap.TotalBatches - snap.CompletedBatches - snap.ErrorCount
		snap.ETA = o.limiter.EstimateCompletion(remaining)
	}
	return snap
}

// Summary returns the summary of the current or last session, or nil if no
// session was ever started.
func (o *Orchestrator) Summary() *Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sess == nil {
		return nil
	}
	return o.summaryLocked()
}

func (o *Orchestrator) summaryLocked() *Summary {
	s := o.sess

	end := s.finishedAt
	if end.IsZero() {
		end = o.now()
	}

	return &Summary{
		SessionID:        s.id,
		State:            o.state,
		TotalBatches:     len(s.batches),
		CompletedBatches: s.completed,
		TotalResultCount: len(s.results),
		ErrorCount:       len(s.errors),
		StartedAt:        s.startedAt,
		Duration:         end.Sub(s.startedAt),
		Cancelled:        o.state == StateCancelled,
		StopReason:       s.stopReason,
		Errors:           slices.Clone(s.errors),
		Results:          slices.Clone(s.results),
		Config:           s.cfg,
	}
}
