package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Task is a deferred unit of work. Results travel through the closure.
type Task func(ctx context.Context) error

// Metadata annotates a ticket for logging.
type Metadata map[string]string

// Ticket is a pending unit of work owned by the Limiter until it settles.
type Ticket struct {
	ID         uint64
	Meta       Metadata
	EnqueuedAt time.Time

	ctx      context.Context
	task     Task
	attempts int
	clearGen uint64

	done chan struct{}
	err  error
	once sync.Once
	stop func() bool
}

// Done is closed once the ticket has settled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the settlement error. Only valid after Done is closed.
func (t *Ticket) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the ticket settles or ctx ends. A ctx ending does not
// withdraw the ticket.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle records err and closes done. Only the first call has an effect.
func (t *Ticket) settle(err error) {
	t.once.Do(func() {
		if t.stop != nil {
			t.stop()
		}
		t.err = err
		close(t.done)
	})
}

// Status is a point-in-time read of the limiter counters.
type Status struct {
	QueueLength          int           `json:"queue_length"`
	RequestsInLastMinute int           `json:"requests_in_last_minute"`
	RemainingRPM         int           `json:"remaining_rpm"`
	DailyRequestCount    int           `json:"daily_request_count"`
	RemainingRPD         int           `json:"remaining_rpd"` // -1 when the daily quota is disabled
	Delay                time.Duration `json:"delay"`
	Paused               bool          `json:"paused"`
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithAfter overrides the timer used while waiting for quota compliance.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(l *Limiter) { l.after = after }
}

// WithLocation sets the time zone of the daily counter (default time.Local).
func WithLocation(loc *time.Location) Option {
	return func(l *Limiter) { l.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// WithRetry sets the transient retry bounds.
func WithRetry(cfg RetryConfig) Option {
	return func(l *Limiter) { l.retry = cfg.normalize() }
}

// WithClassifier replaces IsTransient as the retry classifier.
func WithClassifier(fn func(error) bool) Option {
	return func(l *Limiter) { l.classify = fn }
}

// Limiter is a FIFO admission-control queue. Tickets are executed one at a
// time by a single consumer goroutine, never violating the Policy.
//
// Submit, Pause, Resume, ClearQueue and Status are safe for concurrent use.
type Limiter struct {
	policy   Policy
	retry    RetryConfig
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	loc      *time.Location
	logger   zerolog.Logger
	classify func(error) bool

	mu           sync.Mutex
	queue        []*Ticket
	window       RollingWindow
	daily        DailyCounter
	lastDequeue  time.Time
	backoffUntil time.Time
	paused       bool
	running      bool
	clearGen     uint64
	nextID       uint64

	wake chan struct{}
}

// New creates a limiter for policy.
func New(policy Policy, opts ...Option) (*Limiter, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		policy:   policy,
		retry:    DefaultRetryConfig(),
		now:      time.Now,
		after:    time.After,
		loc:      time.Local,
		logger:   log.With().Str("component", "ratelimit").Logger(),
		classify: IsTransient,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// NewForModel creates a limiter using the policy of model in table, falling
// back to the default entry for unknown models.
func NewForModel(table PolicyTable, model string, opts ...Option) (*Limiter, error) {
	if table == nil {
		table = NewPolicyTable()
	}
	policy, ok := table.Lookup(model)
	l, err := New(policy, opts...)
	if err != nil {
		return nil, err
	}
	if !ok {
		l.logger.Warn().
			Str("model", model).
			Int("rpm", policy.RequestsPerMinute).
			Int("rpd", policy.RequestsPerDay).
			Msg("Unknown model, using conservative default policy")
	}
	return l, nil
}

// Policy returns the active policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Submit enqueues task and returns its ticket. The ticket is rejected with a
// CancellationError if ctx ends before the ticket is dequeued. Once dequeued,
// the task runs to completion with a context that is not cancelled by ctx.
func (l *Limiter) Submit(ctx context.Context, meta Metadata, task Task) *Ticket {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	l.nextID++
	t := &Ticket{
		ID:         l.nextID,
		Meta:       meta,
		EnqueuedAt: l.now(),
		ctx:        ctx,
		task:       task,
		done:       make(chan struct{}),
	}
	t.stop = context.AfterFunc(ctx, func() { l.withdraw(t, ctx.Err()) })
	l.queue = append(l.queue, t)
	limiterQueueLength.Set(float64(len(l.queue)))
	l.kickLocked()
	l.mu.Unlock()

	l.logger.Debug().
		Uint64("ticket", t.ID).
		Interface("meta", meta).
		Msg("Ticket enqueued")

	return t
}

// Do submits task and waits for it to settle. A ctx ending rejects the ticket
// while it is queued, even when the limiter is paused, but a task that is
// already executing is waited for.
func (l *Limiter) Do(ctx context.Context, meta Metadata, task Task) error {
	t := l.Submit(ctx, meta, task)
	<-t.Done()
	return t.Err()
}

// Pause stops further dequeues. Queued tickets are kept and a ticket that is
// already executing finishes.
func (l *Limiter) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
	l.notify()
	l.logger.Info().Msg("Rate limiter paused")
}

// Resume restarts processing from the next queued ticket in original order.
func (l *Limiter) Resume() {
	l.mu.Lock()
	l.paused = false
	l.kickLocked()
	l.mu.Unlock()
	l.notify()
	l.logger.Info().Msg("Rate limiter resumed")
}

// ClearQueue rejects every ticket that has not been dequeued yet with a
// CancellationError and returns how many were rejected. A ticket that is
// executing is not affected, but it will not be retried afterwards.
func (l *Limiter) ClearQueue() int {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.clearGen++
	limiterQueueLength.Set(0)
	l.mu.Unlock()
	l.notify()

	for _, t := range pending {
		t.settle(&CancellationError{Reason: "queue cleared"})
	}
	if len(pending) > 0 {
		limiterRejectionsTotal.WithLabelValues("cancelled").Add(float64(len(pending)))
		l.logger.Info().Int("rejected", len(pending)).Msg("Rate limiter queue cleared")
	}
	return len(pending)
}

// withdraw removes t from the queue and rejects it. A ticket that is no
// longer queued is left alone.
func (l *Limiter) withdraw(t *Ticket, cause error) {
	l.mu.Lock()
	idx := -1
	for i, q := range l.queue {
		if q == t {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue[:idx], l.queue[idx+1:]...)
	limiterQueueLength.Set(float64(len(l.queue)))
	l.mu.Unlock()
	l.notify()

	limiterRejectionsTotal.WithLabelValues("cancelled").Inc()
	l.logger.Debug().Uint64("ticket", t.ID).Msg("Ticket withdrawn")
	t.settle(&CancellationError{Reason: "context done", Err: cause})
}

// Status returns the current counters without modifying any state.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	inWindow := l.window.Count(now)
	daily := l.daily.Current(now, l.loc)

	remainingRPD := -1
	if l.policy.RequestsPerDay > 0 {
		remainingRPD = max(0, l.policy.RequestsPerDay-daily)
	}

	return Status{
		QueueLength:          len(l.queue),
		RequestsInLastMinute: inWindow,
		RemainingRPM:         max(0, l.policy.RequestsPerMinute-inWindow),
		DailyRequestCount:    daily,
		RemainingRPD:         remainingRPD,
		Delay:                l.policy.MinDelay(),
		Paused:               l.paused,
	}
}

// EstimateCompletion approximates how long queueLength requests take at the
// policy's RPM: ceil(queueLength / (RPM/60)) seconds.
func (l *Limiter) EstimateCompletion(queueLength int) time.Duration {
	if queueLength <= 0 || l.policy.RequestsPerMinute <= 0 {
		return 0
	}
	perSecond := float64(l.policy.RequestsPerMinute) / 60.0
	secs := math.Ceil(float64(queueLength) / perSecond)
	return time.Duration(secs) * time.Second
}

// kickLocked starts the consumer if there is work and none is running.
func (l *Limiter) kickLocked() {
	if l.running || l.paused || len(l.queue) == 0 {
		return
	}
	l.running = true
	go l.run()
}

func (l *Limiter) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// waitLocked returns how long the head of the queue must wait.
func (l *Limiter) waitLocked(now time.Time) time.Duration {
	l.window.Prune(now)
	wait := l.window.WaitFor(now, l.policy.RequestsPerMinute)

	if !l.lastDequeue.IsZero() {
		if d := l.lastDequeue.Add(l.policy.MinDelay()).Sub(now); d > wait {
			wait = d
		}
	}
	if d := l.backoffUntil.Sub(now); d > wait {
		wait = d
	}
	return wait
}

// run is the single consumer loop.
func (l *Limiter) run() {
	for {
		l.mu.Lock()
		if l.paused || len(l.queue) == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}

		now := l.now()
		head := l.queue[0]

		if err := head.ctx.Err(); err != nil {
			l.queue = l.queue[1:]
			limiterQueueLength.Set(float64(len(l.queue)))
			l.mu.Unlock()
			limiterRejectionsTotal.WithLabelValues("cancelled").Inc()
			head.settle(&CancellationError{Reason: "context done", Err: err})
			continue
		}

		l.daily.Roll(now, l.loc)
		if l.daily.Exhausted(l.policy.RequestsPerDay) {
			l.haltLocked()
			return
		}

		if wait := l.waitLocked(now); wait > 0 {
			l.mu.Unlock()
			l.logger.Debug().
				Uint64("ticket", head.ID).
				Dur("wait", wait).
				Msg("Waiting for rate limit compliance")
			limiterWaitSeconds.Observe(wait.Seconds())

			select {
			case <-l.after(wait):
			case <-l.wake:
			case <-head.ctx.Done():
			}
			continue
		}

		l.queue = l.queue[1:]
		limiterQueueLength.Set(float64(len(l.queue)))
		l.lastDequeue = now
		head.clearGen = l.clearGen
		l.mu.Unlock()

		head.attempts++
		err := head.task(context.WithoutCancel(head.ctx))
		l.settleAfterExecution(head, err)
	}
}

// haltLocked rejects everything queued with a QuotaExceededError. Called with
// l.mu held; releases it.
func (l *Limiter) haltLocked() {
	rejected := l.queue
	l.queue = nil
	l.running = false
	qe := &QuotaExceededError{
		Count:   l.daily.Count,
		Limit:   l.policy.RequestsPerDay,
		DateKey: l.daily.DateKey,
	}
	limiterQueueLength.Set(0)
	l.mu.Unlock()

	l.logger.Error().
		Int("daily_count", qe.Count).
		Int("daily_limit", qe.Limit).
		Int("rejected", len(rejected)).
		Msg("Daily quota exhausted - halting rate limiter")

	limiterRejectionsTotal.WithLabelValues("quota").Add(float64(len(rejected)))
	for _, t := range rejected {
		t.settle(qe)
	}
}

func (l *Limiter) settleAfterExecution(t *Ticket, err error) {
	l.mu.Lock()
	now := l.now()

	if err == nil {
		l.window.Record(now)
		l.daily.Roll(now, l.loc)
		l.daily.Count++
		l.backoffUntil = time.Time{}
		limiterDailyRequests.Set(float64(l.daily.Count))
		l.mu.Unlock()

		limiterAdmissionsTotal.Inc()
		t.settle(nil)
		return
	}

	if !l.classify(err) {
		l.mu.Unlock()
		limiterRejectionsTotal.WithLabelValues("failed").Inc()
		t.settle(err)
		return
	}

	if t.clearGen != l.clearGen {
		l.mu.Unlock()
		limiterRejectionsTotal.WithLabelValues("cancelled").Inc()
		t.settle(&CancellationError{Reason: "queue cleared during retry", Err: err})
		return
	}

	if t.attempts >= l.retry.MaxAttempts {
		l.mu.Unlock()
		limiterRejectionsTotal.WithLabelValues("retry_exhausted").Inc()
		l.logger.Warn().
			Uint64("ticket", t.ID).
			Int("attempts", t.attempts).
			Err(err).
			Msg("Retry attempts exhausted")
		t.settle(&TransientRateLimitError{Attempts: t.attempts, Err: err})
		return
	}

	backoff := l.retry.Backoff(t.attempts, l.policy)
	l.backoffUntil = now.Add(backoff)
	l.queue = append([]*Ticket{t}, l.queue...)
	limiterQueueLength.Set(float64(len(l.queue)))
	l.mu.Unlock()

	limiterRetriesTotal.Inc()
	l.logger.Warn().
		Uint64("ticket", t.ID).
		Int("attempt", t.attempts).
		Dur("backoff", backoff).
		Err(err).
		Msg("Transient rate limit, re-queued at front")
}
