package orchestrator

import (
	"sync"

	"github.com/FiratKiziltepe/pagebatch/pkg/batch"
	"github.com/FiratKiziltepe/pagebatch/pkg/generation"
)

// Observer receives session notifications. Calls are made from the session
// goroutine, one at a time, and must not block for long.
type Observer interface {
	OnProgress(snapshot ProgressSnapshot)
	OnBatchComplete(b batch.Batch, items []generation.Item)
	OnError(err BatchError, b batch.Batch)
	OnComplete(summary *Summary)
}

// ObserverFuncs adapts optional functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Progress      func(ProgressSnapshot)
	BatchComplete func(batch.Batch, []generation.Item)
	Error         func(BatchError, batch.Batch)
	Complete      func(*Summary)
}

func (f ObserverFuncs) OnProgress(s ProgressSnapshot) {
	if f.Progress != nil {
		f.Progress(s)
	}
}

func (f ObserverFuncs) OnBatchComplete(b batch.Batch, items []generation.Item) {
	if f.BatchComplete != nil {
		f.BatchComplete(b, items)
	}
}

func (f ObserverFuncs) OnError(err BatchError, b batch.Batch) {
	if f.Error != nil {
		f.Error(err, b)
	}
}

func (f ObserverFuncs) OnComplete(s *Summary) {
	if f.Complete != nil {
		f.Complete(s)
	}
}

// MultiObserver fans notifications out to every observer in order.
func MultiObserver(observers ...Observer) Observer {
	return multiObserver(observers)
}

type multiObserver []Observer

func (m multiObserver) OnProgress(s ProgressSnapshot) {
	for _, o := range m {
		o.OnProgress(s)
	}
}

func (m multiObserver) OnBatchComplete(b batch.Batch, items []generation.Item) {
	for _, o := range m {
		o.OnBatchComplete(b, items)
	}
}

func (m multiObserver) OnError(err BatchError, b batch.Batch) {
	for _, o := range m {
		o.OnError(err, b)
	}
}

func (m multiObserver) OnComplete(s *Summary) {
	for _, o := range m {
		o.OnComplete(s)
	}
}

// EventType identifies an Event.
type EventType string

// Event types.
const (
	EventProgress      EventType = "progress"
	EventBatchComplete EventType = "batch_complete"
	EventError         EventType = "error"
	EventComplete      EventType = "complete"
)

// Event is a typed session notification. Only the fields of its Type are set.
type Event struct {
	Type     EventType
	Progress ProgressSnapshot
	Batch    batch.Batch
	Items    []generation.Item
	Error    *BatchError
	Summary  *Summary
}

// EventChannel is an Observer that turns the notifications of one session
// into a stream of events. The channel is closed after the complete event and
// anything reported after that, such as a later session of the same
// Orchestrator, is dropped. Sends block when the buffer is full, so the
// consumer must drain Events until it is closed.
type EventChannel struct {
	ch     chan Event
	mu     sync.Mutex
	closed bool
}

// NewEventChannel creates an event stream with the given buffer size.
func NewEventChannel(buffer int) *EventChannel {
	return &EventChannel{ch: make(chan Event, buffer)}
}

// Events returns the stream.
func (e *EventChannel) Events() <-chan Event {
	return e.ch
}

func (e *EventChannel) OnProgress(s ProgressSnapshot) {
	e.send(Event{Type: EventProgress, Progress: s}, false)
}

func (e *EventChannel) OnBatchComplete(b batch.Batch, items []generation.Item) {
	e.send(Event{Type: EventBatchComplete, Batch: b, Items: items}, false)
}

func (e *EventChannel) OnError(err BatchError, b batch.Batch) {
	e.send(Event{Type: EventError, Batch: b, Error: &err}, false)
}

func (e *EventChannel) OnComplete(s *Summary) {
	e.send(Event{Type: EventComplete, Summary: s}, true)
}

// send delivers ev unless the stream is already closed.
func (e *EventChannel) send(ev Event, last bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.ch <- ev
	if last {
		e.closed = true
		close(e.ch)
	}
}
