package app

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventKind identifies what a task event carries
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventLog      EventKind = "log"
	EventDone     EventKind = "done"
	EventFailed   EventKind = "failed"
)

// Event is one message from a running task. Done and Failed are terminal.
type Event[T any] struct {
	Kind     EventKind
	Progress int
	Line     string
	Result   T
	Err      error
}

// IsTerminal reports whether this is the last event of its task
func (e Event[T]) IsTerminal() bool {
	return e.Kind == EventDone || e.Kind == EventFailed
}

// Emitter lets a unit of work report intermediate progress. Safe for concurrent use.
type Emitter interface {
	Progress(percent int)
	Log(line string)
}

// Work is a blocking unit of work run off the caller's goroutine
type Work[T any] func(ctx context.Context, emit Emitter) (T, error)

// TaskRunner starts units of work on their own goroutines and relays their events
type TaskRunner[T any] struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewTaskRunner creates a task runner
func NewTaskRunner[T any](logger *zap.Logger) *TaskRunner[T] {
	return &TaskRunner[T]{logger: logger}
}

// Start runs work and returns its handle. The handle's event channel must be drained.
func (r *TaskRunner[T]) Start(name string, work Work[T]) *Handle[T] {
	h := &Handle[T]{
		name: name,
		done: make(chan struct{}),
		relay: &eventRelay[T]{
			wake: make(chan struct{}, 1),
			out:  make(chan Event[T]),
		},
	}
	go h.relay.run()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Debug("Task started", zap.String("task", name))

		result, err := runProtected(context.Background(), work, h.relay)

		h.result, h.err = result, err
		close(h.done)

		if err != nil {
			r.logger.Debug("Task failed", zap.String("task", name), zap.Error(err))
			h.relay.push(Event[T]{Kind: EventFailed, Err: err}, true)
			return
		}
		r.logger.Debug("Task finished", zap.String("task", name))
		h.relay.push(Event[T]{Kind: EventDone, Result: result}, true)
	}()

	return h
}

// Wait blocks until every started unit of work has returned
func (r *TaskRunner[T]) Wait() {
	r.wg.Wait()
}

func runProtected[T any](ctx context.Context, work Work[T], emit Emitter) (result T, err error) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			result, err = zero, fmt.Errorf("panic: %v", p)
		}
	}()
	return work(ctx, emit)
}

// Handle observes one started unit of work
type Handle[T any] struct {
	name   string
	relay  *eventRelay[T]
	done   chan struct{}
	result T
	err    error
}

// Name returns the name the task was started with
func (h *Handle[T]) Name() string {
	return h.name
}

// Events delivers progress and log events in emission order, then exactly one
// terminal event, then closes.
func (h *Handle[T]) Events() <-chan Event[T] {
	return h.relay.out
}

// Wait blocks until the work has returned and yields its outcome
func (h *Handle[T]) Wait() (T, error) {
	<-h.done
	return h.result, h.err
}

// eventRelay is an unbounded FIFO between a worker and its consumer.
// Pushing never blocks; nothing is accepted after the terminal event.
type eventRelay[T any] struct {
	mu       sync.Mutex
	pending  []Event[T]
	finished bool
	wake     chan struct{}
	out      chan Event[T]
}

func (r *eventRelay[T]) Progress(percent int) {
	r.push(Event[T]{Kind: EventProgress, Progress: percent}, false)
}

func (r *eventRelay[T]) Log(line string) {
	r.push(Event[T]{Kind: EventLog, Line: line}, false)
}

func (r *eventRelay[T]) push(ev Event[T], terminal bool) {
	r.mu.Lock()
	if r.finished {
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, ev)
	r.finished = terminal
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *eventRelay[T]) run() {
	defer close(r.out)
	for {
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		finished := r.finished
		r.mu.Unlock()

		for _, ev := range batch {
			r.out <- ev
		}
		if finished {
			return
		}
		if len(batch) == 0 {
			<-r.wake
		}
	}
}
