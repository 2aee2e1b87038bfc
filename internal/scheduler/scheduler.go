// Package scheduler runs at most one background task at a time and delivers
// its progress to the interactive side as an ordered event stream.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/appsweep/internal/domain"
)

// ErrAlreadyRunning is returned by Start while another task is active.
var ErrAlreadyRunning = errors.New("a task is already running")

// State is the scheduler lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Result is what a task hands back to the scheduler for publishing.
type Result struct {
	Scan     *domain.ScanResult
	Outcomes []domain.RemovalOutcome

	// Record and Diagnostics are set by a refresh.
	Record      *domain.AppRecord
	Diagnostics []domain.Diagnostic

	// Total is the unit count the final progress event must reach.
	Total int
}

// Task is one unit of background work.
type Task interface {
	Kind() domain.TaskKind
	Execute(ctx context.Context, rep *Reporter) (Result, error)
}

// locker is implemented by tasks that reference existing records.
type locker interface {
	Locks() []string
}

// Completion is the terminal summary of a run.
type Completion struct {
	State    State
	Err      error
	Scan     *domain.ScanResult
	Outcomes []domain.RemovalOutcome
	Record   *domain.AppRecord
	Duration time.Duration
}

// Event is one message on a run's stream. Exactly one of Progress and Done is
// set; Outcome accompanies Progress for removal tasks.
type Event struct {
	RunID    string
	Progress *domain.TaskProgress
	Outcome  *domain.RemovalOutcome
	Done     *Completion
}

// Scheduler enforces the single-active-task rule.
type Scheduler struct {
	mu      sync.Mutex
	store   *Store
	logger  *zap.Logger
	state   State
	last    State
	cancel  context.CancelFunc
	current *Run
}

// New creates an idle scheduler publishing into store.
func New(store *Store, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:  store,
		logger: logger,
		state:  StateIdle,
		last:   StateIdle,
	}
}

// Store returns the shared state the scheduler publishes into.
func (s *Scheduler) Store() *Store {
	return s.store
}

// State returns the current state: Idle or Running.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastState returns the terminal state of the most recent run, or Idle.
func (s *Scheduler) LastState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Start launches task on a fresh worker. It fails synchronously with
// ErrAlreadyRunning, leaving the active run untouched.
func (s *Scheduler) Start(task Task) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return nil, ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(uuid.NewString(), task.Kind())

	var locks []string
	if l, ok := task.(locker); ok {
		locks = l.Locks()
	}
	s.store.begin(locks)

	s.state = StateRunning
	s.cancel = cancel
	s.current = run

	s.logger.Info("task started",
		zap.String("run_id", run.ID),
		zap.String("kind", string(run.Kind)))

	go s.work(ctx, cancel, task, run)
	return run, nil
}

// Cancel requests cooperative cancellation of the active task.
// It reports whether a task was running.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.cancel == nil {
		return false
	}
	s.logger.Info("cancellation requested", zap.String("run_id", s.current.ID))
	s.cancel()
	return true
}

func (s *Scheduler) work(ctx context.Context, cancel context.CancelFunc, task Task, run *Run) {
	defer cancel()
	start := time.Now()

	rep := &Reporter{run: run, kind: task.Kind(), last: -1}
	res, err := s.execute(ctx, task, rep)

	state := classify(err)
	done := Completion{State: state, Err: err, Duration: time.Since(start)}

	if state == StateCompleted {
		rep.finish(res.Total)
		if res.Scan != nil {
			s.store.publishScan(res.Scan)
			done.Scan = res.Scan
		}
		if res.Record != nil {
			if err := s.store.publishRecord(*res.Record, res.Diagnostics); err != nil {
				s.logger.Warn("refreshed record no longer listed",
					zap.String("bundle", res.Record.BundlePath), zap.Error(err))
			}
			done.Record = res.Record
		}
	}
	// Only completed scans and refreshes publish. Moves already made are
	// published whatever the final state.
	if task.Kind() == domain.TaskRemove && (state != StateFailed || len(res.Outcomes) > 0) {
		s.store.publishRemoval(res.Outcomes)
		done.Outcomes = res.Outcomes
	}

	fields := []zap.Field{
		zap.String("run_id", run.ID),
		zap.String("kind", string(task.Kind())),
		zap.String("state", string(state)),
		zap.Duration("duration", done.Duration),
	}
	if state == StateFailed {
		s.logger.Error("task failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("task finished", fields...)
	}

	s.mu.Lock()
	s.state = StateIdle
	s.last = state
	s.cancel = nil
	s.current = nil
	s.store.end()
	s.mu.Unlock()

	run.finish(done)
}

// execute runs the task, converting a panic into a failure.
func (s *Scheduler) execute(ctx context.Context, task Task, rep *Reporter) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = &PanicError{Value: r}
		}
	}()
	return task.Execute(ctx, rep)
}

// PanicError wraps a value recovered from a task.
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return "task panicked"
}

func classify(err error) State {
	switch {
	case err == nil:
		return StateCompleted
	case errors.Is(err, context.Canceled):
		return StateCancelled
	default:
		return StateFailed
	}
}

// Reporter is handed to a task to emit progress. Events whose Current does
// not increase are dropped.
type Reporter struct {
	run  *Run
	kind domain.TaskKind
	last int
}

// Progress emits a progress event.
func (r *Reporter) Progress(current, total int, message string) {
	r.emit(domain.TaskProgress{Phase: r.kind, Current: current, Total: total, Message: message}, nil)
}

// Outcome emits a progress event carrying a per-item removal outcome.
func (r *Reporter) Outcome(current, total int, o domain.RemovalOutcome) {
	r.emit(domain.TaskProgress{
		Phase:   r.kind,
		Current: current,
		Total:   total,
		Message: string(o.Status) + " " + o.Path,
	}, &o)
}

func (r *Reporter) emit(p domain.TaskProgress, o *domain.RemovalOutcome) {
	if p.Current <= r.last {
		return
	}
	r.last = p.Current
	r.run.push(Event{RunID: r.run.ID, Progress: &p, Outcome: o})
}

// finish guarantees a final Current == Total event.
func (r *Reporter) finish(total int) {
	if r.last == total {
		return
	}
	r.emit(domain.TaskProgress{Phase: r.kind, Current: total, Total: total, Message: "done"}, nil)
}

// Run is the handle of one started task.
type Run struct {
	ID   string
	Kind domain.TaskKind

	events chan Event
	done   chan struct{}

	mu         sync.Mutex
	queue      []Event
	closed     bool
	wake       chan struct{}
	completion Completion
}

func newRun(id string, kind domain.TaskKind) *Run {
	r := &Run{
		ID:     id,
		Kind:   kind,
		events: make(chan Event),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	go r.pump()
	return r
}

// Events returns the ordered event stream. The final event carries Done and
// the channel is closed after it.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Wait blocks until the task has finished and returns its completion.
// It does not consume events.
func (r *Run) Wait() Completion {
	<-r.done
	return r.completion
}

// Discard drains the event stream in the background for callers that only Wait.
func (r *Run) Discard() {
	go func() {
		for range r.events {
		}
	}()
}

// Done is closed when the task has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// push queues an event without blocking the worker.
func (r *Run) push(e Event) {
	r.mu.Lock()
	r.queue = append(r.queue, e)
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Run) finish(c Completion) {
	r.mu.Lock()
	r.completion = c
	r.queue = append(r.queue, Event{RunID: r.ID, Done: &c})
	r.closed = true
	r.mu.Unlock()

	close(r.done)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events to the consumer in order.
func (r *Run) pump() {
	defer close(r.events)
	for {
		r.mu.Lock()
		batch := r.queue
		r.queue = nil
		closed := r.closed
		r.mu.Unlock()

		for _, e := range batch {
			r.events <- e
		}
		if closed {
			return
		}
		<-r.wake
	}
}
