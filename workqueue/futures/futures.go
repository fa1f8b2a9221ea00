package futures

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/exp/slog"

	"github.com/j-woz/cctools/workqueue/types"
)

var (
	// ErrCancelled is returned by the blocking accessors of a cancelled
	// future task.
	ErrCancelled = errors.New("future task was cancelled")

	// ErrTimeout is returned when a blocking accessor's deadline elapses
	// before the future task reaches a terminal state.
	ErrTimeout = errors.New("timed out waiting for future task")
)

// Canceller requests best-effort remote cancellation of a submitted task by
// its dispatcher-assigned ID. It is implemented by the bridge.
type Canceller interface {
	CancelByTaskID(taskID int) error
}

type state int

const (
	statePending state = iota
	stateSubmitted
	stateSuccess
	stateFailure
)

// FutureTask is the promise-like handle for one submitted task. It is created
// by the caller, handed to the bridge via Submit, and resolved exactly once by
// the bridge's sync loop (or short-circuited locally by Cancel).
type FutureTask struct {
	mu sync.Mutex

	task *types.Task

	// Set by Bind after the dispatcher accepts the task.
	canceller Canceller
	taskID    int

	state     state
	cancelled bool
	output    []byte
	err       error

	// done is closed exactly once, on the first terminal transition.
	done      chan struct{}
	callbacks []func(*FutureTask)
}

// New creates a future task that will run the provided command.
func New(command string) *FutureTask {
	return &FutureTask{
		task: types.NewTask(command),
		done: make(chan struct{}),
	}
}

// Task returns the underlying task description so callers can specify tags,
// files, and resources before submission.
func (f *FutureTask) Task() *types.Task {
	return f.task
}

// TaskID returns the dispatcher-assigned task ID, or 0 if the task has not
// been accepted yet.
func (f *FutureTask) TaskID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taskID
}

// Bind records the dispatcher-assigned task ID and the canceller to route
// remote cancellation requests through. Called once by the bridge's sync loop
// after a successful submission.
func (f *FutureTask) Bind(c Canceller, taskID int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.canceller = c
	f.taskID = taskID
	if f.state == statePending {
		f.state = stateSubmitted
	}
}

// Cancel marks the future task cancelled, signals completion, and runs any
// registered callbacks. If the task was already submitted, a best-effort
// remote cancellation is issued for its ID first. Cancel is idempotent and
// always returns true: cancellation is not refusable after the fact.
func (f *FutureTask) Cancel() bool {
	f.mu.Lock()
	c, taskID := f.canceller, f.taskID
	f.mu.Unlock()

	if c != nil {
		// Best effort: the dispatcher may have already collected or dropped
		// the task, in which case there is nothing left to cancel.
		if err := c.CancelByTaskID(taskID); err != nil {
			slog.Debug(
				"remote cancellation request failed",
				slog.Int("task_id", taskID),
				slog.Any("error", err))
		}
	}

	f.mu.Lock()
	alreadyTerminal := f.terminalLocked()
	f.cancelled = true
	var cbs []func(*FutureTask)
	if !alreadyTerminal {
		close(f.done)
		cbs = f.takeCallbacksLocked()
	}
	f.mu.Unlock()

	f.invoke(cbs)
	return true
}

// Cancelled reports whether the future task was cancelled.
func (f *FutureTask) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Done reports whether the future task reached a terminal state.
func (f *FutureTask) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.terminalLocked()
}

// Running reports whether the task was accepted by the bridge and has not yet
// reached a terminal state.
func (f *FutureTask) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == stateSubmitted && !f.cancelled
}

// Result blocks until the future task reaches a terminal state or the context
// expires. It returns the task's output on success, the stored failure if the
// task failed, ErrCancelled if the task was cancelled, and ErrTimeout if the
// context expired while the task was still pending. Result is idempotent:
// repeated calls after resolution return the same outcome.
func (f *FutureTask) Result(ctx context.Context) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelled {
		return nil, ErrCancelled
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

// Err blocks with the same contract as Result, but returns the task's failure
// as a value instead of conflating it with the wait outcome. The first return
// is the stored failure (nil if the task succeeded); the second reports why
// the wait itself did not complete (ErrCancelled or ErrTimeout).
func (f *FutureTask) Err(ctx context.Context) (error, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err, nil
}

func (f *FutureTask) wait(ctx context.Context) error {
	if f.Cancelled() {
		return ErrCancelled
	}

	select {
	case <-f.done:
	default:
		select {
		case <-f.done:
		case <-ctx.Done():
			return ErrTimeout
		}
	}
	return nil
}

// OnDone attaches fn to the future task. fn is called with the future task as
// its only argument when the task completes or is cancelled. Callbacks run in
// registration order. If the task is already terminal, fn runs immediately
// and synchronously on the calling goroutine. A callback that panics is
// recovered and logged; it does not affect sibling callbacks or the task's
// state.
func (f *FutureTask) OnDone(fn func(*FutureTask)) {
	f.mu.Lock()
	if f.terminalLocked() {
		f.mu.Unlock()
		f.invoke([]func(*FutureTask){fn})
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Resolve records the task's output and moves the future task to its terminal
// success state. It must be called at most once per future task.
func (f *FutureTask) Resolve(output []byte) {
	f.complete(stateSuccess, output, nil)
}

// Reject records the task's failure and moves the future task to its terminal
// failure state. It must be called at most once per future task.
func (f *FutureTask) Reject(err error) {
	f.complete(stateFailure, nil, err)
}

func (f *FutureTask) complete(s state, output []byte, err error) {
	f.mu.Lock()
	if f.state == stateSuccess || f.state == stateFailure {
		f.mu.Unlock()
		panic("[invariant violated] future task resolved multiple times")
	}

	wasCancelled := f.cancelled
	f.state = s
	f.output = output
	f.err = err

	var cbs []func(*FutureTask)
	if !wasCancelled {
		// Cancel already signalled completion and drained the callbacks.
		close(f.done)
		cbs = f.takeCallbacksLocked()
	}
	f.mu.Unlock()

	f.invoke(cbs)
}

func (f *FutureTask) terminalLocked() bool {
	return f.cancelled || f.state == stateSuccess || f.state == stateFailure
}

func (f *FutureTask) takeCallbacksLocked() []func(*FutureTask) {
	cbs := f.callbacks
	f.callbacks = nil
	return cbs
}

func (f *FutureTask) invoke(cbs []func(*FutureTask)) {
	for _, fn := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error(
						"error when executing future task callback",
						slog.Any("panic", r))
				}
			}()
			fn(f)
		}()
	}
}
