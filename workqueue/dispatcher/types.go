package dispatcher

import (
	"time"

	"github.com/j-woz/cctools/workqueue/types"
)

// Dispatcher is the interface implemented by the underlying work queue: it
// accepts task descriptions, runs them on workers, and offers a blocking
// "wait for next completed task" primitive.
//
// A Dispatcher is NOT safe for concurrent use. Callers must serialize every
// call; the futures bridge funnels all access through a single shared lock.
type Dispatcher interface {
	// Submit hands a task to the dispatcher and returns the identifier it
	// assigned. Blocking.
	Submit(task *types.Task) (int, error)

	// Wait blocks up to timeout for the next completed task. It returns
	// (nil, nil) if nothing completed within the window.
	Wait(timeout time.Duration) (*types.Completion, error)

	// Empty reports whether the dispatcher has no tasks queued, running, or
	// waiting to be collected.
	Empty() bool

	// CancelByTaskID requests best-effort cancellation of a task by its
	// identifier. Cancelling an unknown or already-collected identifier is
	// not an error.
	CancelByTaskID(taskID int) error

	// Hungry reports whether the dispatcher could put more tasks to work
	// immediately.
	Hungry() bool

	// Stats returns a snapshot of the dispatcher's counters.
	Stats() Stats

	// Close shuts the dispatcher down and releases its workers.
	Close() error
}

// Stats is a point-in-time snapshot of a dispatcher's activity. Run time
// quantiles are in seconds and are zero until at least one task has been
// collected.
type Stats struct {
	TasksSubmitted int
	TasksDone      int
	TasksFailed    int
	TasksCancelled int
	WorkersBusy    int

	RunTimeP50 float64
	RunTimeP95 float64
	RunTimeP99 float64
}
