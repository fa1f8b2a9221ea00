package workqueue

import (
	"errors"
	"fmt"

	"github.com/j-woz/cctools/workqueue/types"
)

var (
	// ErrWaitDisabled is returned by Queue.Wait unconditionally. The blocking
	// wait primitive must never be called from outside the sync loop because
	// concurrent blocking calls against the same dispatcher handle are unsafe.
	ErrWaitDisabled = errors.New("wait cannot be used with the futures interface")

	// ErrQueueStopped is returned by Queue.Submit once the bridge has been
	// stopped, either explicitly via Close or because the sync loop failed.
	ErrQueueStopped = errors.New("work queue is stopped and not accepting new tasks")

	// Make sure they implement interface.
	_ error = NewTaskError(&types.Completion{})
	_ error = NewBridgeError(errors.New("n/a"))
)

// TaskError indicates that a task ran but did not succeed: a nonzero exit
// status, a missing input or output file, resource exhaustion, a dispatcher
// enforced timeout, a signal, retry exhaustion, or a full disk allocation.
type TaskError struct {
	Result     types.Result
	ExitStatus int
}

// NewTaskError creates a TaskError from a collected completion.
func NewTaskError(c *types.Completion) error {
	return TaskError{Result: c.Result, ExitStatus: c.ExitStatus}
}

func (e TaskError) Error() string {
	if e.Result == types.ResultSuccess && e.ExitStatus != 0 {
		return fmt.Sprintf("execution completed with exit status %d", e.ExitStatus)
	}
	return e.Result.String()
}

func (e TaskError) Is(target error) bool {
	if target == nil {
		return false
	}

	_, ok1 := target.(*TaskError)
	_, ok2 := target.(TaskError)
	return ok1 || ok2
}

// BridgeError indicates that the sync loop itself encountered an unexpected
// error while driving the dispatcher. It is delivered to every outstanding
// future task, submitted or queued, at the moment of failure so that no
// caller blocks forever on a dead bridge.
type BridgeError struct {
	msg string
}

// NewBridgeError creates a BridgeError capturing the text of the lower-level
// error.
func NewBridgeError(err error) error {
	return BridgeError{msg: err.Error()}
}

// Error renders the captured lower-level error text verbatim.
func (e BridgeError) Error() string {
	return e.msg
}

func (e BridgeError) Is(target error) bool {
	if target == nil {
		return false
	}

	_, ok1 := target.(*BridgeError)
	_, ok2 := target.(BridgeError)
	return ok1 || ok2
}
