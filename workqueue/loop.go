package workqueue

import (
	"time"

	"golang.org/x/exp/slog"

	"github.com/j-woz/cctools/workqueue/futures"
	"github.com/j-woz/cctools/workqueue/types"
)

// syncLoop runs on a single dedicated goroutine for the lifetime of the
// queue and owns the dispatcher's blocking primitives exclusively. Each
// iteration drains the submission queue, waits for a completion with a
// bounded timeout, and resolves the matching future task.
//
// Individual task failures are recovered into the corresponding future's
// terminal state and never stop the loop. An error from the dispatcher
// itself is not recoverable: it degrades to "every outstanding task fails"
// rather than a hang.
func (q *Queue) syncLoop() {
	defer close(q.loopDone)

	// Maps dispatcher-assigned task IDs to the future tasks awaiting them.
	// Owned exclusively by this goroutine; no lock required.
	inFlight := make(map[int]*futures.FutureTask)

	for {
		if q.stopped() {
			q.rejectQueued()
			q.rejectInFlight(inFlight)
			return
		}

		if err := q.drainSubmits(inFlight); err != nil {
			q.failAll(inFlight, err)
			q.rejectQueued()
			return
		}

		completion, waited, err := q.waitForCompletion()
		if err != nil {
			q.failAll(inFlight, err)
			q.rejectQueued()
			return
		}
		if completion != nil {
			q.collect(inFlight, completion)
			continue
		}

		if waited || !q.toSubmit.empty() {
			// The bounded dispatcher wait already paced this iteration, or
			// there is new work to drain right away.
			continue
		}

		select {
		case <-q.stopCh:
		case <-q.wakeCh:
		case <-time.After(q.waitTimeout):
		}
	}
}

// drainSubmits non-blockingly drains the submission queue, submitting each
// not-yet-cancelled future task to the dispatcher under the shared lock. A
// submission error is returned to the loop for bulk failure propagation.
func (q *Queue) drainSubmits(inFlight map[int]*futures.FutureTask) error {
	for {
		ft, ok := q.toSubmit.pop()
		if !ok {
			return nil
		}

		if ft.Cancelled() {
			// Cancelled before it was drained; it must never reach the
			// dispatcher.
			continue
		}

		q.queueLock.Lock()
		taskID, err := q.dispatcher.Submit(ft.Task())
		q.queueLock.Unlock()
		if err != nil {
			ft.Reject(NewBridgeError(err))
			q.metrics.tasksFailed.Inc()
			return err
		}

		ft.Bind(q, taskID)
		inFlight[taskID] = ft
		q.metrics.tasksInFlight.Inc()
		q.logger.Debug(
			"submitted task to dispatcher",
			slog.Int("task_id", taskID),
			slog.String("tag", ft.Task().Tag))
	}
}

// waitForCompletion performs one bounded blocking wait against the
// dispatcher under the shared lock, if the dispatcher has outstanding work.
// The second return reports whether a blocking wait actually happened.
func (q *Queue) waitForCompletion() (*types.Completion, bool, error) {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()

	if q.dispatcher.Empty() {
		return nil, false, nil
	}
	c, err := q.dispatcher.Wait(q.waitTimeout)
	return c, true, err
}

// collect resolves the future task awaiting the completion. A lookup miss is
// tolerated: the dispatcher may deliver a completion for an identifier that
// was already cancelled and forgotten.
func (q *Queue) collect(inFlight map[int]*futures.FutureTask, c *types.Completion) {
	ft, ok := inFlight[c.TaskID]
	if !ok {
		q.logger.Debug(
			"dropping completion for unknown task",
			slog.Int("task_id", c.TaskID))
		return
	}
	delete(inFlight, c.TaskID)
	q.metrics.tasksInFlight.Dec()

	if c.Result == types.ResultSuccess && c.ExitStatus == 0 {
		q.metrics.tasksCompleted.Inc()
		ft.Resolve(c.Output)
		return
	}

	q.metrics.tasksFailed.Inc()
	ft.Reject(NewTaskError(c))
}

// failAll propagates a fatal bridge error to every future task still waiting
// in the submission queue and every in-flight future task, then raises the
// stop signal. No caller may be left blocking because the bridge itself
// failed.
func (q *Queue) failAll(inFlight map[int]*futures.FutureTask, cause error) {
	q.logger.Error(
		"work queue bridge failed, failing all outstanding tasks",
		slog.Any("error", cause),
		slog.Int("in_flight", len(inFlight)))

	berr := NewBridgeError(cause)
	for {
		ft, ok := q.toSubmit.pop()
		if !ok {
			break
		}
		ft.Reject(berr)
		q.metrics.tasksFailed.Inc()
	}
	for taskID, ft := range inFlight {
		delete(inFlight, taskID)
		q.metrics.tasksInFlight.Dec()
		q.metrics.tasksFailed.Inc()
		ft.Reject(berr)
	}

	q.stop()
}

// rejectQueued fails any future tasks that raced into the submission queue
// after the stop signal, so a stopped queue never strands a submission.
func (q *Queue) rejectQueued() {
	for {
		ft, ok := q.toSubmit.pop()
		if !ok {
			return
		}
		ft.Reject(ErrQueueStopped)
		q.metrics.tasksFailed.Inc()
	}
}

// rejectInFlight fails any future tasks still awaiting a completion when the
// queue stops. The loop is the only goroutine that can ever resolve them, so
// leaving them pending would hang their waiters forever.
func (q *Queue) rejectInFlight(inFlight map[int]*futures.FutureTask) {
	for taskID, ft := range inFlight {
		delete(inFlight, taskID)
		q.metrics.tasksInFlight.Dec()
		q.metrics.tasksFailed.Inc()
		ft.Reject(ErrQueueStopped)
	}
}
