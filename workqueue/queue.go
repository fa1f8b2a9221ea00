package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"

	"github.com/j-woz/cctools/workqueue/dispatcher"
	"github.com/j-woz/cctools/workqueue/futures"
	"github.com/j-woz/cctools/workqueue/types"
)

const (
	// DefaultWaitTimeout bounds each blocking wait against the dispatcher so
	// the sync loop can periodically re-check the stop signal and drain new
	// submissions even when nothing completes. A scheduling necessity, not a
	// protocol requirement.
	DefaultWaitTimeout = 1 * time.Second

	// DefaultJoinInterval is how often Join re-checks for quiescence.
	DefaultJoinInterval = 100 * time.Millisecond
)

// Options configures a Queue. The zero value is usable.
type Options struct {
	// Logger to use. Defaults to slog.Default().
	Logger *slog.Logger

	// WaitTimeout overrides DefaultWaitTimeout.
	WaitTimeout time.Duration

	// JoinInterval overrides DefaultJoinInterval.
	JoinInterval time.Duration

	// Metrics is the registerer the queue's metrics are registered with.
	// Nil disables registration.
	Metrics prometheus.Registerer
}

// Queue adapts a blocking dispatcher into a futures interface. Callers submit
// FutureTasks and await each one individually; a single background sync loop
// owns all interaction with the dispatcher's blocking primitives.
//
// All state is per Queue instance. Two independent queues in the same process
// share nothing.
type Queue struct {
	// Dependencies.
	logger     *slog.Logger
	dispatcher dispatcher.Dispatcher

	// queueLock guards every call into the dispatcher handle, which is not
	// safe for concurrent use. It is shared by the sync loop and the
	// enumerated passthrough methods.
	queueLock sync.Mutex

	toSubmit *submitQueue
	wakeCh   chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	loopDone chan struct{}

	waitTimeout  time.Duration
	joinInterval time.Duration

	metrics *queueMetrics
}

// The bridge routes FutureTask.Cancel through its locked passthrough.
var _ futures.Canceller = (*Queue)(nil)

// NewQueue creates a queue over the provided dispatcher and starts its sync
// loop. The queue assumes exclusive ownership of the dispatcher's blocking
// primitives; callers must not invoke the dispatcher directly. Callers must
// call Close on every exit path to stop the sync loop.
func NewQueue(d dispatcher.Dispatcher, opts Options) (*Queue, error) {
	if d == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	waitTimeout := opts.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	joinInterval := opts.JoinInterval
	if joinInterval <= 0 {
		joinInterval = DefaultJoinInterval
	}

	q := &Queue{
		logger:       logger,
		dispatcher:   d,
		toSubmit:     newSubmitQueue(),
		wakeCh:       make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		loopDone:     make(chan struct{}),
		waitTimeout:  waitTimeout,
		joinInterval: joinInterval,
		metrics:      newQueueMetrics(opts.Metrics),
	}

	go q.syncLoop()

	return q, nil
}

// Submit enqueues a future task for asynchronous dispatch and returns it
// immediately. The actual submission to the dispatcher happens on the sync
// loop. Submit fails with ErrQueueStopped once the queue has been stopped.
func (q *Queue) Submit(ft *futures.FutureTask) (*futures.FutureTask, error) {
	if ft == nil {
		return nil, errors.New("cannot submit a nil future task")
	}
	if q.stopped() {
		return nil, ErrQueueStopped
	}

	q.toSubmit.push(ft)
	q.metrics.tasksSubmitted.Inc()

	if q.stopped() {
		// The sync loop may already have drained the submission queue for the
		// last time; reject anything that raced in so nothing is stranded.
		q.rejectQueued()
		return nil, ErrQueueStopped
	}

	q.wake()
	return ft, nil
}

// Wait always fails with ErrWaitDisabled. Use FutureTask.Result instead.
func (q *Queue) Wait(timeout time.Duration) (*types.Completion, error) {
	return nil, ErrWaitDisabled
}

// Empty reports whether there is no pending submission and the dispatcher
// itself reports empty. It is a liveness check, not a guarantee against
// races: a concurrent Submit can make a true result stale immediately.
func (q *Queue) Empty() bool {
	if !q.toSubmit.empty() {
		return false
	}

	q.queueLock.Lock()
	defer q.queueLock.Unlock()
	return q.dispatcher.Empty()
}

// Join blocks until the queue is quiescent, the queue stops, or the context
// expires.
func (q *Queue) Join(ctx context.Context) error {
	ticker := time.NewTicker(q.joinInterval)
	defer ticker.Stop()

	for {
		if q.stopped() || q.Empty() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.stopCh:
			return nil
		case <-ticker.C:
		}
	}
}

// Close raises the stop signal and waits for the sync loop to exit. It is
// safe to call multiple times. Close does not close the underlying
// dispatcher; the caller that created it owns it.
func (q *Queue) Close() error {
	q.stop()
	q.wake()
	<-q.loopDone
	return nil
}

// CancelByTaskID forwards a best-effort cancellation request to the
// dispatcher under the shared lock.
func (q *Queue) CancelByTaskID(taskID int) error {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()
	return q.dispatcher.CancelByTaskID(taskID)
}

// Stats returns the dispatcher's statistics under the shared lock.
func (q *Queue) Stats() dispatcher.Stats {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()
	return q.dispatcher.Stats()
}

// Hungry reports, under the shared lock, whether the dispatcher could put
// more tasks to work immediately.
func (q *Queue) Hungry() bool {
	q.queueLock.Lock()
	defer q.queueLock.Unlock()
	return q.dispatcher.Hungry()
}

func (q *Queue) stop() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
}

func (q *Queue) stopped() bool {
	select {
	case <-q.stopCh:
		return true
	default:
		return false
	}
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}
