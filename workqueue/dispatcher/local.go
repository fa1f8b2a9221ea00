package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/google/btree"

	"github.com/j-woz/cctools/workqueue/types"
)

// DefaultNumWorkers is the size of a local dispatcher's worker pool when the
// options don't specify one.
const DefaultNumWorkers = 4

// Executor runs a single task to completion and reports the outcome. The
// returned completion's TaskID is filled in by the dispatcher.
type Executor func(task *types.Task) *types.Completion

// LocalOptions contains the options for a local dispatcher.
type LocalOptions struct {
	// NumWorkers is the size of the worker pool. Defaults to
	// DefaultNumWorkers.
	NumWorkers int

	// Executor runs each task. Defaults to ShellExecutor.
	Executor Executor
}

// LocalDispatcher is an in-memory Dispatcher that runs tasks on a fixed pool
// of local worker goroutines. It is primarily used for tests, benchmarking,
// and single-host runs.
//
// Pending tasks are dispatched highest priority first; ties break in
// submission order.
type LocalDispatcher struct {
	mu   sync.Mutex
	cond *sync.Cond

	pending   *btree.BTreeG[pendingTask]
	running   map[int]struct{}
	cancelled map[int]struct{}
	completed []*types.Completion
	readyCh   chan struct{}

	nextTaskID int
	numWorkers int
	closed     bool

	stats    Stats
	runTimes *ddsketch.DDSketch

	workersWG sync.WaitGroup
}

type pendingTask struct {
	taskID int
	task   *types.Task
}

var _ Dispatcher = (*LocalDispatcher)(nil)

// NewLocalDispatcher creates a local dispatcher and starts its worker pool.
func NewLocalDispatcher(opts LocalOptions) (*LocalDispatcher, error) {
	numWorkers := opts.NumWorkers
	if numWorkers <= 0 {
		numWorkers = DefaultNumWorkers
	}
	executor := opts.Executor
	if executor == nil {
		executor = ShellExecutor
	}

	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil, fmt.Errorf("error creating run time sketch: %w", err)
	}

	d := &LocalDispatcher{
		pending: btree.NewG(16, func(a, b pendingTask) bool {
			if a.task.Priority != b.task.Priority {
				return a.task.Priority > b.task.Priority
			}
			return a.taskID < b.taskID
		}),
		running:    make(map[int]struct{}),
		cancelled:  make(map[int]struct{}),
		readyCh:    make(chan struct{}, 1),
		nextTaskID: 1,
		numWorkers: numWorkers,
		runTimes:   sketch,
	}
	d.cond = sync.NewCond(&d.mu)

	for i := 0; i < numWorkers; i++ {
		d.workersWG.Add(1)
		go d.worker(executor)
	}

	return d, nil
}

func (d *LocalDispatcher) Submit(task *types.Task) (int, error) {
	if task == nil {
		return 0, errors.New("cannot submit a nil task")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, errors.New("dispatcher is closed")
	}

	taskID := d.nextTaskID
	d.nextTaskID++
	d.pending.ReplaceOrInsert(pendingTask{taskID: taskID, task: task})
	d.stats.TasksSubmitted++
	d.cond.Signal()
	return taskID, nil
}

func (d *LocalDispatcher) Wait(timeout time.Duration) (*types.Completion, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		d.mu.Lock()
		if len(d.completed) > 0 {
			c := d.completed[0]
			d.completed[0] = nil
			d.completed = d.completed[1:]
			d.mu.Unlock()
			return c, nil
		}
		closed := d.closed
		d.mu.Unlock()

		if closed {
			return nil, errors.New("dispatcher is closed")
		}

		select {
		case <-d.readyCh:
		case <-deadline.C:
			return nil, nil
		}
	}
}

func (d *LocalDispatcher) Empty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len() == 0 && len(d.running) == 0 && len(d.completed) == 0
}

func (d *LocalDispatcher) CancelByTaskID(taskID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.removePendingLocked(taskID) {
		d.stats.TasksCancelled++
		return nil
	}
	if _, ok := d.running[taskID]; ok {
		// Mark it so the worker drops the completion when the task finishes.
		d.cancelled[taskID] = struct{}{}
		return nil
	}

	// Unknown or already collected. Cancellation is best effort.
	return nil
}

func (d *LocalDispatcher) Hungry() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Len() == 0 && d.stats.WorkersBusy < d.numWorkers
}

func (d *LocalDispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	if v, err := d.runTimes.GetValueAtQuantile(0.5); err == nil {
		s.RunTimeP50 = v
	}
	if v, err := d.runTimes.GetValueAtQuantile(0.95); err == nil {
		s.RunTimeP95 = v
	}
	if v, err := d.runTimes.GetValueAtQuantile(0.99); err == nil {
		s.RunTimeP99 = v
	}
	return s
}

func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	d.workersWG.Wait()
	return nil
}

func (d *LocalDispatcher) worker(executor Executor) {
	defer d.workersWG.Done()

	for {
		d.mu.Lock()
		for d.pending.Len() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}

		// The btree's less function sorts highest priority first, so the
		// "min" item is the next task to run.
		pt, _ := d.pending.DeleteMin()
		d.running[pt.taskID] = struct{}{}
		d.stats.WorkersBusy++
		d.mu.Unlock()

		start := time.Now()
		completion := executor(pt.task)
		elapsed := time.Since(start)
		completion.TaskID = pt.taskID

		d.mu.Lock()
		delete(d.running, pt.taskID)
		d.stats.WorkersBusy--

		if _, ok := d.cancelled[pt.taskID]; ok {
			// Cancelled while running: the caller no longer expects a
			// completion for this identifier.
			delete(d.cancelled, pt.taskID)
			d.stats.TasksCancelled++
			d.mu.Unlock()
			continue
		}

		_ = d.runTimes.Add(elapsed.Seconds())
		if completion.Result == types.ResultSuccess && completion.ExitStatus == 0 {
			d.stats.TasksDone++
		} else {
			d.stats.TasksFailed++
		}
		d.completed = append(d.completed, completion)
		d.mu.Unlock()

		select {
		case d.readyCh <- struct{}{}:
		default:
		}
	}
}

func (d *LocalDispatcher) removePendingLocked(taskID int) bool {
	var (
		match pendingTask
		found bool
	)
	d.pending.Ascend(func(pt pendingTask) bool {
		if pt.taskID == taskID {
			match, found = pt, true
			return false
		}
		return true
	})
	if found {
		d.pending.Delete(match)
	}
	return found
}
