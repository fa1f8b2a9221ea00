package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-woz/cctools/workqueue/types"
)

// echoExecutor completes every task successfully with its tag as output.
func echoExecutor(task *types.Task) *types.Completion {
	return &types.Completion{
		Result: types.ResultSuccess,
		Output: []byte(task.Tag),
	}
}

// gatedExecutor blocks tasks whose command is "gate" until the gate channel
// is closed, then behaves like echoExecutor.
func gatedExecutor(gate <-chan struct{}) Executor {
	return func(task *types.Task) *types.Completion {
		if task.Command == "gate" {
			<-gate
		}
		return echoExecutor(task)
	}
}

func newTestDispatcher(t *testing.T, opts LocalOptions) *LocalDispatcher {
	d, err := NewLocalDispatcher(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestLocalDispatcherRunsTask(t *testing.T) {
	d := newTestDispatcher(t, LocalOptions{Executor: echoExecutor})

	task := types.NewTask("anything")
	task.SpecifyTag("the-tag")

	taskID, err := d.Submit(task)
	require.NoError(t, err)
	require.Equal(t, 1, taskID)
	require.False(t, d.Empty())

	c, err := d.Wait(5 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, taskID, c.TaskID)
	require.Equal(t, types.ResultSuccess, c.Result)
	require.Equal(t, []byte("the-tag"), c.Output)
	require.True(t, d.Empty())
}

func TestWaitTimesOutWhenIdle(t *testing.T) {
	d := newTestDispatcher(t, LocalOptions{Executor: echoExecutor})

	c, err := d.Wait(50 * time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, c)
}

// TestPriorityOrder occupies the single worker with a gated task, then
// submits a low and a high priority task: the high priority one must be
// dispatched first once the worker frees up.
func TestPriorityOrder(t *testing.T) {
	gate := make(chan struct{})
	d := newTestDispatcher(t, LocalOptions{
		NumWorkers: 1,
		Executor:   gatedExecutor(gate),
	})

	gateTask := types.NewTask("gate")
	gateTask.SpecifyTag("gate")
	_, err := d.Submit(gateTask)
	require.NoError(t, err)

	// Make sure the worker is occupied before the contenders arrive.
	require.Eventually(t, func() bool {
		return d.Stats().WorkersBusy == 1
	}, 5*time.Second, 5*time.Millisecond)

	low := types.NewTask("low")
	low.SpecifyTag("low")
	low.SpecifyPriority(1)
	_, err = d.Submit(low)
	require.NoError(t, err)

	high := types.NewTask("high")
	high.SpecifyTag("high")
	high.SpecifyPriority(10)
	_, err = d.Submit(high)
	require.NoError(t, err)

	close(gate)

	var tags []string
	for i := 0; i < 3; i++ {
		c, err := d.Wait(5 * time.Second)
		require.NoError(t, err)
		require.NotNil(t, c)
		tags = append(tags, string(c.Output))
	}
	require.Equal(t, []string{"gate", "high", "low"}, tags)
}

// TestCancelPendingTask cancels a task before any worker picks it up: it must
// never run and never produce a completion.
func TestCancelPendingTask(t *testing.T) {
	gate := make(chan struct{})
	d := newTestDispatcher(t, LocalOptions{
		NumWorkers: 1,
		Executor:   gatedExecutor(gate),
	})

	gateTask := types.NewTask("gate")
	gateTask.SpecifyTag("gate")
	_, err := d.Submit(gateTask)
	require.NoError(t, err)

	victim := types.NewTask("victim")
	victim.SpecifyTag("victim")
	victimID, err := d.Submit(victim)
	require.NoError(t, err)

	require.NoError(t, d.CancelByTaskID(victimID))
	close(gate)

	c, err := d.Wait(5 * time.Second)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, []byte("gate"), c.Output)

	c, err = d.Wait(100 * time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, c)
	require.True(t, d.Empty())
	require.Equal(t, 1, d.Stats().TasksCancelled)
}

// TestCancelRunningTask cancels a task mid-run: the completion is dropped
// when the worker finishes.
func TestCancelRunningTask(t *testing.T) {
	gate := make(chan struct{})
	d := newTestDispatcher(t, LocalOptions{
		NumWorkers: 1,
		Executor:   gatedExecutor(gate),
	})

	gateTask := types.NewTask("gate")
	gateTask.SpecifyTag("gate")
	gateID, err := d.Submit(gateTask)
	require.NoError(t, err)

	// Wait for the worker to pick the task up.
	require.Eventually(t, func() bool {
		return d.Stats().WorkersBusy == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, d.CancelByTaskID(gateID))
	close(gate)

	c, err := d.Wait(100 * time.Millisecond)
	require.NoError(t, err)
	require.Nil(t, c)

	require.Eventually(t, d.Empty, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 1, d.Stats().TasksCancelled)
}

func TestCancelUnknownTaskIsBestEffort(t *testing.T) {
	d := newTestDispatcher(t, LocalOptions{Executor: echoExecutor})
	require.NoError(t, d.CancelByTaskID(12345))
}

func TestStatsCounters(t *testing.T) {
	failing := func(task *types.Task) *types.Completion {
		if task.Command == "fail" {
			return &types.Completion{Result: types.ResultSignal}
		}
		return echoExecutor(task)
	}
	d := newTestDispatcher(t, LocalOptions{NumWorkers: 2, Executor: failing})

	_, err := d.Submit(types.NewTask("ok"))
	require.NoError(t, err)
	_, err = d.Submit(types.NewTask("fail"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c, err := d.Wait(5 * time.Second)
		require.NoError(t, err)
		require.NotNil(t, c)
	}

	stats := d.Stats()
	require.Equal(t, 2, stats.TasksSubmitted)
	require.Equal(t, 1, stats.TasksDone)
	require.Equal(t, 1, stats.TasksFailed)
	require.Equal(t, 0, stats.WorkersBusy)
	require.GreaterOrEqual(t, stats.RunTimeP95, float64(0))
}

func TestHungry(t *testing.T) {
	gate := make(chan struct{})
	d := newTestDispatcher(t, LocalOptions{
		NumWorkers: 1,
		Executor:   gatedExecutor(gate),
	})

	require.True(t, d.Hungry())

	gateTask := types.NewTask("gate")
	_, err := d.Submit(gateTask)
	require.NoError(t, err)
	blocked := types.NewTask("blocked")
	_, err = d.Submit(blocked)
	require.NoError(t, err)

	require.False(t, d.Hungry())
	close(gate)

	for i := 0; i < 2; i++ {
		c, err := d.Wait(5 * time.Second)
		require.NoError(t, err)
		require.NotNil(t, c)
	}
	require.True(t, d.Hungry())
}

func TestSubmitAfterCloseFails(t *testing.T) {
	d, err := NewLocalDispatcher(LocalOptions{Executor: echoExecutor})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	_, err = d.Submit(types.NewTask("nope"))
	require.Error(t, err)
}

func TestShellExecutorExitStatus(t *testing.T) {
	c := ShellExecutor(types.NewTask("exit 7"))
	require.Equal(t, types.ResultSuccess, c.Result)
	require.Equal(t, 7, c.ExitStatus)
}

func TestShellExecutorCapturesOutput(t *testing.T) {
	c := ShellExecutor(types.NewTask("echo hello"))
	require.Equal(t, types.ResultSuccess, c.Result)
	require.Equal(t, 0, c.ExitStatus)
	require.Equal(t, "hello\n", string(c.Output))
}

func TestShellExecutorMissingInput(t *testing.T) {
	task := types.NewTask("cat input.txt")
	task.SpecifyInputFile("/nonexistent/input.txt", "input.txt", false)

	c := ShellExecutor(task)
	require.Equal(t, types.ResultInputMissing, c.Result)
}

func TestShellExecutorMissingOutput(t *testing.T) {
	task := types.NewTask("true")
	task.SpecifyOutputFile("/nonexistent/output.txt", "output.txt", false)

	c := ShellExecutor(task)
	require.Equal(t, types.ResultOutputMissing, c.Result)
}

func TestShellExecutorWallTimeBound(t *testing.T) {
	task := types.NewTask("sleep 10")
	task.SpecifyMaxRunTime(100 * time.Millisecond)

	c := ShellExecutor(task)
	require.Equal(t, types.ResultMaxWallTime, c.Result)
}
