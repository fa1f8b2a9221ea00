package workqueue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/j-woz/cctools/workqueue/types"
)

func TestTaskErrorRendersTaxonomy(t *testing.T) {
	for _, tc := range []struct {
		result   types.Result
		expected string
	}{
		{types.ResultInputMissing, "input file is missing"},
		{types.ResultOutputMissing, "output file is missing"},
		{types.ResultStdoutMissing, "stdout is missing"},
		{types.ResultSignal, "signal received"},
		{types.ResultResourceExhaustion, "resources exhausted"},
		{types.ResultTaskTimeout, "task timed out before completion"},
		{types.ResultUnknown, "unknown error"},
		{types.ResultForsaken, "internal error"},
		{types.ResultMaxRetries, "maximum number of retries reached"},
		{types.ResultMaxWallTime, "task did not finish before deadline"},
		{types.ResultDiskAllocFull, "disk allocation for the task is full"},
	} {
		err := NewTaskError(&types.Completion{Result: tc.result})
		require.Equal(t, tc.expected, err.Error())
	}
}

// TestTaskErrorExitStatus verifies the "ran to completion but exited nonzero"
// rendering: the result code says success but the process did not.
func TestTaskErrorExitStatus(t *testing.T) {
	err := NewTaskError(&types.Completion{
		Result:     types.ResultSuccess,
		ExitStatus: 3,
	})
	require.Equal(t, "execution completed with exit status 3", err.Error())

	// A non-success code wins over the exit status.
	err = NewTaskError(&types.Completion{
		Result:     types.ResultSignal,
		ExitStatus: 137,
	})
	require.Equal(t, "signal received", err.Error())
}

func TestTaskErrorUnrecognizedCode(t *testing.T) {
	err := NewTaskError(&types.Completion{Result: types.Result(4096)})
	require.Equal(t, "unrecognized result code 4096", err.Error())
}

func TestTaskErrorIs(t *testing.T) {
	err := NewTaskError(&types.Completion{Result: types.ResultSignal})
	require.ErrorIs(t, err, TaskError{})
	require.NotErrorIs(t, err, BridgeError{})
}

func TestBridgeErrorVerbatim(t *testing.T) {
	cause := errors.New("dispatcher port went away")
	err := NewBridgeError(cause)
	require.Equal(t, "dispatcher port went away", err.Error())
	require.ErrorIs(t, err, BridgeError{})
	require.NotErrorIs(t, err, TaskError{})
}
