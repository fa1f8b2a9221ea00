package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/j-woz/cctools/workqueue/types"
)

// ShellExecutor is the default Executor: it runs the task's command through
// the shell on the local host, enforcing the task's declared input/output
// files and wall time bound. Stdout and stderr are captured together as the
// task's output.
func ShellExecutor(task *types.Task) *types.Completion {
	for _, f := range task.InputFiles {
		if _, err := os.Stat(f.Local); err != nil {
			return &types.Completion{Result: types.ResultInputMissing}
		}
	}

	ctx := context.Background()
	cancel := func() {}
	if task.MaxRunTime > 0 {
		ctx, cancel = context.WithTimeout(ctx, task.MaxRunTime)
	}
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", task.Command)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		return &types.Completion{
			Result: types.ResultMaxWallTime,
			Output: output.Bytes(),
		}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The command never ran (e.g. the shell itself is missing).
			return &types.Completion{
				Result:     types.ResultUnknown,
				ExitStatus: -1,
				Output:     output.Bytes(),
			}
		}

		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return &types.Completion{
				Result:     types.ResultSignal,
				ExitStatus: exitErr.ExitCode(),
				Output:     output.Bytes(),
			}
		}

		// The command ran to completion with a nonzero exit status. That is
		// still a "success" at the dispatch level; the exit status tells the
		// rest of the story.
		return &types.Completion{
			Result:     types.ResultSuccess,
			ExitStatus: exitErr.ExitCode(),
			Output:     output.Bytes(),
		}
	}

	for _, f := range task.OutputFiles {
		if _, err := os.Stat(f.Local); err != nil {
			return &types.Completion{
				Result: types.ResultOutputMissing,
				Output: output.Bytes(),
			}
		}
	}

	return &types.Completion{
		Result: types.ResultSuccess,
		Output: output.Bytes(),
	}
}
