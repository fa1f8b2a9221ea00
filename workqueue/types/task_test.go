package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewTaskAssignsUniqueTag(t *testing.T) {
	a := NewTask("echo a")
	b := NewTask("echo b")

	_, err := uuid.Parse(a.Tag)
	require.NoError(t, err)
	require.NotEqual(t, a.Tag, b.Tag)
}

func TestSpecifyHelpers(t *testing.T) {
	task := NewTask("./simulate in.dat out.dat")
	task.SpecifyTag("sim-1")
	task.SpecifyPriority(5)
	task.SpecifyCores(4)
	task.SpecifyMemory(2048)
	task.SpecifyDisk(512)
	task.SpecifyMaxRunTime(time.Minute)
	task.SpecifyInputFile("in.dat", "in.dat", true)
	task.SpecifyOutputFile("out.dat", "out.dat", false)

	require.Equal(t, "sim-1", task.Tag)
	require.Equal(t, 5, task.Priority)
	require.Equal(t, Resources{Cores: 4, MemoryMB: 2048, DiskMB: 512}, task.Resources)
	require.Equal(t, time.Minute, task.MaxRunTime)
	require.Equal(t, []FileSpec{{Local: "in.dat", Remote: "in.dat", Cache: true}}, task.InputFiles)
	require.Equal(t, []FileSpec{{Local: "out.dat", Remote: "out.dat", Cache: false}}, task.OutputFiles)
}

func TestResultString(t *testing.T) {
	require.Equal(t, "success", ResultSuccess.String())
	require.Equal(t, "resources exhausted", ResultResourceExhaustion.String())
	require.Equal(t, "unrecognized result code 3", Result(3).String())
}
