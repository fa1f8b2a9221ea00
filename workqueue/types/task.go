package types

import (
	"time"

	"github.com/google/uuid"
)

// Resources describes what a task requests from the dispatcher. Zero values
// mean "let the dispatcher decide".
type Resources struct {
	Cores    int
	MemoryMB int
	DiskMB   int
}

// FileSpec declares a file that must be staged in before a task runs, or
// staged out after it completes. Local is the path on the submitting side,
// Remote the name the command sees while running.
type FileSpec struct {
	Local  string
	Remote string
	// Cache marks the file as reusable across tasks so the dispatcher can
	// avoid transferring it repeatedly.
	Cache bool
}

// Task is the description of one unit of work: a command line plus the files
// and resources it needs. The bridge treats tasks as opaque; only the
// dispatcher interprets them.
type Task struct {
	Command  string
	Tag      string
	Priority int

	Resources Resources

	// MaxRunTime bounds the task's wall time. Zero means unbounded.
	MaxRunTime time.Duration

	InputFiles  []FileSpec
	OutputFiles []FileSpec
}

// NewTask creates a task that runs the provided command. The task is assigned
// a fresh unique tag which callers may override with SpecifyTag.
func NewTask(command string) *Task {
	return &Task{
		Command: command,
		Tag:     uuid.New().String(),
	}
}

// SpecifyTag overrides the task's tag with a caller-chosen label.
func (t *Task) SpecifyTag(tag string) {
	t.Tag = tag
}

// SpecifyPriority sets the task's priority. Higher values are dispatched
// first when the dispatcher honors priorities.
func (t *Task) SpecifyPriority(priority int) {
	t.Priority = priority
}

// SpecifyCores sets the number of cores the task requests.
func (t *Task) SpecifyCores(cores int) {
	t.Resources.Cores = cores
}

// SpecifyMemory sets the amount of memory (in MB) the task requests.
func (t *Task) SpecifyMemory(memoryMB int) {
	t.Resources.MemoryMB = memoryMB
}

// SpecifyDisk sets the amount of disk (in MB) the task requests.
func (t *Task) SpecifyDisk(diskMB int) {
	t.Resources.DiskMB = diskMB
}

// SpecifyMaxRunTime bounds the task's wall time.
func (t *Task) SpecifyMaxRunTime(d time.Duration) {
	t.MaxRunTime = d
}

// SpecifyInputFile declares a file the task needs before it can run.
func (t *Task) SpecifyInputFile(local, remote string, cache bool) {
	t.InputFiles = append(t.InputFiles, FileSpec{Local: local, Remote: remote, Cache: cache})
}

// SpecifyOutputFile declares a file the task is expected to produce.
func (t *Task) SpecifyOutputFile(local, remote string, cache bool) {
	t.OutputFiles = append(t.OutputFiles, FileSpec{Local: local, Remote: remote, Cache: cache})
}
