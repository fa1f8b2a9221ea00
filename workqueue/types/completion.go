package types

// Completion is what the dispatcher reports for one finished task: the result
// code, the process exit status, and whatever output the task declared.
type Completion struct {
	TaskID     int
	Result     Result
	ExitStatus int
	Output     []byte
}
