package types

import "fmt"

// Result is the dispatcher's verdict on a collected task. The values form a
// bitmask and mirror the result codes reported by the underlying work queue.
type Result int

const (
	ResultSuccess            Result = 0
	ResultInputMissing       Result = 1
	ResultOutputMissing      Result = 2
	ResultStdoutMissing      Result = 4
	ResultSignal             Result = 8
	ResultResourceExhaustion Result = 16
	ResultTaskTimeout        Result = 32
	ResultUnknown            Result = 64
	ResultForsaken           Result = 128
	ResultMaxRetries         Result = 256
	ResultMaxWallTime        Result = 512
	ResultDiskAllocFull      Result = 1024
)

var resultDescriptions = map[Result]string{
	ResultSuccess:            "success",
	ResultInputMissing:       "input file is missing",
	ResultOutputMissing:      "output file is missing",
	ResultStdoutMissing:      "stdout is missing",
	ResultSignal:             "signal received",
	ResultResourceExhaustion: "resources exhausted",
	ResultTaskTimeout:        "task timed out before completion",
	ResultUnknown:            "unknown error",
	ResultForsaken:           "internal error",
	ResultMaxRetries:         "maximum number of retries reached",
	ResultMaxWallTime:        "task did not finish before deadline",
	ResultDiskAllocFull:      "disk allocation for the task is full",
}

// String returns the human-readable description for the result code.
func (r Result) String() string {
	if msg, ok := resultDescriptions[r]; ok {
		return msg
	}
	return fmt.Sprintf("unrecognized result code %d", int(r))
}
