package metrics

import "time"

// ExecutorMetrics observes the task executor.
//
// Implementations must be safe for concurrent use. Pass nil to disable
// collection; callers check for nil before every call.
type ExecutorMetrics interface {
	// RecordTaskSpawned counts a task submission, nested or external.
	RecordTaskSpawned()

	// RecordTaskCompleted records a finished task. failed is true when the
	// task returned an error or panicked; panicked distinguishes the latter.
	RecordTaskCompleted(duration time.Duration, failed, panicked bool)

	// SetInflightTasks reports the current in-flight count.
	SetInflightTasks(n int64)
}
