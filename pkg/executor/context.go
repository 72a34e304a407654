package executor

import (
	"context"
	"errors"
)

// ErrNoExecutor is returned by Spawn when ctx was not produced by an Executor.
var ErrNoExecutor = errors.New("executor: context does not belong to a running task")

// FromContext returns the executor running the task that owns ctx.
func FromContext(ctx context.Context) (*Executor, bool) {
	ts := stateFrom(ctx)
	if ts == nil {
		return nil, false
	}
	return ts.exec, true
}

// Spawn submits task to the executor that runs the calling task. Unlike
// (*Executor).Spawn it is accepted while the executor drains.
func Spawn(ctx context.Context, task Task) error {
	ts := stateFrom(ctx)
	if ts == nil {
		return ErrNoExecutor
	}
	ts.exec.spawnNested(task)
	return nil
}

// Park releases the caller's worker slot for the duration of fn and
// reacquires one (not necessarily the same) before returning. Use it around
// anything that blocks on I/O or on another task. Park must be called from
// the task's own goroutine. Outside a task, or when already parked, fn simply
// runs.
func Park(ctx context.Context, fn func() error) error {
	ts := stateFrom(ctx)
	if ts == nil || !ts.release() {
		return fn()
	}
	defer ts.acquire(ctx)
	return fn()
}

// WorkerName returns the label of the worker slot the calling task holds,
// or "" when called outside a task or while parked.
func WorkerName(ctx context.Context) string {
	ts := stateFrom(ctx)
	if ts == nil {
		return ""
	}
	return ts.worker()
}
