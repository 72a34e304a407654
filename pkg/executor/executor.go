// Package executor runs fire-and-forget tasks on a fixed number of worker
// slots.
//
// Every task runs in its own goroutine, but only as many tasks as there are
// workers execute task code at once. A task gives its slot back while it is
// blocked (see Park), so a single worker can multiplex many connections that
// spend most of their life waiting on the network.
//
// Shutdown is two-phase: Drain first refuses new external submissions, then
// waits for the in-flight count (which includes tasks spawned by other tasks
// during the drain) to reach zero.
package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/pkg/metrics"
)

// DefaultNamePrefix labels worker slots as keystone-worker-0, keystone-worker-1, ...
const DefaultNamePrefix = "keystone-worker-"

// ErrClosed is returned by Spawn once Drain has started.
var ErrClosed = errors.New("executor: closed to new tasks")

// Task is a unit of work. The context carries the executor handle used by
// Spawn, Park and WorkerName. A returned error is logged, never propagated.
type Task func(ctx context.Context) error

// Config configures an Executor.
type Config struct {
	// Workers is the number of worker slots. Zero means runtime.NumCPU().
	Workers int

	// NamePrefix is prepended to the worker index in labels and logs.
	NamePrefix string

	// Metrics receives task lifecycle events. Optional.
	Metrics metrics.ExecutorMetrics
}

// Executor is a bounded task runner. Create it with New and share it by pointer.
type Executor struct {
	prefix  string
	names   []string
	slots   chan int
	metrics metrics.ExecutorMetrics

	mu     sync.RWMutex
	closed bool

	inflight atomic.Int64
	spawned  atomic.Uint64
	idle     chan struct{}
	idleOnce sync.Once
}

// New creates an executor with cfg.Workers slots.
func New(cfg Config) *Executor {
	n := cfg.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	prefix := cfg.NamePrefix
	if prefix == "" {
		prefix = DefaultNamePrefix
	}

	e := &Executor{
		prefix:  prefix,
		names:   make([]string, n),
		slots:   make(chan int, n),
		metrics: cfg.Metrics,
		idle:    make(chan struct{}),
	}
	for i := range n {
		e.names[i] = prefix + strconv.Itoa(i)
		e.slots <- i
	}

	logger.Debug("Executor created", logger.KeyWorkers, n, "prefix", prefix)
	return e
}

// Workers returns the number of worker slots.
func (e *Executor) Workers() int {
	return len(e.names)
}

// Inflight returns the number of submitted tasks that have not finished.
func (e *Executor) Inflight() int64 {
	return e.inflight.Load()
}

// Spawn submits task from outside the executor. It never blocks on the
// task itself and returns ErrClosed after Drain has started.
func (e *Executor) Spawn(task Task) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	e.start(task)
	return nil
}

// spawnNested submits a task from inside a running task. Nested submission
// stays open while draining: the parent is in flight, so the counter cannot
// have reached zero yet.
func (e *Executor) spawnNested(task Task) {
	e.start(task)
}

func (e *Executor) start(task Task) {
	n := e.inflight.Add(1)
	id := e.spawned.Add(1)
	if e.metrics != nil {
		e.metrics.RecordTaskSpawned()
		e.metrics.SetInflightTasks(n)
	}
	go e.run(id, task)
}

// Drain closes the executor to external submissions and blocks until every
// in-flight task, including tasks spawned during the drain, has finished.
// Running tasks are not interrupted. If ctx ends first its error is returned
// and the tasks keep running.
func (e *Executor) Drain(ctx context.Context) error {
	e.mu.Lock()
	first := !e.closed
	e.closed = true
	e.mu.Unlock()

	if first {
		logger.Debug("Executor draining", logger.Inflight(e.inflight.Load()))
		if e.inflight.Load() == 0 {
			e.markIdle()
		}
	}

	select {
	case <-e.idle:
		logger.Debug("Executor drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor: drain interrupted with %d tasks in flight: %w", e.inflight.Load(), ctx.Err())
	}
}

func (e *Executor) markIdle() {
	e.idleOnce.Do(func() { close(e.idle) })
}

func (e *Executor) finish(panicked bool, err error, elapsed time.Duration) {
	n := e.inflight.Add(-1)
	if e.metrics != nil {
		e.metrics.RecordTaskCompleted(elapsed, err != nil, panicked)
		e.metrics.SetInflightTasks(n)
	}
	if n > 0 {
		return
	}
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed && e.inflight.Load() == 0 {
		e.markIdle()
	}
}

// run is the task boundary: it owns slot acquisition, labelling, and the
// capture of errors and panics.
func (e *Executor) run(id uint64, task Task) {
	ts := &taskState{exec: e, id: id}
	ctx := context.WithValue(context.Background(), taskKey{}, ts)

	start := time.Now()
	var (
		err      error
		panicked bool
	)

	ts.acquire(ctx)
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			err = fmt.Errorf("panic: %v", r)
			logger.Error("Panic in task",
				logger.KeyTaskID, id,
				logger.KeyWorker, ts.worker(),
				logger.KeyPanic, r,
				logger.KeyStack, string(debug.Stack()))
		} else if err != nil {
			logger.Warn("Task failed", logger.KeyTaskID, id, logger.KeyWorker, ts.worker(), logger.Err(err))
		}
		ts.release()
		e.finish(panicked, err, time.Since(start))
	}()

	err = task(ctx)
}

// taskState tracks which worker slot the running task holds.
type taskState struct {
	exec *Executor
	id   uint64
	slot int // -1 while parked
	mu   sync.Mutex
}

type taskKey struct{}

func (ts *taskState) acquire(ctx context.Context) {
	slot := <-ts.exec.slots
	ts.mu.Lock()
	ts.slot = slot
	ts.mu.Unlock()
	pprof.SetGoroutineLabels(pprof.WithLabels(ctx, pprof.Labels("worker", ts.exec.names[slot])))
}

// release returns the held slot, reporting false if none was held.
func (ts *taskState) release() bool {
	ts.mu.Lock()
	slot := ts.slot
	ts.slot = -1
	ts.mu.Unlock()
	if slot < 0 {
		return false
	}
	ts.exec.slots <- slot
	return true
}

func (ts *taskState) worker() string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.slot < 0 {
		return ""
	}
	return ts.exec.names[ts.slot]
}

func stateFrom(ctx context.Context) *taskState {
	if ctx == nil {
		return nil
	}
	ts, _ := ctx.Value(taskKey{}).(*taskState)
	return ts
}
