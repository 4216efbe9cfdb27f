// Package scheduler implements the update scheduler (C10): named periodic
// tasks with overlap prevention and stats. Grounded on an RCON connection
// manager's ticker loop (time.NewTicker plus time.Since-gated periodic
// work), generalized from a single inline health/info poll into a reusable
// named-task abstraction.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opsquad/supervisor/internal/errs"
)

// TaskFunc is the work a scheduled task performs on each tick.
type TaskFunc func(ctx context.Context) error

// Stats is the running tally of a task's execution history.
type Stats struct {
	Invocations   int64
	Failures      int64
	Overlapped    int64
	LastDurationMs int64
	LastError     error
}

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	enabled  atomic.Bool
	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}

	mu    sync.Mutex
	stats Stats
}

// Scheduler owns a set of named periodic tasks.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task
	ctx   context.Context
}

// New constructs a Scheduler. Tasks registered on it run until Stop or
// StopTask is called, or until the given ctx is done.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{tasks: make(map[string]*task), ctx: ctx}
}

// Register adds a named task and starts its ticker immediately. The first
// invocation of fn happens after interval has elapsed, never immediately on
// registration. Registering a name that already exists replaces the prior
// task definition but errors if one is still running.
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[name]; ok && existing.running.Load() {
		return errs.New(errs.KindInvalidState, "scheduler: task already registered and running", "name", name)
	} else if ok {
		existing.cancel()
	}

	taskCtx, cancel := context.WithCancel(s.ctx)
	t := &task{name: name, interval: interval, fn: fn, cancel: cancel, done: make(chan struct{})}
	t.enabled.Store(true)
	s.tasks[name] = t

	go t.run(taskCtx)

	return nil
}

func (t *task) run(ctx context.Context) {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.enabled.Load() {
				continue
			}
			if !t.running.CompareAndSwap(false, true) {
				t.mu.Lock()
				t.stats.Overlapped++
				t.mu.Unlock()
				continue
			}
			go t.execute(ctx)
		}
	}
}

func (t *task) execute(ctx context.Context) {
	defer t.running.Store(false)

	start := time.Now()
	err := t.fn(ctx)
	elapsed := time.Since(start)

	t.mu.Lock()
	t.stats.Invocations++
	t.stats.LastDurationMs = elapsed.Milliseconds()
	t.stats.LastError = err
	if err != nil {
		t.stats.Failures++
	}
	t.mu.Unlock()
}

// SetEnabled toggles whether a registered task's ticks result in execution.
// Disabling a task does not stop its ticker; it simply skips each tick until
// re-enabled.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return errs.New(errs.KindInvalidState, "scheduler: unknown task", "name", name)
	}
	t.enabled.Store(enabled)
	return nil
}

// Stats returns a snapshot of a task's invocation history.
func (s *Scheduler) Stats(name string) (Stats, bool) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats, true
}

// StopTask cancels a single task immediately. It does not wait for an
// in-flight execution to finish; the execution completes on its own but its
// result is no longer reflected anywhere meaningful once stopped.
func (s *Scheduler) StopTask(name string) {
	s.mu.Lock()
	t, ok := s.tasks[name]
	if ok {
		delete(s.tasks, name)
	}
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// StopAll cancels every task's ticker immediately. As with StopTask, in-flight
// executions are not awaited.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.tasks = make(map[string]*task)
	s.mu.Unlock()

	for _, t := range tasks {
		t.cancel()
	}
}

// DefaultTaskSpec names one of the canonical polling tasks and its interval.
type DefaultTaskSpec struct {
	Name     string
	Interval time.Duration
}

// DefaultTaskSpecs returns the canonical task/interval pairs the orchestrator
// wires execute functions onto: playerList and squadList every 30s,
// layerInfo every 60s, adminList every 5 minutes.
func DefaultTaskSpecs() []DefaultTaskSpec {
	return []DefaultTaskSpec{
		{Name: "playerList", Interval: 30 * time.Second},
		{Name: "squadList", Interval: 30 * time.Second},
		{Name: "layerInfo", Interval: 60 * time.Second},
		{Name: "adminList", Interval: 5 * time.Minute},
	}
}
