// ABOUTME: Background task abstraction used to run the concurrent marker
// ABOUTME: Tasks are plain values with a cooperative cancel flag, run on a goroutine pool

package marking

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task is a cancelable unit of background work
type Task struct {
	fn       func(*Task)
	canceled atomic.Bool
}

// NewTask wraps fn into a task. fn should poll IsCanceled at safe points.
func NewTask(fn func(*Task)) *Task {
	return &Task{fn: fn}
}

// Run executes the task on the calling goroutine
func (t *Task) Run() {
	t.fn(t)
}

// Cancel asks the task to stop at its next safe point
func (t *Task) Cancel() {
	t.canceled.Store(true)
}

// IsCanceled reports whether Cancel has been called
func (t *Task) IsCanceled() bool {
	return t.canceled.Load()
}

// Platform runs tasks on background goroutines
type Platform interface {
	// CallOnBackgroundThread schedules t and returns without waiting for it
	CallOnBackgroundThread(t *Task)
}

// PoolPlatform runs tasks on at most a fixed number of goroutines. The
// group only bounds concurrency: tasks signal their own completion, and
// Shutdown waits on running rather than on the group. One coordinator keeps
// at most one task in flight, so a limit above 1 only matters when several
// coordinators share a pool.
type PoolPlatform struct {
	mu      sync.Mutex
	group   errgroup.Group
	running sync.WaitGroup
	pending []*Task
	closed  bool
}

// NewPoolPlatform creates a pool running up to workers tasks at once
func NewPoolPlatform(workers int) *PoolPlatform {
	if workers < 1 {
		workers = 1
	}
	p := &PoolPlatform{}
	p.group.SetLimit(workers)
	return p
}

// CallOnBackgroundThread implements Platform. Tasks submitted after Shutdown
// are canceled before they run so their completion logic still executes.
func (p *PoolPlatform) CallOnBackgroundThread(t *Task) {
	p.mu.Lock()
	if p.closed {
		t.Cancel()
	} else {
		p.pending = append(p.pending, t)
	}
	p.running.Add(1)
	p.mu.Unlock()

	// A full pool would block the caller, so queue the submission instead.
	go p.group.Go(func() error {
		defer p.running.Done()
		defer p.forget(t)
		t.Run()
		return nil
	})
}

// Shutdown cancels every task that has not finished and waits for all of
// them to return
func (p *PoolPlatform) Shutdown() {
	p.mu.Lock()
	p.closed = true
	for _, t := range p.pending {
		t.Cancel()
	}
	p.mu.Unlock()
	p.running.Wait()
}

func (p *PoolPlatform) forget(t *Task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, q := range p.pending {
		if q == t {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return
		}
	}
}

// InlinePlatform runs each task synchronously on the submitting goroutine
type InlinePlatform struct{}

// CallOnBackgroundThread implements Platform
func (InlinePlatform) CallOnBackgroundThread(t *Task) {
	t.Run()
}
