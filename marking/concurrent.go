// ABOUTME: Coordinator for the background concurrent marking task
// ABOUTME: Starts the task, runs the pop-visit loop and hands completion back to the controller

package marking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/prateek/heapmark/heap"
)

// Config controls the concurrent marking subsystem
type Config struct {
	Enabled bool         // When false every coordinator operation is a no-op
	Trace   bool         // Log time and bytes marked after each run
	Logger  *slog.Logger // Diagnostics sink; slog.Default() when nil
}

// Stats describes the most recent run of the concurrent marker
type Stats struct {
	BytesMarked heap.Bytes    // Bytes of objects scanned
	Objects     int           // Objects popped from the shared lane
	Bailouts    int           // Objects deferred to the bailout lane
	Duration    time.Duration // Wall time of the run
	Canceled    bool          // Whether the run stopped on cancellation
}

// ConcurrentMarking owns one background marking task at a time
type ConcurrentMarking struct {
	heap     *heap.Heap
	worklist Worklist
	visitor  *Visitor
	platform Platform
	config   Config
	logger   *slog.Logger

	pending atomic.Bool
	done    *semaphore.Weighted
	task    atomic.Pointer[Task]

	mu    sync.Mutex
	stats Stats
}

// NewConcurrentMarking creates a coordinator over h that pops from w
func NewConcurrentMarking(h *heap.Heap, w Worklist, b Bitmap, p Platform, cfg Config) *ConcurrentMarking {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConcurrentMarking{
		heap:     h,
		worklist: w,
		visitor:  NewVisitor(h, b, w),
		platform: p,
		config:   cfg,
		logger:   logger,
		done:     semaphore.NewWeighted(1),
	}
}

// StartTask dispatches the background marking task
func (c *ConcurrentMarking) StartTask() {
	if !c.config.Enabled {
		return
	}
	if !c.done.TryAcquire(1) {
		panic("marking: StartTask while a task is pending")
	}
	c.pending.Store(true)
	t := NewTask(func(t *Task) {
		defer c.done.Release(1)
		c.run(t)
	})
	c.task.Store(t)
	c.platform.CallOnBackgroundThread(t)
}

// WaitForTaskToComplete blocks until the dispatched task has signaled
func (c *ConcurrentMarking) WaitForTaskToComplete() {
	if !c.config.Enabled {
		return
	}
	// Acquire cannot fail with a background context.
	_ = c.done.Acquire(context.Background(), 1)
	c.done.Release(1)
	c.task.Store(nil)
	c.pending.Store(false)
}

// EnsureTaskCompleted waits for the task only if one is dispatched
func (c *ConcurrentMarking) EnsureTaskCompleted() {
	if c.IsTaskPending() {
		c.WaitForTaskToComplete()
	}
}

// IsTaskPending reports whether a task was dispatched and not yet waited for
func (c *ConcurrentMarking) IsTaskPending() bool {
	return c.pending.Load()
}

// Cancel asks the dispatched task, if any, to stop at its next iteration.
// The controller must still wait for it.
func (c *ConcurrentMarking) Cancel() {
	if t := c.task.Load(); t != nil {
		t.Cancel()
	}
}

// Stats returns the statistics of the last completed run
func (c *ConcurrentMarking) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run drains the shared lane on the calling goroutine. It uses the same
// visitor as the background task, so it panics while a task is pending.
func (c *ConcurrentMarking) Run() {
	if c.IsTaskPending() {
		panic("marking: Run while a task is pending")
	}
	c.run(nil)
}

func (c *ConcurrentMarking) run(t *Task) {
	start := time.Now()
	var stats Stats
	objects, bailouts := c.visitor.Objects(), c.visitor.Bailouts()
	relocation := c.heap.RelocationLock()
	region := c.heap.AllocationRegion()
	for {
		if t != nil && t.IsCanceled() {
			stats.Canceled = true
			break
		}
		if !c.step(relocation, region, &stats) {
			break
		}
	}
	stats.Duration = time.Since(start)
	stats.Objects += c.visitor.Objects() - objects
	stats.Bailouts += c.visitor.Bailouts() - bailouts

	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()

	if c.config.Trace {
		c.logger.Info("concurrently marked",
			"kb", stats.BytesMarked.KB(),
			"ms", float64(stats.Duration.Microseconds())/1000,
			"objects", stats.Objects,
			"bailouts", stats.Bailouts,
			"canceled", stats.Canceled)
	}
}

// step pops and processes one object under the relocation lock. It returns
// false once the shared lane is empty.
func (c *ConcurrentMarking) step(relocation sync.Locker, region *heap.AddressRange, stats *Stats) bool {
	relocation.Lock()
	defer relocation.Unlock()
	obj, ok := c.worklist.Pop(LaneShared)
	if !ok {
		return false
	}
	if region.Contains(obj.Address()) {
		// Objects in the allocation region may still be initializing.
		c.worklist.Push(obj, LaneBailout)
		stats.Objects++
		stats.Bailouts++
		return true
	}
	d := obj.Descriptor()
	stats.BytesMarked += c.visitor.Visit(d, obj)
	return true
}
