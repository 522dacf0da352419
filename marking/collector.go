// ABOUTME: Drives one full marking cycle around the concurrent marker
// ABOUTME: Greys the roots, runs the background task and finishes both lanes on the controller

package marking

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prateek/heapmark/heap"
)

// CycleStats summarizes one marking cycle
type CycleStats struct {
	Roots           int           // Roots greyed at the start of the cycle
	Concurrent      Stats         // Work done by the background task
	FinishedBytes   heap.Bytes    // Bytes claimed by the controller while finishing
	BailoutsDrained int           // Bailout entries processed while finishing
	LiveObjects     int           // Black objects at the end of the cycle
	LiveBytes       heap.Bytes    // Size of all black objects
	Duration        time.Duration // Wall time of the whole cycle
}

// MarkRoots greys every root and pushes it to the shared lane
func MarkRoots(h *heap.Heap, b Bitmap, w Worklist) int {
	n := 0
	for _, a := range h.Roots() {
		obj := h.Lookup(a)
		if obj == nil {
			panic(fmt.Sprintf("marking: root %s is not a heap object", a))
		}
		if WhiteToGrey(b, obj) {
			w.Push(obj, LaneShared)
			n++
		}
	}
	return n
}

// Finish drains both lanes on the calling goroutine, scanning every kind
// fully. Bailout entries are always rescanned. It returns the bytes claimed
// and the number of bailout entries processed.
func Finish(h *heap.Heap, b Bitmap, w Worklist) (heap.Bytes, int) {
	v := NewVisitor(h, b, w)
	var bytes heap.Bytes
	drained := 0
	for {
		if obj, ok := w.Pop(LaneBailout); ok {
			bytes += v.VisitFully(obj, true)
			drained++
			continue
		}
		if obj, ok := w.Pop(LaneShared); ok {
			bytes += v.VisitFully(obj, false)
			continue
		}
		return bytes, drained
	}
}

// Collector runs marking cycles over one heap
type Collector struct {
	heap     *heap.Heap
	bitmap   ObjectBitmap
	worklist *Deque
	marking  *ConcurrentMarking
	logger   *slog.Logger
}

// NewCollector creates a collector whose background work runs on p
func NewCollector(h *heap.Heap, p Platform, cfg Config) *Collector {
	w := NewDeque()
	c := &Collector{
		heap:     h,
		worklist: w,
		logger:   cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.marking = NewConcurrentMarking(h, w, c.bitmap, p, cfg)
	return c
}

// Marking returns the collector's concurrent marking coordinator
func (c *Collector) Marking() *ConcurrentMarking {
	return c.marking
}

// Bitmap returns the bitmap holding the colors of the last cycle
func (c *Collector) Bitmap() Bitmap {
	return c.bitmap
}

// Collect runs one cycle. mutate, if non-nil, runs on the calling goroutine
// while the background task marks.
func (c *Collector) Collect(mutate func()) CycleStats {
	start := time.Now()
	var stats CycleStats

	c.bitmap.Reset(c.heap)
	stats.Roots = MarkRoots(c.heap, c.bitmap, c.worklist)

	c.marking.StartTask()
	if mutate != nil {
		mutate()
	}
	c.marking.EnsureTaskCompleted()
	if c.marking.config.Enabled {
		stats.Concurrent = c.marking.Stats()
	}

	stats.FinishedBytes, stats.BailoutsDrained = Finish(c.heap, c.bitmap, c.worklist)

	c.heap.ForEachObject(func(o *heap.Object) {
		if IsBlack(c.bitmap, o) {
			stats.LiveObjects++
			stats.LiveBytes += o.Size()
		}
	})
	stats.Duration = time.Since(start)

	c.logger.Debug("marking cycle finished",
		"roots", stats.Roots,
		"live_objects", stats.LiveObjects,
		"live_kb", stats.LiveBytes.KB(),
		"bailouts", stats.BailoutsDrained,
		"ms", float64(stats.Duration.Microseconds())/1000)
	return stats
}

// Shutdown cancels an outstanding background task and waits for it
func (c *Collector) Shutdown() {
	c.marking.Cancel()
	c.marking.EnsureTaskCompleted()
}
