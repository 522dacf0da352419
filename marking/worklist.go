// ABOUTME: Two-lane marking worklist shared by the concurrent marker and the controller
// ABOUTME: The shared lane feeds any marker; the bailout lane is finished on the main thread

package marking

import (
	"sync"
	"sync/atomic"

	"github.com/prateek/heapmark/heap"
)

// Lane selects a worklist lane
type Lane uint8

const (
	// LaneShared holds objects any marking agent may process
	LaneShared Lane = iota
	// LaneBailout holds objects only the controller may finish
	LaneBailout

	numLanes
)

func (l Lane) String() string {
	if l == LaneBailout {
		return "bailout"
	}
	return "shared"
}

// Worklist is the marking work queue
type Worklist interface {
	// Push adds obj to lane
	Push(obj *heap.Object, lane Lane)

	// Pop removes an object from lane; false means the lane is empty
	Pop(lane Lane) (*heap.Object, bool)
}

// Deque is a Worklist with one mutex-guarded LIFO per lane
type Deque struct {
	lanes  [numLanes]laneStack
	pushes [numLanes]atomic.Int64
}

type laneStack struct {
	mu    sync.Mutex
	items []*heap.Object
}

// NewDeque creates an empty worklist
func NewDeque() *Deque {
	return &Deque{}
}

// Push adds obj to lane
func (d *Deque) Push(obj *heap.Object, lane Lane) {
	s := &d.lanes[lane]
	s.mu.Lock()
	s.items = append(s.items, obj)
	s.mu.Unlock()
	d.pushes[lane].Add(1)
}

// Pop removes the most recently pushed object of lane
func (d *Deque) Pop(lane Lane) (*heap.Object, bool) {
	s := &d.lanes[lane]
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.items)
	if n == 0 {
		return nil, false
	}
	obj := s.items[n-1]
	s.items[n-1] = nil
	s.items = s.items[:n-1]
	return obj, true
}

// Len returns the number of entries currently in lane
func (d *Deque) Len(lane Lane) int {
	s := &d.lanes[lane]
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// IsEmpty reports whether both lanes are empty
func (d *Deque) IsEmpty() bool {
	return d.Len(LaneShared) == 0 && d.Len(LaneBailout) == 0
}

// Contents returns a copy of the entries in lane, oldest first
func (d *Deque) Contents(lane Lane) []*heap.Object {
	s := &d.lanes[lane]
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*heap.Object(nil), s.items...)
}

// PushCount returns how many pushes lane has received since creation
func (d *Deque) PushCount(lane Lane) int64 {
	return d.pushes[lane].Load()
}
