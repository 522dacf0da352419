// ABOUTME: Fixed-capacity capture of an object's slot addresses and values
// ABOUTME: Freezes a consistent view of a mutable object before its children are marked

package marking

import (
	"fmt"

	"github.com/prateek/heapmark/heap"
)

// MaxSnapshotSize is the largest number of slots a plain object can have
const MaxSnapshotSize = int(heap.MaxInstanceSize / heap.WordBytes)

// SlotSnapshot records (slot, value) pairs for one object at one instant
type SlotSnapshot struct {
	n     int
	slots [MaxSnapshotSize]snapshotEntry
}

type snapshotEntry struct {
	slot  heap.Address
	value heap.Value
}

// Clear resets the snapshot without releasing storage
func (s *SlotSnapshot) Clear() {
	s.n = 0
}

// Add appends one pair. Exceeding capacity means the heap layout is broken.
func (s *SlotSnapshot) Add(slot heap.Address, value heap.Value) {
	if s.n >= MaxSnapshotSize {
		panic(fmt.Sprintf("slot snapshot overflow adding %s (capacity %d)", slot, MaxSnapshotSize))
	}
	s.slots[s.n] = snapshotEntry{slot: slot, value: value}
	s.n++
}

// Len returns the number of recorded slots
func (s *SlotSnapshot) Len() int {
	return s.n
}

// Slot returns the address of the i-th recorded slot
func (s *SlotSnapshot) Slot(i int) heap.Address {
	return s.slots[i].slot
}

// Value returns the value observed in the i-th recorded slot
func (s *SlotSnapshot) Value(i int) heap.Value {
	return s.slots[i].value
}
