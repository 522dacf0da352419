// ABOUTME: Parser interface for heap description formats
// ABOUTME: Defines the contract for pluggable parsers and the snapshot they build

package heapdump

import (
	"io"
	"sort"

	"github.com/prateek/heapmark/heap"
)

// Parser is the interface for heap description parsers
type Parser interface {
	// CanParse checks if this parser can handle the given format.
	// The reader is a preview and must not be consumed beyond detection.
	CanParse(r io.Reader) bool

	// Parse reads a description positioned at its start and builds a heap
	Parse(r io.Reader) (*Snapshot, error)
}

// Snapshot is a heap built from a description, with the names it used
type Snapshot struct {
	Heap  *heap.Heap              // The materialized heap, roots included
	Roots []string                // Root object IDs in description order
	IDs   map[string]*heap.Object // Objects by description ID

	names map[heap.Address]string
}

func newSnapshot(h *heap.Heap) *Snapshot {
	return &Snapshot{
		Heap:  h,
		Roots: []string{},
		IDs:   make(map[string]*heap.Object),
		names: make(map[heap.Address]string),
	}
}

func (s *Snapshot) add(id string, obj *heap.Object) {
	s.IDs[id] = obj
	s.names[obj.Address()] = id
}

// Object returns the object with description ID id, or nil
func (s *Snapshot) Object(id string) *heap.Object {
	return s.IDs[id]
}

// Name returns the description ID of the object at a. Objects without one,
// such as descriptor objects, are named by their descriptor and address.
func (s *Snapshot) Name(a heap.Address) string {
	if id, ok := s.names[a]; ok {
		return id
	}
	if obj := s.Heap.Lookup(a); obj != nil {
		return obj.String()
	}
	return a.String()
}

// SortedIDs returns every object ID in address order
func (s *Snapshot) SortedIDs() []string {
	ids := make([]string, 0, len(s.IDs))
	for id := range s.IDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.IDs[ids[i]].Address() < s.IDs[ids[j]].Address()
	})
	return ids
}
