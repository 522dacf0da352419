// ABOUTME: Core data types for the object graph extracted from a heap
// ABOUTME: Defines Object, ObjID, and Roots structures used to check marking results

package graph

import "github.com/prateek/heapmark/heap"

// ObjID identifies a heap object by its address
type ObjID uint64

// IDOf returns the graph ID of the object at a
func IDOf(a heap.Address) ObjID {
	return ObjID(a)
}

// Address returns the heap address the ID stands for
func (id ObjID) Address() heap.Address {
	return heap.Address(id)
}

// Object represents a single heap object
type Object struct {
	ID       ObjID     // Address of the object
	Type     string    // Descriptor name
	Kind     heap.Kind // Traversal kind
	Size     uint64    // Size in bytes
	Ptrs     []ObjID   // Strong outgoing references
	WeakPtrs []ObjID   // References held in weak fields
}

// Roots represents the set of GC root objects
type Roots struct {
	IDs []ObjID // Object IDs that are roots
}
