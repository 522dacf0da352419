// ABOUTME: Extracts an object graph from a live heap
// ABOUTME: Follows descriptor slots, fields, array elements and code entries

package graph

import "github.com/prateek/heapmark/heap"

// FromHeap builds a graph of every object in h as of now. Every reference
// the marker can follow becomes an edge; weak fields are kept apart.
func FromHeap(h *heap.Heap) *MemGraph {
	g := NewMemGraph()
	h.ForEachObject(func(o *heap.Object) {
		d := o.Descriptor()
		obj := &Object{
			ID:       IDOf(o.Address()),
			Type:     d.Name,
			Kind:     d.Kind,
			Size:     uint64(o.Size()),
			Ptrs:     []ObjID{},
			WeakPtrs: []ObjID{},
		}
		if v := o.DescriptorValue(); v.IsHeapObject() {
			obj.Ptrs = append(obj.Ptrs, IDOf(v.Address()))
		}

		n := o.NumFields()
		if d.Kind == heap.KindFixedArray {
			n = o.Length()
		}
		for i := 0; i < n; i++ {
			v := o.Field(i)
			if !v.IsHeapObject() {
				continue
			}
			if d.IsWeakField(i) {
				obj.WeakPtrs = append(obj.WeakPtrs, IDOf(v.Address()))
			} else {
				obj.Ptrs = append(obj.Ptrs, IDOf(v.Address()))
			}
		}

		if d.HasCodeEntry {
			if entry := o.CodeEntry(); entry != 0 {
				obj.Ptrs = append(obj.Ptrs, IDOf(heap.ObjectFromCodeEntry(entry)))
			}
		}
		g.AddObject(obj)
	})

	roots := Roots{IDs: []ObjID{}}
	for _, a := range h.Roots() {
		roots.IDs = append(roots.IDs, IDOf(a))
	}
	g.SetRoots(roots)
	return g
}
