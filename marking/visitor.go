// ABOUTME: Per-kind traversal of heap objects during concurrent marking
// ABOUTME: Decides for every kind whether to scan, snapshot then scan, or defer to the controller

package marking

import (
	"fmt"

	"github.com/prateek/heapmark/heap"
)

// Visitor computes object sizes and marks outgoing references. A Visitor
// owns its snapshot buffer and must not be shared between goroutines.
type Visitor struct {
	heap     *heap.Heap
	bitmap   Bitmap
	worklist Worklist
	snapshot SlotSnapshot

	objects  int
	bailouts int
}

// NewVisitor creates a visitor pushing discovered objects to w
func NewVisitor(h *heap.Heap, b Bitmap, w Worklist) *Visitor {
	return &Visitor{heap: h, bitmap: b, worklist: w}
}

// Visit applies the kind policy of d to obj and returns the number of bytes
// scanned, or 0 if the object was deferred or already claimed elsewhere
func (v *Visitor) Visit(d *heap.Descriptor, obj *heap.Object) heap.Bytes {
	v.objects++
	switch d.Kind {
	case heap.KindPlainObject:
		return v.visitPlainObject(d, obj)
	case heap.KindFixedArray:
		return v.visitFixedArray(obj)
	case heap.KindData:
		return v.visitData(d, obj)
	case heap.KindClosure:
		return v.visitClosure(d, obj)
	case heap.KindGlobalContext:
		// Finished by the controller until its descriptor cache is traced weakly.
		return v.visitGreyThenBailout(d, obj)
	case heap.KindCompiledMetadata, heap.KindBytecode:
		// Age and usage counters are only reset on the main thread.
		return v.visitGreyThenBailout(d, obj)
	case heap.KindCode, heap.KindDescriptor,
		heap.KindTransitionTable, heap.KindWeakCell, heap.KindWeakCollection:
		return v.bailout(obj)
	}
	panic(fmt.Sprintf("marking: no traversal policy for %s", d.Kind))
}

// Bailouts returns how many objects this visitor deferred to the controller
func (v *Visitor) Bailouts() int {
	return v.bailouts
}

// Objects returns how many objects this visitor was asked to visit
func (v *Visitor) Objects() int {
	return v.objects
}

func (v *Visitor) visitPlainObject(d *heap.Descriptor, obj *heap.Object) heap.Bytes {
	size := d.InstanceSize
	snapshot := v.makeSlotSnapshot(obj)
	if !GreyToBlack(v.bitmap, obj) {
		return 0
	}
	v.visitPointersInSnapshot(snapshot)
	return size
}

func (v *Visitor) visitFixedArray(obj *heap.Object) heap.Bytes {
	length := obj.Length()
	size := heap.SizeFor(length)
	if !GreyToBlack(v.bitmap, obj) {
		return 0
	}
	v.visitDescriptorPointer(obj)
	v.VisitPointers(obj, 0, length)
	return size
}

func (v *Visitor) visitData(d *heap.Descriptor, obj *heap.Object) heap.Bytes {
	if !GreyToBlack(v.bitmap, obj) {
		return 0
	}
	v.visitDescriptorPointer(obj)
	return d.InstanceSize
}

func (v *Visitor) visitClosure(d *heap.Descriptor, obj *heap.Object) heap.Bytes {
	var size heap.Bytes
	if GreyToBlack(v.bitmap, obj) {
		v.visitWeakBody(d, obj)
		size = d.InstanceSize
	}
	// Usage counters are only touched by the controller.
	v.bailout(obj)
	return size
}

func (v *Visitor) visitGreyThenBailout(d *heap.Descriptor, obj *heap.Object) heap.Bytes {
	if IsGrey(v.bitmap, obj) {
		v.visitWeakBody(d, obj)
		v.bailout(obj)
	}
	return 0
}

func (v *Visitor) bailout(obj *heap.Object) heap.Bytes {
	v.bailouts++
	v.worklist.Push(obj, LaneBailout)
	return 0
}

// visitWeakBody visits the descriptor slot, every strong field and the
// code entry, skipping fields the descriptor declares weak
func (v *Visitor) visitWeakBody(d *heap.Descriptor, obj *heap.Object) {
	v.visitDescriptorPointer(obj)
	for i := 0; i < obj.NumFields(); i++ {
		if d.IsWeakField(i) {
			continue
		}
		v.VisitPointers(obj, i, i+1)
	}
	if d.HasCodeEntry {
		v.VisitCodeEntry(obj)
	}
}

// VisitPointers marks every heap reference held in fields [start, end) of host
func (v *Visitor) VisitPointers(host *heap.Object, start, end int) {
	for i := start; i < end; i++ {
		val := host.Field(i)
		if !val.IsHeapObject() {
			continue
		}
		v.markObject(val.Address())
	}
}

// VisitCodeEntry marks the code object referenced by host's raw code entry
func (v *Visitor) VisitCodeEntry(host *heap.Object) {
	entry := host.CodeEntry()
	if entry == 0 {
		return
	}
	v.markObject(heap.ObjectFromCodeEntry(entry))
}

func (v *Visitor) visitDescriptorPointer(obj *heap.Object) {
	if val := obj.DescriptorValue(); val.IsHeapObject() {
		v.markObject(val.Address())
	}
}

func (v *Visitor) visitPointersInSnapshot(s *SlotSnapshot) {
	for i := 0; i < s.Len(); i++ {
		val := s.Value(i)
		if !val.IsHeapObject() {
			continue
		}
		v.markObject(val.Address())
	}
}

func (v *Visitor) makeSlotSnapshot(obj *heap.Object) *SlotSnapshot {
	s := &v.snapshot
	s.Clear()
	s.Add(obj.DescriptorSlot(), obj.DescriptorValue())
	for i := 0; i < obj.NumFields(); i++ {
		s.Add(obj.SlotAddress(i), obj.Field(i))
	}
	return s
}

func (v *Visitor) markObject(a heap.Address) {
	obj := v.heap.Lookup(a)
	if obj == nil {
		panic(fmt.Sprintf("marking: reference to unknown object %s", a))
	}
	if WhiteToGrey(v.bitmap, obj) {
		v.worklist.Push(obj, LaneShared)
	}
}

// VisitFully scans every field of obj, weak fields included, for the
// single-threaded finishing phase. Grey objects are claimed first; a black
// object is only rescanned when rescan is set. Returns the bytes claimed.
func (v *Visitor) VisitFully(obj *heap.Object, rescan bool) heap.Bytes {
	claimed := GreyToBlack(v.bitmap, obj)
	if !claimed && !rescan {
		return 0
	}
	d := obj.Descriptor()
	v.visitDescriptorPointer(obj)
	switch {
	case d.Kind == heap.KindFixedArray:
		v.VisitPointers(obj, 0, obj.Length())
	default:
		v.VisitPointers(obj, 0, obj.NumFields())
	}
	if d.HasCodeEntry {
		v.VisitCodeEntry(obj)
	}
	if !claimed {
		return 0
	}
	return obj.Size()
}
