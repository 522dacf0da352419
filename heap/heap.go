// ABOUTME: The managed heap: descriptor registry, allocation and root set
// ABOUTME: Provides the old space, the young allocation region and the relocation lock

package heap

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Layout of the simulated address space
const (
	OldSpaceStart Address = 0x10000
	NewSpaceStart Address = 0x40000000

	// DefaultNewSpaceSize is the young region size used when none is given
	DefaultNewSpaceSize Bytes = 1 << 20

	metaDescriptorSize Bytes = 4 * WordBytes
)

var (
	// ErrNewSpaceFull is returned when a young allocation does not fit
	ErrNewSpaceFull = errors.New("new space exhausted")

	// ErrInstanceTooLarge is returned for plain objects above MaxInstanceSize
	ErrInstanceTooLarge = errors.New("instance size exceeds maximum")
)

// Heap holds every object of the managed heap
type Heap struct {
	mu      sync.RWMutex
	objects map[Address]*Object
	roots   []Address
	meta    *Descriptor

	oldTop       Address
	newTop       Address
	newSpaceSize Bytes
	allocation   AddressRange

	relocation sync.Mutex
}

// NewHeap creates an empty heap whose young region spans newSpaceSize bytes
func NewHeap(newSpaceSize Bytes) *Heap {
	if newSpaceSize == 0 {
		newSpaceSize = DefaultNewSpaceSize
	}
	h := &Heap{
		objects:      make(map[Address]*Object),
		oldTop:       OldSpaceStart,
		newTop:       NewSpaceStart,
		newSpaceSize: newSpaceSize,
	}
	h.allocation.Set(NewSpaceStart, NewSpaceStart.Plus(newSpaceSize))

	// The descriptor of descriptors describes itself.
	h.meta = &Descriptor{Name: "Descriptor", Kind: KindDescriptor, InstanceSize: metaDescriptorSize}
	h.meta.obj = h.placeLocked(h.meta, h.bumpOld(metaDescriptorSize), 0)
	return h
}

// MetaDescriptor returns the descriptor shared by all descriptor objects
func (h *Heap) MetaDescriptor() *Descriptor {
	return h.meta
}

// DefineDescriptor registers d and allocates the heap object backing it
func (h *Heap) DefineDescriptor(d *Descriptor) (*Descriptor, error) {
	if d.Kind == KindPlainObject && d.InstanceSize > MaxInstanceSize {
		return nil, fmt.Errorf("descriptor %q: %w (%d > %d)", d.Name, ErrInstanceTooLarge, d.InstanceSize, MaxInstanceSize)
	}
	if d.Kind != KindFixedArray && d.InstanceSize < WordBytes {
		return nil, fmt.Errorf("descriptor %q: instance size %d below one word", d.Name, d.InstanceSize)
	}
	if d.Kind == KindCode && d.InstanceSize < CodeEntryOffset {
		return nil, fmt.Errorf("descriptor %q: code objects need at least %d bytes", d.Name, CodeEntryOffset)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	d.obj = h.placeLocked(h.meta, h.bumpOld(metaDescriptorSize), 0)
	return d, nil
}

// MustDefine is like DefineDescriptor but panics on error
func (h *Heap) MustDefine(d *Descriptor) *Descriptor {
	d, err := h.DefineDescriptor(d)
	if err != nil {
		panic(err)
	}
	return d
}

// Allocate creates a fixed-size object in old space
func (h *Heap) Allocate(d *Descriptor) *Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.placeLocked(d, h.bumpOld(d.InstanceSize), 0)
}

// AllocateArray creates a fixed array in old space with room for capacity
// elements and an initial length of zero
func (h *Heap) AllocateArray(d *Descriptor, capacity int) *Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.placeLocked(d, h.bumpOld(SizeFor(capacity)), capacity)
}

// AllocateYoung creates a fixed-size object inside the active allocation
// region. It stays unsafe for concurrent marking until PublishYoung.
func (h *Heap) AllocateYoung(d *Descriptor) (*Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.newTop.Plus(d.InstanceSize) > h.allocation.End() {
		return nil, fmt.Errorf("allocating %d bytes: %w", d.InstanceSize, ErrNewSpaceFull)
	}
	addr := h.newTop
	h.newTop = h.newTop.Plus(d.InstanceSize)
	return h.placeLocked(d, addr, 0), nil
}

// PublishYoung moves the start of the allocation region past every young
// object allocated so far, making them safe to scan concurrently
func (h *Heap) PublishYoung() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocation.SetStart(h.newTop)
}

// AllocationRegion returns the active new-allocation region
func (h *Heap) AllocationRegion() *AddressRange {
	return &h.allocation
}

// RelocationLock serializes marking steps against object-moving activity
func (h *Heap) RelocationLock() sync.Locker {
	return &h.relocation
}

// Lookup returns the object at a, or nil
func (h *Heap) Lookup(a Address) *Object {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.objects[a]
}

// NumObjects returns the number of objects, descriptor objects included
func (h *Heap) NumObjects() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.objects)
}

// ForEachObject calls fn for every object in address order
func (h *Heap) ForEachObject(fn func(*Object)) {
	for _, o := range h.Objects() {
		fn(o)
	}
}

// Objects returns a snapshot of all objects sorted by address
func (h *Heap) Objects() []*Object {
	h.mu.RLock()
	objs := make([]*Object, 0, len(h.objects))
	for _, o := range h.objects {
		objs = append(objs, o)
	}
	h.mu.RUnlock()
	sort.Slice(objs, func(i, j int) bool { return objs[i].addr < objs[j].addr })
	return objs
}

// SetRoots replaces the root set
func (h *Heap) SetRoots(roots []Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots = append([]Address(nil), roots...)
}

// AddRoot appends a to the root set
func (h *Heap) AddRoot(a Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roots = append(h.roots, a)
}

// Roots returns a copy of the root set
func (h *Heap) Roots() []Address {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Address(nil), h.roots...)
}

func (h *Heap) bumpOld(size Bytes) Address {
	addr := h.oldTop
	h.oldTop = h.oldTop.Plus(size)
	if h.oldTop > NewSpaceStart {
		panic(fmt.Sprintf("old space overflowed into new space at %s", h.oldTop))
	}
	return addr
}

// placeLocked initializes an object and publishes its descriptor last
func (h *Heap) placeLocked(d *Descriptor, addr Address, capacity int) *Object {
	n := capacity
	if !d.IsVariableSize() {
		n = d.numFields()
	}
	o := &Object{addr: addr, fields: make([]atomic.Uint64, n)}
	o.desc.Store(d)
	h.objects[addr] = o
	return o
}
