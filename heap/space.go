// ABOUTME: Address ranges with atomically published boundaries
// ABOUTME: Used for the active new-allocation region that the marker must avoid

package heap

import "sync/atomic"

// AddressRange is a half-open range [start, end) whose bounds may be moved
// by the mutator while other goroutines read them
type AddressRange struct {
	start atomic.Uint64
	end   atomic.Uint64
}

// Start returns the inclusive lower bound (acquire load)
func (r *AddressRange) Start() Address {
	return Address(r.start.Load())
}

// End returns the exclusive upper bound (acquire load)
func (r *AddressRange) End() Address {
	return Address(r.end.Load())
}

// Contains reports whether a lies in [Start, End)
func (r *AddressRange) Contains(a Address) bool {
	start, end := r.Start(), r.End()
	return start <= a && a < end
}

// Set publishes new bounds. The end is stored first so a reader never
// observes a start beyond the end it loads afterwards.
func (r *AddressRange) Set(start, end Address) {
	r.end.Store(uint64(end))
	r.start.Store(uint64(start))
}

// SetStart publishes a new lower bound (release store)
func (r *AddressRange) SetStart(start Address) {
	r.start.Store(uint64(start))
}
