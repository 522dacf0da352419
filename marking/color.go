// ABOUTME: Tri-color mark state and the atomic transitions that gate scanning
// ABOUTME: The bitmap stores colors; the helpers implement the claim protocol

package marking

import (
	"fmt"

	"github.com/prateek/heapmark/heap"
)

// Color is the mark state of an object within one cycle
type Color uint32

// Mark colors. Transitions only move forward within a cycle.
const (
	White Color = iota
	Grey
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Grey:
		return "grey"
	case Black:
		return "black"
	}
	return fmt.Sprintf("color(%d)", uint32(c))
}

// Bitmap stores one color per object and transitions it atomically
type Bitmap interface {
	// TryTransition moves obj from one color to another and reports
	// whether this caller performed the transition
	TryTransition(obj *heap.Object, from, to Color) bool

	// ColorOf returns the current color of obj
	ColorOf(obj *heap.Object) Color
}

// ObjectBitmap keeps colors in each object's mark cell
type ObjectBitmap struct{}

// TryTransition implements Bitmap with a compare-and-swap on the mark cell
func (ObjectBitmap) TryTransition(obj *heap.Object, from, to Color) bool {
	return obj.MarkCell().CompareAndSwap(uint32(from), uint32(to))
}

// ColorOf implements Bitmap with an atomic load of the mark cell
func (ObjectBitmap) ColorOf(obj *heap.Object) Color {
	return Color(obj.MarkCell().Load())
}

// Reset whitens every object in h. Only call between cycles.
func (ObjectBitmap) Reset(h *heap.Heap) {
	h.ForEachObject(func(o *heap.Object) {
		o.MarkCell().Store(uint32(White))
	})
}

// WhiteToGrey claims obj for pushing. True means the caller must push it.
func WhiteToGrey(b Bitmap, obj *heap.Object) bool {
	return b.TryTransition(obj, White, Grey)
}

// GreyToBlack claims obj for scanning. True means the caller must scan it.
func GreyToBlack(b Bitmap, obj *heap.Object) bool {
	return b.TryTransition(obj, Grey, Black)
}

// IsGrey reports whether obj is discovered but not yet scanned
func IsGrey(b Bitmap, obj *heap.Object) bool {
	return b.ColorOf(obj) == Grey
}

// IsWhite reports whether obj has not been discovered
func IsWhite(b Bitmap, obj *heap.Object) bool {
	return b.ColorOf(obj) == White
}

// IsBlack reports whether obj has been scanned
func IsBlack(b Bitmap, obj *heap.Object) bool {
	return b.ColorOf(obj) == Black
}
