// ABOUTME: Tests for tri-color transitions
// ABOUTME: Validates monotonic transitions and that racing claims succeed exactly once

package marking

import (
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestColorTransitions(t *testing.T) {
	h := newTestHeap()
	b := ObjectBitmap{}
	obj := h.Allocate(h.plain)

	if !IsWhite(b, obj) {
		t.Fatalf("Expected new object to be white, got %s", b.ColorOf(obj))
	}
	if GreyToBlack(b, obj) {
		t.Error("Expected white object to refuse grey->black")
	}
	if !WhiteToGrey(b, obj) {
		t.Fatal("Expected white->grey to succeed")
	}
	if WhiteToGrey(b, obj) {
		t.Error("Expected second white->grey to fail")
	}
	if !IsGrey(b, obj) {
		t.Errorf("Expected grey, got %s", b.ColorOf(obj))
	}
	if !GreyToBlack(b, obj) {
		t.Fatal("Expected grey->black to succeed")
	}
	if GreyToBlack(b, obj) || WhiteToGrey(b, obj) {
		t.Error("Expected black object to refuse every transition")
	}
	if !IsBlack(b, obj) {
		t.Errorf("Expected black, got %s", b.ColorOf(obj))
	}

	b.Reset(h.Heap)
	if !IsWhite(b, obj) {
		t.Errorf("Expected reset to whiten the object, got %s", b.ColorOf(obj))
	}
}

func TestColorString(t *testing.T) {
	tests := []struct {
		c    Color
		want string
	}{
		{White, "white"},
		{Grey, "grey"},
		{Black, "black"},
		{Color(7), "color(7)"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("Color(%d).String() = %q, want %q", uint32(tt.c), got, tt.want)
		}
	}
}

func TestConcurrentClaimSucceedsOnce(t *testing.T) {
	h := newTestHeap()
	b := ObjectBitmap{}

	for i := 0; i < 200; i++ {
		obj := h.Allocate(h.plain)
		var pushes, scans atomic.Int32
		var g errgroup.Group
		for w := 0; w < 8; w++ {
			g.Go(func() error {
				if WhiteToGrey(b, obj) {
					pushes.Add(1)
				}
				for !GreyToBlack(b, obj) {
					if IsBlack(b, obj) {
						return nil
					}
				}
				scans.Add(1)
				return nil
			})
		}
		g.Wait()

		if pushes.Load() != 1 {
			t.Fatalf("Iteration %d: expected exactly one white->grey winner, got %d", i, pushes.Load())
		}
		if scans.Load() != 1 {
			t.Fatalf("Iteration %d: expected exactly one grey->black winner, got %d", i, scans.Load())
		}
	}
}
