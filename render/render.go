// ABOUTME: Draws a heap as a PNG with every object colored by its mark state
// ABOUTME: Objects are laid out in address order; roots, young objects and edges are annotated

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"

	"github.com/prateek/heapmark/graph"
	"github.com/prateek/heapmark/heap"
	"github.com/prateek/heapmark/marking"
)

// Layout constants in pixels
const (
	padding     = 16
	titleHeight = 40
	legendSpace = 48
	labelHeight = 16
	boxHeight   = 24
	rowGap      = 12
	wordWidth   = 6
	minBoxWidth = 18
)

var (
	faded     = color.Gray{Y: 153}
	highlight = color.RGBA{R: 0xff, G: 0, B: 0, A: 255}
)

// Options controls a drawing
type Options struct {
	Width     int                       // Canvas width
	Height    int                       // Canvas height
	Title     string                    // Drawn at the top left
	Label     func(*heap.Object) string // Object labels; descriptor names when nil
	Edges     bool                      // Draw an arrow per reference
	Highlight heap.Address              // Object outlined in red, 0 for none
}

// Fill returns the fill color used for objects of mark color c
func Fill(c marking.Color) color.Color {
	switch c {
	case marking.Black:
		return color.Black
	case marking.Grey:
		return faded
	}
	return color.White
}

// Layout assigns a box to every object in order, wrapping rows at width
func Layout(objs []*heap.Object, width int) map[heap.Address]image.Rectangle {
	boxes := make(map[heap.Address]image.Rectangle, len(objs))
	maxWidth := width - 2*padding
	x, y := padding, padding+titleHeight+labelHeight
	for _, o := range objs {
		w := o.Size().Words() * wordWidth
		if w < minBoxWidth {
			w = minBoxWidth
		}
		if w > maxWidth {
			w = maxWidth
		}
		if x+w > width-padding && x > padding {
			x = padding
			y += boxHeight + labelHeight + rowGap
		}
		boxes[o.Address()] = image.Rect(x, y, x+w, y+boxHeight)
		x += w + padding/2
	}
	return boxes
}

// Draw renders h with the colors recorded in b
func Draw(h *heap.Heap, b marking.Bitmap, opts Options) (*gg.Context, error) {
	if opts.Width <= 2*padding || opts.Height <= titleHeight+legendSpace {
		return nil, fmt.Errorf("render: canvas %dx%d too small", opts.Width, opts.Height)
	}
	titleFace, err := newFace(20)
	if err != nil {
		return nil, err
	}
	labelFace, err := newFace(11)
	if err != nil {
		return nil, err
	}

	c := gg.NewContext(opts.Width, opts.Height)

	// Clear.
	c.SetRGB(1, 1, 1)
	c.DrawRectangle(0, 0, float64(opts.Width), float64(opts.Height))
	c.Fill()

	c.SetFontFace(titleFace)
	c.SetColor(color.Black)
	c.DrawStringAnchored(opts.Title, padding, padding+titleHeight/2, 0, 0.5)

	objs := h.Objects()
	boxes := Layout(objs, opts.Width)
	bottom := opts.Height - legendSpace
	visible := func(a heap.Address) (image.Rectangle, bool) {
		r, ok := boxes[a]
		return r, ok && r.Max.Y <= bottom
	}

	roots := make(map[heap.Address]bool)
	for _, a := range h.Roots() {
		roots[a] = true
	}
	region := h.AllocationRegion()

	var counts [3]int
	clipped := 0
	c.SetFontFace(labelFace)
	c.SetLineCapButt()
	c.SetLineJoin(gg.LineJoinRound)
	for _, o := range objs {
		mark := b.ColorOf(o)
		if int(mark) < len(counts) {
			counts[mark]++
		}
		r, ok := visible(o.Address())
		if !ok {
			clipped++
			continue
		}
		drawObject(c, o, r, mark, opts, roots[o.Address()], region.Contains(o.Address()))
	}

	if opts.Edges {
		drawEdges(c, h, visible)
	}

	drawLegend(c, counts, clipped, opts)
	return c, nil
}

// SavePNG draws h and writes the result to path
func SavePNG(path string, h *heap.Heap, b marking.Bitmap, opts Options) error {
	c, err := Draw(h, b, opts)
	if err != nil {
		return err
	}
	return c.SavePNG(path)
}

func drawObject(c *gg.Context, o *heap.Object, r image.Rectangle, mark marking.Color, opts Options, root, young bool) {
	x, y := float64(r.Min.X), float64(r.Min.Y)
	w, h := float64(r.Dx()), float64(r.Dy())

	c.SetDash()
	c.SetColor(Fill(mark))
	c.DrawRectangle(x, y, w, h)
	c.Fill()

	// Draw object boundary.
	switch {
	case o.Address() == opts.Highlight:
		c.SetColor(highlight)
	case mark == marking.White:
		c.SetColor(faded)
	default:
		c.SetColor(color.Black)
	}
	c.SetLineWidth(2.0)
	if root {
		c.SetLineWidth(4.0)
	}
	if young {
		c.SetDash(3.0)
	}
	c.DrawRectangle(x, y, w, h)
	c.Stroke()
	c.SetDash()

	label := o.Descriptor().Name
	if opts.Label != nil {
		label = opts.Label(o)
	}
	if tw, _ := c.MeasureString(label); tw <= w+padding/2 {
		c.SetColor(color.Black)
		c.DrawStringAnchored(label, x, y-4, 0, 0)
	}
}

func drawEdges(c *gg.Context, h *heap.Heap, visible func(heap.Address) (image.Rectangle, bool)) {
	g := graph.FromHeap(h)
	g.ForEachObject(func(obj *graph.Object) {
		src, ok := visible(obj.ID.Address())
		if !ok {
			return
		}
		from := image.Pt(src.Min.X+src.Dx()/2, src.Max.Y)
		draw := func(to graph.ObjID) {
			dst, ok := visible(to.Address())
			if !ok || to == obj.ID {
				return
			}
			drawArrow(c, from, minDistPtOnRect(from, dst, boxHeight/3), 1.0)
		}
		c.SetColor(color.RGBA{R: 0x33, G: 0x33, B: 0x99, A: 0xaa})
		for _, p := range obj.Ptrs {
			draw(p)
		}
		c.SetDash(2.0)
		for _, p := range obj.WeakPtrs {
			draw(p)
		}
		c.SetDash()
	})
}

func drawLegend(c *gg.Context, counts [3]int, clipped int, opts Options) {
	const swatch = 14
	y := float64(opts.Height - legendSpace/2)
	x := float64(padding)
	for _, mark := range []marking.Color{marking.White, marking.Grey, marking.Black} {
		c.SetColor(Fill(mark))
		c.DrawRectangle(x, y-swatch/2, swatch, swatch)
		c.Fill()
		c.SetColor(color.Black)
		c.SetLineWidth(1.0)
		c.DrawRectangle(x, y-swatch/2, swatch, swatch)
		c.Stroke()

		text := fmt.Sprintf("%s %d", mark, counts[mark])
		c.DrawStringAnchored(text, x+swatch+6, y, 0, 0.35)
		tw, _ := c.MeasureString(text)
		x += swatch + 6 + tw + 2*padding
	}
	if clipped > 0 {
		c.DrawStringAnchored(fmt.Sprintf("%d objects not shown", clipped), x, y, 0, 0.35)
	}
}

func drawArrow(c *gg.Context, src, dst image.Point, width float64) {
	srcX, srcY := float64(src.X), float64(src.Y)
	dstX, dstY := float64(dst.X), float64(dst.Y)
	dist := math.Hypot(dstX-srcX, dstY-srcY)
	if dist == 0 {
		return
	}

	c.SetLineWidth(width)
	c.MoveTo(srcX, srcY)
	c.LineTo(dstX, dstY)
	c.Stroke()

	const alBase = 7
	const th = math.Pi / 8
	al := alBase * width
	vx := (srcX - dstX) / dist * al
	vy := (srcY - dstY) / dist * al
	vx1 := vx*math.Cos(th) - vy*math.Sin(th)
	vy1 := vx*math.Sin(th) + vy*math.Cos(th)
	vx2 := vx*math.Cos(-th) - vy*math.Sin(-th)
	vy2 := vx*math.Sin(-th) + vy*math.Cos(-th)

	c.MoveTo(dstX, dstY)
	c.LineTo(vx1+dstX, vy1+dstY)
	c.LineTo(vx2+dstX, vy2+dstY)
	c.LineTo(dstX, dstY)
	c.Fill()
}

func minDistPtOnRect(src image.Point, rect image.Rectangle, div int) image.Point {
	minDist2 := -1
	var dst image.Point
	for _, d := range rectAnchors(rect, div) {
		dx := d.X - src.X
		dy := d.Y - src.Y
		if dist2 := dx*dx + dy*dy; minDist2 < 0 || dist2 < minDist2 {
			minDist2 = dist2
			dst = d
		}
	}
	return dst
}

// rectAnchors returns points spaced div apart along the border of rect
func rectAnchors(rect image.Rectangle, div int) []image.Point {
	var pts []image.Point
	for x := rect.Min.X + div/2; x <= rect.Max.X-div/2; x += div {
		pts = append(pts, image.Pt(x, rect.Min.Y), image.Pt(x, rect.Max.Y))
	}
	for y := rect.Min.Y + div/2; y <= rect.Max.Y-div/2; y += div {
		pts = append(pts, image.Pt(rect.Min.X, y), image.Pt(rect.Max.X, y))
	}
	return pts
}
