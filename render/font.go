// ABOUTME: Font face loading for heap rendering
// ABOUTME: Parses the embedded Go Mono font once and builds faces per drawing

package render

import (
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

var (
	fontOnce sync.Once
	fontErr  error
	mono     *truetype.Font
)

// newFace returns a Go Mono face of the given point size. Faces keep glyph
// caches and must not be shared between concurrent drawings.
func newFace(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		mono, fontErr = truetype.Parse(gomono.TTF)
	})
	if fontErr != nil {
		return nil, fontErr
	}
	return truetype.NewFace(mono, &truetype.Options{Size: size}), nil
}
