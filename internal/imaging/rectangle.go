package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/anthonynsimon/bild/clone"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default annotation style: a 3 pixel pure blue outline.
var (
	AnnotationColor  = color.RGBA{0, 0, 255, 255}
	AnnotationStroke = 3
)

// maxStroke caps the outline thickness.
const maxStroke = 1 << 20

// NormalizeRect builds the inclusive-corner rectangle spanned by two corner
// points given in any order. The returned image.Rectangle is half-open, so
// its Max is one past the larger coordinate on each axis, saturating at
// math.MaxInt.
func NormalizeRect(x1, y1, x2, y2 int) image.Rectangle {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return image.Rectangle{
		Min: image.Point{X: x1, Y: y1},
		Max: image.Point{X: inc(x2), Y: inc(y2)},
	}
}

func inc(v int) int {
	if v == math.MaxInt {
		return v
	}
	return v + 1
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DrawRectangle returns a copy of img with an unfilled rectangle outline drawn
// between the inclusive corners (x1,y1) and (x2,y2).
//
// The stroke grows inward from the outer edge, so pixels further than stroke-1
// from the outline's outer edge are left untouched. Corners may be given in any
// order and may lie outside the image; the outline is clipped to the canvas.
// A stroke below 1 is treated as 1.
func DrawRectangle(img image.Image, x1, y1, x2, y2, stroke int, c color.Color) *image.RGBA {
	dst := clone.AsRGBA(img)
	b := dst.Bounds()
	if b.Empty() {
		return dst
	}
	stroke = clampInt(stroke, 1, maxStroke)

	// A corner more than stroke pixels off the canvas draws the same visible
	// outline as one exactly stroke pixels off, and keeps the band arithmetic
	// clear of overflow.
	x1 = clampInt(x1, b.Min.X-stroke, b.Max.X-1+stroke)
	x2 = clampInt(x2, b.Min.X-stroke, b.Max.X-1+stroke)
	y1 = clampInt(y1, b.Min.Y-stroke, b.Max.Y-1+stroke)
	y2 = clampInt(y2, b.Min.Y-stroke, b.Max.Y-1+stroke)

	src := &image.Uniform{C: c}
	for _, band := range outlineBands(NormalizeRect(x1, y1, x2, y2), stroke) {
		if band = band.Intersect(b); band.Empty() {
			continue
		}
		draw.Draw(dst, band, src, image.Point{}, draw.Src)
	}
	return dst
}

// outlineBands splits the outline of r into at most four non-overlapping
// bands of the given thickness.
func outlineBands(r image.Rectangle, stroke int) []image.Rectangle {
	if 2*stroke >= r.Dx() || 2*stroke >= r.Dy() {
		return []image.Rectangle{r}
	}
	// top, bottom, left, right
	return []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+stroke),
		image.Rect(r.Min.X, r.Max.Y-stroke, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y+stroke, r.Min.X+stroke, r.Max.Y-stroke),
		image.Rect(r.Max.X-stroke, r.Min.Y+stroke, r.Max.X, r.Max.Y-stroke),
	}
}

// ParseHexColor parses a "#RRGGBB" color string into an opaque color.RGBA.
func ParseHexColor(hex string) (color.RGBA, error) {
	if hex == "" {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
