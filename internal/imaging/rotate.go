package imaging

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/clone"
	"github.com/disintegration/imaging"
)

// RotateBackground fills the corners uncovered by a rotation.
var RotateBackground color.Color = color.Black

// Rotate rotates img counter-clockwise by degrees about its center.
//
// The output canvas grows to the bounding box of the rotated image so no
// content is cropped; uncovered corners are filled with bg (RotateBackground
// when bg is nil). Any angle is accepted and taken modulo 360. Multiples of 90
// degrees are exact pixel permutations; other angles are resampled.
func Rotate(img image.Image, degrees float64, bg color.Color) *image.RGBA {
	if bg == nil {
		bg = RotateBackground
	}
	return clone.AsRGBA(imaging.Rotate(img, normalizeAngle(degrees), bg))
}

// normalizeAngle maps any angle into [0, 360).
func normalizeAngle(degrees float64) float64 {
	a := math.Mod(degrees, 360)
	if a < 0 {
		a += 360
	}
	return a
}

