// Package imaging provides the pixel-level operations used by the image workbench.
//
// Every function in this package is stateless: it takes an image, returns a new
// image, and never modifies its input. Keeping track of which image is "current"
// and which is the clean baseline is the job of the state package; this package
// only knows how to compute pixels.
//
// # Pixel Representation
//
// Operations return *image.RGBA buffers with 8 bits per channel. Inputs may be
// any image.Image; they are converted (and copied) on the way in. Opaque
// flattens an input to three-channel color; the state package applies it to
// every image it receives, so files and camera frames are always opaque RGB.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Rectangle corners passed to DrawRectangle are inclusive and may be given
//     in any order or lie outside the image
//
// # Operations
//
//   - Opaque: drop alpha, keeping the straight color of each pixel
//   - IsolateChannel: keep one of R, G, B and zero the other two
//   - MeanGrayscale: replace every channel with the rounded mean of R, G, B
//   - Rotate: counter-clockwise rotation with canvas expansion
//   - DrawRectangle: unfilled outline clipped to the canvas
//   - FitForDisplay: Lanczos downscale into a display box
//   - SampleColor: read one pixel as hex, RGB, RGBA and HSL
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
package imaging
