// Package state holds the image being edited and applies transformations to it.
//
// An ImageState keeps two buffers. The current image is what the user sees.
// The baseline is the last clean copy. Channel and grayscale views are always
// recomputed from the baseline, so switching between them never compounds.
// Rotations and rectangles are drawn on the current image and, when no view is
// active, folded into the baseline.
//
// ImageState is not safe for concurrent use. Callers must serialize access;
// the session package does this with a single mutex.
package state

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/image-workbench/internal/imaging"
)

// ErrEmpty is returned by every transformation requested before an image has
// been loaded. It signals "nothing to show", not a failure: the state is left
// unchanged and the caller should skip rendering.
var ErrEmpty = errors.New("no image loaded")

// ViewKind tags how the current image relates to the baseline.
type ViewKind int

const (
	// ViewNone: current is the ground truth.
	ViewNone ViewKind = iota
	// ViewChannel: current is one channel of baseline.
	ViewChannel
	// ViewGrayscale: current is the mean-gray rendering of baseline.
	ViewGrayscale
)

// DisplayMode describes the active view. Channel is only meaningful when
// Kind is ViewChannel.
type DisplayMode struct {
	Kind    ViewKind
	Channel imaging.Channel
}

// ModeNone is the display mode of a clean or empty state.
var ModeNone = DisplayMode{Kind: ViewNone}

// ModeGrayscale is the display mode after ToGrayscale.
var ModeGrayscale = DisplayMode{Kind: ViewGrayscale}

// ModeChannel returns the display mode after ShowChannel(c).
func ModeChannel(c imaging.Channel) DisplayMode {
	return DisplayMode{Kind: ViewChannel, Channel: c}
}

// Special reports whether a non-destructive view is active.
func (m DisplayMode) Special() bool {
	return m.Kind != ViewNone
}

func (m DisplayMode) String() string {
	switch m.Kind {
	case ViewNone:
		return "none"
	case ViewChannel:
		return "channel_" + m.Channel.String()
	case ViewGrayscale:
		return "grayscale"
	}
	return fmt.Sprintf("DisplayMode(%d)", int(m.Kind))
}

// Options controls the annotation style used by DrawRectangle and the fill
// used by Rotate. The zero value selects the defaults: a 3 pixel blue stroke
// and an opaque black background.
type Options struct {
	AnnotationColor  color.Color
	AnnotationStroke int
	RotateBackground color.Color
}

func (o Options) withDefaults() Options {
	if o.AnnotationColor == nil {
		o.AnnotationColor = imaging.AnnotationColor
	}
	if o.AnnotationStroke <= 0 {
		o.AnnotationStroke = imaging.AnnotationStroke
	}
	if o.RotateBackground == nil {
		o.RotateBackground = imaging.RotateBackground
	}
	return o
}

// ImageState is the image-state manager. The zero value is not usable; create
// one with New.
type ImageState struct {
	opts     Options
	current  *image.RGBA
	baseline *image.RGBA
	mode     DisplayMode
}

// New returns an empty ImageState.
func New(opts Options) *ImageState {
	return &ImageState{opts: opts.withDefaults()}
}

// SetImage replaces both current and baseline with copies of img and clears
// the display mode. img is expected to be a decoded image; it is never
// retained or modified. The state always holds three-channel color, so any
// alpha in img is dropped and every pixel becomes opaque.
func (s *ImageState) SetImage(img image.Image) {
	s.current = imaging.Opaque(img)
	s.baseline = imaging.ToRGBA(s.current)
	s.mode = ModeNone
}

// ShowChannel displays only channel c of the baseline, with the other two
// channels set to zero. The baseline is not modified, so repeated calls with
// any channel always start from the same clean image.
func (s *ImageState) ShowChannel(c imaging.Channel) (*image.RGBA, error) {
	if s.baseline == nil {
		return nil, ErrEmpty
	}
	if !c.Valid() {
		return nil, fmt.Errorf("invalid channel %v", c)
	}
	s.current = imaging.IsolateChannel(s.baseline, c)
	s.mode = ModeChannel(c)
	return s.current, nil
}

// ToGrayscale displays the baseline with every channel replaced by the rounded
// mean of R, G and B. The baseline is not modified.
func (s *ImageState) ToGrayscale() (*image.RGBA, error) {
	if s.baseline == nil {
		return nil, ErrEmpty
	}
	s.current = imaging.MeanGrayscale(s.baseline)
	s.mode = ModeGrayscale
	return s.current, nil
}

// Rotate turns the current image counter-clockwise by degrees, growing the
// canvas so nothing is cropped. Any angle is accepted and taken modulo 360.
//
// With no view active the result also becomes the new baseline. While a
// channel or grayscale view is active only the current image changes; the
// baseline and the display mode are left as they are.
func (s *ImageState) Rotate(degrees float64) (*image.RGBA, error) {
	if s.current == nil {
		return nil, ErrEmpty
	}
	s.commit(imaging.Rotate(s.current, degrees, s.opts.RotateBackground))
	return s.current, nil
}

// DrawRectangle outlines the rectangle with corners (x1,y1) and (x2,y2) on a
// copy of the current image. Corners may be in any order and outside the
// image. The fold-in rule is the same as for Rotate.
func (s *ImageState) DrawRectangle(x1, y1, x2, y2 int) (*image.RGBA, error) {
	if s.current == nil {
		return nil, ErrEmpty
	}
	s.commit(imaging.DrawRectangle(s.current, x1, y1, x2, y2, s.opts.AnnotationStroke, s.opts.AnnotationColor))
	return s.current, nil
}

// commit stores the output of a destructive operation.
func (s *ImageState) commit(out *image.RGBA) {
	s.current = out
	if s.mode.Special() {
		// The view stays active and the baseline keeps the pre-view image.
		return
	}
	s.baseline = imaging.ToRGBA(out)
}

// Reset drops both images and clears the display mode.
func (s *ImageState) Reset() {
	s.current = nil
	s.baseline = nil
	s.mode = ModeNone
}

// Current returns the displayed image, or nil when the state is empty. The
// returned buffer belongs to the state and must not be modified.
func (s *ImageState) Current() *image.RGBA {
	return s.current
}

// Mode returns the active display mode.
func (s *ImageState) Mode() DisplayMode {
	return s.mode
}

// Empty reports whether no image is loaded.
func (s *ImageState) Empty() bool {
	return s.current == nil
}
