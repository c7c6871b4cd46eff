package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/clone"
)

// Channel identifies one of the three color planes of an RGB image.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

// String returns the single-letter name of the channel ("R", "G" or "B").
func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "R"
	case ChannelGreen:
		return "G"
	case ChannelBlue:
		return "B"
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Valid reports whether c names one of the three RGB planes.
func (c Channel) Valid() bool {
	return c >= ChannelRed && c <= ChannelBlue
}

// ParseChannel converts a channel name to a Channel.
//
// Accepted names are "R", "G", "B" and the long forms "red", "green", "blue",
// all case-insensitive.
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "red":
		return ChannelRed, nil
	case "g", "green":
		return ChannelGreen, nil
	case "b", "blue":
		return ChannelBlue, nil
	}
	return 0, fmt.Errorf("unknown channel %q: want R, G or B", s)
}

// ToRGBA returns an *image.RGBA copy of img. The result never shares pixel
// memory with the input, even when img is already an *image.RGBA.
func ToRGBA(img image.Image) *image.RGBA {
	return clone.AsRGBA(img)
}

// Opaque returns an *image.RGBA copy of img with the alpha channel dropped:
// every pixel keeps its straight (unpremultiplied) color and becomes fully
// opaque. Fully transparent pixels come out black.
func Opaque(img image.Image) *image.RGBA {
	dst := clone.AsRGBA(img)
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		px := color.RGBA{dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3]}
		if px.A == 0xff {
			continue
		}
		n := color.NRGBAModel.Convert(px).(color.NRGBA)
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = n.R, n.G, n.B, 0xff
	}
	return dst
}

// IsolateChannel returns a copy of img in which only channel c is kept and the
// other two planes are zero. Alpha is preserved.
func IsolateChannel(img image.Image, c Channel) *image.RGBA {
	return adjust.Apply(img, func(px color.RGBA) color.RGBA {
		out := color.RGBA{A: px.A}
		switch c {
		case ChannelRed:
			out.R = px.R
		case ChannelGreen:
			out.G = px.G
		case ChannelBlue:
			out.B = px.B
		}
		return out
	})
}

// MeanGrayscale returns a three-channel gray copy of img where each of R, G and
// B holds the arithmetic mean of the source pixel's R, G and B, rounded to the
// nearest integer. This is a plain average, not a luminance weighting.
func MeanGrayscale(img image.Image) *image.RGBA {
	return adjust.Apply(img, func(px color.RGBA) color.RGBA {
		m := meanOf(px.R, px.G, px.B)
		return color.RGBA{R: m, G: m, B: m, A: px.A}
	})
}

// meanOf rounds (r+g+b)/3 to nearest; thirds never tie.
func meanOf(r, g, b uint8) uint8 {
	sum := int(r) + int(g) + int(b)
	return uint8((sum + 1) / 3)
}
