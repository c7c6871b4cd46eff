// Package capture pulls frames from a camera-like source on a fixed interval.
//
// A Source produces decoded frames on demand. A Camera polls a Source in the
// background and keeps only the most recent frame: when nobody reads a frame
// before the next one arrives, the old one is dropped. The camera never
// touches the image state; taking a snapshot is the caller's job.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/ironsheep/image-workbench/internal/imaging"
)

// ErrNoFrame is returned when a snapshot is requested before the camera has
// produced any frame.
var ErrNoFrame = errors.New("no frame available")

// Source yields frames. Next blocks until a frame is ready, the source fails,
// or ctx is done.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	io.Closer
}

// FileSource serves the same still image as every frame. It stands in for a
// camera when testing or when replaying a saved snapshot.
type FileSource struct {
	mu     sync.Mutex
	img    image.Image
	closed bool
}

// NewFileSource decodes path through cache and returns a source serving it.
func NewFileSource(cache *imaging.ImageCache, path string) (*FileSource, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return &FileSource{img: img}, nil
}

// NewImageSource returns a source serving img.
func NewImageSource(img image.Image) *FileSource {
	return &FileSource{img: img}
}

func (f *FileSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, io.EOF
	}
	return f.img, nil
}

func (f *FileSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}
