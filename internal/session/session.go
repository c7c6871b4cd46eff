// Package session serializes access to the image state, the decoded file
// cache and the camera.
//
// ImageState has no locking of its own. Every front end (the stdio server and
// the HTTP preview) goes through a Session, which holds one mutex for the
// whole call. The camera loop runs on its own goroutine and only ever reaches
// the state through Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/capture"
	"github.com/ironsheep/image-workbench/internal/imaging"
	"github.com/ironsheep/image-workbench/internal/metrics"
	"github.com/ironsheep/image-workbench/internal/state"
)

// ErrNoCamera is returned by camera operations before any camera was started.
var ErrNoCamera = errors.New("no camera started")

// Options configures a Session.
type Options struct {
	State           state.Options
	CacheTTL        time.Duration
	CaptureInterval time.Duration
}

// Session is safe for concurrent use. Images it returns are shared with the
// state and must be treated as read-only.
type Session struct {
	mu       sync.Mutex
	state    *state.ImageState
	cache    *imaging.ImageCache
	camera   *capture.Camera
	interval time.Duration
}

// New returns an empty session.
func New(opts Options) *Session {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = imaging.DefaultCacheTTL
	}
	return &Session{
		state:    state.New(opts.State),
		cache:    imaging.NewImageCache(ttl),
		interval: opts.CaptureInterval,
	}
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, state.ErrEmpty):
		return metrics.ResultEmpty
	default:
		return metrics.ResultError
	}
}

// observe records metrics and a log line for one finished operation.
func observe(op string, start time.Time, err error, fields log.Fields) {
	elapsed := time.Since(start)
	result := resultOf(err)
	metrics.Observe(op, result, elapsed)

	entry := log.WithFields(fields).WithFields(log.Fields{"op": op, "elapsed": elapsed})
	switch result {
	case metrics.ResultOK:
		entry.Debug("Operation complete")
	case metrics.ResultEmpty:
		entry.Info("Operation skipped: no image loaded")
	default:
		entry.WithError(err).Warn("Operation failed")
	}
}

// LoadFile decodes the file at path and makes it the current image.
func (s *Session) LoadFile(path string) (img *image.RGBA, info *imaging.ImageInfo, err error) {
	defer func(start time.Time) { observe("load", start, err, log.Fields{"path": path}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	src, info, err := imaging.LoadImageInfo(s.cache, path)
	if err != nil {
		return nil, nil, err
	}
	s.state.SetImage(src)
	return s.state.Current(), info, nil
}

// SaveFile writes the current image to path. The codec follows the extension.
func (s *Session) SaveFile(path string) (err error) {
	defer func(start time.Time) { observe("save", start, err, log.Fields{"path": path}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Current()
	if cur == nil {
		return state.ErrEmpty
	}
	if err := imaging.Save(cur, path); err != nil {
		return err
	}
	s.cache.Evict(path)
	return nil
}

// SetImage replaces the current image with img.
func (s *Session) SetImage(img image.Image) *image.RGBA {
	defer observe("set_image", time.Now(), nil, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetImage(img)
	return s.state.Current()
}

// ShowChannel displays a single channel of the baseline.
func (s *Session) ShowChannel(c imaging.Channel) (img *image.RGBA, err error) {
	defer func(start time.Time) { observe("show_channel", start, err, log.Fields{"channel": c.String()}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ShowChannel(c)
}

// Grayscale displays the grayscale view of the baseline.
func (s *Session) Grayscale() (img *image.RGBA, err error) {
	defer func(start time.Time) { observe("grayscale", start, err, nil) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ToGrayscale()
}

// Rotate turns the current image counter-clockwise by degrees.
func (s *Session) Rotate(degrees float64) (img *image.RGBA, err error) {
	defer func(start time.Time) { observe("rotate", start, err, log.Fields{"degrees": degrees}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Rotate(degrees)
}

// DrawRectangle outlines the rectangle with the given inclusive corners.
func (s *Session) DrawRectangle(x1, y1, x2, y2 int) (img *image.RGBA, err error) {
	defer func(start time.Time) {
		observe("draw_rectangle", start, err, log.Fields{"rect": fmt.Sprintf("(%d,%d)-(%d,%d)", x1, y1, x2, y2)})
	}(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DrawRectangle(x1, y1, x2, y2)
}

// Reset empties the state and releases the camera if one was started.
func (s *Session) Reset() {
	defer observe("reset", time.Now(), nil, nil)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset()
	s.releaseCamera()
}

// releaseCamera stops the camera and closes its source, so a stream
// connection is dropped right away. The camera and its last frame stay
// around for CameraStatus and LiveFrame. Callers hold s.mu.
func (s *Session) releaseCamera() {
	if s.camera == nil {
		return
	}
	if err := s.camera.Close(); err != nil {
		log.WithError(err).Warn("Closing camera source")
	}
}

// Current returns the displayed image, or nil when nothing is loaded.
func (s *Session) Current() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Current()
}

// Mode returns the active display mode.
func (s *Session) Mode() state.DisplayMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode()
}

// SampleColor reads the color at (x, y) of the current image.
func (s *Session) SampleColor(x, y int) (res *imaging.ColorResult, err error) {
	defer func(start time.Time) { observe("sample_color", start, err, log.Fields{"x": x, "y": y}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Current()
	if cur == nil {
		return nil, state.ErrEmpty
	}
	return imaging.SampleColor(cur, x, y)
}

// OpenSource resolves a camera location. http and https URLs are read as
// MJPEG streams; anything else is a still image file replayed as frames.
func (s *Session) OpenSource(location string) (capture.Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errors.New("empty camera location")
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return capture.NewMJPEGSource(location), nil
	}
	return capture.NewFileSource(s.cache, location)
}

// StartCamera begins polling src, replacing any previous camera. The camera
// runs until ctx is done, StopCamera, Snapshot or Reset.
func (s *Session) StartCamera(ctx context.Context, name string, src capture.Source) (err error) {
	defer func(start time.Time) { observe("camera_start", start, err, log.Fields{"camera": name}) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera != nil {
		if err := s.camera.Close(); err != nil {
			log.WithError(err).Warn("Closing previous camera")
		}
	}
	s.camera = capture.NewCamera(name, src, s.interval)
	s.camera.Start(ctx)
	return nil
}

// StopCamera halts polling and releases the source. The last frame remains
// available.
func (s *Session) StopCamera() (err error) {
	defer func(start time.Time) { observe("camera_stop", start, err, nil) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera == nil {
		return ErrNoCamera
	}
	s.releaseCamera()
	return nil
}

// Snapshot copies the latest camera frame into the state and releases the
// camera. It returns capture.ErrNoFrame when no frame has arrived yet, in
// which case the camera keeps running.
func (s *Session) Snapshot() (img *image.RGBA, err error) {
	defer func(start time.Time) { observe("camera_snapshot", start, err, nil) }(time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.camera == nil {
		return nil, ErrNoCamera
	}
	frame, err := s.camera.Snapshot()
	if err != nil {
		return nil, err
	}
	s.state.SetImage(frame)
	s.releaseCamera()
	return s.state.Current(), nil
}

// CameraStatus reports the camera counters.
func (s *Session) CameraStatus() (capture.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil {
		return capture.Status{}, ErrNoCamera
	}
	return s.camera.Status(), nil
}

// LiveFrame returns the latest camera frame, its sequence number and a
// channel that is closed when a newer frame arrives. The frame is nil until
// the camera has produced one.
func (s *Session) LiveFrame() (image.Image, uint64, <-chan struct{}, error) {
	s.mu.Lock()
	cam := s.camera
	s.mu.Unlock()
	if cam == nil {
		return nil, 0, nil, ErrNoCamera
	}
	frame, seq := cam.Latest()
	return frame, seq, cam.WaitNext(seq), nil
}

// Close stops and releases the camera.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.camera == nil {
		return nil
	}
	err := s.camera.Close()
	s.camera = nil
	return err
}
