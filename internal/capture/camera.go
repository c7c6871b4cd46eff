package capture

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/metrics"
)

// DefaultInterval is the polling period of a camera, about 33 frames a second.
const DefaultInterval = 30 * time.Millisecond

// Status is a point-in-time view of a camera.
type Status struct {
	Name        string    `json:"name"`
	Running     bool      `json:"running"`
	Frames      uint64    `json:"frames"`
	Dropped     uint64    `json:"dropped"`
	Sequence    uint64    `json:"sequence"`
	LastFrameAt time.Time `json:"last_frame_at,omitempty"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
}

// Camera polls a Source at a fixed interval and keeps the latest frame.
//
// There is no buffering: each new frame replaces the previous one, and a
// frame that was never read before being replaced is counted as dropped.
type Camera struct {
	name     string
	src      Source
	interval time.Duration
	signal   *frameSignal

	// ctl serializes Start, Stop and Close. The loop never takes it.
	ctl    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	// latestSeq is the sequence number of latest, set together with it.
	mu        sync.Mutex
	latest    image.Image
	latestSeq uint64
	read      bool
	frameAt   time.Time

	running atomic.Bool
	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewCamera wraps src. A non-positive interval uses DefaultInterval.
func NewCamera(name string, src Source, interval time.Duration) *Camera {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Camera{
		name:     name,
		src:      src,
		interval: interval,
		signal:   newFrameSignal(),
	}
}

// Start launches the polling loop. Calling Start on a running or closed
// camera does nothing. The loop stops when ctx is done, on Stop, or when the
// source reports io.EOF.
func (c *Camera) Start(ctx context.Context) {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	if c.closed {
		return
	}
	if c.cancel != nil {
		if c.running.Load() {
			return
		}
		// previous loop ended on its own
		c.cancel()
		<-c.done
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running.Store(true)
	log.WithFields(log.Fields{"camera": c.name, "interval": c.interval}).Info("Camera started")
	go c.loop(ctx, c.done)
}

// Stop halts the polling loop and waits for it to exit. The last frame stays
// available through Latest.
func (c *Camera) Stop() {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	<-c.done
}

// Close stops the camera and releases its source. The last frame stays
// available and a closed camera cannot be started again. Calling Close more
// than once is safe.
func (c *Camera) Close() error {
	c.Stop()
	c.ctl.Lock()
	defer c.ctl.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.src.Close()
}

// Running reports whether the polling loop is active.
func (c *Camera) Running() bool {
	return c.running.Load()
}

func (c *Camera) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.running.Store(false)
	logger := log.WithField("camera", c.name)

	tk := newTicker(c.interval)
	for {
		if err := tk.Wait(ctx); err != nil {
			logger.Info("Camera stopped")
			return
		}
		frame, err := c.src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Camera stopped")
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Info("Camera source ended")
				return
			}
			metrics.CaptureErrors.Inc()
			logger.WithError(err).Warn("Frame read failed")
			continue
		}
		c.store(frame)
	}
}

func (c *Camera) store(frame image.Image) {
	c.mu.Lock()
	if c.latest != nil && !c.read {
		c.dropped.Add(1)
		metrics.FramesDropped.Inc()
	}
	c.latest = frame
	c.read = false
	c.frameAt = time.Now()
	c.frames.Add(1)
	c.latestSeq = c.signal.publish()
	c.mu.Unlock()

	metrics.FramesCaptured.Inc()
}

// Latest returns the most recent frame and its sequence number. The frame is
// nil until the first capture. The returned image is shared and must not be
// modified.
func (c *Camera) Latest() (image.Image, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.read = true
	return c.latest, c.latestSeq
}

// Snapshot returns the latest frame, or ErrNoFrame if none has arrived yet.
func (c *Camera) Snapshot() (image.Image, error) {
	frame, _ := c.Latest()
	if frame == nil {
		return nil, ErrNoFrame
	}
	return frame, nil
}

// Seq returns the sequence number of the latest frame.
func (c *Camera) Seq() uint64 { return c.signal.seq() }

// WaitNext returns a channel closed once a frame newer than since arrives.
func (c *Camera) WaitNext(since uint64) <-chan struct{} { return c.signal.after(since) }

// Status reports counters and the size of the latest frame.
func (c *Camera) Status() Status {
	c.mu.Lock()
	latest, seq, at := c.latest, c.latestSeq, c.frameAt
	c.mu.Unlock()

	st := Status{
		Name:        c.name,
		Running:     c.Running(),
		Frames:      c.frames.Load(),
		Dropped:     c.dropped.Load(),
		Sequence:    seq,
		LastFrameAt: at,
	}
	if latest != nil {
		st.Width, st.Height = latest.Bounds().Dx(), latest.Bounds().Dy()
	}
	return st
}
