package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// countingSource hands out a fresh frame per call and can be told to fail.
type countingSource struct {
	mu     sync.Mutex
	calls  int
	failAt map[int]error
	endAt  int
}

func (s *countingSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.endAt > 0 && s.calls >= s.endAt {
		return nil, io.EOF
	}
	if err, ok := s.failAt[s.calls]; ok {
		return nil, err
	}
	return solid(2+s.calls%3, 2, color.RGBA{uint8(s.calls), 0, 0, 255}), nil
}

func (s *countingSource) Close() error { return nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestTicker_FirstWaitImmediate(t *testing.T) {
	tk := newTicker(time.Hour)
	start := time.Now()
	if err := tk.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("first Wait should not sleep")
	}
}

func TestTicker_CancelledContext(t *testing.T) {
	tk := newTicker(time.Hour)
	_ = tk.Wait(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := tk.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait: got %v, want context.Canceled", err)
	}
}

func TestTicker_Interval(t *testing.T) {
	tk := newTicker(20 * time.Millisecond)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := tk.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	// first wait is free, the next three sleep one interval each
	if elapsed := time.Since(start); elapsed < 55*time.Millisecond {
		t.Errorf("four waits took %v, expected about 60ms", elapsed)
	}
}

func TestFrameSignal(t *testing.T) {
	f := newFrameSignal()
	if f.seq() != 0 {
		t.Fatalf("initial seq: got %d, want 0", f.seq())
	}

	ch := f.after(0)
	select {
	case <-ch:
		t.Fatal("channel closed before any frame")
	default:
	}

	if got := f.publish(); got != 1 {
		t.Errorf("publish: got %d, want 1", got)
	}
	select {
	case <-ch:
	default:
		t.Fatal("channel not closed after publish")
	}

	// a stale sequence number returns an already closed channel
	select {
	case <-f.after(0):
	default:
		t.Error("after with stale seq should not block")
	}
	select {
	case <-f.after(1):
		t.Error("after with current seq should block")
	default:
	}
}

func TestFileSource(t *testing.T) {
	img := solid(3, 3, color.RGBA{10, 20, 30, 255})
	src := NewImageSource(img)

	got, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got != image.Image(img) {
		t.Error("Next should return the wrapped image")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next with cancelled ctx: got %v", err)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("Next after Close: got %v, want io.EOF", err)
	}
}

func TestCamera_CapturesFrames(t *testing.T) {
	cam := NewCamera("test", &countingSource{}, time.Millisecond)
	if cam.Running() {
		t.Fatal("camera running before Start")
	}
	if _, err := cam.Snapshot(); !errors.Is(err, ErrNoFrame) {
		t.Fatalf("Snapshot before start: got %v, want ErrNoFrame", err)
	}

	cam.Start(context.Background())
	cam.Start(context.Background()) // second Start is a no-op
	if !cam.Running() {
		t.Fatal("camera not running after Start")
	}

	waitFor(t, "three frames", func() bool { return cam.Seq() >= 3 })
	cam.Stop()

	if cam.Running() {
		t.Error("camera still running after Stop")
	}
	frame, seq := cam.Latest()
	if frame == nil {
		t.Fatal("Latest returned nil frame")
	}
	if seq < 3 {
		t.Errorf("seq: got %d, want >= 3", seq)
	}

	st := cam.Status()
	if st.Frames != seq {
		t.Errorf("Status.Frames %d != seq %d", st.Frames, seq)
	}
	if st.Running {
		t.Error("Status.Running should be false")
	}
	if st.Width != frame.Bounds().Dx() || st.Height != frame.Bounds().Dy() {
		t.Errorf("Status size %dx%d does not match frame %v", st.Width, st.Height, frame.Bounds())
	}

	// frames are not overwritten once stopped
	time.Sleep(10 * time.Millisecond)
	if cam.Seq() != seq {
		t.Error("sequence advanced after Stop")
	}
}

func TestCamera_CountsDroppedFrames(t *testing.T) {
	cam := NewCamera("test", &countingSource{}, time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "five frames", func() bool { return cam.Seq() >= 5 })
	cam.Stop()

	// nobody read between frames, so all but the last were dropped
	st := cam.Status()
	if st.Dropped != st.Frames-1 {
		t.Errorf("dropped: got %d, want %d", st.Dropped, st.Frames-1)
	}
}

func TestCamera_SkipsFailedReads(t *testing.T) {
	src := &countingSource{failAt: map[int]error{1: errors.New("glitch"), 2: errors.New("glitch")}}
	cam := NewCamera("test", src, time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "a frame after failures", func() bool { return cam.Seq() >= 1 })
	cam.Stop()

	frame, err := cam.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	// call 3 is the first success
	if r := frame.(*image.RGBA).RGBAAt(0, 0).R; r < 3 {
		t.Errorf("first frame came from call %d, want >= 3", r)
	}
}

func TestCamera_StopsOnEOF(t *testing.T) {
	cam := NewCamera("test", &countingSource{endAt: 3}, time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "loop exit", func() bool { return !cam.Running() })

	if cam.Seq() != 2 {
		t.Errorf("seq: got %d, want 2", cam.Seq())
	}

	// a camera whose loop ended can be started again
	cam.Start(context.Background())
	waitFor(t, "second loop exit", func() bool { return !cam.Running() })
	cam.Stop()
}

func TestCamera_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cam := NewCamera("test", &countingSource{}, time.Millisecond)
	cam.Start(ctx)
	cancel()
	waitFor(t, "loop exit", func() bool { return !cam.Running() })
	cam.Stop()
}

func TestCamera_CloseReleasesSource(t *testing.T) {
	src := NewImageSource(solid(2, 2, color.RGBA{9, 9, 9, 255}))
	cam := NewCamera("test", src, time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "a frame", func() bool { return cam.Seq() >= 1 })

	if err := cam.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cam.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("source after Close: got %v, want io.EOF", err)
	}
	if _, err := cam.Snapshot(); err != nil {
		t.Errorf("Snapshot after Close: %v", err)
	}

	cam.Start(context.Background())
	if cam.Running() {
		t.Error("closed camera should not start")
	}
}

func TestCamera_LatestSeqMatchesStatus(t *testing.T) {
	cam := NewCamera("test", &countingSource{}, time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "two frames", func() bool { return cam.Seq() >= 2 })
	cam.Stop()

	_, seq := cam.Latest()
	if st := cam.Status(); st.Sequence != seq {
		t.Errorf("Status.Sequence %d != Latest seq %d", st.Sequence, seq)
	}
}

func TestCamera_WaitNext(t *testing.T) {
	cam := NewCamera("test", &countingSource{}, time.Millisecond)
	ch := cam.WaitNext(cam.Seq())
	cam.Start(context.Background())
	defer cam.Stop()

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitNext never fired")
	}
}

func jpegBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(8, 8, c), &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func mjpegServer(t *testing.T, frames [][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		flusher, _ := w.(http.Flusher)
		for _, f := range frames {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(f))
			_, _ = w.Write(f)
			_, _ = io.WriteString(w, "\r\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
		// hold the connection open until the client goes away
		<-r.Context().Done()
	}))
}

func TestMJPEGSource_DecodesFrames(t *testing.T) {
	srv := mjpegServer(t, [][]byte{jpegBytes(t, color.RGBA{255, 255, 255, 255})})
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	defer src.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	img, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("frame size: got %v, want 8x8", b)
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("Next after Close: got %v, want io.EOF", err)
	}
}

// The server writes frames with Content-Length and then goes quiet: each
// frame must be delivered without waiting for a following boundary.
func TestMJPEGSource_FramesNotHeldBack(t *testing.T) {
	frames := [][]byte{
		jpegBytes(t, color.RGBA{255, 0, 0, 255}),
		jpegBytes(t, color.RGBA{0, 0, 255, 255}),
	}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		flusher := w.(http.Flusher)
		for i, f := range frames {
			if i > 0 {
				select {
				case <-release:
				case <-r.Context().Done():
					return
				}
			}
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(f))
			_, _ = w.Write(f)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	defer src.Close()

	next := func() color.RGBA {
		t.Helper()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		img, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		r, g, b, _ := img.At(4, 4).RGBA()
		return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 255}
	}

	if c := next(); c.R < 200 || c.B > 50 {
		t.Errorf("first frame: got %v, want red", c)
	}
	close(release)
	if c := next(); c.B < 200 || c.R > 50 {
		t.Errorf("second frame: got %v, want blue", c)
	}
}

func TestMJPEGSource_BadContentLength(t *testing.T) {
	good := jpegBytes(t, color.RGBA{0, 255, 0, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		_, _ = io.WriteString(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: lots\r\n\r\njunk\r\n")
		_, _ = io.WriteString(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n")
		_, _ = w.Write(good)
		_, _ = io.WriteString(w, "\r\n--frame--\r\n")
	}))
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	img, err := src.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 {
		t.Errorf("frame size: got %v, want 8x8", b)
	}
}

func TestMJPEGSource_CloseTwice(t *testing.T) {
	srv := mjpegServer(t, [][]byte{jpegBytes(t, color.RGBA{1, 2, 3, 255})})
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := src.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestMJPEGSource_MissingBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("not a stream"))
	}))
	defer srv.Close()

	src := NewMJPEGSource(srv.URL)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := src.Next(ctx)
	if err == nil || err == io.EOF || errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next: got %v, want boundary error", err)
	}
}

func TestMJPEGSource_CloseBeforeStart(t *testing.T) {
	src := NewMJPEGSource("http://127.0.0.1:1/unused")
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := src.Next(context.Background()); err != io.EOF {
		t.Errorf("Next: got %v, want io.EOF", err)
	}
}

func TestMJPEGSource_WithCamera(t *testing.T) {
	srv := mjpegServer(t, [][]byte{
		jpegBytes(t, color.RGBA{255, 0, 0, 255}),
		jpegBytes(t, color.RGBA{0, 0, 255, 255}),
	})
	defer srv.Close()

	cam := NewCamera("mjpeg", NewMJPEGSource(srv.URL), time.Millisecond)
	cam.Start(context.Background())
	waitFor(t, "a frame", func() bool { return cam.Seq() >= 1 })
	if err := cam.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := cam.Snapshot(); err != nil {
		t.Errorf("Snapshot: %v", err)
	}
}
