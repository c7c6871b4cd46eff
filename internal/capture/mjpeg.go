package capture

import (
	"context"
	"fmt"
	"image"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/imaging"
)

// maxFrameBytes bounds the Content-Length accepted for one frame.
const maxFrameBytes = 32 << 20

// MJPEGSource consumes a multipart/x-mixed-replace MJPEG stream, the format
// served by most IP and USB webcam bridges, and yields decoded frames.
//
// Streaming starts on the first call to Next. Only the newest undecoded frame
// is kept: frames that arrive faster than Next is called are discarded.
type MJPEGSource struct {
	URL    string
	Client *http.Client

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	frames  chan []byte
	done    chan struct{}
	err     error
}

// NewMJPEGSource creates a source with sensible timeouts.
func NewMJPEGSource(url string) *MJPEGSource {
	return &MJPEGSource{
		URL: url,
		Client: &http.Client{
			Timeout: 0, // stream is long-lived; per-req timeouts set via Transport/Context
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConns:          4,
				MaxConnsPerHost:       4,
			},
		},
		frames: make(chan []byte, 1),
		done:   make(chan struct{}),
	}
}

func (m *MJPEGSource) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go func() {
		err := m.stream(ctx)
		m.mu.Lock()
		m.err = err
		m.mu.Unlock()
		close(m.done)
	}()
}

// Next returns the newest frame received from the stream, waiting for one
// if none is pending.
func (m *MJPEGSource) Next(ctx context.Context) (image.Image, error) {
	m.start()
	select {
	case buf := <-m.frames:
		return imaging.DecodeBytes(buf)
	case <-m.done:
		m.mu.Lock()
		err := m.err
		m.mu.Unlock()
		if err == nil || err == context.Canceled {
			err = io.EOF
		}
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the stream and drops the connection. Subsequent calls to Next
// return io.EOF. Close may be called more than once.
func (m *MJPEGSource) Close() error {
	m.mu.Lock()
	if !m.started {
		m.started = true
		close(m.done)
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-m.done
	return nil
}

// offer puts buf in the single-frame slot, replacing any frame not yet taken.
// stream is the only writer, so the send after draining cannot block.
func (m *MJPEGSource) offer(buf []byte) {
	select {
	case m.frames <- buf:
		return
	default:
	}
	select {
	case <-m.frames:
	default:
	}
	m.frames <- buf
}

// stream connects and continuously delivers JPEG frames.
// It auto-reconnects on errors with backoff until ctx is done.
func (m *MJPEGSource) stream(ctx context.Context) error {
	logger := log.WithField("url", m.URL)
	backoff := 500 * time.Millisecond
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
		if err != nil {
			return fmt.Errorf("mjpeg request: %w", err)
		}
		req.Header.Set("Connection", "keep-alive")
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("User-Agent", "image-workbench/1.0")
		req.Header.Set("Accept", "image/jpeg, multipart/x-mixed-replace, */*")

		resp, err := m.Client.Do(req)
		if err == nil && resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			err = fmt.Errorf("unexpected status %s", resp.Status)
		}
		if err != nil {
			// transient network error, back off and retry
			logger.WithError(err).Debug("mjpeg connect failed")
			select {
			case <-time.After(backoff):
				backoff = minDur(backoff*2, 10*time.Second)
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		backoff = 500 * time.Millisecond // reset on successful connect

		ct := resp.Header.Get("Content-Type")
		_, params, err := mime.ParseMediaType(ct)
		boundary := strings.TrimSpace(params["boundary"])
		if err != nil || boundary == "" {
			resp.Body.Close()
			return fmt.Errorf("missing boundary in content-type: %q", ct)
		}
		// Some servers include leading "--" in the boundary parameter.
		boundary = strings.TrimPrefix(boundary, "--")

		mr := multipart.NewReader(resp.Body, boundary)
		for {
			if ctx.Err() != nil {
				resp.Body.Close()
				return ctx.Err()
			}
			part, err := mr.NextPart()
			if err != nil {
				resp.Body.Close()
				// EOF or transient; reconnect
				break
			}
			buf, err := readPart(part)
			_ = part.Close()
			if err != nil || len(buf) == 0 {
				// broken frame; continue to next part
				continue
			}
			m.offer(buf)
		}
		// reconnect loop with backoff
		select {
		case <-time.After(backoff):
			backoff = minDur(backoff*2, 10*time.Second)
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readPart returns the body of one multipart frame. With a Content-Length
// header it reads exactly that many bytes, so the frame is delivered without
// waiting for the next boundary to arrive.
func readPart(part *multipart.Part) ([]byte, error) {
	cl := strings.TrimSpace(part.Header.Get("Content-Length"))
	if cl == "" {
		return io.ReadAll(part)
	}
	n, err := strconv.Atoi(cl)
	if err != nil || n < 0 || n > maxFrameBytes {
		return nil, fmt.Errorf("bad frame length %q", cl)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(part, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
