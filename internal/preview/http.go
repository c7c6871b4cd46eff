// Package preview serves the workbench over HTTP for viewing in a browser:
// the current image, the live camera feed and the prometheus metrics.
package preview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ironsheep/image-workbench/internal/imaging"
	"github.com/ironsheep/image-workbench/internal/session"
)

// JPEGQuality is used for live frames.
const JPEGQuality = 80

// Server is the preview HTTP server. Every route reads through the session,
// so it is safe to serve while the stdio server edits the image.
type Server struct {
	httpServer *http.Server
	sess       *session.Session
	maxW, maxH int
}

// New builds a preview server bound to bind. Images are scaled to fit
// maxW x maxH; zero keeps the default display box.
func New(bind string, sess *session.Session, maxW, maxH int) *Server {
	if maxW <= 0 {
		maxW = imaging.DisplayWidth
	}
	if maxH <= 0 {
		maxH = imaging.DisplayHeight
	}
	r := mux.NewRouter()
	s := &Server{
		httpServer: &http.Server{
			Addr:              bind,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		sess: sess,
		maxW: maxW,
		maxH: maxH,
	}
	r.HandleFunc("/current.png", s.handleCurrent).Methods("GET")
	r.HandleFunc("/live.jpg", s.handleLiveFrame).Methods("GET")
	r.HandleFunc("/live.mjpg", s.handleMJPEG).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return s
}

// Handler returns the router, for mounting elsewhere or for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks serving the preview. After Shutdown it returns
// http.ErrServerClosed.
func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

// Shutdown stops accepting connections and waits for active requests until
// ctx is done. Open MJPEG streams only end when their client disconnects, so
// with a viewer attached Shutdown returns ctx.Err().
func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	cur := s.sess.Current()
	if cur == nil {
		http.Error(w, "no image loaded", http.StatusNotFound)
		return
	}
	data, err := imaging.EncodePNG(imaging.FitForDisplay(cur, s.maxW, s.maxH))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	noCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// liveJPEG encodes the latest camera frame.
func (s *Server) liveJPEG() ([]byte, uint64, <-chan struct{}, error) {
	frame, seq, next, err := s.sess.LiveFrame()
	if err != nil || frame == nil {
		return nil, seq, next, err
	}
	data, err := imaging.EncodeJPEG(imaging.FitForDisplay(frame, s.maxW, s.maxH), JPEGQuality)
	return data, seq, next, err
}

func (s *Server) handleLiveFrame(w http.ResponseWriter, r *http.Request) {
	jpg, _, _, err := s.liveJPEG()
	if errors.Is(err, session.ErrNoCamera) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(jpg) == 0 {
		http.Error(w, "no frame", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	noCache(w)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jpg)
}

func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	jpg, _, next, err := s.liveJPEG()
	if errors.Is(err, session.ErrNoCamera) {
		http.NotFound(w, r)
		return
	}

	mw := NewMJPEGWriter(w)
	flusher, _ := w.(http.Flusher)
	logger := log.WithField("remote", r.RemoteAddr)
	logger.Debug("MJPEG client connected")

	for {
		if err != nil {
			logger.WithError(err).Warn("Live frame encode failed")
		} else if len(jpg) > 0 {
			if err := mw.WriteFrame(jpg); err != nil {
				logger.WithError(err).Debug("MJPEG client gone")
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-next:
		}
		jpg, _, next, err = s.liveJPEG()
		if errors.Is(err, session.ErrNoCamera) {
			return
		}
	}
}

// MJPEGWriter writes a multipart/x-mixed-replace stream of JPEG frames.
type MJPEGWriter struct {
	w        http.ResponseWriter
	boundary string
	started  bool
}

// NewMJPEGWriter sets the streaming headers on w. Headers are sent with the
// first frame.
func NewMJPEGWriter(w http.ResponseWriter) *MJPEGWriter {
	b := "frame"
	w.Header().Set("Connection", "close")
	noCache(w)
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", b))
	return &MJPEGWriter{w: w, boundary: b}
}

// WriteFrame writes one JPEG as a multipart part with its Content-Length.
// The caller flushes.
func (m *MJPEGWriter) WriteFrame(jpeg []byte) error {
	sep := "\r\n"
	if !m.started {
		// no leading CRLF before the first boundary
		sep = ""
		m.started = true
	}
	if _, err := fmt.Fprintf(m.w, "%s--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", sep, m.boundary, len(jpeg)); err != nil {
		return err
	}
	_, err := m.w.Write(jpeg)
	return err
}
