// Package metrics defines the prometheus collectors shared by the workbench.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
	ResultError = "error"
)

var (
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "image_workbench",
		Name:      "operations_total",
		Help:      "Image operations by name and result.",
	}, []string{"op", "result"})

	OperationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "image_workbench",
		Name:      "operation_seconds",
		Help:      "Time spent applying image operations.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"op"})

	FramesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "image_workbench",
		Name:      "frames_captured_total",
		Help:      "Frames pulled from the capture source.",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "image_workbench",
		Name:      "frames_dropped_total",
		Help:      "Frames replaced before anyone read them.",
	})

	CaptureErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "image_workbench",
		Name:      "capture_errors_total",
		Help:      "Failed reads from the capture source.",
	})
)

// Observe records one operation.
func Observe(op, result string, elapsed time.Duration) {
	Operations.WithLabelValues(op, result).Inc()
	OperationSeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}
