// Package trace provides lightweight instrumentation for pipeline runs:
// operation timers, image statistics, and memory usage, reported
// through logrus at debug level.
package trace

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Tracer records named operation timings and image statistics. A
// disabled Tracer is a no-op, so call sites need no guards.
type Tracer struct {
	enabled bool
	logger  *logrus.Logger
	timings map[string]time.Time
}

func New(logger *logrus.Logger, enabled bool) *Tracer {
	return &Tracer{
		enabled: enabled,
		logger:  logger,
		timings: make(map[string]time.Time),
	}
}

func (t *Tracer) Enabled() bool { return t.enabled }

func (t *Tracer) SetEnabled(enabled bool) { t.enabled = enabled }

// Start begins timing the named operation.
func (t *Tracer) Start(operation string) {
	if !t.enabled {
		return
	}
	t.timings[operation] = time.Now()
}

// End stops timing the named operation, logs the duration, and returns
// it. Returns zero for an operation that was never started.
func (t *Tracer) End(operation string) time.Duration {
	if !t.enabled {
		return 0
	}

	startTime, ok := t.timings[operation]
	if !ok {
		return 0
	}
	duration := time.Since(startTime)
	delete(t.timings, operation)

	t.logger.WithFields(logrus.Fields{
		"operation": operation,
		"duration":  duration,
	}).Debug("Operation timed")
	return duration
}

// ImageStats logs the dimensions, channel count, and byte size of mat.
func (t *Tracer) ImageStats(name string, mat gocv.Mat) {
	if !t.enabled || mat.Empty() {
		return
	}

	t.logger.WithFields(logrus.Fields{
		"image":    name,
		"width":    mat.Cols(),
		"height":   mat.Rows(),
		"channels": mat.Channels(),
		"bytes":    mat.Total() * mat.ElemSize(),
	}).Debug("Image stats")
}

// MemoryUsage logs the current Go heap statistics.
func (t *Tracer) MemoryUsage() {
	if !t.enabled {
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	t.logger.WithFields(logrus.Fields{
		"alloc_mb":       float64(m.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(m.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(m.Sys) / 1024 / 1024,
		"num_gc":         m.NumGC,
	}).Debug("Memory usage")
}
