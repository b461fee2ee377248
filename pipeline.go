// Package carworld is a reusable base for per-frame vision pipelines:
// camera calibration from chessboard images, distortion correction, and
// stacked debug visualization. The per-frame transform itself is
// supplied by the embedding application through FrameProcessor.
package carworld

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"carworld-pipeline/internal/calib"
	"carworld-pipeline/internal/compose"
	"carworld-pipeline/internal/imgio"
	"carworld-pipeline/internal/trace"
)

// Sentinel errors surfaced by the pipeline. Store and calibrator
// errors (calib.ErrNotFound, calib.ErrNotCalibrated, ...) pass through
// wrapped.
var (
	ErrNoProcessor  = errors.New("no frame processor configured")
	ErrMissingFinal = compose.ErrMissingFinal
)

// Pipeline owns one camera's calibration state and orchestrates
// calibration, correction, and debug composition around an injected
// FrameProcessor. Instances are single-threaded: params is written at
// most once per Calibrate call and read by every later correction.
type Pipeline struct {
	cfg        Config
	logger     *logrus.Logger
	tracer     *trace.Tracer
	store      *calib.Store
	calibrator *calib.Calibrator
	processor  FrameProcessor

	params *calib.Parameters
}

// New builds a Pipeline around processor, which may be nil for
// calibration-only use. A nil logger gets a default logrus logger.
func New(processor FrameProcessor, cfg Config, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	store := calib.NewStore(cfg.calibrationFile(), logger)
	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		tracer:     trace.New(logger, false),
		store:      store,
		calibrator: calib.NewCalibrator(store, cfg.ResultsDir, logger),
		processor:  processor,
	}
}

// Calibrate globs calibration*.jpg under the configured calibration
// directory and derives this camera's distortion parameters from an x
// by y chessboard. With preferCached, previously persisted parameters
// are reused and recomputation skipped. The computed parameters become
// this instance's active parameters. The returned report is nil on a
// cache hit.
func (p *Pipeline) Calibrate(x, y int, debug, preferCached bool) (*calib.Report, error) {
	prev := p.tracer.Enabled()
	p.tracer.SetEnabled(debug)
	defer p.tracer.SetEnabled(prev)

	images, err := imgio.Glob(p.cfg.CalibrationDir, calibrationImageGlob)
	if err != nil {
		return nil, fmt.Errorf("listing calibration images: %w", err)
	}

	p.tracer.Start("calibrate")
	defer p.tracer.End("calibrate")

	params, report, err := p.calibrator.Calibrate(images, x, y, calib.Options{
		Debug:        debug,
		PreferCached: preferCached,
	})
	if err != nil {
		return nil, err
	}

	p.params = params
	return report, nil
}

// CorrectDistortion applies the active calibration parameters to img
// and returns the undistorted result, which has the same dimensions and
// channel count as the input. Fails with calib.ErrNotCalibrated until
// Calibrate or SetParameters has run.
func (p *Pipeline) CorrectDistortion(img gocv.Mat) (gocv.Mat, error) {
	out, err := calib.Undistort(img, p.params)
	if err != nil {
		return out, err
	}
	p.tracer.ImageStats("undistorted", out)
	return out, nil
}

// Process runs the injected per-frame transform on img.
func (p *Pipeline) Process(img gocv.Mat) (gocv.Mat, error) {
	if p.processor == nil {
		return gocv.NewMat(), ErrNoProcessor
	}
	return p.processor.Process(img)
}

// DebugPipeline runs the per-frame transform in debug mode and stacks
// every named stage it produced into one visualization. Fails with
// ErrMissingFinal when the processor omits the "final" stage. The stage
// Mats are transient and closed before returning.
func (p *Pipeline) DebugPipeline(img gocv.Mat) (gocv.Mat, error) {
	if p.processor == nil {
		return gocv.NewMat(), ErrNoProcessor
	}

	p.tracer.Start("debug_pipeline")
	defer p.tracer.End("debug_pipeline")

	stages, err := p.processor.ProcessDebug(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame processor: %w", err)
	}
	defer func() {
		for _, m := range stages {
			m.Close()
		}
	}()

	canvas, err := compose.Stack(stages)
	if err != nil {
		return canvas, err
	}
	p.tracer.ImageStats("debug_canvas", canvas)
	p.tracer.MemoryUsage()
	return canvas, nil
}

// SetDebug toggles per-frame tracing (timers, image stats) for this
// instance. Calibration tracing follows Calibrate's own debug argument
// and does not affect this switch.
func (p *Pipeline) SetDebug(enabled bool) { p.tracer.SetEnabled(enabled) }

// Calibrated reports whether active parameters are set.
func (p *Pipeline) Calibrated() bool { return p.Parameters() != nil }

// Parameters returns the active calibration parameters, or nil before
// calibration. The returned value is shared and must be treated as
// read-only.
func (p *Pipeline) Parameters() *calib.Parameters { return p.params }

// SetParameters installs previously computed parameters, bypassing
// Calibrate. Meant for callers that manage persistence themselves.
func (p *Pipeline) SetParameters(params *calib.Parameters) { p.params = params }

// Store exposes the calibration store backing this pipeline.
func (p *Pipeline) Store() *calib.Store { return p.store }
