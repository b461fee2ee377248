package carworld

import "gocv.io/x/gocv"

// FrameProcessor is the extension point a concrete vision pipeline
// implements. The base pipeline depends only on this contract, never on
// a concrete transform.
type FrameProcessor interface {
	// Process returns a processed image with the same dimensions as the
	// input. The caller owns the returned Mat.
	Process(img gocv.Mat) (gocv.Mat, error)

	// ProcessDebug runs the same transform while collecting the named
	// intermediate stages it produced. The returned map must contain a
	// "final" entry holding the end result; the caller owns every Mat
	// in the map.
	ProcessDebug(img gocv.Mat) (map[string]gocv.Mat, error)
}
