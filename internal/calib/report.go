package calib

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Report summarizes one full calibration solve for logging and
// inspection. It is not produced on a cache hit.
type Report struct {
	PatternSize image.Point
	Used        []string
	Skipped     []string
	// RMSReprojection is the solver's root mean square reprojection
	// error over all accumulated point pairs, in pixels.
	RMSReprojection float64
	// RowStraightnessRMS is the mean per-image residual of straight
	// lines fitted through each detected corner row, in pixels. Lens
	// distortion bows these rows, so larger values indicate stronger
	// distortion in the raw input.
	RowStraightnessRMS float64

	rowResiduals []float64
}

func (r *Report) addCorners(corners []gocv.Point2f, cols int) {
	r.rowResiduals = append(r.rowResiduals, RowStraightness(corners, cols))
}

func (r *Report) finish() {
	if len(r.rowResiduals) > 0 {
		r.RowStraightnessRMS = stat.Mean(r.rowResiduals, nil)
	}
}

// RowStraightness fits a least-squares line through each consecutive
// run of cols corners and returns the RMS vertical residual in pixels.
// A perfectly rectilinear view of the board yields a value near zero.
func RowStraightness(corners []gocv.Point2f, cols int) float64 {
	if cols < 2 || len(corners) < cols {
		return 0
	}

	var sq []float64
	for start := 0; start+cols <= len(corners); start += cols {
		xs := make([]float64, cols)
		ys := make([]float64, cols)
		for i := 0; i < cols; i++ {
			xs[i] = float64(corners[start+i].X)
			ys[i] = float64(corners[start+i].Y)
		}
		alpha, beta := stat.LinearRegression(xs, ys, nil, false)
		for i := range xs {
			resid := ys[i] - (alpha + beta*xs[i])
			sq = append(sq, resid*resid)
		}
	}
	if len(sq) == 0 {
		return 0
	}
	return math.Sqrt(stat.Mean(sq, nil))
}
