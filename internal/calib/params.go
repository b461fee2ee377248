// Package calib derives, persists, and applies a camera's intrinsic
// distortion model from chessboard calibration images.
package calib

import (
	"gocv.io/x/gocv"
)

// Parameters holds the intrinsic distortion model for one camera/lens
// combination: the 3x3 camera matrix and the radial/tangential
// distortion coefficients. Both fields are populated together; a value
// with only one of them is treated as corrupt. Once computed the value
// is never mutated.
type Parameters struct {
	CameraMatrix [3][3]float64 `json:"dist_mtx"`
	DistCoeffs   []float64     `json:"dist_dist"`
}

// NewParametersFromMats copies the solver output Mats (CV64F 3x3 camera
// matrix plus a CV64F row or column of distortion coefficients) into a
// plain Parameters value that owns no OpenCV resources.
func NewParametersFromMats(cameraMatrix, distCoeffs gocv.Mat) *Parameters {
	p := &Parameters{}
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			p.CameraMatrix[r][c] = cameraMatrix.GetDoubleAt(r, c)
		}
	}
	rows, cols := distCoeffs.Rows(), distCoeffs.Cols()
	p.DistCoeffs = make([]float64, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			p.DistCoeffs = append(p.DistCoeffs, distCoeffs.GetDoubleAt(r, c))
		}
	}
	return p
}

// CameraMatrixMat returns the camera matrix as a CV64F Mat. The caller
// owns the returned Mat and must Close it.
func (p *Parameters) CameraMatrixMat() gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, p.CameraMatrix[r][c])
		}
	}
	return m
}

// DistCoeffsMat returns the distortion coefficients as a CV64F row Mat.
// The caller owns the returned Mat and must Close it.
func (p *Parameters) DistCoeffsMat() gocv.Mat {
	m := gocv.NewMatWithSize(1, len(p.DistCoeffs), gocv.MatTypeCV64F)
	for i, v := range p.DistCoeffs {
		m.SetDoubleAt(0, i, v)
	}
	return m
}

// complete reports whether both model fields are populated. The bottom
// right camera matrix entry is the homogeneous 1 in any valid solve, so
// a zero there means the matrix was never filled in.
func (p *Parameters) complete() bool {
	return p != nil && p.CameraMatrix[2][2] != 0 && len(p.DistCoeffs) > 0
}
