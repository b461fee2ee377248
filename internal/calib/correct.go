package calib

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrNotCalibrated indicates distortion correction was attempted before
// any Parameters were computed or loaded.
var ErrNotCalibrated = errors.New("camera not calibrated")

// Undistort returns the undistorted projection of img under params. The
// output has the same dimensions and channel count as the input; the
// input is not modified. The caller owns the returned Mat.
func Undistort(img gocv.Mat, params *Parameters) (gocv.Mat, error) {
	if !params.complete() {
		return gocv.NewMat(), ErrNotCalibrated
	}
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("input image is empty")
	}

	cameraMatrix := params.CameraMatrixMat()
	defer cameraMatrix.Close()
	coeffs := params.DistCoeffsMat()
	defer coeffs.Close()
	newCameraMatrix := gocv.NewMat()
	defer newCameraMatrix.Close()

	dst := gocv.NewMat()
	gocv.Undistort(img, &dst, cameraMatrix, coeffs, newCameraMatrix)
	return dst, nil
}
