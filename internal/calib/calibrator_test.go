package calib

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// renderChessboardMat draws a synthetic fronto-parallel chessboard
// photo with x by y inner corners. A generous white margin gives the
// detector the quiet zone it needs. The caller closes the Mat.
func renderChessboardMat(x, y, square, margin int) gocv.Mat {
	cols, rows := x+1, y+1
	width := cols*square + 2*margin
	height := rows*square + 2*margin

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)

	black := color.RGBA{}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if (r+c)%2 != 0 {
				continue
			}
			x0 := margin + c*square
			y0 := margin + r*square
			gocv.Rectangle(&img, image.Rect(x0, y0, x0+square, y0+square), black, -1)
		}
	}
	return img
}

func renderChessboard(t *testing.T, path string, x, y, square, margin int) {
	t.Helper()
	img := renderChessboardMat(x, y, square, margin)
	defer img.Close()
	require.True(t, gocv.IMWrite(path, img), "writing %s", path)
}

// detectCorners runs chessboard detection on img and returns the
// corner observations.
func detectCorners(t *testing.T, img gocv.Mat, x, y int) []gocv.Point2f {
	t.Helper()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	corners := gocv.NewMat()
	defer corners.Close()
	found := gocv.FindChessboardCorners(gray, image.Pt(x, y), &corners,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
	require.True(t, found, "chessboard not detected")

	vec := gocv.NewPoint2fVectorFromMat(corners)
	defer vec.Close()
	return vec.ToPoints()
}

func renderBlank(t *testing.T, path string) {
	t.Helper()
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 240, 320, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(path, img), "writing %s", path)
}

func newTestCalibrator(t *testing.T) (*Calibrator, *Store, string) {
	t.Helper()
	resultsDir := t.TempDir()
	store := NewStore(filepath.Join(resultsDir, "calibration_data.json"), testLogger())
	return NewCalibrator(store, resultsDir, testLogger()), store, resultsDir
}

func TestCalibrateEmptyImageSet(t *testing.T) {
	calibrator, _, _ := newTestCalibrator(t)

	_, _, err := calibrator.Calibrate(nil, 9, 6, Options{})
	assert.ErrorIs(t, err, ErrNoCalibrationImages)
}

func TestCalibrateCacheHit(t *testing.T) {
	calibrator, store, _ := newTestCalibrator(t)

	saved := testParameters()
	require.NoError(t, store.Save(saved))

	// The image paths do not exist; a cache hit must not touch them.
	images := []string{"ghost0.jpg", "ghost1.jpg"}
	params, report, err := calibrator.Calibrate(images, 9, 6, Options{PreferCached: true})
	require.NoError(t, err)

	assert.Nil(t, report, "cache hit produces no solve report")
	assert.Equal(t, saved, params)
}

func TestCalibrateCacheMissFallsThrough(t *testing.T) {
	calibrator, store, _ := newTestCalibrator(t)

	require.NoError(t, os.WriteFile(store.Path(), []byte("garbage"), 0o644))

	// The corrupt blob is reported as a cache miss, and the run then
	// fails on the empty image set rather than on the store.
	_, _, err := calibrator.Calibrate(nil, 9, 6, Options{PreferCached: true})
	assert.ErrorIs(t, err, ErrNoCalibrationImages)
}

func TestCalibrateSkipsUndetectableImages(t *testing.T) {
	const x, y = 4, 3

	calibrator, store, resultsDir := newTestCalibrator(t)
	srcDir := t.TempDir()

	var images []string
	for i, square := range []int{28, 32, 36, 40, 44, 48} {
		path := filepath.Join(srcDir, fmt.Sprintf("calibration%d.jpg", i))
		renderChessboard(t, path, x, y, square, 50+4*i)
		images = append(images, path)
	}

	// Two detection failures and one unreadable file, mid-set.
	blank := filepath.Join(srcDir, "blank.jpg")
	renderBlank(t, blank)
	images = append(images[:3], append([]string{blank, filepath.Join(srcDir, "missing.jpg")}, images[3:]...)...)

	params, report, err := calibrator.Calibrate(images, x, y, Options{Debug: true})
	require.NoError(t, err, "bad calibration photos must not abort the run")

	assert.Len(t, report.Used, 6)
	assert.Len(t, report.Skipped, 2)
	assert.Equal(t, 1.0, params.CameraMatrix[2][2])
	assert.NotEmpty(t, params.DistCoeffs)

	// A fresh solve persists through the store.
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, params, loaded)

	// Debug artifacts are named by zero-based input index.
	assert.FileExists(t, filepath.Join(resultsDir, "corners_found0.jpg"))
	assert.FileExists(t, filepath.Join(resultsDir, "undistort0.jpg"))
	assert.FileExists(t, filepath.Join(resultsDir, "undistort3.jpg"),
		"undistort snapshots cover every readable input, detected or not")
	assert.NoFileExists(t, filepath.Join(resultsDir, "corners_found3.jpg"),
		"no corner overlay for images without a detected board")
}

func TestCalibrateImprovesRowStraightness(t *testing.T) {
	const x, y = 4, 3

	calibrator, _, _ := newTestCalibrator(t)
	srcDir := t.TempDir()

	// Bow the rectilinear renders with a fixed synthetic lens model.
	// Running the undistort warp over a clean image curves its straight
	// board rows the way a real lens would.
	warp := func(img gocv.Mat) gocv.Mat {
		model := &Parameters{
			CameraMatrix: [3][3]float64{
				{float64(img.Cols()), 0, float64(img.Cols()) / 2},
				{0, float64(img.Cols()), float64(img.Rows()) / 2},
				{0, 0, 1},
			},
			DistCoeffs: []float64{0.25, 0, 0, 0, 0},
		}
		out, err := Undistort(img, model)
		require.NoError(t, err)
		return out
	}

	var images []string
	for i, square := range []int{32, 36, 40, 44, 48, 52} {
		clean := renderChessboardMat(x, y, square, 60+6*i)
		distorted := warp(clean)
		clean.Close()

		path := filepath.Join(srcDir, fmt.Sprintf("calibration%d.jpg", i))
		require.True(t, gocv.IMWrite(path, distorted), "writing %s", path)
		distorted.Close()
		images = append(images, path)
	}

	sample := gocv.IMRead(images[0], gocv.IMReadColor)
	require.False(t, sample.Empty())
	defer sample.Close()

	before := RowStraightness(detectCorners(t, sample, x, y), x)
	require.Greater(t, before, 0.1, "synthetic warp should bow the board rows")

	params, report, err := calibrator.Calibrate(images, x, y, Options{})
	require.NoError(t, err)
	require.Len(t, report.Used, 6)
	assert.Greater(t, report.RowStraightnessRMS, 0.0)

	corrected, err := Undistort(sample, params)
	require.NoError(t, err)
	defer corrected.Close()

	after := RowStraightness(detectCorners(t, corrected, x, y), x)
	assert.Less(t, after, before,
		"correcting with the computed parameters must straighten board rows")
}

func TestObjectPointGrid(t *testing.T) {
	grid := objectPointGrid(4, 3)
	require.Len(t, grid, 12)

	assert.Equal(t, gocv.Point3f{}, grid[0])
	assert.Equal(t, gocv.Point3f{X: 1, Y: 0, Z: 0}, grid[1])
	assert.Equal(t, gocv.Point3f{X: 0, Y: 1, Z: 0}, grid[4])
	assert.Equal(t, gocv.Point3f{X: 3, Y: 2, Z: 0}, grid[11])
	for _, p := range grid {
		assert.Zero(t, p.Z)
	}
}
