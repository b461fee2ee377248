package calib

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"carworld-pipeline/internal/imgio"
)

// ErrNoCalibrationImages indicates the calibration image set was empty
// or contained no detectable chessboards.
var ErrNoCalibrationImages = errors.New("no usable calibration images")

// Options control a single calibration run.
type Options struct {
	// Debug writes corner overlays and undistorted snapshots for every
	// input image under the results directory.
	Debug bool
	// PreferCached tries the store first and skips recomputation on a
	// hit. A missing or corrupt blob is a cache miss, not a failure.
	PreferCached bool
}

// Calibrator solves a camera's distortion model from chessboard
// calibration images and persists the result through a Store.
type Calibrator struct {
	store      *Store
	resultsDir string
	logger     *logrus.Logger
}

func NewCalibrator(store *Store, resultsDir string, logger *logrus.Logger) *Calibrator {
	return &Calibrator{store: store, resultsDir: resultsDir, logger: logger}
}

// Calibrate derives Parameters from the given image paths and an x by y
// chessboard geometry. Images where detection fails are skipped and
// reported, never fatal. On a cache hit the returned Report is nil.
//
// The solve uses the pixel dimensions of the first readable image;
// later images are assumed to match. Mixed-size sets are accepted for
// corner detection but not accounted for in the solve.
func (c *Calibrator) Calibrate(images []string, x, y int, opts Options) (*Parameters, *Report, error) {
	if opts.PreferCached {
		params, err := c.store.Load()
		if err == nil {
			c.logger.Info("Using cached calibration data")
			if opts.Debug {
				c.writeUndistorted(params, images)
			}
			return params, nil, nil
		}
		c.logger.WithError(err).Warn("Cached calibration data unavailable, recalculating")
	}

	if len(images) == 0 {
		return nil, nil, ErrNoCalibrationImages
	}

	grid := objectPointGrid(x, y)
	patternSize := image.Pt(x, y)

	objectPoints := gocv.NewPoints3fVector()
	defer objectPoints.Close()
	imagePoints := gocv.NewPoints2fVector()
	defer imagePoints.Close()

	var imageSize image.Point
	report := &Report{PatternSize: patternSize}

	for idx, path := range images {
		log := c.logger.WithFields(logrus.Fields{"index": idx, "image": path})
		log.Info("Detecting chessboard corners")

		img, err := imgio.Load(path)
		if err != nil {
			log.WithError(err).Warn("Skipping unreadable calibration image")
			report.Skipped = append(report.Skipped, path)
			continue
		}

		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		if imageSize == (image.Point{}) {
			imageSize = image.Pt(gray.Cols(), gray.Rows())
		}

		corners := gocv.NewMat()
		found := gocv.FindChessboardCorners(gray, patternSize, &corners,
			gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage)
		gray.Close()

		if !found {
			log.Warn("No corners found in image")
			report.Skipped = append(report.Skipped, path)
			corners.Close()
			img.Close()
			continue
		}

		gridVec := gocv.NewPoint3fVectorFromPoints(grid)
		objectPoints.Append(gridVec)
		gridVec.Close()

		cornerVec := gocv.NewPoint2fVectorFromMat(corners)
		imagePoints.Append(cornerVec)
		report.Used = append(report.Used, path)
		report.addCorners(cornerVec.ToPoints(), x)
		cornerVec.Close()

		if opts.Debug {
			gocv.DrawChessboardCorners(&img, patternSize, corners, found)
			out := filepath.Join(c.resultsDir, fmt.Sprintf("corners_found%d.jpg", idx))
			if err := imgio.Save(out, img); err != nil {
				log.WithError(err).Warn("Could not write corner overlay")
			}
		}

		corners.Close()
		img.Close()
	}

	if len(report.Used) == 0 {
		return nil, nil, fmt.Errorf("%w: no chessboard detected in %d images", ErrNoCalibrationImages, len(images))
	}

	c.logger.WithFields(logrus.Fields{
		"images_used":    len(report.Used),
		"images_skipped": len(report.Skipped),
	}).Info("Running calibration solve")

	cameraMatrix := gocv.NewMat()
	defer cameraMatrix.Close()
	distCoeffs := gocv.NewMat()
	defer distCoeffs.Close()
	rvecs := gocv.NewMat()
	defer rvecs.Close()
	tvecs := gocv.NewMat()
	defer tvecs.Close()

	report.RMSReprojection = gocv.CalibrateCamera(objectPoints, imagePoints, imageSize,
		&cameraMatrix, &distCoeffs, &rvecs, &tvecs, gocv.CalibFlag(0))
	report.finish()

	params := NewParametersFromMats(cameraMatrix, distCoeffs)

	if opts.Debug {
		c.writeUndistorted(params, images)
	}

	if err := c.store.Save(params); err != nil {
		return nil, nil, fmt.Errorf("persisting calibration data: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"rms_reprojection":     report.RMSReprojection,
		"row_straightness_rms": report.RowStraightnessRMS,
	}).Info("Calibration complete")

	return params, report, nil
}

// writeUndistorted saves an undistorted snapshot of every input image
// under the results directory, named undistortN.jpg by input index.
// Unreadable images are skipped.
func (c *Calibrator) writeUndistorted(params *Parameters, images []string) {
	for idx, path := range images {
		log := c.logger.WithFields(logrus.Fields{"index": idx, "image": path})

		img, err := imgio.Load(path)
		if err != nil {
			log.WithError(err).Warn("Skipping undistort snapshot for unreadable image")
			continue
		}

		undistorted, err := Undistort(img, params)
		img.Close()
		if err != nil {
			log.WithError(err).Warn("Could not undistort image")
			continue
		}

		out := filepath.Join(c.resultsDir, fmt.Sprintf("undistort%d.jpg", idx))
		if err := imgio.Save(out, undistorted); err != nil {
			log.WithError(err).Warn("Could not write undistorted snapshot")
		}
		undistorted.Close()
	}
}

// objectPointGrid builds the ideal board-plane coordinates for an x by
// y chessboard: (0,0,0), (1,0,0), ... (x-1,y-1,0). The same grid pairs
// with every image's detected corners.
func objectPointGrid(x, y int) []gocv.Point3f {
	pts := make([]gocv.Point3f, 0, x*y)
	for j := 0; j < y; j++ {
		for i := 0; i < x; i++ {
			pts = append(pts, gocv.Point3f{X: float32(i), Y: float32(j), Z: 0})
		}
	}
	return pts
}
