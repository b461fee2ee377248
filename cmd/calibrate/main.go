// Camera calibration runner: derives a camera's distortion model from
// a directory of chessboard images and persists it for pipeline use.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	carworld "carworld-pipeline"
)

func main() {
	calDir := flag.String("cal-dir", "", "directory of calibration*.jpg chessboard images")
	resultsDir := flag.String("results-dir", "", "directory for calibration data and debug artifacts")
	x := flag.Int("x", 9, "chessboard inner corners per row")
	y := flag.Int("y", 6, "chessboard inner corners per column")
	debugMode := flag.Bool("debug", false, "verbose logging plus corner overlay and undistort snapshots")
	recalibrate := flag.Bool("recalibrate", false, "ignore cached calibration data and recompute")
	flag.Parse()

	// Optional .env for deployments that configure directories via
	// environment instead of flags.
	_ = godotenv.Load()

	logger := initLogger(*debugMode)

	cfg := carworld.DefaultConfig()
	if v := os.Getenv("CALIBRATION_DIR"); v != "" {
		cfg.CalibrationDir = v
	}
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		cfg.ResultsDir = v
	}
	if *calDir != "" {
		cfg.CalibrationDir = *calDir
	}
	if *resultsDir != "" {
		cfg.ResultsDir = *resultsDir
	}

	logger.WithFields(logrus.Fields{
		"calibration_dir": cfg.CalibrationDir,
		"results_dir":     cfg.ResultsDir,
		"pattern":         fmt.Sprintf("%dx%d", *x, *y),
	}).Info("Starting camera calibration")

	pipe := carworld.New(nil, cfg, logger)
	report, err := pipe.Calibrate(*x, *y, *debugMode, !*recalibrate)
	if err != nil {
		logger.WithError(err).Fatal("Calibration failed")
	}

	if report != nil {
		logger.WithFields(logrus.Fields{
			"images_used":          len(report.Used),
			"images_skipped":       len(report.Skipped),
			"rms_reprojection":     report.RMSReprojection,
			"row_straightness_rms": report.RowStraightnessRMS,
		}).Info("Calibration solved")
	} else {
		logger.Info("Reused cached calibration data")
	}

	params := pipe.Parameters()
	logger.WithFields(logrus.Fields{
		"camera_matrix":           params.CameraMatrix,
		"distortion_coefficients": params.DistCoeffs,
	}).Info("Calibration parameters active")
}

// initLogger initializes the logger with appropriate level and format.
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
