package carworld

import "path/filepath"

// Default filesystem layout for a pipeline instance.
const (
	DefaultCalibrationDir = "camera_cal"
	DefaultResultsDir     = "results"
	calibrationDataFile   = "calibration_data.json"
	calibrationImageGlob  = "calibration*.jpg"
)

// Config holds the filesystem layout for a pipeline instance.
type Config struct {
	// CalibrationDir contains the chessboard source images, matching
	// calibration*.jpg.
	CalibrationDir string
	// ResultsDir receives the calibration data blob and any debug
	// artifacts (corners_foundN.jpg, undistortN.jpg).
	ResultsDir string
	// CalibrationFile overrides the blob path. Defaults to
	// calibration_data.json under ResultsDir.
	CalibrationFile string
}

// DefaultConfig returns the conventional directory layout.
func DefaultConfig() Config {
	return Config{
		CalibrationDir: DefaultCalibrationDir,
		ResultsDir:     DefaultResultsDir,
	}
}

func (c Config) calibrationFile() string {
	if c.CalibrationFile != "" {
		return c.CalibrationFile
	}
	return filepath.Join(c.ResultsDir, calibrationDataFile)
}
