// Package imgio wraps the OpenCV image file operations used by the
// calibration pipeline.
package imgio

import (
	"fmt"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp"}

// Load decodes an image file into a BGR Mat. The caller owns the
// returned Mat and must Close it.
func Load(path string) (gocv.Mat, error) {
	if !isSupportedFormat(path) {
		return gocv.NewMat(), fmt.Errorf("unsupported image format: %s", path)
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return gocv.NewMat(), fmt.Errorf("failed to load image: %s", path)
	}
	return mat, nil
}

// Save encodes mat to the given path, inferring the format from the
// file extension.
func Save(path string, mat gocv.Mat) error {
	if mat.Empty() {
		return fmt.Errorf("cannot save empty image")
	}
	if !isSupportedFormat(path) {
		return fmt.Errorf("unsupported image format: %s", path)
	}

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("failed to save image: %s", path)
	}
	return nil
}

// Glob lists the files under dir matching pattern, in lexicographic
// order.
func Glob(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("listing %s under %s: %w", pattern, dir, err)
	}
	return matches, nil
}

func isSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
