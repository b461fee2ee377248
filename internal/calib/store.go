package calib

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound indicates no calibration blob exists at the store path.
	ErrNotFound = errors.New("calibration data not found")
	// ErrCorruptData indicates the blob exists but could not be decoded
	// into a fully populated Parameters value.
	ErrCorruptData = errors.New("calibration data corrupt")
)

// Store persists Parameters as a JSON blob at a fixed path under the
// results directory.
type Store struct {
	path   string
	logger *logrus.Logger
}

func NewStore(path string, logger *logrus.Logger) *Store {
	return &Store{path: path, logger: logger}
}

func (s *Store) Path() string { return s.path }

// Load reads the persisted Parameters back. Returns ErrNotFound when
// the blob is absent and ErrCorruptData when it cannot be decoded or is
// only partially populated.
func (s *Store) Load() (*Parameters, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}

	var p Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if !p.complete() {
		return nil, fmt.Errorf("%w: missing matrix or coefficients", ErrCorruptData)
	}

	s.logger.WithField("path", s.path).Debug("Calibration data loaded")
	return &p, nil
}

// Save replaces the persisted blob with p. The data is written to a
// temp file in the same directory and renamed over the target so a
// concurrent reader never observes a partial write.
func (s *Store) Save(p *Parameters) error {
	if !p.complete() {
		return fmt.Errorf("refusing to save partial calibration data")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding calibration data: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".calibration-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing calibration data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing calibration data: %w", err)
	}

	s.logger.WithField("path", s.path).Info("Calibration data saved")
	return nil
}
