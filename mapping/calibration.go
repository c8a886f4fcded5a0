package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Calibration describes a depth+color camera pair.
type Calibration struct {
	Depth        Intrinsics `json:"depth"`
	Color        Intrinsics `json:"color"`
	DepthToColor Extrinsics `json:"depth_to_color"`
}

func (c Calibration) CheckValid() error {
	if err := c.Depth.CheckValid(); err != nil {
		return fmt.Errorf("depth camera: %w", err)
	}
	if err := c.Color.CheckValid(); err != nil {
		return fmt.Errorf("color camera: %w", err)
	}
	if err := c.DepthToColor.CheckValid(); err != nil {
		return fmt.Errorf("depth to color: %w", err)
	}
	return nil
}

// ReadCalibration parses and validates a JSON calibration. A missing
// rotation means the cameras share orientation.
func ReadCalibration(r io.Reader) (Calibration, error) {
	var cal Calibration
	if err := json.NewDecoder(r).Decode(&cal); err != nil {
		return Calibration{}, fmt.Errorf("could not parse calibration: %w", err)
	}
	if cal.DepthToColor.Rotation == ([9]float64{}) {
		cal.DepthToColor.Rotation = IdentityExtrinsics().Rotation
	}
	if err := cal.CheckValid(); err != nil {
		return Calibration{}, err
	}
	return cal, nil
}

func LoadCalibration(path string) (Calibration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("could not open calibration %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Error("could not close calibration file", "name", path, "error", closeErr)
		}
	}()

	cal, err := ReadCalibration(f)
	if err != nil {
		return Calibration{}, fmt.Errorf("calibration %q: %w", path, err)
	}
	return cal, nil
}

// Open returns a Pinhole mapper for the calibration at path, or a Scaled
// mapper when path is empty. A calibration must match the frame sizes.
func Open(path string, depthW, depthH, colorW, colorH int) (Mapper, error) {
	if path == "" {
		s, err := NewScaled(depthW, depthH, colorW, colorH)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		return nil, err
	}
	if cal.Depth.Width != depthW || cal.Depth.Height != depthH {
		return nil, fmt.Errorf("%w: calibration is for %dx%d depth frames, got %dx%d",
			ErrInvalidCalibration, cal.Depth.Width, cal.Depth.Height, depthW, depthH)
	}
	if cal.Color.Width != colorW || cal.Color.Height != colorH {
		return nil, fmt.Errorf("%w: calibration is for %dx%d color frames, got %dx%d",
			ErrInvalidCalibration, cal.Color.Width, cal.Color.Height, colorW, colorH)
	}
	p, err := NewPinhole(cal)
	if err != nil {
		return nil, err
	}
	return p, nil
}
