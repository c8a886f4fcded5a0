// Package mapping projects depth camera pixels into the color camera's image
// plane.
package mapping

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Invalid is written for depth pixels that have no color-space position,
// such as pixels without a depth reading. It fails every bounds check.
var Invalid = r2.Point{X: math.Inf(-1), Y: math.Inf(-1)}

// A Mapper projects a whole depth frame into color space in one call.
// depth holds the frame's samples in row-major order and points receives
// one fractional color-space coordinate per sample.
type Mapper interface {
	MapDepthFrameToColorSpace(depth []uint16, points []r2.Point) error
}

// Func adapts an ordinary function to the Mapper interface.
type Func func(depth []uint16, points []r2.Point) error

func (f Func) MapDepthFrameToColorSpace(depth []uint16, points []r2.Point) error {
	return f(depth, points)
}

// Scaled maps pixel centers of the depth grid linearly onto the color grid.
// It ignores distance and parallax, and is meant for captures with no
// calibration data.
type Scaled struct {
	depthW, depthH int
	sx, sy         float64
}

func NewScaled(depthW, depthH, colorW, colorH int) (*Scaled, error) {
	if depthW <= 0 || depthH <= 0 || colorW <= 0 || colorH <= 0 {
		return nil, fmt.Errorf("%w: invalid scaling %dx%d -> %dx%d",
			ErrInvalidCalibration, depthW, depthH, colorW, colorH)
	}
	return &Scaled{
		depthW: depthW,
		depthH: depthH,
		sx:     float64(colorW) / float64(depthW),
		sy:     float64(colorH) / float64(depthH),
	}, nil
}

func (s *Scaled) MapDepthFrameToColorSpace(depth []uint16, points []r2.Point) error {
	if err := checkLengths(depth, points, s.depthW*s.depthH); err != nil {
		return err
	}

	for y := range s.depthH {
		cy := (float64(y)+0.5)*s.sy - 0.5
		row := y * s.depthW
		for x := range s.depthW {
			i := row + x
			if depth[i] == 0 {
				points[i] = Invalid
				continue
			}
			points[i] = r2.Point{X: (float64(x)+0.5)*s.sx - 0.5, Y: cy}
		}
	}
	return nil
}

func checkLengths(depth []uint16, points []r2.Point, pixels int) error {
	if len(depth) != pixels {
		return fmt.Errorf("depth frame has %d samples, mapper expects %d", len(depth), pixels)
	}
	if len(points) < pixels {
		return fmt.Errorf("point buffer holds %d points, need %d", len(points), pixels)
	}
	return nil
}
