package mapping

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidCalibration is returned for camera parameters that cannot
// describe a real sensor.
var ErrInvalidCalibration = errors.New("mapping: invalid calibration")

// Intrinsics holds the parameters of a pinhole camera projection.
type Intrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

func (in Intrinsics) CheckValid() error {
	switch {
	case in.Width <= 0 || in.Height <= 0:
		return fmt.Errorf("%w: size (%d, %d)", ErrInvalidCalibration, in.Width, in.Height)
	case in.Fx <= 0:
		return fmt.Errorf("%w: focal length fx = %v", ErrInvalidCalibration, in.Fx)
	case in.Fy <= 0:
		return fmt.Errorf("%w: focal length fy = %v", ErrInvalidCalibration, in.Fy)
	case in.Ppx < 0:
		return fmt.Errorf("%w: principal point ppx = %v", ErrInvalidCalibration, in.Ppx)
	case in.Ppy < 0:
		return fmt.Errorf("%w: principal point ppy = %v", ErrInvalidCalibration, in.Ppy)
	}
	return nil
}

// PixelToPoint lifts pixel (x, y) at distance z into the camera's 3D frame.
func (in Intrinsics) PixelToPoint(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: (x - in.Ppx) / in.Fx * z,
		Y: (y - in.Ppy) / in.Fy * z,
		Z: z,
	}
}

// PointToPixel projects a 3D point onto the image plane without rounding.
// Points on or behind the camera plane project to Invalid.
func (in Intrinsics) PointToPixel(p r3.Vector) r2.Point {
	if p.Z <= 0 {
		return Invalid
	}
	return r2.Point{
		X: p.X/p.Z*in.Fx + in.Ppx,
		Y: p.Y/p.Z*in.Fy + in.Ppy,
	}
}

// Extrinsics is the rigid transform from the depth camera's frame to the
// color camera's frame. Rotation is row-major; Translation is in millimeters.
type Extrinsics struct {
	Rotation    [9]float64 `json:"rotation"`
	Translation [3]float64 `json:"translation_mm"`
}

func IdentityExtrinsics() Extrinsics {
	return Extrinsics{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

func (e Extrinsics) rotation() *mat.Dense {
	return mat.NewDense(3, 3, e.Rotation[:])
}

// CheckValid verifies that Rotation is a proper rotation matrix.
func (e Extrinsics) CheckValid() error {
	r := e.rotation()

	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	if !mat.EqualApprox(&rtr, eye3, 1e-6) {
		return fmt.Errorf("%w: rotation is not orthonormal", ErrInvalidCalibration)
	}
	if det := mat.Det(r); math.Abs(det-1) > 1e-6 {
		return fmt.Errorf("%w: rotation determinant is %v", ErrInvalidCalibration, det)
	}
	return nil
}

// Apply moves p from the depth camera's frame into the color camera's frame.
func (e Extrinsics) Apply(p r3.Vector) r3.Vector {
	r := &e.Rotation
	return r3.Vector{
		X: r[0]*p.X + r[1]*p.Y + r[2]*p.Z + e.Translation[0],
		Y: r[3]*p.X + r[4]*p.Y + r[5]*p.Z + e.Translation[1],
		Z: r[6]*p.X + r[7]*p.Y + r[8]*p.Z + e.Translation[2],
	}
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})

// Pinhole maps depth pixels to color space through both cameras' pinhole
// models and the rigid transform between them.
type Pinhole struct {
	cal Calibration
	// per-column and per-row normalized image coordinates of the depth camera
	xOverZ, yOverZ []float64
}

func NewPinhole(cal Calibration) (*Pinhole, error) {
	if err := cal.CheckValid(); err != nil {
		return nil, err
	}

	d := cal.Depth
	p := &Pinhole{
		cal:    cal,
		xOverZ: make([]float64, d.Width),
		yOverZ: make([]float64, d.Height),
	}
	for x := range p.xOverZ {
		p.xOverZ[x] = (float64(x) - d.Ppx) / d.Fx
	}
	for y := range p.yOverZ {
		p.yOverZ[y] = (float64(y) - d.Ppy) / d.Fy
	}
	return p, nil
}

func (p *Pinhole) Calibration() Calibration {
	return p.cal
}

func (p *Pinhole) MapDepthFrameToColorSpace(depth []uint16, points []r2.Point) error {
	w := len(p.xOverZ)
	if err := checkLengths(depth, points, w*len(p.yOverZ)); err != nil {
		return err
	}

	for y, yz := range p.yOverZ {
		row := y * w
		for x, xz := range p.xOverZ {
			i := row + x
			if depth[i] == 0 {
				points[i] = Invalid
				continue
			}
			z := float64(depth[i])
			c := p.cal.DepthToColor.Apply(r3.Vector{X: xz * z, Y: yz * z, Z: z})
			points[i] = p.cal.Color.PointToPixel(c)
		}
	}
	return nil
}
