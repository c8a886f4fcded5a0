package mapping

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func testIntrinsics(w, h int) Intrinsics {
	return Intrinsics{Width: w, Height: h, Fx: 500, Fy: 500, Ppx: float64(w) / 2, Ppy: float64(h) / 2}
}

func filled(n int, v uint16) []uint16 {
	d := make([]uint16, n)
	for i := range d {
		d[i] = v
	}
	return d
}

func TestScaled(t *testing.T) {
	t.Run("same size is identity", func(t *testing.T) {
		s, err := NewScaled(2, 2, 2, 2)
		test.That(t, err, test.ShouldBeNil)
		points := make([]r2.Point, 4)
		test.That(t, s.MapDepthFrameToColorSpace(filled(4, 1000), points), test.ShouldBeNil)
		test.That(t, points, test.ShouldResemble, []r2.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}})
	})

	t.Run("maps pixel centers", func(t *testing.T) {
		s, err := NewScaled(2, 1, 4, 2)
		test.That(t, err, test.ShouldBeNil)
		points := make([]r2.Point, 2)
		test.That(t, s.MapDepthFrameToColorSpace(filled(2, 1000), points), test.ShouldBeNil)
		test.That(t, points, test.ShouldResemble, []r2.Point{{X: 0.5, Y: 0.5}, {X: 2.5, Y: 0.5}})
	})

	t.Run("zero depth is invalid", func(t *testing.T) {
		s, err := NewScaled(2, 1, 2, 1)
		test.That(t, err, test.ShouldBeNil)
		points := make([]r2.Point, 2)
		test.That(t, s.MapDepthFrameToColorSpace([]uint16{0, 1}, points), test.ShouldBeNil)
		test.That(t, math.IsInf(points[0].X, -1), test.ShouldBeTrue)
		test.That(t, points[1], test.ShouldResemble, r2.Point{X: 1, Y: 0})
	})

	t.Run("rejects bad sizes", func(t *testing.T) {
		_, err := NewScaled(0, 2, 2, 2)
		test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)

		s, err := NewScaled(2, 2, 2, 2)
		test.That(t, err, test.ShouldBeNil)
		err = s.MapDepthFrameToColorSpace(filled(3, 1), make([]r2.Point, 4))
		test.That(t, err, test.ShouldNotBeNil)
		err = s.MapDepthFrameToColorSpace(filled(4, 1), make([]r2.Point, 3))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestIntrinsics(t *testing.T) {
	in := testIntrinsics(640, 480)
	test.That(t, in.CheckValid(), test.ShouldBeNil)

	p := in.PixelToPoint(420, 240, 2000)
	test.That(t, p.X, test.ShouldAlmostEqual, 400)
	test.That(t, p.Y, test.ShouldAlmostEqual, 0)
	test.That(t, p.Z, test.ShouldAlmostEqual, 2000)

	px := in.PointToPixel(p)
	test.That(t, px.X, test.ShouldAlmostEqual, 420)
	test.That(t, px.Y, test.ShouldAlmostEqual, 240)

	test.That(t, in.PointToPixel(r3.Vector{X: 1, Y: 1, Z: 0}), test.ShouldResemble, Invalid)
	test.That(t, in.PointToPixel(r3.Vector{X: 1, Y: 1, Z: -5}), test.ShouldResemble, Invalid)

	for _, bad := range []Intrinsics{
		{Width: 0, Height: 1, Fx: 1, Fy: 1},
		{Width: 1, Height: 1, Fx: 0, Fy: 1},
		{Width: 1, Height: 1, Fx: 1, Fy: -1},
		{Width: 1, Height: 1, Fx: 1, Fy: 1, Ppx: -1},
		{Width: 1, Height: 1, Fx: 1, Fy: 1, Ppy: -1},
	} {
		test.That(t, errors.Is(bad.CheckValid(), ErrInvalidCalibration), test.ShouldBeTrue)
	}
}

func TestExtrinsicsCheckValid(t *testing.T) {
	test.That(t, IdentityExtrinsics().CheckValid(), test.ShouldBeNil)

	c, s := math.Cos(0.3), math.Sin(0.3)
	rotZ := Extrinsics{Rotation: [9]float64{c, -s, 0, s, c, 0, 0, 0, 1}}
	test.That(t, rotZ.CheckValid(), test.ShouldBeNil)

	scaled := Extrinsics{Rotation: [9]float64{2, 0, 0, 0, 2, 0, 0, 0, 2}}
	test.That(t, errors.Is(scaled.CheckValid(), ErrInvalidCalibration), test.ShouldBeTrue)

	mirrored := Extrinsics{Rotation: [9]float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}}
	err := mirrored.CheckValid()
	test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "determinant")
}

func TestPinhole(t *testing.T) {
	in := testIntrinsics(4, 2)
	cal := Calibration{Depth: in, Color: in, DepthToColor: IdentityExtrinsics()}

	t.Run("shared optics project onto the same pixel", func(t *testing.T) {
		m, err := NewPinhole(cal)
		test.That(t, err, test.ShouldBeNil)
		points := make([]r2.Point, 8)
		test.That(t, m.MapDepthFrameToColorSpace(filled(8, 1500), points), test.ShouldBeNil)
		for i, p := range points {
			test.That(t, p.X, test.ShouldAlmostEqual, float64(i%4))
			test.That(t, p.Y, test.ShouldAlmostEqual, float64(i/4))
		}
	})

	t.Run("baseline shifts by disparity", func(t *testing.T) {
		shifted := cal
		shifted.DepthToColor.Translation = [3]float64{100, 0, 0}
		m, err := NewPinhole(shifted)
		test.That(t, err, test.ShouldBeNil)
		points := make([]r2.Point, 8)
		depth := filled(8, 1000)
		depth[5] = 0
		test.That(t, m.MapDepthFrameToColorSpace(depth, points), test.ShouldBeNil)
		// 500px focal length * 100mm / 1000mm
		test.That(t, points[0].X, test.ShouldAlmostEqual, 50)
		test.That(t, points[0].Y, test.ShouldAlmostEqual, 0)
		test.That(t, points[5], test.ShouldResemble, Invalid)
	})

	t.Run("rejects wrong frame size", func(t *testing.T) {
		m, err := NewPinhole(cal)
		test.That(t, err, test.ShouldBeNil)
		err = m.MapDepthFrameToColorSpace(filled(6, 1), make([]r2.Point, 8))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("rejects invalid calibration", func(t *testing.T) {
		bad := cal
		bad.Color.Fx = 0
		_, err := NewPinhole(bad)
		test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "color camera")
	})
}

const calibrationJSON = `{
	"depth": {"width_px": 512, "height_px": 424, "fx": 365.5, "fy": 365.5, "ppx": 257.1, "ppy": 206.4},
	"color": {"width_px": 1920, "height_px": 1080, "fx": 1081.4, "fy": 1081.4, "ppx": 959.5, "ppy": 539.5},
	"depth_to_color": {"translation_mm": [52, 0, 0]}
}`

func TestReadCalibration(t *testing.T) {
	cal, err := ReadCalibration(strings.NewReader(calibrationJSON))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.Depth.Width, test.ShouldEqual, 512)
	test.That(t, cal.Color.Fx, test.ShouldEqual, 1081.4)
	test.That(t, cal.DepthToColor.Rotation, test.ShouldResemble, IdentityExtrinsics().Rotation)
	test.That(t, cal.DepthToColor.Translation[0], test.ShouldEqual, 52.0)

	_, err = ReadCalibration(strings.NewReader(`{"depth": {}}`))
	test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)

	_, err = ReadCalibration(strings.NewReader(`{`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	test.That(t, os.WriteFile(path, []byte(calibrationJSON), 0o600), test.ShouldBeNil)

	cal, err := LoadCalibration(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal.Color.Width, test.ShouldEqual, 1920)

	_, err = LoadCalibration(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "missing.json")
}

func TestOpen(t *testing.T) {
	m, err := Open("", 512, 424, 1920, 1080)
	test.That(t, err, test.ShouldBeNil)
	_, ok := m.(*Scaled)
	test.That(t, ok, test.ShouldBeTrue)

	path := filepath.Join(t.TempDir(), "calibration.json")
	test.That(t, os.WriteFile(path, []byte(calibrationJSON), 0o600), test.ShouldBeNil)

	m, err = Open(path, 512, 424, 1920, 1080)
	test.That(t, err, test.ShouldBeNil)
	p, ok := m.(*Pinhole)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, p.Calibration().Color.Width, test.ShouldEqual, 1920)

	_, err = Open(path, 640, 480, 1920, 1080)
	test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)
	_, err = Open(path, 512, 424, 1280, 720)
	test.That(t, errors.Is(err, ErrInvalidCalibration), test.ShouldBeTrue)
}
