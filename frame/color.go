package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	ErrShortBuffer   = errors.New("frame: buffer too short")
	ErrUnknownFormat = errors.New("frame: unknown color format")
)

// ColorFormat is the native byte layout of a color frame.
type ColorFormat int

const (
	// FormatBGRA is the canonical layout: B, G, R, A, one byte each.
	FormatBGRA ColorFormat = iota
	FormatRGBA
	// FormatYUY2 packs two pixels into Y0, U, Y1, V.
	FormatYUY2
)

func (f ColorFormat) String() string {
	switch f {
	case FormatBGRA:
		return "bgra"
	case FormatRGBA:
		return "rgba"
	case FormatYUY2:
		return "yuy2"
	}
	return fmt.Sprintf("ColorFormat(%d)", int(f))
}

// BytesPerPixel returns how many bytes one pixel occupies in Data.
func (f ColorFormat) BytesPerPixel() int {
	switch f {
	case FormatBGRA, FormatRGBA:
		return 4
	case FormatYUY2:
		return 2
	}
	return 0
}

// Color is a raw color camera frame. Data is owned by whoever produced the
// frame and is only valid until the frame is released.
type Color struct {
	Width, Height int
	Format        ColorFormat
	Data          []byte
}

func (c Color) Pixels() int {
	return c.Width * c.Height
}

// DataLen is the number of bytes Data must hold for the frame's size, or 0
// for an unknown format.
func (c Color) DataLen() int {
	n := c.Pixels()
	switch c.Format {
	case FormatBGRA, FormatRGBA:
		return n * 4
	case FormatYUY2:
		return (n + 1) / 2 * 4
	}
	return 0
}

// CheckData reports whether Data can be converted.
func (c Color) CheckData() error {
	want := c.DataLen()
	if want == 0 && c.Pixels() > 0 {
		return fmt.Errorf("could not convert %s frame: %w", c.Format, ErrUnknownFormat)
	}
	if len(c.Data) < want {
		return fmt.Errorf("%s frame has %d bytes, want %d: %w", c.Format, len(c.Data), want, ErrShortBuffer)
	}
	return nil
}

// CopyConvertedTo writes the frame into dst as BGRA, 4 bytes per pixel.
// dst must hold at least Pixels()*4 bytes.
func (c Color) CopyConvertedTo(dst []byte) error {
	n := c.Pixels()
	if len(dst) < n*4 {
		return fmt.Errorf("could not convert %s frame into %d bytes: %w", c.Format, len(dst), ErrShortBuffer)
	}
	if err := c.CheckData(); err != nil {
		return err
	}

	src := c.Data[:c.DataLen()]
	switch c.Format {
	case FormatBGRA:
		copy(dst, src)
	case FormatRGBA:
		for i := 0; i < len(src); i += 4 {
			dst[i] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i]
			dst[i+3] = src[i+3]
		}
	case FormatYUY2:
		yuy2ToBGRA(dst[:n*4], src)
	}
	return nil
}

func yuy2ToBGRA(dst, src []byte) {
	n := len(dst) / 4
	for p := 0; p < n; p += 2 {
		s := src[p*2 : p*2+4]
		u, v := s[1], s[3]

		r, g, b := color.YCbCrToRGB(s[0], u, v)
		d := dst[p*4 : p*4+4]
		d[0], d[1], d[2], d[3] = b, g, r, 0xFF

		if p+1 < n {
			r, g, b = color.YCbCrToRGB(s[2], u, v)
			d = dst[p*4+4 : p*4+8]
			d[0], d[1], d[2], d[3] = b, g, r, 0xFF
		}
	}
}

// ColorFromImage converts a decoded image into a BGRA color frame with its
// own backing storage.
func ColorFromImage(img image.Image) Color {
	sr := img.Bounds()
	dr := image.Rect(0, 0, sr.Dx(), sr.Dy())

	nrgba, ok := img.(*image.NRGBA)
	if !ok || nrgba.Rect != dr || nrgba.Stride != dr.Dx()*4 {
		nrgba = image.NewNRGBA(dr)
		draw.Draw(nrgba, dr, img, sr.Min, draw.Src)
	}

	data := make([]byte, len(nrgba.Pix))
	for i := 0; i < len(data); i += 4 {
		data[i] = nrgba.Pix[i+2]
		data[i+1] = nrgba.Pix[i+1]
		data[i+2] = nrgba.Pix[i]
		data[i+3] = nrgba.Pix[i+3]
	}

	return Color{
		Width:  dr.Dx(),
		Height: dr.Dy(),
		Format: FormatBGRA,
		Data:   data,
	}
}
