package frame

import (
	"image"
	"image/color"
)

// BGRA is an in-memory image whose pixels are stored B, G, R, A. Channels
// are stored as given and are not alpha-premultiplied.
type BGRA struct {
	// Pix holds the image's pixels. The pixel at (x, y) starts at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*4].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

func NewBGRA(r image.Rectangle) *BGRA {
	return &BGRA{
		Pix:    make([]uint8, r.Dx()*r.Dy()*4),
		Stride: 4 * r.Dx(),
		Rect:   r,
	}
}

func (p *BGRA) ColorModel() color.Model { return color.NRGBAModel }

func (p *BGRA) Bounds() image.Rectangle { return p.Rect }

func (p *BGRA) At(x, y int) color.Color {
	return p.BGRAAt(x, y)
}

// BGRAAt returns the pixel at (x, y) with its channels unchanged.
func (p *BGRA) BGRAAt(x, y int) color.NRGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.NRGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	return color.NRGBA{R: s[2], G: s[1], B: s[0], A: s[3]}
}

// PixOffset returns the index of the first element of Pix that corresponds
// to the pixel at (x, y).
func (p *BGRA) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*4
}

func (p *BGRA) Set(x, y int, c color.Color) {
	p.SetBGRA(x, y, color.NRGBAModel.Convert(c).(color.NRGBA))
}

func (p *BGRA) SetBGRA(x, y int, c color.NRGBA) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = c.B, c.G, c.R, c.A
}
