package compositor

import (
	"image/color"
	"math"

	"github.com/golang/geo/r2"

	"greenscreen/frame"
)

type rowStats struct {
	foreground, dropped, background int
}

// compositeRows writes one output pixel per entry of body into dst, which
// must be zeroed. points holds the matching color-space projections and src
// the BGRA color frame of colorW x colorH pixels.
//
// Projections round half up, floor(v + 0.5), and must land inside the color
// frame; NaN and infinite coordinates never do.
func compositeRows(dst []byte, body []uint8, points []r2.Point, src []byte, colorW, colorH int, background color.NRGBA) rowStats {
	var s rowStats
	fw, fh := float64(colorW), float64(colorH)

	for i, player := range body {
		o := dst[i*4 : i*4+4 : i*4+4]

		if player == frame.NoBody {
			o[0], o[1], o[2], o[3] = background.B, background.G, background.R, background.A
			s.background++
			continue
		}

		p := points[i]
		cx := math.Floor(p.X + 0.5)
		cy := math.Floor(p.Y + 0.5)
		if cx >= 0 && cx < fw && cy >= 0 && cy < fh {
			j := (int(cy)*colorW + int(cx)) * 4
			o[0], o[1], o[2], o[3] = src[j], src[j+1], src[j+2], 0xFF
			s.foreground++
		} else {
			s.dropped++
		}
	}
	return s
}
