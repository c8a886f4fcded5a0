package source

import (
	"context"
	"io"
	"sync"

	"greenscreen/frame"
)

const (
	syntheticNear = 1800
	syntheticFar  = 4000
)

// Synthetic generates deterministic frame sets: a color gradient, and a
// single elliptical body walking back and forth across the depth grid.
// Released sets are recycled, so a steady loop allocates nothing.
type Synthetic struct {
	colorW, colorH int
	depthW, depthH int
	frames         int
	tick           int
	buffers        sync.Pool
}

type syntheticBuffers struct {
	color []byte
	depth []uint16
	body  []uint8
}

// NewSynthetic yields frames sets, or runs forever when frames is 0.
func NewSynthetic(colorW, colorH, depthW, depthH, frames int) *Synthetic {
	s := &Synthetic{
		colorW: colorW,
		colorH: colorH,
		depthW: depthW,
		depthH: depthH,
		frames: frames,
	}
	s.buffers.New = func() any {
		return &syntheticBuffers{
			color: make([]byte, colorW*colorH*4),
			depth: make([]uint16, depthW*depthH),
			body:  make([]uint8, depthW*depthH),
		}
	}
	return s
}

func (s *Synthetic) Next(ctx context.Context) (*Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.frames > 0 && s.tick >= s.frames {
		return nil, io.EOF
	}

	buf := s.buffers.Get().(*syntheticBuffers)
	s.fillColor(buf.color)
	s.fillDepth(buf.depth, buf.body)
	s.tick++

	return NewSet(
		frame.Color{Width: s.colorW, Height: s.colorH, Format: frame.FormatBGRA, Data: buf.color},
		frame.Depth{Width: s.depthW, Height: s.depthH, Data: buf.depth},
		frame.BodyIndex{Width: s.depthW, Height: s.depthH, Data: buf.body},
		func() { s.buffers.Put(buf) },
	), nil
}

func (s *Synthetic) Close() error {
	return nil
}

func (s *Synthetic) fillColor(dst []byte) {
	shift := byte(s.tick)
	for y := range s.colorH {
		g := byte(y * 255 / max(s.colorH-1, 1))
		row := dst[y*s.colorW*4:]
		for x := range s.colorW {
			px := row[x*4 : x*4+4]
			px[0] = byte(x*255/max(s.colorW-1, 1)) + shift
			px[1] = g
			px[2] = 0x80
			px[3] = 0xFF
		}
	}
}

func (s *Synthetic) fillDepth(depth []uint16, body []uint8) {
	// center sweeps across the middle half of the grid and back
	span := max(s.depthW/2, 1)
	phase := s.tick % (2 * span)
	if phase >= span {
		phase = 2*span - phase
	}
	// each sweep is tracked as a new body, cycling through the slots
	slot := uint8(s.tick / (2 * span) % frame.MaxBodies)
	cx := float64(s.depthW/4 + phase)
	cy := float64(s.depthH) / 2
	rx := float64(s.depthW) / 8
	ry := float64(s.depthH) / 3

	for y := range s.depthH {
		dy := (float64(y) - cy) / ry
		for x := range s.depthW {
			i := y*s.depthW + x
			dx := (float64(x) - cx) / rx
			switch {
			case x == 0 || x == s.depthW-1:
				depth[i] = 0
				body[i] = frame.NoBody
			case dx*dx+dy*dy <= 1:
				depth[i] = syntheticNear
				body[i] = slot
			default:
				depth[i] = syntheticFar
				body[i] = frame.NoBody
			}
		}
	}
}
