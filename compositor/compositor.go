// Package compositor cuts tracked people out of a depth camera's color
// stream and places them over a solid background.
//
// Each tick fuses three frames of different resolutions: the depth frame
// and the body index frame share the depth grid, and the color frame is
// sampled into that grid through a coordinate mapper. The composite always
// has the depth frame's dimensions.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/golang/geo/r2"

	"greenscreen/frame"
	"greenscreen/mapping"
	"greenscreen/parallel"
)

// ErrDimensionMismatch is returned when a tick's frames cannot be composited
// together. The tick is skipped and the previous composite is left as is.
var ErrDimensionMismatch = errors.New("compositor: frame dimensions do not match")

// ErrClosed is returned by Composite after Close.
var ErrClosed = errors.New("compositor: closed")

// Transparent is the default background.
var Transparent = color.NRGBA{}

type Option func(*Compositor)

// WithWorkers sets how many goroutines share the per-pixel pass. n < 1 uses
// GOMAXPROCS; 1 runs the pass on the calling goroutine.
func WithWorkers(n int) Option {
	return func(c *Compositor) {
		c.workers = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) {
		c.logger = logger
	}
}

// Stats describes the last composited tick. Generation and Skipped count
// over the Compositor's lifetime.
type Stats struct {
	Generation uint64
	Skipped    uint64
	// Foreground pixels were sampled from the color frame.
	Foreground int
	// Dropped pixels belong to a body but project outside the color frame.
	Dropped    int
	Background int
}

// Compositor owns every buffer a tick needs and reuses them for as long as
// the frame dimensions stay the same. It is not safe for concurrent use.
type Compositor struct {
	mapper  mapping.Mapper
	logger  *slog.Logger
	workers int
	pool    *parallel.Pool
	closed  bool

	depthW, depthH int
	colorW, colorH int

	depth  []uint16
	body   []uint8
	color  []byte
	out    []byte
	points []r2.Point
	rows   []rowStats
	image  *frame.BGRA

	stats Stats
}

func New(mapper mapping.Mapper, opts ...Option) *Compositor {
	c := &Compositor{
		mapper: mapper,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = parallel.Start(c.workers)
	return c
}

// Close stops the worker goroutines. Later Composite calls fail with
// ErrClosed; the last composite stays readable.
func (c *Compositor) Close() {
	c.closed = true
	c.pool.Wait(true)
}

// Stats returns the counters of the last composited tick.
func (c *Compositor) Stats() Stats {
	return c.stats
}

// Image returns the current composite, nil before the first tick.
func (c *Compositor) Image() *frame.BGRA {
	return c.image
}

// CompositeTransparent composites with a fully transparent background.
func (c *Compositor) CompositeTransparent(col frame.Color, depth frame.Depth, body frame.BodyIndex) (*frame.BGRA, error) {
	return c.Composite(col, depth, body, Transparent)
}

// Composite replaces every pixel that belongs to a tracked body with the
// color pixel it projects onto, and every other pixel with background.
// Body pixels that project outside the color frame become (0, 0, 0, 0).
//
// The returned image is owned by the Compositor and is overwritten by the
// next call; copy it to keep it. The frames are not referenced after
// Composite returns.
//
// On error nothing is composited and the returned image is the previous
// tick's composite, which is nil before the first success.
func (c *Compositor) Composite(col frame.Color, depth frame.Depth, body frame.BodyIndex, background color.NRGBA) (*frame.BGRA, error) {
	if c.closed {
		return c.image, ErrClosed
	}
	if err := checkFrames(col, depth, body); err != nil {
		c.stats.Skipped++
		c.logger.Warn("skipping frame set", "error", err, "skipped", c.stats.Skipped)
		return c.image, err
	}

	if err := col.CheckData(); err != nil {
		return c.image, fmt.Errorf("could not copy color frame: %w", err)
	}

	if c.needsAlloc(col, depth) {
		c.allocate(col, depth)
	}

	n := depth.Pixels()
	if len(c.depth) != n || len(c.body) != n || len(c.points) != n || len(c.out) != n*4 {
		c.stats.Skipped++
		err := fmt.Errorf("%w: scratch buffers hold %d pixels, frame has %d", ErrDimensionMismatch, len(c.depth), n)
		c.logger.Warn("skipping frame set", "error", err, "skipped", c.stats.Skipped)
		return c.image, err
	}

	copy(c.depth, depth.Data[:n])
	if err := col.CopyConvertedTo(c.color); err != nil {
		return c.image, fmt.Errorf("could not copy color frame: %w", err)
	}
	copy(c.body, body.Data[:n])

	if err := c.mapper.MapDepthFrameToColorSpace(c.depth, c.points); err != nil {
		return c.image, fmt.Errorf("could not map depth frame to color space: %w", err)
	}

	w := c.depthW
	c.pool.Split(c.depthH, func(lo, hi int) {
		dst := c.out[lo*w*4 : hi*w*4]
		clear(dst)
		for y := lo; y < hi; y++ {
			row := y * w
			c.rows[y] = compositeRows(
				dst[(y-lo)*w*4:(y-lo+1)*w*4],
				c.body[row:row+w],
				c.points[row:row+w],
				c.color, c.colorW, c.colorH,
				background,
			)
		}
	})

	copy(c.image.Pix, c.out)
	c.commit()
	return c.image, nil
}

// checkFrames rejects frame sets that cannot be composited together.
func checkFrames(col frame.Color, depth frame.Depth, body frame.BodyIndex) error {
	switch {
	case depth.Width <= 0 || depth.Height <= 0:
		return fmt.Errorf("%w: empty depth frame %dx%d", ErrDimensionMismatch, depth.Width, depth.Height)
	case col.Width <= 0 || col.Height <= 0:
		return fmt.Errorf("%w: empty color frame %dx%d", ErrDimensionMismatch, col.Width, col.Height)
	case body.Width != depth.Width || body.Height != depth.Height:
		return fmt.Errorf("%w: body index %dx%d, depth %dx%d",
			ErrDimensionMismatch, body.Width, body.Height, depth.Width, depth.Height)
	case len(depth.Data) < depth.Pixels():
		return fmt.Errorf("%w: depth frame has %d samples, want %d", ErrDimensionMismatch, len(depth.Data), depth.Pixels())
	case len(body.Data) < body.Pixels():
		return fmt.Errorf("%w: body index frame has %d samples, want %d", ErrDimensionMismatch, len(body.Data), body.Pixels())
	}
	return nil
}

func (c *Compositor) needsAlloc(col frame.Color, depth frame.Depth) bool {
	return c.image == nil ||
		c.depthW != depth.Width || c.depthH != depth.Height ||
		c.colorW != col.Width || c.colorH != col.Height
}

func (c *Compositor) allocate(col frame.Color, depth frame.Depth) {
	c.logger.Debug("allocating buffers",
		"color", fmt.Sprintf("%dx%d", col.Width, col.Height),
		"depth", fmt.Sprintf("%dx%d", depth.Width, depth.Height))

	n := depth.Pixels()
	c.depthW, c.depthH = depth.Width, depth.Height
	c.colorW, c.colorH = col.Width, col.Height

	c.depth = make([]uint16, n)
	c.body = make([]uint8, n)
	c.color = make([]byte, col.Pixels()*4)
	c.out = make([]byte, n*4)
	c.points = make([]r2.Point, n)
	c.rows = make([]rowStats, depth.Height)
	c.image = frame.NewBGRA(image.Rect(0, 0, depth.Width, depth.Height))
}

// commit marks the whole image as changed and totals the row counters.
func (c *Compositor) commit() {
	var total rowStats
	for _, r := range c.rows {
		total.foreground += r.foreground
		total.dropped += r.dropped
		total.background += r.background
	}
	c.stats.Generation++
	c.stats.Foreground = total.foreground
	c.stats.Dropped = total.dropped
	c.stats.Background = total.background
}
