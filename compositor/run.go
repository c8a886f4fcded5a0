package compositor

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"

	"greenscreen/frame"
	"greenscreen/source"
)

// Run composites one frame set per tick until src ends or ctx is done,
// handing each composite to sink before the next tick starts. Frame sets
// with mismatched dimensions are skipped; any other error stops the loop.
func (c *Compositor) Run(ctx context.Context, src source.Source, background color.NRGBA, sink func(*frame.BGRA) error) error {
	for {
		set, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("could not read frame set: %w", err)
		}

		img, err := c.Composite(set.Color, set.Depth, set.Body, background)
		set.Release()
		if err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				continue
			}
			return err
		}

		if err := sink(img); err != nil {
			return fmt.Errorf("could not deliver composite: %w", err)
		}
	}
}
