package stats

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"greenscreen/compositor"
	"greenscreen/frame"
	"greenscreen/mapping"
	"greenscreen/source"
)

type CLICmd struct {
	Dir             string      `help:"Frame set directory holding color.*, depth.png and body.png" default:"."`
	Calibration     string      `help:"Camera calibration JSON. Without it the depth grid is scaled onto the color frame"`
	Background      string      `help:"Background color as #RGB, #RGBA, #RRGGBB or #RRGGBBAA. Transparent if not given"`
	Workers         int         `help:"Goroutines sharing the per-pixel pass, 0 for one per CPU" default:"0"`
	BackgroundColor color.NRGBA `kong:"-"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	dir, err := filepath.Abs(c.Dir)
	var info os.FileInfo
	if err == nil {
		if info, err = os.Stat(dir); err == nil && !info.IsDir() {
			err = fmt.Errorf("not a directory")
		}
	}
	if err != nil {
		return fmt.Errorf("invalid frame set path %q: %w", c.Dir, err)
	}
	c.Dir = dir

	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}

	if c.Background != "" {
		if c.BackgroundColor, err = frame.ParseHexColor(c.Background); err != nil {
			return err
		}
	}
	return nil
}

// Run composites the frame set once and logs how its depth pixels were
// classified.
func (c *CLICmd) Run(ctx context.Context) error {
	logger := slog.Default().With("dir", c.Dir)

	src, err := source.OpenFiles(c.Dir, 1)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			logger.Error("could not close frame source", "error", closeErr)
		}
	}()

	set, err := src.Next(ctx)
	if err != nil {
		return fmt.Errorf("could not read frame set: %w", err)
	}
	defer set.Release()

	m, err := mapping.Open(c.Calibration, set.Depth.Width, set.Depth.Height, set.Color.Width, set.Color.Height)
	if err != nil {
		return err
	}

	comp := compositor.New(m, compositor.WithWorkers(c.Workers), compositor.WithLogger(logger))
	defer comp.Close()

	img, err := comp.Composite(set.Color, set.Depth, set.Body, c.BackgroundColor)
	if err != nil {
		return fmt.Errorf("could not composite frame set: %w", err)
	}

	s := comp.Stats()
	tracked := s.Foreground + s.Dropped
	var coverage float64
	if tracked > 0 {
		coverage = float64(s.Foreground) / float64(tracked)
	}
	logger.Info("stats",
		"width", img.Rect.Dx(), "height", img.Rect.Dy(),
		"foreground", s.Foreground, "dropped", s.Dropped, "background", s.Background,
		"coverage", fmt.Sprintf("%.1f%%", coverage*100))
	return nil
}
