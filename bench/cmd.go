package bench

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"greenscreen/compositor"
	"greenscreen/frame"
	"greenscreen/mapping"
	"greenscreen/source"
)

type CLICmd struct {
	Frames          int         `help:"Frame sets to composite" default:"300"`
	Color           string      `help:"Color resolution of synthetic frames" default:"1920x1080" group:"synthetic"`
	Depth           string      `help:"Depth resolution of synthetic frames" default:"512x424" group:"synthetic"`
	Dir             string      `help:"Replay a captured frame set directory instead of synthetic frames"`
	Calibration     string      `help:"Camera calibration JSON. Without it the depth grid is scaled onto the color frame"`
	Background      string      `help:"Background color as #RGB, #RGBA, #RRGGBB or #RRGGBBAA" default:"#00b140"`
	Workers         int         `help:"Goroutines sharing the per-pixel pass, 0 for one per CPU" default:"0"`
	Drop            bool        `help:"Deliver frames at camera rate through a latest-frame mailbox, dropping the ones compositing cannot keep up with" group:"camera"`
	FPS             int         `help:"Camera frame rate used with --drop" default:"30" group:"camera"`
	ColorSize       image.Point `kong:"-"`
	DepthSize       image.Point `kong:"-"`
	BackgroundColor color.NRGBA `kong:"-"`
}

func (c *CLICmd) Validate(kctx *kong.Context) error {
	var err error
	if c.Frames < 1 {
		return fmt.Errorf("invalid frame count: %d", c.Frames)
	}
	if c.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", c.Workers)
	}
	if c.Drop && c.FPS < 1 {
		return fmt.Errorf("invalid frame rate: %d", c.FPS)
	}
	if c.ColorSize, err = parseSize(c.Color); err != nil {
		return fmt.Errorf("invalid color resolution: %w", err)
	}
	if c.DepthSize, err = parseSize(c.Depth); err != nil {
		return fmt.Errorf("invalid depth resolution: %w", err)
	}
	if c.BackgroundColor, err = frame.ParseHexColor(c.Background); err != nil {
		return err
	}
	return nil
}

func parseSize(s string) (image.Point, error) {
	var p image.Point
	n, err := fmt.Sscanf(s, "%dx%d", &p.X, &p.Y)
	if err != nil {
		return p, fmt.Errorf("could not read %q as WIDTHxHEIGHT: %w", s, err)
	} else if n < 2 || p.X < 1 || p.Y < 1 {
		return p, fmt.Errorf("could not read %q as WIDTHxHEIGHT", s)
	}
	return p, nil
}

func (c *CLICmd) Run(ctx context.Context) error {
	src, colorSize, depthSize, err := c.openSource()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			slog.Error("could not close frame source", "error", closeErr)
		}
	}()

	m, err := mapping.Open(c.Calibration, depthSize.X, depthSize.Y, colorSize.X, colorSize.Y)
	if err != nil {
		return err
	}

	comp := compositor.New(m, compositor.WithWorkers(c.Workers))
	defer comp.Close()

	logger := slog.Default().With(
		"color", fmt.Sprintf("%dx%d", colorSize.X, colorSize.Y),
		"depth", fmt.Sprintf("%dx%d", depthSize.X, depthSize.Y))
	logger.Info("benchmarking", "frames", c.Frames, "drop", c.Drop)

	var delivered int
	sink := func(*frame.BGRA) error {
		delivered++
		return nil
	}

	start := time.Now()
	var drops uint64
	if c.Drop {
		mailbox := source.NewMailbox()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return source.Pump(gctx, src, mailbox, time.Second/time.Duration(c.FPS))
		})
		g.Go(func() error {
			return comp.Run(gctx, mailbox, c.BackgroundColor, sink)
		})
		err = g.Wait()
		drops = mailbox.Drops()
	} else {
		err = comp.Run(ctx, src, c.BackgroundColor, sink)
	}
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	s := comp.Stats()
	fps := float64(delivered) / elapsed.Seconds()
	logger.Info("stats",
		"composited", delivered, "skipped", s.Skipped, "dropped_frames", drops,
		"elapsed", elapsed.Round(time.Millisecond), "fps", fmt.Sprintf("%.1f", fps))
	return nil
}

func (c *CLICmd) openSource() (source.Source, image.Point, image.Point, error) {
	if c.Dir == "" {
		src := source.NewSynthetic(c.ColorSize.X, c.ColorSize.Y, c.DepthSize.X, c.DepthSize.Y, c.Frames)
		return src, c.ColorSize, c.DepthSize, nil
	}

	src, err := source.OpenFiles(c.Dir, c.Frames)
	if err != nil {
		return nil, image.Point{}, image.Point{}, err
	}
	colorSize, depthSize := src.Sizes()
	return src, colorSize, depthSize, nil
}
