package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"greenscreen/bench"
	"greenscreen/stats"
)

type cli struct {
	LogLevel string `help:"Minimum level of logged messages" enum:"debug,info,warn,error" default:"info"`
	LogJSON  bool   `help:"Log JSON lines instead of text" name:"log-json"`

	Stats stats.CLICmd `cmd:"" help:"Composite a captured frame set once and report how its pixels were classified"`
	Bench bench.CLICmd `cmd:"" help:"Measure sustained compositing throughput"`
}

func setupLogging(level string, json bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if json {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("greenscreen"),
		kong.Description("Cut tracked people out of a depth camera's color stream and place them over a solid background."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.greenscreen.json", "greenscreen.json"),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := setupLogging(c.LogLevel, c.LogJSON); err != nil {
		kctx.FatalIfErrorf(err)
	}

	slog.Debug("running", "command", kctx.Command())
	if err := kctx.Run(); err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
