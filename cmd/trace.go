package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/asset/scene/reader"
	"github.com/swr06/Lensing/renderer"
	"github.com/swr06/Lensing/tracer"
	"github.com/urfave/cli"
)

// Render a still frame of a scene and save it as a PNG image.
func TraceFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	buildOpts, err := cfg.BVH.Options()
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First(), buildOpts)
	if err != nil {
		return err
	}

	r, err := newRenderer(cfg.Render, scene.NewHandle(sc))
	if err != nil {
		return err
	}
	defer r.Close()

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	frame, err := r.Render(sigCtx)
	if err != nil {
		return err
	}

	// Display stats
	logger.Noticef("frame statistics\n%s", r.Stats())

	return writeFrame(frame, ctx.String("out"))
}

// Create a renderer with the configured set of CPU tracers.
func newRenderer(cfg RenderConfig, handle *scene.Handle) (renderer.Renderer, error) {
	var scheduler tracer.BlockScheduler
	switch strings.ToLower(cfg.Scheduler) {
	case "naive":
		scheduler = tracer.NaiveScheduler()
	case "", "perfect":
		scheduler = tracer.PerfectScheduler()
	default:
		return nil, fmt.Errorf("unknown block scheduler %q", cfg.Scheduler)
	}

	if cfg.Tracers <= 0 {
		cfg.Tracers = 1
	}
	tracers := make([]tracer.Tracer, cfg.Tracers)
	for index := range tracers {
		tracers[index] = tracer.NewCPU(fmt.Sprintf("cpu-%d", index), cfg.Workers)
	}

	return renderer.NewDefault(
		handle,
		scheduler,
		renderer.Options{
			FrameW:   cfg.Width,
			FrameH:   cfg.Height,
			LightDir: cfg.LightDir(),
		},
		tracers...,
	)
}

// Export frame as a PNG image.
func writeFrame(frame *image.RGBA, imgFile string) (err error) {
	start := time.Now()

	f, err := os.Create(imgFile)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if err = png.Encode(f, frame); err != nil {
		return fmt.Errorf("error encoding png file: %w", err)
	}

	logger.Noticef("wrote frame to %s in %d ms", imgFile, time.Since(start).Nanoseconds()/1e6)
	return nil
}
