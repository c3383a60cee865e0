package renderer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/tracer"
	"golang.org/x/sync/errgroup"
)

// The default renderer splits each frame into blocks of rows using a block
// scheduler and traces them concurrently using the attached tracers.
type defaultRenderer struct {
	logger log.Logger

	handle    *scene.Handle
	scheduler tracer.BlockScheduler
	tracers   []tracer.Tracer
	options   Options

	stats FrameStats
}

// Create a new renderer that draws the scene published by handle. The scene
// is loaded once per frame so geometry can be swapped between frames while
// the renderer is running.
func NewDefault(handle *scene.Handle, scheduler tracer.BlockScheduler, opts Options, tracers ...tracer.Tracer) (Renderer, error) {
	if len(tracers) == 0 {
		return nil, ErrNoTracers
	}
	if opts.FrameW == 0 || opts.FrameH == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidFrame, opts.FrameW, opts.FrameH)
	}
	if opts.FrameH < uint32(len(tracers)) {
		return nil, fmt.Errorf("%w: frame height %d is less than the number of tracers (%d)", ErrInvalidFrame, opts.FrameH, len(tracers))
	}

	if opts.LightDir.Len() == 0 {
		opts.LightDir = DefaultLightDir
	}
	opts.LightDir = opts.LightDir.Normalize()

	r := &defaultRenderer{
		logger:    log.New("renderer"),
		handle:    handle,
		scheduler: scheduler,
		tracers:   tracers,
		options:   opts,
	}

	for _, tr := range tracers {
		r.logger.Infof(`attached tracer "%s" (speed estimate: %.1f)`, tr.Id(), tr.SpeedEstimate())
	}

	return r, nil
}

// Render a frame.
func (r *defaultRenderer) Render(ctx context.Context) (*image.RGBA, error) {
	if len(r.tracers) == 0 {
		return nil, ErrNoTracers
	}

	sc := r.handle.Load()
	if sc == nil {
		return nil, ErrSceneNotDefined
	}
	if sc.Camera == nil {
		return nil, ErrCameraNotDefined
	}

	start := time.Now()

	// The scene is shared with other readers; use a private camera copy
	// with the projection for this frame.
	camera := *sc.Camera
	camera.SetupProjection(float32(r.options.FrameW) / float32(r.options.FrameH))

	frame := image.NewRGBA(image.Rect(0, 0, int(r.options.FrameW), int(r.options.FrameH)))
	blockAssignment := r.scheduler.Schedule(r.tracers, r.options.FrameH)

	g, gctx := errgroup.WithContext(ctx)
	var blockY uint32
	for idx, tr := range r.tracers {
		tr := tr
		req := tracer.BlockRequest{
			BlockY:      blockY,
			BlockH:      blockAssignment[idx],
			FrameW:      r.options.FrameW,
			FrameH:      r.options.FrameH,
			Scene:       sc,
			Camera:      &camera,
			LightDir:    r.options.LightDir,
			FrameBuffer: frame.Pix,
		}
		blockY += req.BlockH

		g.Go(func() error {
			return tr.Trace(gctx, req)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
		return nil, err
	}

	r.updateStats(blockAssignment, time.Since(start))
	r.logger.Debugf("rendered %dx%d frame in %s", r.options.FrameW, r.options.FrameH, r.stats.RenderTime)
	return frame, nil
}

// Shutdown renderer and any attached tracer.
func (r *defaultRenderer) Close() {
	for _, tr := range r.tracers {
		tr.Close()
	}
	r.tracers = nil
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

func (r *defaultRenderer) updateStats(blockAssignment []uint32, renderTime time.Duration) {
	r.stats = FrameStats{
		Tracers:    make([]TracerStat, len(r.tracers)),
		RenderTime: renderTime,
	}

	for idx, tr := range r.tracers {
		trStats := tr.Stats()
		r.stats.Tracers[idx] = TracerStat{
			Id:           tr.Id(),
			BlockH:       blockAssignment[idx],
			FramePercent: 100.0 * float32(blockAssignment[idx]) / float32(r.options.FrameH),
			RenderTime:   trStats.RenderTime,
			PrimaryRays:  trStats.PrimaryRays,
			ShadowRays:   trStats.ShadowRays,
			Hits:         trStats.Hits,
		}
	}
}
