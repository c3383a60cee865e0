package tracer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/types"
	"golang.org/x/sync/errgroup"
)

const (
	// Light contribution for surfaces that face away from the light or are
	// in shadow.
	ambientTerm float32 = 0.15

	// Offset along the surface normal for shadow ray origins.
	shadowBias float32 = 1e-3
)

var (
	ErrInvalidBlock = errors.New("tracer: invalid block request")

	// Color for rays that escape the scene.
	backgroundColor = [4]uint8{24, 24, 32, 255}
)

// A tracer that runs ray queries on the CPU. Rows of a block are distributed
// to a pool of goroutines; each row is written by exactly one goroutine.
type cpuTracer struct {
	logger  log.Logger
	id      string
	workers int

	stats Stats
}

// Create a new CPU tracer that uses the given number of goroutines. A
// non-positive worker count selects one worker per available CPU.
func NewCPU(id string, workers int) Tracer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &cpuTracer{
		logger:  log.New(id),
		id:      id,
		workers: workers,
	}
}

func (tr *cpuTracer) Id() string {
	return tr.id
}

func (tr *cpuTracer) Close() {
}

func (tr *cpuTracer) SpeedEstimate() float32 {
	return float32(tr.workers)
}

func (tr *cpuTracer) Stats() *Stats {
	return &tr.stats
}

// Trace a block of rows. For each pixel a primary ray is traced against the
// scene and, on a hit, a shadow ray is cast towards the light.
func (tr *cpuTracer) Trace(ctx context.Context, req BlockRequest) error {
	if err := validateRequest(&req); err != nil {
		return err
	}

	start := time.Now()
	var nextRow, primaryRays, shadowRays, hits atomic.Uint64
	nextRow.Store(uint64(req.BlockY))
	blockEnd := uint64(req.BlockY + req.BlockH)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < tr.workers; w++ {
		g.Go(func() error {
			var counters rowCounters
			for {
				row := nextRow.Add(1) - 1
				if row >= blockEnd {
					break
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				traceRow(&req, int(row), &counters)
			}
			primaryRays.Add(counters.primary)
			shadowRays.Add(counters.shadow)
			hits.Add(counters.hits)
			return nil
		})
	}
	err := g.Wait()

	tr.stats = Stats{
		BlockH:      req.BlockH,
		RenderTime:  time.Since(start),
		PrimaryRays: primaryRays.Load(),
		ShadowRays:  shadowRays.Load(),
		Hits:        hits.Load(),
	}
	if err != nil {
		return err
	}

	tr.logger.Debugf(
		"traced rows [%d, %d) in %s (%d primary, %d shadow rays)",
		req.BlockY, req.BlockY+req.BlockH, tr.stats.RenderTime, tr.stats.PrimaryRays, tr.stats.ShadowRays,
	)
	return nil
}

func validateRequest(req *BlockRequest) error {
	switch {
	case req.Scene == nil:
		return fmt.Errorf("%w: no scene", ErrInvalidBlock)
	case req.Camera == nil:
		return fmt.Errorf("%w: no camera", ErrInvalidBlock)
	case req.BlockY+req.BlockH > req.FrameH:
		return fmt.Errorf("%w: rows [%d, %d) exceed frame height %d", ErrInvalidBlock, req.BlockY, req.BlockY+req.BlockH, req.FrameH)
	case len(req.FrameBuffer) < int(4*req.FrameW*req.FrameH):
		return fmt.Errorf("%w: frame buffer holds %d bytes; expected %d", ErrInvalidBlock, len(req.FrameBuffer), 4*req.FrameW*req.FrameH)
	}
	return nil
}

type rowCounters struct {
	primary, shadow, hits uint64
}

func traceRow(req *BlockRequest, y int, counters *rowCounters) {
	w, h := int(req.FrameW), int(req.FrameH)
	offset := 4 * y * w
	for x := 0; x < w; x++ {
		color := shade(req, req.Camera.Ray(x, y, w, h), counters)
		copy(req.FrameBuffer[offset:offset+4], color[:])
		offset += 4
	}
}

// Calculate the color for a primary ray.
func shade(req *BlockRequest, ray bvh.Ray, counters *rowCounters) [4]uint8 {
	counters.primary++
	hit := req.Scene.Intersect(ray)
	if !hit.Ok() {
		return backgroundColor
	}
	counters.hits++

	// Flip the normal so it faces the incoming ray
	normal := req.Scene.Normal(hit)
	if normal.Dot(ray.Dir) > 0 {
		normal = normal.Mul(-1)
	}

	intensity := ambientTerm
	diffuse := normal.Dot(req.LightDir)
	if diffuse > 0 {
		counters.shadow++
		origin := ray.At(hit.T).Add(normal.Mul(shadowBias))
		if !req.Scene.IntersectAny(bvh.NewRay(origin, req.LightDir)) {
			intensity += (1 - ambientTerm) * diffuse
		}
	}

	return toRGBA(types.Splat3(intensity).MulVec(surfaceTint(normal)))
}

// Derive a tint from the surface orientation so that faces with different
// orientations can be told apart.
func surfaceTint(normal types.Vec3) types.Vec3 {
	return types.Vec3{
		0.75 + 0.25*math32.Abs(normal[0]),
		0.75 + 0.25*math32.Abs(normal[1]),
		0.75 + 0.25*math32.Abs(normal[2]),
	}
}

func toRGBA(c types.Vec3) [4]uint8 {
	var out [4]uint8
	for i := 0; i < 3; i++ {
		out[i] = uint8(math32.Min(math32.Max(c[i], 0), 1)*255 + 0.5)
	}
	out[3] = 255
	return out
}
