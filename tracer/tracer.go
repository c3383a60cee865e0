package tracer

import (
	"context"
	"time"

	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/types"
)

// A unit of work that is processed by a tracer.
type BlockRequest struct {
	// Block start row and height.
	BlockY uint32
	BlockH uint32

	// Frame dims.
	FrameW uint32
	FrameH uint32

	// The scene snapshot that is shared by all blocks of a frame.
	Scene *scene.Scene

	// The camera used for generating primary rays. It is owned by the
	// frame and must not be modified while the frame is being traced.
	Camera *scene.Camera

	// Normalized direction towards the light source used for shadow rays.
	LightDir types.Vec3

	// The frame buffer in RGBA order. A tracer only writes the rows that
	// belong to its block.
	FrameBuffer []uint8
}

// Tracer statistics.
type Stats struct {
	// The rendered block height
	BlockH uint32

	// The time for rendering this block
	RenderTime time.Duration

	// The number of traced primary and shadow rays and the number of
	// primary rays that hit a primitive.
	PrimaryRays uint64
	ShadowRays  uint64
	Hits        uint64
}

type Tracer interface {
	// Get tracer id.
	Id() string

	// Shutdown and cleanup tracer.
	Close()

	// Get the tracers computation speed estimate compared to a
	// baseline (single core) implementation.
	SpeedEstimate() float32

	// Trace a block of rows and block until it is complete or ctx is
	// cancelled.
	Trace(ctx context.Context, req BlockRequest) error

	// Retrieve last frame statistics.
	Stats() *Stats
}
