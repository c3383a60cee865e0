package renderer

import (
	"context"
	"image"
)

type Renderer interface {
	// Render frame.
	Render(ctx context.Context) (*image.RGBA, error)

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}
