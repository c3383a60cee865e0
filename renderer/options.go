package renderer

import "github.com/swr06/Lensing/types"

type Options struct {
	// Frame dims.
	FrameW uint32
	FrameH uint32

	// Direction towards the light source. It does not need to be
	// normalized; a zero vector selects DefaultLightDir.
	LightDir types.Vec3
}

// The light direction used when Options.LightDir is not set.
var DefaultLightDir = types.XYZ(0.4, 1, 0.6)
