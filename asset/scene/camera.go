package scene

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/types"
)

// Stores the ray directions at the four corners of the camera frustrum. It
// is used as a shortcut for generating per pixel rays via interpolation of
// the corner rays. Corners are stored in TL, TR, BL, BR order.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3

	// Vertical field of view in degrees.
	FOV float32

	// Aspect ratio (width / height) used when the frustrum was last
	// updated.
	Aspect float32

	Frustrum Frustrum
}

// Create a camera at the origin looking down the -Z axis.
func NewCamera(fov float32) *Camera {
	cam := &Camera{
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
		Aspect:   1,
	}
	cam.Update()
	return cam
}

// Setup camera aspect ratio and recalculate the frustrum.
func (c *Camera) SetupProjection(aspect float32) {
	if aspect > 0 {
		c.Aspect = aspect
	}
	c.Update()
}

// Recalculate the frustrum corner rays from the camera position and
// orientation.
func (c *Camera) Update() {
	forward := c.LookAt.Sub(c.Position).Normalize()
	right := forward.Cross(c.Up).Normalize()
	up := right.Cross(forward)

	halfHeight := math32.Tan(c.FOV * math32.Pi / 360.0)
	halfWidth := halfHeight * c.Aspect
	right = right.Mul(halfWidth)
	up = up.Mul(halfHeight)

	c.Frustrum[0] = forward.Sub(right).Add(up)
	c.Frustrum[1] = forward.Add(right).Add(up)
	c.Frustrum[2] = forward.Sub(right).Sub(up)
	c.Frustrum[3] = forward.Add(right).Sub(up)
}

// Rotate the camera position around the look at point. Yaw rotates around
// the up vector and pitch around the camera's right axis; both angles are
// in radians.
func (c *Camera) Orbit(yaw, pitch float32) {
	offset := c.Position.Sub(c.LookAt)
	right := c.LookAt.Sub(c.Position).Cross(c.Up)

	yawQuat := types.QuatFromAxisAngle(c.Up, yaw)
	pitchQuat := types.QuatFromAxisAngle(right, pitch)
	orientQuat := yawQuat.Mul(pitchQuat).Normalize()

	c.Position = c.LookAt.Add(orientQuat.Rotate(offset))
	c.Update()
}

// Generate the primary ray through the center of pixel (x, y) of a
// width x height frame. Pixel (0, 0) is the top-left corner.
func (c *Camera) Ray(x, y, width, height int) bvh.Ray {
	s := (float32(x) + 0.5) / float32(width)
	t := (float32(y) + 0.5) / float32(height)

	top := c.Frustrum[0].Add(c.Frustrum[1].Sub(c.Frustrum[0]).Mul(s))
	bottom := c.Frustrum[2].Add(c.Frustrum[3].Sub(c.Frustrum[2]).Mul(s))
	dir := top.Add(bottom.Sub(top).Mul(t)).Normalize()

	return bvh.NewRay(c.Position, dir)
}
