package bvh

import (
	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/types"
)

// The default near plane for rays created via NewRay. It prevents
// self-intersections for rays spawned from a surface.
const RayEpsilon float32 = 1e-4

// A ray query. Dir does not need to be normalized; hit distances are
// expressed in units of Dir.
type Ray struct {
	Origin types.Vec3
	Dir    types.Vec3

	// The valid parametric interval along the ray.
	TMin float32
	TMax float32
}

// Create a ray with the interval [RayEpsilon, +Inf).
func NewRay(origin, dir types.Vec3) Ray {
	return Ray{
		Origin: origin,
		Dir:    dir,
		TMin:   RayEpsilon,
		TMax:   math32.Inf(1),
	}
}

// Get the point at distance t along the ray.
func (r Ray) At(t float32) types.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Returns true if the ray can produce hits. Rays with a NaN component, a
// zero-length direction or an empty interval are degenerate.
func (r Ray) IsDegenerate() bool {
	if !r.Origin.IsFinite() || !r.Dir.IsFinite() {
		return true
	}
	if r.Dir[0] == 0 && r.Dir[1] == 0 && r.Dir[2] == 0 {
		return true
	}
	if math32.IsNaN(r.TMin) || math32.IsNaN(r.TMax) {
		return true
	}
	return r.TMin > r.TMax
}

// A ray query result.
type Hit struct {
	// Hit distance along the ray.
	T float32

	// Barycentric coordinates of the hit point.
	U, V float32

	// The original index of the hit primitive or -1 if nothing was hit.
	Primitive int32
}

// The result returned by queries that do not hit anything.
var NoHit = Hit{T: math32.Inf(1), Primitive: -1}

// Returns true if the query hit a primitive.
func (h Hit) Ok() bool {
	return h.Primitive >= 0
}

// Get the weights for interpolating per-vertex attributes at the hit point.
func (h Hit) Barycentrics() types.Vec3 {
	return types.Vec3{1 - h.U - h.V, h.U, h.V}
}
