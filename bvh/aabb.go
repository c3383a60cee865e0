package bvh

import (
	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis
)

// An axis-aligned bounding box. A valid box satisfies Min <= Max on every
// axis; zero-volume boxes are valid.
type AABB struct {
	Min types.Vec3
	Max types.Vec3
}

// Create an empty box that acts as the identity element for Union.
func EmptyAABB() AABB {
	inf := math32.Inf(1)
	return AABB{
		Min: types.Splat3(inf),
		Max: types.Splat3(-inf),
	}
}

// Create a box from a set of points.
func AABBFromPoints(points ...types.Vec3) AABB {
	box := EmptyAABB()
	for _, p := range points {
		box = box.Grow(p)
	}
	return box
}

// Returns true if the box contains no points.
func (b AABB) Empty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}

// Returns true if all box coordinates are finite and Min <= Max.
func (b AABB) IsValid() bool {
	return b.Min.IsFinite() && b.Max.IsFinite() && !b.Empty()
}

// Get the union of two boxes.
func (b AABB) Union(other AABB) AABB {
	return AABB{
		Min: types.MinVec3(b.Min, other.Min),
		Max: types.MaxVec3(b.Max, other.Max),
	}
}

// Extend box to include point p.
func (b AABB) Grow(p types.Vec3) AABB {
	return AABB{
		Min: types.MinVec3(b.Min, p),
		Max: types.MaxVec3(b.Max, p),
	}
}

// Get the box side lengths. Empty boxes have a zero extent.
func (b AABB) Extent() types.Vec3 {
	if b.Empty() {
		return types.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Get box center.
func (b AABB) Centroid() types.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Calculate box surface area. Empty and degenerate boxes yield 0.
func (b AABB) SurfaceArea() float32 {
	d := b.Extent()
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// Get the axis with the largest extent.
func (b AABB) LongestAxis() Axis {
	d := b.Extent()
	switch {
	case d[0] >= d[1] && d[0] >= d[2]:
		return XAxis
	case d[1] >= d[2]:
		return YAxis
	}
	return ZAxis
}

// Returns true if other lies entirely inside this box.
func (b AABB) Contains(other AABB) bool {
	for axis := 0; axis < 3; axis++ {
		if other.Min[axis] < b.Min[axis] || other.Max[axis] > b.Max[axis] {
			return false
		}
	}
	return true
}
