package bvh

import (
	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/types"
)

// Determinants smaller than this value are treated as rays parallel to the
// triangle plane.
const detEpsilon float32 = 1e-10

// A triangle defined by its three vertices.
type Triangle [3]types.Vec3

// Get triangle AABB.
func (tri *Triangle) Bounds() AABB {
	return AABBFromPoints(tri[0], tri[1], tri[2])
}

// Get triangle centroid.
func (tri *Triangle) Centroid() types.Vec3 {
	return tri[0].Add(tri[1]).Add(tri[2]).Mul(1.0 / 3.0)
}

// Generate the builder input for a triangle list. The original index of
// each primitive is its position in tris.
func Primitives(tris []Triangle) []Primitive {
	prims := make([]Primitive, len(tris))
	for index := range tris {
		prims[index] = Primitive{
			Bounds:   tris[index].Bounds(),
			Centroid: tris[index].Centroid(),
			Index:    uint32(index),
		}
	}
	return prims
}

// Test a ray against a triangle using the Möller-Trumbore algorithm. On a
// hit within [tMin, tMax] it returns the hit distance and the barycentric
// coordinates of the hit point relative to vertices 1 and 2.
func IntersectTriangle(tri *Triangle, origin, dir types.Vec3, tMin, tMax float32) (t, u, v float32, ok bool) {
	e1 := tri[1].Sub(tri[0])
	e2 := tri[2].Sub(tri[0])

	p := dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < detEpsilon {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det

	s := origin.Sub(tri[0])
	u = s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(q) * invDet
	if t < tMin || t > tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}
