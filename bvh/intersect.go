package bvh

import (
	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/types"
)

const (
	// The initial traversal stack capacity. Trees built with the default
	// MaxDepth never need more entries; deeper trees spill to the heap.
	stackCapacity = 64

	// The slab exit distance is widened by this relative amount so that
	// rounding errors do not reject boxes that are merely grazed, such as
	// the flat box of an axis-aligned triangle.
	slabExitTolerance float32 = 1e-5
)

// A node waiting to be visited along with the distance at which the ray
// enters its bounding box.
type stackEntry struct {
	node   uint32
	tEntry float32
}

// Per-ray values that are reused by every slab test.
type rayQuery struct {
	origin types.Vec3
	invDir types.Vec3

	// Set for direction components that are zero. The matching invDir
	// component is ±Inf and is never multiplied.
	parallel [3]bool

	tMin float32
}

func newRayQuery(ray *Ray) rayQuery {
	q := rayQuery{
		origin: ray.Origin,
		tMin:   ray.TMin,
	}
	for axis := 0; axis < 3; axis++ {
		if ray.Dir[axis] == 0 {
			q.parallel[axis] = true
			if math32.Signbit(ray.Dir[axis]) {
				q.invDir[axis] = math32.Inf(-1)
			} else {
				q.invDir[axis] = math32.Inf(1)
			}
			continue
		}
		q.invDir[axis] = 1.0 / ray.Dir[axis]
	}
	return q
}

// Test the ray against a node box within [q.tMin, tMax]. Returns the
// distance where the ray enters the box.
func (q *rayQuery) slab(node *Node, tMax float32) (float32, bool) {
	tNear, tFar := q.tMin, tMax
	for axis := 0; axis < 3; axis++ {
		if q.parallel[axis] {
			if q.origin[axis] < node.Min[axis] || q.origin[axis] > node.Max[axis] {
				return 0, false
			}
			continue
		}

		t0 := (node.Min[axis] - q.origin[axis]) * q.invDir[axis]
		t1 := (node.Max[axis] - q.origin[axis]) * q.invDir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		t1 += math32.Abs(t1) * slabExitTolerance

		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tNear > tFar {
			return 0, false
		}
	}
	return tNear, true
}

// Find the nearest primitive hit by the ray within [ray.TMin, ray.TMax].
//
// The tris slice must be the geometry the tree was built from: leaf entries
// are used as indices into it. Degenerate rays and empty trees yield NoHit.
func (b *BVH) Intersect(tris []Triangle, ray Ray) Hit {
	hit := NoHit
	if b.Empty() || ray.IsDegenerate() {
		return hit
	}

	q := newRayQuery(&ray)
	tEntry, ok := q.slab(&b.Nodes[0], ray.TMax)
	if !ok {
		return hit
	}

	var storage [stackCapacity]stackEntry
	stack := append(storage[:0], stackEntry{node: 0, tEntry: tEntry})

	tMax := ray.TMax
	for len(stack) > 0 {
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		// A closer hit was found after this node was queued
		if entry.tEntry > tMax {
			continue
		}

		node := &b.Nodes[entry.node]
		if node.IsLeaf() {
			first, count := node.Primitives()
			for _, primIndex := range b.Indices[first : first+count] {
				t, u, v, ok := IntersectTriangle(&tris[primIndex], ray.Origin, ray.Dir, ray.TMin, tMax)
				if ok && t < hit.T {
					tMax = t
					hit = Hit{T: t, U: u, V: v, Primitive: int32(primIndex)}
				}
			}
			continue
		}

		left, right := node.ChildNodes()
		tLeft, hitLeft := q.slab(&b.Nodes[left], tMax)
		tRight, hitRight := q.slab(&b.Nodes[right], tMax)
		switch {
		case hitLeft && hitRight:
			// Push the far child first so the near child is visited first
			if tLeft <= tRight {
				stack = append(stack, stackEntry{right, tRight}, stackEntry{left, tLeft})
			} else {
				stack = append(stack, stackEntry{left, tLeft}, stackEntry{right, tRight})
			}
		case hitLeft:
			stack = append(stack, stackEntry{left, tLeft})
		case hitRight:
			stack = append(stack, stackEntry{right, tRight})
		}
	}

	return hit
}

// Returns true if the ray hits any primitive within [ray.TMin, ray.TMax].
// Traversal stops at the first hit, which makes this query cheaper than
// Intersect for shadow rays.
func (b *BVH) IntersectAny(tris []Triangle, ray Ray) bool {
	if b.Empty() || ray.IsDegenerate() {
		return false
	}

	q := newRayQuery(&ray)
	if _, ok := q.slab(&b.Nodes[0], ray.TMax); !ok {
		return false
	}

	var storage [stackCapacity]uint32
	stack := append(storage[:0], 0)

	for len(stack) > 0 {
		node := &b.Nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if node.IsLeaf() {
			first, count := node.Primitives()
			for _, primIndex := range b.Indices[first : first+count] {
				if _, _, _, ok := IntersectTriangle(&tris[primIndex], ray.Origin, ray.Dir, ray.TMin, ray.TMax); ok {
					return true
				}
			}
			continue
		}

		left, right := node.ChildNodes()
		if _, ok := q.slab(&b.Nodes[right], ray.TMax); ok {
			stack = append(stack, right)
		}
		if _, ok := q.slab(&b.Nodes[left], ray.TMax); ok {
			stack = append(stack, left)
		}
	}

	return false
}

// Find the nearest hit by testing every triangle. This is the reference
// implementation that Intersect results are checked against.
func BruteForce(tris []Triangle, ray Ray) Hit {
	hit := NoHit
	if ray.IsDegenerate() {
		return hit
	}

	tMax := ray.TMax
	for index := range tris {
		t, u, v, ok := IntersectTriangle(&tris[index], ray.Origin, ray.Dir, ray.TMin, tMax)
		if ok && t < hit.T {
			tMax = t
			hit = Hit{T: t, U: u, V: v, Primitive: int32(index)}
		}
	}
	return hit
}

// Returns true if any triangle is hit. Reference implementation for
// IntersectAny.
func BruteForceAny(tris []Triangle, ray Ray) bool {
	if ray.IsDegenerate() {
		return false
	}

	for index := range tris {
		if _, _, _, ok := IntersectTriangle(&tris[index], ray.Origin, ray.Dir, ray.TMin, ray.TMax); ok {
			return true
		}
	}
	return false
}
