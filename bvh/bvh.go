package bvh

// A bounding volume hierarchy over a static primitive set.
//
// The node list and the index list are never modified after Build returns,
// so a BVH can be queried concurrently from any number of goroutines.
type BVH struct {
	// Tree nodes; the root is stored at index 0.
	Nodes []Node

	// Original primitive indices, ordered so each leaf references a
	// contiguous run.
	Indices []uint32

	// The depth of the deepest leaf (the root has depth 0).
	MaxDepth int
}

// Tree statistics.
type Stats struct {
	Nodes      int
	Leafs      int
	Primitives int
	MaxDepth   int

	MinLeafSize int
	MaxLeafSize int
	AvgLeafSize float32

	// The SAH cost of the whole tree, normalized by the root surface area
	// and using unit traversal/intersection costs.
	SAHCost float32
}

// Get the number of primitives referenced by the tree.
func (b *BVH) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Indices)
}

// Returns true if the tree contains no primitives.
func (b *BVH) Empty() bool {
	return b == nil || len(b.Nodes) == 0
}

// Get the bounds of the entire tree.
func (b *BVH) Bounds() AABB {
	if b.Empty() {
		return EmptyAABB()
	}
	return b.Nodes[0].BBox()
}

// Collect tree statistics.
func (b *BVH) Stats() Stats {
	if b.Empty() {
		return Stats{}
	}

	stats := Stats{
		Nodes:      len(b.Nodes),
		Primitives: b.Len(),
		MaxDepth:   b.MaxDepth,
	}

	rootArea := b.Nodes[0].BBox().SurfaceArea()
	invRootArea := float32(1.0)
	if rootArea > 0 {
		invRootArea = 1.0 / rootArea
	}

	for index := range b.Nodes {
		node := &b.Nodes[index]
		area := node.BBox().SurfaceArea() * invRootArea
		if !node.IsLeaf() {
			stats.SAHCost += area
			continue
		}

		_, count := node.Primitives()
		stats.Leafs++
		stats.SAHCost += area * float32(count)
		if stats.MinLeafSize == 0 || int(count) < stats.MinLeafSize {
			stats.MinLeafSize = int(count)
		}
		if int(count) > stats.MaxLeafSize {
			stats.MaxLeafSize = int(count)
		}
	}
	stats.AvgLeafSize = float32(stats.Primitives) / float32(stats.Leafs)
	return stats
}
