package bvh

import "fmt"

// Check the structural invariants of the tree against the primitives it was
// built from:
//
//   - every child index points past its parent and inside the node list
//   - every node is reachable from the root exactly once
//   - every primitive index appears in exactly one leaf
//   - every node box is the tight union of its children (or its primitives)
//
// All returned errors wrap ErrCorruptTree.
func (b *BVH) Validate(prims []Primitive) error {
	if b.Empty() {
		if len(prims) != 0 {
			return fmt.Errorf("%w: empty tree for %d primitives", ErrCorruptTree, len(prims))
		}
		return nil
	}

	// Map original primitive indices back to primitive positions
	byIndex := make(map[uint32]int, len(prims))
	for pos := range prims {
		byIndex[prims[pos].Index] = pos
	}

	if len(b.Indices) != len(prims) {
		return fmt.Errorf("%w: tree references %d primitives; expected %d", ErrCorruptTree, len(b.Indices), len(prims))
	}

	nodeCount := uint32(len(b.Nodes))
	visited := make([]bool, len(b.Nodes))
	seen := make([]bool, len(prims))
	visited[0] = true

	// Nodes are stored after their parents so a forward sweep visits every
	// parent before its children
	for index := range b.Nodes {
		node := &b.Nodes[index]
		if !visited[index] {
			return fmt.Errorf("%w: node %d is not reachable from the root", ErrCorruptTree, index)
		}
		if !node.BBox().IsValid() {
			return fmt.Errorf("%w: node %d has invalid bounds %v", ErrCorruptTree, index, node.BBox())
		}

		if node.IsLeaf() {
			first, count := node.Primitives()
			if count == 0 || uint64(first)+uint64(count) > uint64(len(b.Indices)) {
				return fmt.Errorf("%w: leaf %d references out of range entries [%d, %d)", ErrCorruptTree, index, first, uint64(first)+uint64(count))
			}
			for _, primIndex := range b.Indices[first : first+count] {
				pos, ok := byIndex[primIndex]
				if !ok {
					return fmt.Errorf("%w: leaf %d references unknown primitive %d", ErrCorruptTree, index, primIndex)
				}
				if seen[pos] {
					return fmt.Errorf("%w: primitive %d is referenced more than once", ErrCorruptTree, primIndex)
				}
				seen[pos] = true
			}
			continue
		}

		left, right := node.ChildNodes()
		for _, child := range [2]uint32{left, right} {
			if child <= uint32(index) || child >= nodeCount {
				return fmt.Errorf("%w: node %d has invalid child index %d", ErrCorruptTree, index, child)
			}
			if visited[child] {
				return fmt.Errorf("%w: node %d is referenced by more than one parent", ErrCorruptTree, child)
			}
			visited[child] = true
		}
	}

	for pos, ok := range seen {
		if !ok {
			return fmt.Errorf("%w: primitive %d is not referenced by any leaf", ErrCorruptTree, prims[pos].Index)
		}
	}

	// A reverse sweep visits children before parents which allows us to
	// compare each box against the union of its children
	for index := len(b.Nodes) - 1; index >= 0; index-- {
		node := &b.Nodes[index]
		expected := EmptyAABB()
		if node.IsLeaf() {
			first, count := node.Primitives()
			for _, primIndex := range b.Indices[first : first+count] {
				expected = expected.Union(prims[byIndex[primIndex]].Bounds)
			}
		} else {
			left, right := node.ChildNodes()
			expected = b.Nodes[left].BBox().Union(b.Nodes[right].BBox())
		}

		if !node.BBox().Contains(expected) {
			return fmt.Errorf("%w: node %d bounds %v do not enclose its contents %v", ErrCorruptTree, index, node.BBox(), expected)
		}
		if node.BBox() != expected {
			return fmt.Errorf("%w: node %d bounds %v do not match the expected bounds %v", ErrCorruptTree, index, node.BBox(), expected)
		}
	}

	return nil
}
