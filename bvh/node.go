package bvh

import "github.com/swr06/Lensing/types"

// Bvh nodes are comprised of two Vec3 and two multipurpose int32 parameters
// whose value depends on the node type:
//
//   - For interior nodes LData and RData are both > 0 and point to the L/R
//     child nodes. Children are always stored after their parent.
//   - For leafs LData is <= 0 and holds the negated offset of the first
//     entry in the BVH index list; RData holds the (> 0) entry count.
//
// Each node takes 32 bytes.
type Node struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Set bounding box.
func (n *Node) SetBBox(box AABB) {
	n.Min = box.Min
	n.Max = box.Max
}

// Get bounding box.
func (n *Node) BBox() AABB {
	return AABB{Min: n.Min, Max: n.Max}
}

// Returns true if this is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LData <= 0
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *Node) ChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set index list offset and count.
func (n *Node) SetPrimitives(first, count uint32) {
	n.LData = -int32(first)
	n.RData = int32(count)
}

// Get index list offset and count.
func (n *Node) Primitives() (first, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Remap child node indices. Leafs are left untouched.
func (n *Node) RemapChildNodes(remap func(uint32) uint32) {
	if n.IsLeaf() {
		return
	}

	left, right := n.ChildNodes()
	n.SetChildNodes(remap(left), remap(right))
}
