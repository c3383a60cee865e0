package bvh

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/types"
)

// A builder input item: the bounds and centroid of a primitive along with
// the index of the primitive in the caller's geometry list.
type Primitive struct {
	Bounds   AABB
	Centroid types.Vec3
	Index    uint32
}

// A pending range of the index list whose node still needs to be set up.
type buildTask struct {
	node       uint32
	start, end int
	depth      int
}

type buildStats struct {
	leafs    int
	maxDepth int
	splits   [2]int // [0] heuristic, [1] forced count splits
}

func (s *buildStats) merge(other buildStats) {
	s.leafs += other.leafs
	s.splits[0] += other.splits[0]
	s.splits[1] += other.splits[1]
	if other.maxDepth > s.maxDepth {
		s.maxDepth = other.maxDepth
	}
}

type builder struct {
	opts  *BuildOptions
	prims []Primitive

	// Positions into prims. Each leaf owns a contiguous run.
	indices []uint32

	// Scratch space for stable partitioning; sized for the builder range.
	scratch []uint32

	// Bvh nodes stored as a contiguous list
	nodes []Node

	// Ranges that are handed off to parallel workers instead of being
	// processed by this builder.
	deferred []buildTask

	// The root range size; used to decide which subtrees are handed off.
	total int

	// True if ranges may be handed off to parallel workers.
	parallel bool

	stats buildStats
}

// Construct a BVH from a set of primitives.
//
// Build validates all primitives before constructing any nodes and returns
// an error wrapping ErrInvalidInput if any primitive has non-finite or
// inverted bounds. An empty primitive list produces an empty BVH which
// reports no hits for every query.
func Build(prims []Primitive, opts BuildOptions) (*BVH, error) {
	logger := log.New("bvh")

	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	if err = validatePrimitives(prims); err != nil {
		return nil, err
	}

	if len(prims) == 0 {
		logger.Warning("building BVH for an empty primitive list")
		return &BVH{}, nil
	}

	start := time.Now()
	b := newBuilder(&opts, prims, make([]uint32, len(prims)), len(prims))
	b.parallel = opts.Workers > 1
	for index := range b.indices {
		b.indices[index] = uint32(index)
	}
	b.run(buildTask{node: 0, start: 0, end: len(prims)})

	if len(b.deferred) != 0 {
		if err = b.buildDeferred(); err != nil {
			return nil, err
		}
	}

	// Convert builder positions to the caller's primitive indices
	for index, primIndex := range b.indices {
		b.indices[index] = prims[primIndex].Index
	}

	tree := &BVH{
		Nodes:    b.nodes,
		Indices:  b.indices,
		MaxDepth: b.stats.maxDepth,
	}

	logger.Debugf(
		"BVH build time: %d ms, strategy: %s, workers: %d, maxDepth: %d, nodes: %d, leafs: %d, splits: %d (+%d forced)",
		time.Since(start).Nanoseconds()/1e6, opts.Strategy, opts.Workers,
		b.stats.maxDepth, len(b.nodes), b.stats.leafs, b.stats.splits[0], b.stats.splits[1],
	)
	return tree, nil
}

// Reject primitives with bounds that would poison the tree.
func validatePrimitives(prims []Primitive) error {
	// Leaf offsets and child indices are stored as int32 values and a tree
	// with n leafs has 2n-1 nodes.
	if len(prims) > math.MaxInt32/2 {
		return fmt.Errorf("%w: too many primitives (%d)", ErrInvalidInput, len(prims))
	}

	for index := range prims {
		prim := &prims[index]
		if !prim.Bounds.Min.IsFinite() || !prim.Bounds.Max.IsFinite() {
			return fmt.Errorf("%w: primitive %d has non-finite bounds %v", ErrInvalidInput, index, prim.Bounds)
		}
		if prim.Bounds.Empty() {
			return fmt.Errorf("%w: primitive %d has inverted bounds %v", ErrInvalidInput, index, prim.Bounds)
		}
		if !prim.Centroid.IsFinite() {
			return fmt.Errorf("%w: primitive %d has a non-finite centroid %v", ErrInvalidInput, index, prim.Centroid)
		}
	}
	return nil
}

// Create a builder for a range of n entries of the shared index list.
func newBuilder(opts *BuildOptions, prims []Primitive, indices []uint32, n int) *builder {
	// Each leaf holds at least one primitive so a binary tree over n
	// primitives needs at most 2n-1 nodes
	return &builder{
		opts:    opts,
		prims:   prims,
		indices: indices,
		scratch: make([]uint32, n),
		nodes:   make([]Node, 1, 2*n-1),
		total:   n,
	}
}

// Process the range rooted at task.node (and all ranges it spawns) using an
// explicit stack instead of recursion.
func (b *builder) run(root buildTask) {
	stack := make([]buildTask, 0, 64)
	stack = append(stack, root)

	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if b.shouldDefer(task) {
			b.deferred = append(b.deferred, task)
			continue
		}

		left, right, isLeaf := b.partition(task)
		if isLeaf {
			continue
		}

		// Push right first so the left subtree is processed first
		stack = append(stack, right, left)
	}
}

// Hand off subtrees that are large enough to amortize a goroutine but small
// enough to leave work for every worker.
func (b *builder) shouldDefer(task buildTask) bool {
	if !b.parallel || task.node == 0 {
		return false
	}

	count := task.end - task.start
	return count >= b.opts.ParallelThreshold && count <= b.total/b.opts.Workers
}

// Setup the node for task either as a leaf or as an interior node. For
// interior nodes the child tasks are returned.
func (b *builder) partition(task buildTask) (left, right buildTask, isLeaf bool) {
	if task.depth > b.stats.maxDepth {
		b.stats.maxDepth = task.depth
	}

	bounds, centroidBounds := b.rangeBounds(task.start, task.end)
	b.nodes[task.node].SetBBox(bounds)

	// Do we have enough items for partitioning? If not create a leaf
	count := task.end - task.start
	if count <= b.opts.LeafSize {
		b.createLeaf(task)
		return left, right, true
	}

	mid, ok := b.split(task, bounds, centroidBounds)
	if !ok {
		b.createLeaf(task)
		return left, right, true
	}

	// Children are stored as a consecutive node pair
	leftIndex := uint32(len(b.nodes))
	b.nodes = append(b.nodes, Node{}, Node{})
	b.nodes[task.node].SetChildNodes(leftIndex, leftIndex+1)

	left = buildTask{node: leftIndex, start: task.start, end: mid, depth: task.depth + 1}
	right = buildTask{node: leftIndex + 1, start: mid, end: task.end, depth: task.depth + 1}
	return left, right, false
}

// Select a split for the task range and reorder the index list so that the
// left child range is [task.start, mid). Returns false if the range should
// become a leaf.
func (b *builder) split(task buildTask, bounds, centroidBounds AABB) (mid int, ok bool) {
	count := task.end - task.start

	// If all centroids coincide or we went too deep, position-based splits
	// cannot make progress
	if task.depth >= b.opts.MaxDepth || centroidBounds.Extent().MaxComponent() <= 0 {
		b.stats.splits[1]++
		return b.countSplit(task.start, task.end, centroidBounds), true
	}

	splitRange := SplitRange{
		Primitives:     b.prims,
		Indices:        b.indices[task.start:task.end],
		Bounds:         bounds,
		CentroidBounds: centroidBounds,
		Options:        b.opts,
	}
	axis, position, found := b.opts.Strategy.Split(&splitRange)
	if !found {
		// A leaf is cheaper than any split; honor that unless the leaf
		// would be too large
		if count <= b.opts.MaxLeafSize {
			return 0, false
		}
		b.stats.splits[1]++
		return b.countSplit(task.start, task.end, centroidBounds), true
	}

	mid = b.partitionByPlane(task.start, task.end, axis, position)
	if mid == task.start || mid == task.end {
		b.stats.splits[1]++
		return b.countSplit(task.start, task.end, centroidBounds), true
	}

	b.stats.splits[0]++
	return mid, true
}

// Stable in-place partition of the index range: primitives with a centroid
// below position go left. Returns the start of the right range.
func (b *builder) partitionByPlane(start, end int, axis Axis, position float32) int {
	left := start
	right := 0
	for _, index := range b.indices[start:end] {
		if b.prims[index].Centroid[axis] < position {
			b.indices[left] = index
			left++
		} else {
			b.scratch[right] = index
			right++
		}
	}
	copy(b.indices[left:end], b.scratch[:right])
	return left
}

// Split the index range in half by count after ordering it by centroid
// along the longest centroid axis. Ties keep their current order.
func (b *builder) countSplit(start, end int, centroidBounds AABB) int {
	axis := centroidBounds.LongestAxis()
	members := b.indices[start:end]
	if centroidBounds.Extent()[axis] > 0 {
		sort.SliceStable(members, func(i, j int) bool {
			return b.prims[members[i]].Centroid[axis] < b.prims[members[j]].Centroid[axis]
		})
	}
	return start + (end-start)/2
}

// Setup the task node as a leaf that references all items in its range.
func (b *builder) createLeaf(task buildTask) {
	b.nodes[task.node].SetPrimitives(uint32(task.start), uint32(task.end-task.start))
	b.stats.leafs++
}

// Calculate the union of the member bounds and the bounds of the member
// centroids for an index range.
func (b *builder) rangeBounds(start, end int) (bounds, centroidBounds AABB) {
	bounds = EmptyAABB()
	centroidBounds = EmptyAABB()
	for _, index := range b.indices[start:end] {
		prim := &b.prims[index]
		bounds = bounds.Union(prim.Bounds)
		centroidBounds = centroidBounds.Grow(prim.Centroid)
	}
	return bounds, centroidBounds
}
