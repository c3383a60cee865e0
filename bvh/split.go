package bvh

import (
	"fmt"
	"sort"
	"strings"
)

const maxBins = 256

var (
	// A split strategy that evaluates binned surface area heuristic (SAH)
	// candidates along all three axes.
	SurfaceAreaHeuristic SplitStrategy = surfaceAreaHeuristic{}

	// A split strategy that splits along the longest centroid axis at the
	// median centroid.
	ObjectMedian SplitStrategy = objectMedian{}
)

// The primitive range that is being considered for a split.
type SplitRange struct {
	Primitives []Primitive

	// Positions into Primitives for the members of this range.
	Indices []uint32

	// Union of the member bounds and the bounds of the member centroids.
	Bounds         AABB
	CentroidBounds AABB

	Options *BuildOptions
}

// A split selection strategy.
type SplitStrategy interface {
	// Select a split plane for the range. Primitives whose centroid along
	// axis is less than position go to the left child. Returning false
	// indicates that a leaf is cheaper than any split.
	Split(r *SplitRange) (axis Axis, position float32, ok bool)

	// Strategy name.
	String() string
}

// Lookup a split strategy by its name.
func StrategyByName(name string) (SplitStrategy, error) {
	switch strings.ToLower(name) {
	case "", "sah":
		return SurfaceAreaHeuristic, nil
	case "median":
		return ObjectMedian, nil
	}
	return nil, fmt.Errorf("bvh: unknown split strategy %q", name)
}

type surfaceAreaHeuristic struct{}

func (surfaceAreaHeuristic) String() string { return "sah" }

// Score bucketed split candidates along each axis using the formula (lower
// is better):
//
// traversal cost + intersect cost * (left area * left count + right area * right count) / parent area
//
// and compare the best candidate against the cost of a leaf
// (intersect cost * count). Candidates producing an empty side are skipped.
func (h surfaceAreaHeuristic) Split(r *SplitRange) (Axis, float32, bool) {
	opts := r.Options
	bins := opts.Bins
	count := len(r.Indices)

	// A degenerate parent box has no area; costs then only depend on counts
	parentArea := r.Bounds.SurfaceArea()
	invParentArea := float32(1.0)
	if parentArea > 0 {
		invParentArea = 1.0 / parentArea
	}

	var (
		binBounds  [maxBins]AABB
		binCounts  [maxBins]int
		rightArea  [maxBins]float32
		rightCount [maxBins]int
	)

	bestCost := opts.IntersectCost * float32(count)
	bestAxis := XAxis
	var bestSplit float32
	found := false

	for axis := XAxis; axis <= ZAxis; axis++ {
		lo := r.CentroidBounds.Min[axis]
		extent := r.CentroidBounds.Max[axis] - lo
		if extent <= 0 {
			continue
		}

		for bin := 0; bin < bins; bin++ {
			binBounds[bin] = EmptyAABB()
			binCounts[bin] = 0
		}

		scale := float32(bins) / extent
		for _, index := range r.Indices {
			prim := &r.Primitives[index]
			bin := binIndex(prim.Centroid[axis], lo, scale, bins)
			binCounts[bin]++
			binBounds[bin] = binBounds[bin].Union(prim.Bounds)
		}

		// Sweep from the right to collect the right side of each candidate plane
		acc := EmptyAABB()
		accCount := 0
		for bin := bins - 1; bin > 0; bin-- {
			acc = acc.Union(binBounds[bin])
			accCount += binCounts[bin]
			rightArea[bin-1] = acc.SurfaceArea()
			rightCount[bin-1] = accCount
		}

		// Sweep from the left and score the plane after each bin
		acc = EmptyAABB()
		accCount = 0
		for bin := 0; bin < bins-1; bin++ {
			acc = acc.Union(binBounds[bin])
			accCount += binCounts[bin]
			if accCount == 0 || rightCount[bin] == 0 {
				continue
			}

			cost := opts.TraversalCost + opts.IntersectCost*invParentArea*
				(acc.SurfaceArea()*float32(accCount)+rightArea[bin]*float32(rightCount[bin]))
			if cost < bestCost {
				bestCost = cost
				bestAxis = axis
				bestSplit = lo + float32(bin+1)/scale
				found = true
			}
		}
	}

	return bestAxis, bestSplit, found
}

// Map a centroid coordinate to a bucket index.
func binIndex(c, lo, scale float32, bins int) int {
	bin := int((c - lo) * scale)
	if bin < 0 {
		return 0
	}
	if bin >= bins {
		return bins - 1
	}
	return bin
}

type objectMedian struct{}

func (objectMedian) String() string { return "median" }

// Split at the median centroid along the longest centroid axis.
func (objectMedian) Split(r *SplitRange) (Axis, float32, bool) {
	axis := r.CentroidBounds.LongestAxis()
	if r.CentroidBounds.Extent()[axis] <= 0 {
		return axis, 0, false
	}

	values := make([]float32, len(r.Indices))
	for i, index := range r.Indices {
		values[i] = r.Primitives[index].Centroid[axis]
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	// Ensure the split plane leaves at least one centroid on the left side
	median := values[len(values)/2]
	if median == values[0] {
		for _, v := range values {
			if v > median {
				median = v
				break
			}
		}
	}
	return axis, median, true
}
