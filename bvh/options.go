package bvh

import (
	"fmt"
	"runtime"
)

// Builder tuning parameters. Zero values are replaced by the values
// returned by DefaultBuildOptions.
type BuildOptions struct {
	// Ranges with at most this many primitives always become leafs.
	LeafSize int

	// Leafs never hold more than this many primitives. Ranges that SAH
	// would keep as a larger leaf are count split instead.
	MaxLeafSize int

	// The number of SAH buckets evaluated per axis.
	Bins int

	// SAH cost of traversing an interior node and of testing a primitive.
	TraversalCost float32
	IntersectCost float32

	// Past this depth the builder only performs count splits.
	MaxDepth int

	// The number of goroutines used for building independent subtrees. A
	// value of 1 selects a fully serial build.
	Workers int

	// The minimum range size for handing off a subtree to a worker.
	ParallelThreshold int

	// The split selection strategy.
	Strategy SplitStrategy
}

// Get the default builder options.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		LeafSize:          4,
		MaxLeafSize:       32,
		Bins:              16,
		TraversalCost:     1.0,
		IntersectCost:     1.0,
		MaxDepth:          64,
		Workers:           1,
		ParallelThreshold: 4096,
		Strategy:          SurfaceAreaHeuristic,
	}
}

// Get the default builder options with one worker per available CPU.
func ParallelBuildOptions() BuildOptions {
	opts := DefaultBuildOptions()
	opts.Workers = runtime.GOMAXPROCS(0)
	return opts
}

// Fill in missing values and check that the options are usable.
func (o BuildOptions) normalize() (BuildOptions, error) {
	def := DefaultBuildOptions()
	if o.LeafSize <= 0 {
		o.LeafSize = def.LeafSize
	}
	if o.MaxLeafSize <= 0 {
		o.MaxLeafSize = def.MaxLeafSize
	}
	if o.MaxLeafSize < o.LeafSize {
		o.MaxLeafSize = o.LeafSize
	}
	if o.Bins <= 0 {
		o.Bins = def.Bins
	}
	if o.TraversalCost <= 0 {
		o.TraversalCost = def.TraversalCost
	}
	if o.IntersectCost <= 0 {
		o.IntersectCost = def.IntersectCost
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.ParallelThreshold <= 0 {
		o.ParallelThreshold = def.ParallelThreshold
	}
	if o.Strategy == nil {
		o.Strategy = def.Strategy
	}

	if o.Bins < 2 || o.Bins > maxBins {
		return o, fmt.Errorf("bvh: bin count must be in the [2, %d] range; got %d", maxBins, o.Bins)
	}
	return o, nil
}
