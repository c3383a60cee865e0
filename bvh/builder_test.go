package bvh

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/swr06/Lensing/types"
)

func boxPrimitives(boxes []AABB) []Primitive {
	prims := make([]Primitive, len(boxes))
	for index, box := range boxes {
		prims[index] = Primitive{
			Bounds:   box,
			Centroid: box.Centroid(),
			Index:    uint32(index),
		}
	}
	return prims
}

func TestBuildLeafSize(t *testing.T) {
	prims := boxPrimitives([]AABB{
		{types.XYZ(-2, 0, -2), types.XYZ(-1, 1, -1)},
		{types.XYZ(1, 0, -2), types.XYZ(2, 1, -1)},
		{types.XYZ(-2, 0, 1), types.XYZ(-1, 1, 2)},
		{types.XYZ(1, 0, 1), types.XYZ(2, 1, 2)},
	})

	specs := []struct {
		leafSize  int
		expNodes  int
		expLeafs  int
		expMaxLen int
	}{
		// Partition each item in a single leaf
		{1, 7, 4, 1},
		// Partition two items in a single leaf
		{2, 3, 2, 2},
		// Everything fits in the root
		{4, 1, 1, 4},
	}

	for index, s := range specs {
		opts := DefaultBuildOptions()
		opts.LeafSize = s.leafSize
		tree, err := Build(prims, opts)
		if err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}

		if err = tree.Validate(prims); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}

		stats := tree.Stats()
		if stats.Nodes != s.expNodes {
			t.Fatalf("[spec %d] expected bvh tree to have %d nodes; got %d", index, s.expNodes, stats.Nodes)
		}
		if stats.Leafs != s.expLeafs {
			t.Fatalf("[spec %d] expected bvh tree to have %d leafs; got %d", index, s.expLeafs, stats.Leafs)
		}
		if stats.MaxLeafSize != s.expMaxLen {
			t.Fatalf("[spec %d] expected max leaf size to be %d; got %d", index, s.expMaxLen, stats.MaxLeafSize)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(nil, DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !tree.Empty() || tree.Len() != 0 {
		t.Fatalf("expected an empty tree; got %d nodes", len(tree.Nodes))
	}
	if err = tree.Validate(nil); err != nil {
		t.Fatal(err)
	}

	ray := NewRay(types.XYZ(0, 0, -5), types.XYZ(0, 0, 1))
	if hit := tree.Intersect(nil, ray); hit.Ok() {
		t.Fatalf("expected no hit for an empty tree; got %+v", hit)
	}
	if tree.IntersectAny(nil, ray) {
		t.Fatal("expected IntersectAny to report no hit for an empty tree")
	}
}

func TestBuildSinglePrimitive(t *testing.T) {
	tris := []Triangle{{types.XYZ(-1, -1, 0), types.XYZ(1, -1, 0), types.XYZ(0, 1, 0)}}
	prims := Primitives(tris)
	tree, err := Build(prims, DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}

	if len(tree.Nodes) != 1 || !tree.Nodes[0].IsLeaf() {
		t.Fatalf("expected tree to consist of a single leaf; got %d nodes", len(tree.Nodes))
	}
	if first, count := tree.Nodes[0].Primitives(); first != 0 || count != 1 {
		t.Fatalf("expected root leaf to reference [0, 1); got first %d, count %d", first, count)
	}
	if got, exp := tree.Bounds(), tris[0].Bounds(); got != exp {
		t.Fatalf("expected tree bounds to be %v; got %v", exp, got)
	}

	hit := tree.Intersect(tris, NewRay(types.XYZ(0, 0, -5), types.XYZ(0, 0, 1)))
	if !hit.Ok() || hit.Primitive != 0 {
		t.Fatalf("expected ray to hit primitive 0; got %+v", hit)
	}
	if hit.T != 5 {
		t.Fatalf("expected hit distance to be 5; got %f", hit.T)
	}
}

func TestBuildIdenticalCentroids(t *testing.T) {
	box := AABB{types.XYZ(0, 0, 0), types.XYZ(1, 1, 1)}
	boxes := make([]AABB, 100)
	for index := range boxes {
		boxes[index] = box
	}
	prims := boxPrimitives(boxes)

	for _, strategy := range []SplitStrategy{SurfaceAreaHeuristic, ObjectMedian} {
		opts := DefaultBuildOptions()
		opts.Strategy = strategy
		tree, err := Build(prims, opts)
		if err != nil {
			t.Fatalf("[%s] %v", strategy, err)
		}
		if err = tree.Validate(prims); err != nil {
			t.Fatalf("[%s] %v", strategy, err)
		}

		stats := tree.Stats()
		if stats.MaxLeafSize > opts.LeafSize {
			t.Fatalf("[%s] expected count splits to produce leafs with at most %d items; got %d", strategy, opts.LeafSize, stats.MaxLeafSize)
		}
		if stats.MaxDepth > 8 {
			t.Fatalf("[%s] expected count splits to produce a balanced tree; got depth %d", strategy, stats.MaxDepth)
		}
	}
}

func TestBuildInvalidInput(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	valid := AABB{types.XYZ(0, 0, 0), types.XYZ(1, 1, 1)}

	specs := []AABB{
		{types.XYZ(nan, 0, 0), types.XYZ(1, 1, 1)},
		{types.XYZ(0, 0, 0), types.XYZ(1, inf, 1)},
		{types.XYZ(0, 0, 2), types.XYZ(1, 1, 1)},
	}

	for index, box := range specs {
		prims := boxPrimitives([]AABB{valid, box, valid})
		_, err := Build(prims, DefaultBuildOptions())
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("[spec %d] expected error to wrap ErrInvalidInput; got %v", index, err)
		}
	}

	prims := boxPrimitives([]AABB{valid})
	prims[0].Centroid = types.XYZ(0, nan, 0)
	if _, err := Build(prims, DefaultBuildOptions()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected non-finite centroid to be rejected; got %v", err)
	}
}

func TestBuildInvalidOptions(t *testing.T) {
	opts := DefaultBuildOptions()
	opts.Bins = maxBins + 1
	prims := boxPrimitives([]AABB{{types.XYZ(0, 0, 0), types.XYZ(1, 1, 1)}})
	if _, err := Build(prims, opts); err == nil {
		t.Fatal("expected an error for an out of range bin count")
	}
}

func TestBuildRandomScenes(t *testing.T) {
	for _, count := range []int{2, 3, 17, 100, 1000, 5000} {
		tris := randomTriangles(int64(count), count)
		prims := Primitives(tris)

		for _, strategy := range []SplitStrategy{SurfaceAreaHeuristic, ObjectMedian} {
			opts := DefaultBuildOptions()
			opts.Strategy = strategy
			tree, err := Build(prims, opts)
			if err != nil {
				t.Fatalf("[%d/%s] %v", count, strategy, err)
			}
			if err = tree.Validate(prims); err != nil {
				t.Fatalf("[%d/%s] %v", count, strategy, err)
			}

			stats := tree.Stats()
			if stats.Nodes != 2*stats.Leafs-1 {
				t.Fatalf("[%d/%s] expected %d nodes for %d leafs; got %d", count, strategy, 2*stats.Leafs-1, stats.Leafs, stats.Nodes)
			}
			if stats.MaxLeafSize > opts.MaxLeafSize {
				t.Fatalf("[%d/%s] expected leafs to hold at most %d items; got %d", count, strategy, opts.MaxLeafSize, stats.MaxLeafSize)
			}
			if stats.MaxDepth > opts.MaxDepth+32 {
				t.Fatalf("[%d/%s] unexpected tree depth %d", count, strategy, stats.MaxDepth)
			}
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	prims := Primitives(randomTriangles(7, 3000))

	for _, opts := range []BuildOptions{DefaultBuildOptions(), parallelTestOptions()} {
		tree1, err := Build(prims, opts)
		if err != nil {
			t.Fatal(err)
		}
		tree2, err := Build(prims, opts)
		if err != nil {
			t.Fatal(err)
		}

		if !reflect.DeepEqual(tree1, tree2) {
			t.Fatalf("expected repeated builds with %d workers to produce identical trees", opts.Workers)
		}
	}
}

func TestParallelBuild(t *testing.T) {
	tris := randomTriangles(42, 5000)
	prims := Primitives(tris)

	serial, err := Build(prims, DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := Build(prims, parallelTestOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err = parallel.Validate(prims); err != nil {
		t.Fatal(err)
	}

	// The serial and parallel builders make the same split decisions; only
	// the node order differs
	serialStats, parallelStats := serial.Stats(), parallel.Stats()
	if serialStats.Nodes != parallelStats.Nodes || serialStats.Leafs != parallelStats.Leafs {
		t.Fatalf("expected parallel build stats %+v to match serial build stats %+v", parallelStats, serialStats)
	}
	if serial.MaxDepth != parallel.MaxDepth {
		t.Fatalf("expected parallel build depth %d to match serial build depth %d", parallel.MaxDepth, serial.MaxDepth)
	}

	for index, ray := range randomRays(43, tris, 500) {
		exp := serial.Intersect(tris, ray)
		got := parallel.Intersect(tris, ray)
		assertHit(t, index, exp, got)
	}
}

func TestRemappedPrimitiveIndices(t *testing.T) {
	tris := randomTriangles(3, 50)
	prims := Primitives(tris)

	// Callers may supply their own indices; leafs must report them back
	for index := range prims {
		prims[index].Index = uint32(1000 + index)
	}
	tree, err := Build(prims, DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err = tree.Validate(prims); err != nil {
		t.Fatal(err)
	}
	for _, index := range tree.Indices {
		if index < 1000 || index >= 1050 {
			t.Fatalf("expected leaf entries to be caller indices; got %d", index)
		}
	}
}

func TestValidateDetectsCorruption(t *testing.T) {
	prims := Primitives(randomTriangles(11, 200))

	specs := []struct {
		corrupt func(tree *BVH)
		expMsg  string
	}{
		// Loose bounds
		{func(tree *BVH) { tree.Nodes[len(tree.Nodes)-1].Min[0] -= 1 }, "do not match"},
		// Root box that cuts through its children
		{func(tree *BVH) { tree.Nodes[0].Max[0] = (tree.Nodes[0].Min[0] + tree.Nodes[0].Max[0]) / 2 }, "do not enclose"},
		// Child pointing back to the root
		{func(tree *BVH) { tree.Nodes[0].SetChildNodes(0, 2) }, "invalid child index"},
		// Duplicate primitive reference
		{func(tree *BVH) { tree.Indices[1] = tree.Indices[0] }, "more than once"},
		// Out of range leaf
		{func(tree *BVH) {
			for index := range tree.Nodes {
				if tree.Nodes[index].IsLeaf() {
					tree.Nodes[index].SetPrimitives(uint32(len(tree.Indices)), 1)
					return
				}
			}
		}, "out of range"},
	}

	for index, spec := range specs {
		tree, err := Build(prims, DefaultBuildOptions())
		if err != nil {
			t.Fatal(err)
		}
		spec.corrupt(tree)

		err = tree.Validate(prims)
		if !errors.Is(err, ErrCorruptTree) {
			t.Fatalf("[spec %d] expected error to wrap ErrCorruptTree; got %v", index, err)
		}
		if !strings.Contains(err.Error(), spec.expMsg) {
			t.Fatalf("[spec %d] expected error to contain %q; got %v", index, spec.expMsg, err)
		}
	}
}

func parallelTestOptions() BuildOptions {
	opts := DefaultBuildOptions()
	opts.Workers = 4
	opts.ParallelThreshold = 64
	return opts
}
