package scene

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/types"
)

// A compiled scene. Per-vertex attributes are stored as flat lists where
// the attributes of triangle i are found at indices 3i, 3i+1 and 3i+2.
//
// A compiled scene is never modified; rebuilding geometry produces a new
// Scene that is published through a Handle.
type Scene struct {
	Triangles  []bvh.Triangle
	NormalList []types.Vec3
	UvList     []types.Vec2

	Bvh *bvh.BVH

	// The scene camera.
	Camera *Camera
}

// Find the nearest triangle hit by the ray.
func (sc *Scene) Intersect(ray bvh.Ray) bvh.Hit {
	return sc.Bvh.Intersect(sc.Triangles, ray)
}

// Returns true if the ray hits any triangle.
func (sc *Scene) IntersectAny(ray bvh.Ray) bool {
	return sc.Bvh.IntersectAny(sc.Triangles, ray)
}

// Get the interpolated surface normal at a hit point. If the scene does not
// provide vertex normals the geometric normal is returned instead.
func (sc *Scene) Normal(hit bvh.Hit) types.Vec3 {
	if !hit.Ok() {
		return types.Vec3{}
	}

	tri := &sc.Triangles[hit.Primitive]
	offset := 3 * int(hit.Primitive)
	if offset+2 >= len(sc.NormalList) {
		return tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])).Normalize()
	}

	w := hit.Barycentrics()
	return sc.NormalList[offset].Mul(w[0]).
		Add(sc.NormalList[offset+1].Mul(w[1])).
		Add(sc.NormalList[offset+2].Mul(w[2])).
		Normalize()
}

// Get the interpolated texture coordinates at a hit point.
func (sc *Scene) UV(hit bvh.Hit) types.Vec2 {
	offset := 3 * int(hit.Primitive)
	if !hit.Ok() || offset+2 >= len(sc.UvList) {
		return types.Vec2{}
	}

	w := hit.Barycentrics()
	return sc.UvList[offset].Mul(w[0]).
		Add(sc.UvList[offset+1].Mul(w[1])).
		Add(sc.UvList[offset+2].Mul(w[2]))
}

// Build a tabular representation of scene statistics.
func (sc *Scene) Stats() string {
	var nodes []bvh.Node
	var indices []uint32
	if !sc.Bvh.Empty() {
		nodes, indices = sc.Bvh.Nodes, sc.Bvh.Indices
	}
	bvhStats := sc.Bvh.Stats()

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Asset Type", "Asset", "Size"})
	table.Append([]string{"Geometry", "---", fmtSize(sc.Triangles, sc.NormalList, sc.UvList)})
	table.Append([]string{"", fmt.Sprintf("Triangles (%d)", len(sc.Triangles)), fmtSize(sc.Triangles)})
	table.Append([]string{"", "Normals", fmtSize(sc.NormalList)})
	table.Append([]string{"", "UVs", fmtSize(sc.UvList)})
	table.Append([]string{" ", " ", " "})
	table.Append([]string{"BVH", "---", fmtSize(nodes, indices)})
	table.Append([]string{"", fmt.Sprintf("Nodes (%d, %d leafs)", bvhStats.Nodes, bvhStats.Leafs), fmtSize(nodes)})
	table.Append([]string{"", "Indices", fmtSize(indices)})
	table.Append([]string{"", "Max depth", fmt.Sprintf("%d", bvhStats.MaxDepth)})
	table.Append([]string{"", "Leaf size (min/avg/max)", fmt.Sprintf("%d / %.1f / %d", bvhStats.MinLeafSize, bvhStats.AvgLeafSize, bvhStats.MaxLeafSize)})
	table.Append([]string{"", "SAH cost", fmt.Sprintf("%.2f", bvhStats.SAHCost)})
	table.SetFooter([]string{"Total", " ", strings.TrimLeft(fmtSize(sc.Triangles, sc.NormalList, sc.UvList, nodes, indices), " ")})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
