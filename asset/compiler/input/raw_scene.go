package input

import (
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/types"
)

// A triangle primitive
type Primitive struct {
	Vertices [3]types.Vec3
	Normals  [3]types.Vec3
	UVs      [3]types.Vec2

	bbox   bvh.AABB
	center types.Vec3
}

// Create a primitive and calculate its AABB and center.
func NewPrimitive(vertices [3]types.Vec3, normals [3]types.Vec3, uvs [3]types.Vec2) *Primitive {
	prim := &Primitive{
		Vertices: vertices,
		Normals:  normals,
		UVs:      uvs,
	}
	prim.update()
	return prim
}

func (prim *Primitive) update() {
	prim.bbox = bvh.AABBFromPoints(prim.Vertices[:]...)
	prim.center = prim.Vertices[0].Add(prim.Vertices[1]).Add(prim.Vertices[2]).Mul(1.0 / 3.0)
}

// Get the primitive AABB.
func (prim *Primitive) BBox() bvh.AABB {
	return prim.bbox
}

// Get primitive center.
func (prim *Primitive) Center() types.Vec3 {
	return prim.center
}

// A mesh is constructed by a list of primitive.
type Mesh struct {
	Name       string
	Primitives []*Primitive

	bbox            bvh.AABB
	bboxNeedsUpdate bool
}

// Create a new mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:            name,
		Primitives:      make([]*Primitive, 0),
		bboxNeedsUpdate: true,
	}
}

// Mark the bbox of this mesh as dirty.
func (m *Mesh) MarkBBoxDirty() {
	m.bboxNeedsUpdate = true
}

// Get mesh bounding box.
func (m *Mesh) BBox() bvh.AABB {
	if m.bboxNeedsUpdate {
		m.bbox = bvh.EmptyAABB()
		for _, prim := range m.Primitives {
			m.bbox = m.bbox.Union(prim.BBox())
		}
		m.bboxNeedsUpdate = false
	}

	return m.bbox
}

// Create a copy of this mesh with all primitives scaled, rotated and then
// translated. Normals are transformed by the inverse scale so they stay
// perpendicular to the transformed surface. All scale components must be
// non-zero.
func (m *Mesh) Instance(name string, translation types.Vec3, rotation types.Quat, scale types.Vec3) *Mesh {
	invScale := types.XYZ(1/scale[0], 1/scale[1], 1/scale[2])

	inst := NewMesh(name)
	inst.Primitives = make([]*Primitive, len(m.Primitives))
	for primIndex, src := range m.Primitives {
		prim := &Primitive{UVs: src.UVs}
		for index := 0; index < 3; index++ {
			prim.Vertices[index] = rotation.Rotate(src.Vertices[index].MulVec(scale)).Add(translation)
			prim.Normals[index] = rotation.Rotate(src.Normals[index].MulVec(invScale)).Normalize()
		}
		prim.update()
		inst.Primitives[primIndex] = prim
	}
	return inst
}

// Camera settings.
type Camera struct {
	FOV  float32
	Eye  types.Vec3
	Look types.Vec3
	Up   types.Vec3
}

// The scene contains all elements that are processed by the scene compiler.
type Scene struct {
	Meshes []*Mesh
	Camera *Camera
}

// Create a new scene.
func NewScene() *Scene {
	return &Scene{
		Meshes: make([]*Mesh, 0),
		Camera: &Camera{
			FOV:  45.0,
			Eye:  types.Vec3{0, 0, 0},
			Look: types.Vec3{0, 0, -1},
			Up:   types.Vec3{0, 1, 0},
		},
	}
}

// Find a mesh by name. Returns nil if no mesh matches.
func (sc *Scene) Mesh(name string) *Mesh {
	for _, mesh := range sc.Meshes {
		if mesh.Name == name {
			return mesh
		}
	}
	return nil
}

// Get the total number of primitives in all scene meshes.
func (sc *Scene) PrimitiveCount() int {
	count := 0
	for _, mesh := range sc.Meshes {
		count += len(mesh.Primitives)
	}
	return count
}
