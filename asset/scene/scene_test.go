package scene

import (
	"strings"
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/types"
)

func quadScene(t *testing.T, z float32) *Scene {
	tris := []bvh.Triangle{
		{types.XYZ(-1, -1, z), types.XYZ(1, -1, z), types.XYZ(1, 1, z)},
		{types.XYZ(-1, -1, z), types.XYZ(1, 1, z), types.XYZ(-1, 1, z)},
	}
	tree, err := bvh.Build(bvh.Primitives(tris), bvh.DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}

	normals := []types.Vec3{
		{0, 0, 1}, {0, 0, 1}, {1, 0, 0},
		{0, 0, 1}, {0, 0, 1}, {0, 0, 1},
	}
	uvs := []types.Vec2{
		{0, 0}, {1, 0}, {1, 1},
		{0, 0}, {1, 1}, {0, 1},
	}
	return &Scene{
		Triangles:  tris,
		NormalList: normals,
		UvList:     uvs,
		Bvh:        tree,
		Camera:     NewCamera(45),
	}
}

func TestSceneIntersect(t *testing.T) {
	sc := quadScene(t, -5)

	ray := bvh.NewRay(types.XYZ(0.5, -0.5, 0), types.XYZ(0, 0, -1))
	hit := sc.Intersect(ray)
	if !hit.Ok() || hit.Primitive != 0 {
		t.Fatalf("expected ray to hit primitive 0; got %+v", hit)
	}
	if math32.Abs(hit.T-5) > 1e-5 {
		t.Fatalf("expected hit distance to be 5; got %f", hit.T)
	}
	if !sc.IntersectAny(ray) {
		t.Fatal("expected IntersectAny to report a hit")
	}

	// Looking away from the quad
	away := bvh.NewRay(types.XYZ(0, 0, 0), types.XYZ(0, 0, 1))
	if sc.Intersect(away).Ok() || sc.IntersectAny(away) {
		t.Fatal("expected ray pointing away from the quad to miss")
	}
}

func TestSceneNormal(t *testing.T) {
	sc := quadScene(t, 0)

	// Hitting vertex 2 of the first triangle returns its normal
	hit := bvh.Hit{T: 1, U: 0, V: 1, Primitive: 0}
	if got, exp := sc.Normal(hit), types.XYZ(1, 0, 0); got.Sub(exp).Len() > 1e-6 {
		t.Fatalf("expected normal %v; got %v", exp, got)
	}
	if got, exp := sc.UV(hit), types.XY(1, 1); got != exp {
		t.Fatalf("expected uv %v; got %v", exp, got)
	}

	// Without vertex normals the geometric normal is used
	sc.NormalList = nil
	if got, exp := sc.Normal(hit), types.XYZ(0, 0, 1); got.Sub(exp).Len() > 1e-6 {
		t.Fatalf("expected geometric normal %v; got %v", exp, got)
	}

	if got := sc.Normal(bvh.NoHit); got != (types.Vec3{}) {
		t.Fatalf("expected zero normal for a miss; got %v", got)
	}
}

func TestSceneStats(t *testing.T) {
	sc := quadScene(t, 0)
	stats := sc.Stats()
	for _, exp := range []string{"Triangles (2)", "Nodes", "SAH cost", "Total"} {
		if !strings.Contains(stats, exp) {
			t.Fatalf("expected stats to contain %q; got:\n%s", exp, stats)
		}
	}

	// Empty scenes render without a BVH
	empty := &Scene{}
	if stats = empty.Stats(); !strings.Contains(stats, "Triangles (0)") {
		t.Fatalf("expected empty scene stats; got:\n%s", stats)
	}
}

func TestCameraFrustrum(t *testing.T) {
	cam := NewCamera(90)
	cam.SetupProjection(2)

	// With a 90 degree vertical FOV the corner rays span [-1, 1] vertically
	// and [-2, 2] horizontally at unit distance
	exp := Frustrum{
		{-2, 1, -1},
		{2, 1, -1},
		{-2, -1, -1},
		{2, -1, -1},
	}
	for index := range exp {
		if cam.Frustrum[index].Sub(exp[index]).Len() > 1e-5 {
			t.Fatalf("expected frustrum corner %d to be %v; got %v", index, exp[index], cam.Frustrum[index])
		}
	}

	// The center pixel of an odd-sized frame looks straight ahead
	ray := cam.Ray(1, 1, 3, 3)
	if ray.Dir.Sub(types.XYZ(0, 0, -1)).Len() > 1e-5 {
		t.Fatalf("expected center ray to point down -Z; got %v", ray.Dir)
	}
	if ray.Origin != cam.Position {
		t.Fatalf("expected ray origin to be the camera position; got %v", ray.Origin)
	}
}

func TestCameraOrbit(t *testing.T) {
	cam := NewCamera(45)
	cam.Position = types.XYZ(0, 0, 5)
	cam.LookAt = types.XYZ(0, 0, 0)
	cam.Update()

	cam.Orbit(math32.Pi/2, 0)
	if exp := types.XYZ(5, 0, 0); cam.Position.Sub(exp).Len() > 1e-4 {
		t.Fatalf("expected camera to orbit to %v; got %v", exp, cam.Position)
	}

	// The camera still looks at the target
	ray := cam.Ray(0, 0, 1, 1)
	if ray.Dir.Sub(types.XYZ(-1, 0, 0)).Len() > 1e-4 {
		t.Fatalf("expected camera to look down -X; got %v", ray.Dir)
	}
}

func TestHandleSwap(t *testing.T) {
	sc1 := quadScene(t, -5)
	sc2 := quadScene(t, -10)
	handle := NewHandle(sc1)

	if handle.Load() != sc1 {
		t.Fatal("expected handle to publish the initial scene")
	}

	var wg sync.WaitGroup
	errCh := make(chan string, 8)
	ray := bvh.NewRay(types.XYZ(0.5, -0.5, 0), types.XYZ(0, 0, -1))
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				// Each query sees a consistent snapshot
				sc := handle.Load()
				hit := sc.Intersect(ray)
				exp := float32(5)
				if sc == sc2 {
					exp = 10
				}
				if !hit.Ok() || math32.Abs(hit.T-exp) > 1e-5 {
					errCh <- "query observed an inconsistent scene"
					return
				}
			}
		}()
	}

	if prev := handle.Swap(sc2); prev != sc1 {
		t.Fatal("expected Swap to return the previous scene")
	}
	wg.Wait()
	close(errCh)
	for msg := range errCh {
		t.Fatal(msg)
	}

	if handle.Load() != sc2 {
		t.Fatal("expected handle to publish the new scene")
	}
}
