package renderer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/tracer"
	"github.com/swr06/Lensing/types"
)

// A grid of quads at z = 0 viewed from above.
func gridScene(t *testing.T, size int) *scene.Scene {
	tris := make([]bvh.Triangle, 0, 2*size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			x0, y0 := float32(x), float32(y)
			tris = append(tris,
				bvh.Triangle{types.XYZ(x0, y0, 0), types.XYZ(x0+1, y0, 0), types.XYZ(x0+1, y0+1, 0)},
				bvh.Triangle{types.XYZ(x0, y0, 0), types.XYZ(x0+1, y0+1, 0), types.XYZ(x0, y0+1, 0)},
			)
		}
	}

	tree, err := bvh.Build(bvh.Primitives(tris), bvh.DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}

	half := float32(size) / 2
	cam := scene.NewCamera(60)
	cam.Position = types.XYZ(half, half, 2*float32(size))
	cam.LookAt = types.XYZ(half, half, 0)
	cam.Update()

	return &scene.Scene{Triangles: tris, Bvh: tree, Camera: cam}
}

func testOptions() Options {
	return Options{FrameW: 32, FrameH: 24}
}

func TestNewDefaultErrors(t *testing.T) {
	handle := scene.NewHandle(nil)

	_, err := NewDefault(handle, tracer.NaiveScheduler(), testOptions())
	if err != ErrNoTracers {
		t.Fatalf("expected error %v; got %v", ErrNoTracers, err)
	}

	_, err = NewDefault(handle, tracer.NaiveScheduler(), Options{FrameW: 10}, tracer.NewCPU("cpu", 1))
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected error %v; got %v", ErrInvalidFrame, err)
	}

	_, err = NewDefault(handle, tracer.NaiveScheduler(), Options{FrameW: 10, FrameH: 1}, tracer.NewCPU("cpu-0", 1), tracer.NewCPU("cpu-1", 1))
	if !errors.Is(err, ErrInvalidFrame) {
		t.Fatalf("expected error %v; got %v", ErrInvalidFrame, err)
	}
}

func TestRenderMissingScene(t *testing.T) {
	handle := scene.NewHandle(nil)
	r, err := NewDefault(handle, tracer.NaiveScheduler(), testOptions(), tracer.NewCPU("cpu", 1))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err = r.Render(context.Background()); err != ErrSceneNotDefined {
		t.Fatalf("expected error %v; got %v", ErrSceneNotDefined, err)
	}

	sc := gridScene(t, 2)
	sc.Camera = nil
	handle.Store(sc)
	if _, err = r.Render(context.Background()); err != ErrCameraNotDefined {
		t.Fatalf("expected error %v; got %v", ErrCameraNotDefined, err)
	}
}

func TestRenderMultipleTracers(t *testing.T) {
	handle := scene.NewHandle(gridScene(t, 8))
	opts := testOptions()

	single, err := NewDefault(handle, tracer.NaiveScheduler(), opts, tracer.NewCPU("cpu", 1))
	if err != nil {
		t.Fatal(err)
	}
	defer single.Close()

	multi, err := NewDefault(handle, tracer.PerfectScheduler(), opts,
		tracer.NewCPU("cpu-0", 1), tracer.NewCPU("cpu-1", 2), tracer.NewCPU("cpu-2", 3),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer multi.Close()

	expFrame, err := single.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Render a few frames so the perfect scheduler adapts the block sizes
	for frameIndex := 0; frameIndex < 3; frameIndex++ {
		frame, err := multi.Render(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(frame.Pix, expFrame.Pix) {
			t.Fatalf("[frame %d] expected multi-tracer frame to match single tracer frame", frameIndex)
		}

		stats := multi.Stats()
		var rows uint32
		var percent float32
		for _, stat := range stats.Tracers {
			rows += stat.BlockH
			percent += stat.FramePercent
			if stat.PrimaryRays != uint64(stat.BlockH*opts.FrameW) {
				t.Fatalf("[frame %d] expected tracer %s to trace %d primary rays; got %d", frameIndex, stat.Id, stat.BlockH*opts.FrameW, stat.PrimaryRays)
			}
		}
		if rows != opts.FrameH {
			t.Fatalf("[frame %d] expected blocks to cover %d rows; got %d", frameIndex, opts.FrameH, rows)
		}
		if math32.Abs(percent-100) > 1e-3 {
			t.Fatalf("[frame %d] expected blocks to cover 100%% of the frame; got %f", frameIndex, percent)
		}
	}

	table := multi.Stats().String()
	for _, id := range []string{"cpu-0", "cpu-1", "cpu-2", "MRays/s"} {
		if !strings.Contains(table, id) {
			t.Fatalf("expected stats table to contain %q; got\n%s", id, table)
		}
	}
}

func TestRenderSceneSwap(t *testing.T) {
	handle := scene.NewHandle(gridScene(t, 4))
	r, err := NewDefault(handle, tracer.NaiveScheduler(), testOptions(), tracer.NewCPU("cpu-0", 2), tracer.NewCPU("cpu-1", 2))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	before, err := r.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// Replace the grid with an empty scene; every pixel becomes background
	empty, err := bvh.Build(nil, bvh.DefaultBuildOptions())
	if err != nil {
		t.Fatal(err)
	}
	prev := handle.Swap(&scene.Scene{Bvh: empty, Camera: handle.Load().Camera})
	if prev == nil {
		t.Fatal("expected Swap to return the previous scene")
	}

	after, err := r.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(before.Pix, after.Pix) {
		t.Fatal("expected frame to change after swapping the scene")
	}
	if stats := r.Stats(); stats.Tracers[0].Hits+stats.Tracers[1].Hits != 0 {
		t.Fatalf("expected no hits for the empty scene; got %+v", stats.Tracers)
	}
}

func TestRenderInterrupted(t *testing.T) {
	handle := scene.NewHandle(gridScene(t, 4))
	r, err := NewDefault(handle, tracer.NaiveScheduler(), testOptions(), tracer.NewCPU("cpu", 2))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err = r.Render(ctx); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected error %v; got %v", ErrInterrupted, err)
	}
}
