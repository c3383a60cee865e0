package compiler

import (
	"fmt"
	"time"

	"github.com/swr06/Lensing/asset/compiler/input"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/types"
)

type sceneCompiler struct {
	parsedScene    *input.Scene
	optimizedScene *scene.Scene
	opts           bvh.BuildOptions
	logger         log.Logger
}

// Compile a scene representation parsed by a scene reader into a flat,
// query-friendly scene whose geometry is indexed by a BVH.
func Compile(parsedScene *input.Scene, opts bvh.BuildOptions) (*scene.Scene, error) {
	compiler := &sceneCompiler{
		parsedScene:    parsedScene,
		optimizedScene: &scene.Scene{},
		opts:           opts,
		logger:         log.New("scene compiler"),
	}

	start := time.Now()
	compiler.logger.Noticef("compiling scene")

	err := compiler.partitionGeometry()
	if err != nil {
		return nil, err
	}

	err = compiler.setupCamera()
	if err != nil {
		return nil, err
	}

	compiler.logger.Noticef("compiled scene in %d ms", time.Since(start).Nanoseconds()/1e6)
	return compiler.optimizedScene, nil
}

// Build a BVH over all scene primitives and copy the primitive data to flat
// arrays in leaf order, so each leaf references a contiguous run of
// triangles.
func (sc *sceneCompiler) partitionGeometry() error {
	start := time.Now()
	sc.logger.Notice("partitioning geometry")

	primList := make([]*input.Primitive, 0, sc.parsedScene.PrimitiveCount())
	for _, pm := range sc.parsedScene.Meshes {
		sc.logger.Infof(`adding mesh "%s" (%d primitives)`, pm.Name, len(pm.Primitives))
		primList = append(primList, pm.Primitives...)
	}

	buildList := make([]bvh.Primitive, len(primList))
	for index, prim := range primList {
		buildList[index] = bvh.Primitive{
			Bounds:   prim.BBox(),
			Centroid: prim.Center(),
			Index:    uint32(index),
		}
	}

	sc.logger.Infof("building scene BVH tree (%d meshes, %d primitives, %s strategy)", len(sc.parsedScene.Meshes), len(primList), sc.strategyName())
	tree, err := bvh.Build(buildList, sc.opts)
	if err != nil {
		return fmt.Errorf("scene compiler: %w", err)
	}

	sc.optimizedScene.Triangles = make([]bvh.Triangle, len(primList))
	sc.optimizedScene.NormalList = make([]types.Vec3, 3*len(primList))
	sc.optimizedScene.UvList = make([]types.Vec2, 3*len(primList))
	for offset, primIndex := range tree.Indices {
		prim := primList[primIndex]
		sc.optimizedScene.Triangles[offset] = bvh.Triangle(prim.Vertices)
		copy(sc.optimizedScene.NormalList[3*offset:3*offset+3], prim.Normals[:])
		copy(sc.optimizedScene.UvList[3*offset:3*offset+3], prim.UVs[:])

		// Triangles are now stored in leaf order
		tree.Indices[offset] = uint32(offset)
	}
	sc.optimizedScene.Bvh = tree

	sc.logger.Noticef("partitioned geometry in %d ms", time.Since(start).Nanoseconds()/1e6)
	return nil
}

func (sc *sceneCompiler) strategyName() string {
	if sc.opts.Strategy == nil {
		return bvh.DefaultBuildOptions().Strategy.String()
	}
	return sc.opts.Strategy.String()
}

// Initialize and position the camera for the scene.
func (sc *sceneCompiler) setupCamera() error {
	cam := sc.parsedScene.Camera
	if cam == nil {
		return fmt.Errorf("scene compiler: no camera defined")
	}
	if cam.FOV <= 0 || cam.FOV >= 180 {
		return fmt.Errorf("scene compiler: camera FOV must be in the (0, 180) range; got %f", cam.FOV)
	}

	sc.optimizedScene.Camera = scene.NewCamera(cam.FOV)
	sc.optimizedScene.Camera.Position = cam.Eye
	sc.optimizedScene.Camera.LookAt = cam.Look
	sc.optimizedScene.Camera.Up = cam.Up
	sc.optimizedScene.Camera.Update()

	return nil
}
