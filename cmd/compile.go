package cmd

import (
	"fmt"
	"strings"

	"github.com/swr06/Lensing/asset/scene/reader"
	"github.com/swr06/Lensing/asset/scene/writer"
	"github.com/swr06/Lensing/bvh"
	"github.com/urfave/cli"
)

// Compile scene to binary format.
func CompileScene(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	buildOpts, err := cfg.BVH.Options()
	if err != nil {
		return err
	}

	for idx := 0; idx < ctx.NArg(); idx++ {
		sceneFile := ctx.Args().Get(idx)
		if !strings.HasSuffix(sceneFile, ".obj") {
			logger.Warningf("skipping unsupported file %s", sceneFile)
			continue
		}

		logger.Noticef("parsing and compiling scene: %s", sceneFile)
		sc, err := reader.ReadScene(sceneFile, buildOpts)
		if err != nil {
			return err
		}

		if ctx.Bool("verify") {
			if err = sc.Bvh.Validate(bvh.Primitives(sc.Triangles)); err != nil {
				return fmt.Errorf("%s: %w", sceneFile, err)
			}
			logger.Notice("BVH verification passed")
		}

		// Display compiled scene info
		logger.Noticef("scene information:\n%s", sc.Stats())

		zipFile := strings.TrimSuffix(sceneFile, ".obj") + ".zip"
		err = writer.WriteScene(sc, zipFile)
		if err != nil {
			return err
		}
	}

	return nil
}
