package cmd

import (
	"errors"

	"github.com/swr06/Lensing/asset/scene/reader"
	"github.com/urfave/cli"
)

// Display scene info. Wavefront scenes are compiled before displaying
// their statistics.
func ShowSceneInfo(ctx *cli.Context) error {
	setupLogging(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	buildOpts, err := cfg.BVH.Options()
	if err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	sc, err := reader.ReadScene(ctx.Args().First(), buildOpts)
	if err != nil {
		return err
	}

	// Display compiled scene info
	logger.Noticef("scene information:\n%s", sc.Stats())
	if sc.Camera != nil {
		logger.Infof("camera %v -> %v, fov %.1f\n%s", sc.Camera.Position, sc.Camera.LookAt, sc.Camera.FOV, sc.Camera.Frustrum)
	}

	return nil
}
