package main

import (
	"fmt"
	"os"

	"github.com/swr06/Lensing/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "lensing"
	app.Usage = "build bounding volume hierarchies and trace rays against triangle scenes"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load settings from a TOML file",
		},
		cli.StringSliceFlag{
			Name:  "log-module",
			Usage: "override the verbosity of a single logger (e.g. --log-module \"wavefront scene reader=debug\")",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "compile",
			Usage: "compile text scene representation into a binary compressed format",
			Description: `
Parse a scene definition from a wavefront obj file and build a BVH tree to
optimize ray intersection tests.

The compiled scene data is then written to a zip archive which can be supplied
as an argument to the other commands.`,
			ArgsUsage: "scene_file1.obj scene_file2.obj ...",
			Flags: append([]cli.Flag{
				cli.BoolFlag{
					Name:  "verify",
					Usage: "check the structural invariants of each built tree",
				},
			}, buildFlags()...),
			Action: cmd.CompileScene,
		},
		{
			Name:      "info",
			Usage:     "display scene and BVH statistics",
			ArgsUsage: "scene_file",
			Flags:     buildFlags(),
			Action:    cmd.ShowSceneInfo,
		},
		{
			Name:  "trace",
			Usage: "render a single frame",
			Description: `
Trace primary and shadow rays through the scene BVH and write the resulting
frame as a PNG image.`,
			ArgsUsage: "scene_file",
			Flags:     append(buildFlags(), cmd.RenderFlags...),
			Action:    cmd.TraceFrame,
		},
		{
			Name:  "bench",
			Usage: "measure BVH build time and ray query throughput",
			Description: `
Rebuild the scene BVH with the selected options and trace a batch of random
rays through it.`,
			ArgsUsage: "scene_file",
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "rays",
					Value: 1000000,
					Usage: "number of random rays",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random seed",
				},
				cli.BoolFlag{
					Name:  "any",
					Usage: "benchmark any-hit instead of nearest-hit queries",
				},
				cli.BoolFlag{
					Name:  "verify",
					Usage: "compare query results with brute force intersection",
				},
			}, buildFlags()...),
			Action: cmd.BenchScene,
		},
		{
			Name:  "watch",
			Usage: "render continuously and rebuild the scene when it changes",
			Description: `
Render frames in the background while watching the scene directory. Modified
wavefront files trigger a rebuild; the new scene replaces the old one without
interrupting rendering and the next frame is written to disk.`,
			ArgsUsage: "scene_file.obj",
			Flags: append(append([]cli.Flag{
				cli.Float64Flag{
					Name:  "fps",
					Value: 2,
					Usage: "frames rendered per second",
				},
			}, buildFlags()...), cmd.RenderFlags...),
			Action: cmd.WatchScene,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func buildFlags() []cli.Flag {
	return append([]cli.Flag(nil), cmd.BuildFlags...)
}
