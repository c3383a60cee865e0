package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/log"
	"github.com/swr06/Lensing/types"
	"github.com/urfave/cli"
)

// Tool configuration. Values are loaded from an optional TOML file and can
// be overridden by command line flags.
//
//	log_level = "info"
//
//	[bvh]
//	strategy = "sah"
//	leaf_size = 4
//
//	[render]
//	width = 512
//	light = [0.4, 1.0, 0.6]
type Config struct {
	LogLevel string `toml:"log_level"`

	BVH    BuildConfig  `toml:"bvh"`
	Render RenderConfig `toml:"render"`
}

// BVH builder settings.
type BuildConfig struct {
	Strategy          string  `toml:"strategy"`
	LeafSize          int     `toml:"leaf_size"`
	MaxLeafSize       int     `toml:"max_leaf_size"`
	Bins              int     `toml:"bins"`
	TraversalCost     float32 `toml:"traversal_cost"`
	IntersectCost     float32 `toml:"intersect_cost"`
	MaxDepth          int     `toml:"max_depth"`
	Workers           int     `toml:"workers"`
	ParallelThreshold int     `toml:"parallel_threshold"`
}

// Frame rendering settings.
type RenderConfig struct {
	Width     uint32     `toml:"width"`
	Height    uint32     `toml:"height"`
	Tracers   int        `toml:"tracers"`
	Workers   int        `toml:"workers"`
	Scheduler string     `toml:"scheduler"`
	Light     [3]float32 `toml:"light"`
}

// Get the default configuration.
func DefaultConfig() Config {
	def := bvh.DefaultBuildOptions()
	return Config{
		LogLevel: "notice",
		BVH: BuildConfig{
			Strategy:          def.Strategy.String(),
			LeafSize:          def.LeafSize,
			MaxLeafSize:       def.MaxLeafSize,
			Bins:              def.Bins,
			TraversalCost:     def.TraversalCost,
			IntersectCost:     def.IntersectCost,
			MaxDepth:          def.MaxDepth,
			Workers:           def.Workers,
			ParallelThreshold: def.ParallelThreshold,
		},
		Render: RenderConfig{
			Width:     512,
			Height:    512,
			Tracers:   1,
			Scheduler: "perfect",
		},
	}
}

// Parse a TOML configuration on top of the default values. Unknown keys
// are rejected.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Load the configuration file referenced by the global --config flag and
// apply any command flag overrides.
func loadConfig(ctx *cli.Context) (Config, error) {
	cfg := DefaultConfig()

	if cfgFile := ctx.GlobalString("config"); cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		defer f.Close()

		if cfg, err = ParseConfig(f); err != nil {
			return cfg, err
		}
		logger.Infof(`loaded configuration from "%s"`, path)
	}

	if err := cfg.applyFlags(ctx); err != nil {
		return cfg, err
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if !ctx.GlobalBool("v") && !ctx.GlobalBool("vv") {
		log.SetLevel(level)
	}
	if err = setModuleLevels(ctx.GlobalStringSlice("log-module")); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Override configuration values with the flags that were explicitly set.
func (cfg *Config) applyFlags(ctx *cli.Context) error {
	if ctx.IsSet("strategy") {
		cfg.BVH.Strategy = ctx.String("strategy")
	}
	if ctx.IsSet("leaf-size") {
		cfg.BVH.LeafSize = ctx.Int("leaf-size")
	}
	if ctx.IsSet("max-leaf-size") {
		cfg.BVH.MaxLeafSize = ctx.Int("max-leaf-size")
	}
	if ctx.IsSet("bins") {
		cfg.BVH.Bins = ctx.Int("bins")
	}
	if ctx.IsSet("build-workers") {
		cfg.BVH.Workers = ctx.Int("build-workers")
	}

	if ctx.IsSet("width") {
		cfg.Render.Width = uint32(ctx.Int("width"))
	}
	if ctx.IsSet("height") {
		cfg.Render.Height = uint32(ctx.Int("height"))
	}
	if ctx.IsSet("tracers") {
		cfg.Render.Tracers = ctx.Int("tracers")
	}
	if ctx.IsSet("workers") {
		cfg.Render.Workers = ctx.Int("workers")
	}
	if ctx.IsSet("scheduler") {
		cfg.Render.Scheduler = ctx.String("scheduler")
	}
	if ctx.IsSet("light") {
		light, err := parseVec3Flag(ctx.String("light"))
		if err != nil {
			return fmt.Errorf("config: invalid light direction: %w", err)
		}
		cfg.Render.Light = light
	}

	return nil
}

// Convert the builder settings to BVH build options.
func (c BuildConfig) Options() (bvh.BuildOptions, error) {
	strategy, err := bvh.StrategyByName(c.Strategy)
	if err != nil {
		return bvh.BuildOptions{}, err
	}

	return bvh.BuildOptions{
		LeafSize:          c.LeafSize,
		MaxLeafSize:       c.MaxLeafSize,
		Bins:              c.Bins,
		TraversalCost:     c.TraversalCost,
		IntersectCost:     c.IntersectCost,
		MaxDepth:          c.MaxDepth,
		Workers:           c.Workers,
		ParallelThreshold: c.ParallelThreshold,
		Strategy:          strategy,
	}, nil
}

// Get the light direction as a vector.
func (c RenderConfig) LightDir() types.Vec3 {
	return types.XYZ(c.Light[0], c.Light[1], c.Light[2])
}

// Parse a comma separated "x,y,z" triplet.
func parseVec3Flag(value string) ([3]float32, error) {
	var out [3]float32
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected x,y,z; got %q", value)
	}
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// Flags for tuning the BVH builder.
var BuildFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "strategy",
		Usage: "split strategy (sah, median)",
	},
	cli.IntFlag{
		Name:  "leaf-size",
		Usage: "maximum number of primitives in a leaf that is not split",
	},
	cli.IntFlag{
		Name:  "max-leaf-size",
		Usage: "hard limit for the number of primitives in a leaf",
	},
	cli.IntFlag{
		Name:  "bins",
		Usage: "number of SAH bins per axis",
	},
	cli.IntFlag{
		Name:  "build-workers",
		Usage: "number of goroutines used for building the BVH",
	},
}

// Flags for rendering frames.
var RenderFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "width",
		Value: 512,
		Usage: "frame width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 512,
		Usage: "frame height",
	},
	cli.IntFlag{
		Name:  "tracers",
		Value: 1,
		Usage: "number of cpu tracers",
	},
	cli.IntFlag{
		Name:  "workers",
		Usage: "goroutines per tracer (0 = one per cpu)",
	},
	cli.StringFlag{
		Name:  "scheduler",
		Value: "perfect",
		Usage: "block scheduler (naive, perfect)",
	},
	cli.StringFlag{
		Name:  "light",
		Usage: "direction towards the light as x,y,z",
	},
	cli.StringFlag{
		Name:  "out, o",
		Value: "frame.png",
		Usage: "image filename for the rendered frame",
	},
}
