package cmd

import (
	"fmt"
	"strings"

	"github.com/swr06/Lensing/log"
	"github.com/urfave/cli"
)

var logger = log.New("lensing")

func setupLogging(ctx *cli.Context) {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
}

// Apply per-logger verbosity overrides in "module=level" format.
func setModuleLevels(overrides []string) error {
	for _, override := range overrides {
		module, levelName, ok := strings.Cut(override, "=")
		module = strings.TrimSpace(module)
		if !ok || module == "" {
			return fmt.Errorf("log-module: expected module=level; got %q", override)
		}

		level, err := log.ParseLevel(strings.TrimSpace(levelName))
		if err != nil {
			return fmt.Errorf("log-module: %w", err)
		}
		log.SetModuleLevel(module, level)
	}
	return nil
}
