package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/swr06/Lensing/asset/scene"
	"github.com/swr06/Lensing/asset/scene/reader"
	"github.com/swr06/Lensing/bvh"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// Editors often emit several events for a single save.
const rebuildDebounce = 250 * time.Millisecond

// Render a scene continuously and rebuild it whenever a scene file in its
// directory changes. Rebuilt scenes are swapped in between frames and the
// first frame rendered from each new scene is written to disk.
func WatchScene(ctx *cli.Context) error {
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
	sceneFile, err := filepath.Abs(ctx.Args().First())
	if err != nil {
		return err
	}

	sc, err := reader.ReadScene(sceneFile, buildOpts)
	if err != nil {
		return err
	}
	handle := scene.NewHandle(sc)

	r, err := newRenderer(cfg.Render, handle)
	if err != nil {
		return err
	}
	defer r.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory; editors usually replace files instead of
	// writing them in place.
	if err = watcher.Add(filepath.Dir(sceneFile)); err != nil {
		return err
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var generation atomic.Uint64
	generation.Store(1)
	g, gctx := errgroup.WithContext(sigCtx)

	g.Go(func() error {
		return watchChanges(gctx, watcher, func() {
			if rebuildScene(handle, sceneFile, buildOpts) {
				generation.Add(1)
			}
		})
	})

	g.Go(func() error {
		fps := ctx.Float64("fps")
		if fps <= 0 {
			fps = 1
		}
		frameInterval := time.Duration(float64(time.Second) / fps)
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()

		var savedGeneration uint64
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}

			// Sample the generation before rendering; the frame may
			// still show the previous scene otherwise.
			frameGeneration := generation.Load()
			frame, err := r.Render(gctx)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}

			if frameGeneration != savedGeneration {
				logger.Noticef("frame statistics\n%s", r.Stats())
				if err = writeFrame(frame, ctx.String("out")); err != nil {
					return err
				}
				savedGeneration = frameGeneration
			}
		}
	})

	logger.Noticef(`watching "%s" for changes; press ctrl+c to exit`, filepath.Dir(sceneFile))
	return g.Wait()
}

// Invoke onChange for each burst of changes to wavefront files.
func watchChanges(ctx context.Context, watcher *fsnotify.Watcher, onChange func()) error {
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSceneEvent(event) {
				continue
			}
			logger.Debugf("detected change: %s", event)
			debounce = time.After(rebuildDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("file watcher error: %s", err)
		case <-debounce:
			debounce = nil
			onChange()
		}
	}
}

// Returns true for events that modify wavefront scene files.
func isSceneEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".obj") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// Rebuild the scene and publish it. Readers that already loaded the previous
// scene keep using it until they complete. On failure the previous scene
// stays in place and false is returned.
func rebuildScene(handle *scene.Handle, sceneFile string, opts bvh.BuildOptions) bool {
	start := time.Now()
	sc, err := reader.ReadScene(sceneFile, opts)
	if err != nil {
		logger.Errorf("rebuild failed; keeping previous scene: %s", err)
		return false
	}

	prev := handle.Swap(sc)
	logger.Noticef("rebuilt scene with %d triangles (was %d) in %s", len(sc.Triangles), len(prev.Triangles), time.Since(start))
	return true
}
