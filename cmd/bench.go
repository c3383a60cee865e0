package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/chewxy/math32"
	"github.com/olekukonko/tablewriter"
	"github.com/swr06/Lensing/asset/scene/reader"
	"github.com/swr06/Lensing/bvh"
	"github.com/swr06/Lensing/types"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

// The maximum number of rays checked against the brute force intersector.
const maxVerifiedRays = 2000

// Rebuild the BVH of a scene and measure build time and query throughput
// using random rays.
func BenchScene(ctx *cli.Context) error {
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
	if len(sc.Triangles) == 0 {
		return errors.New("scene does not contain any geometry")
	}

	rayCount := ctx.Int("rays")
	if rayCount <= 0 {
		return fmt.Errorf("ray count must be positive; got %d", rayCount)
	}

	start := time.Now()
	tree, err := bvh.Build(bvh.Primitives(sc.Triangles), buildOpts)
	if err != nil {
		return err
	}
	buildTime := time.Since(start)

	rays := randomRays(tree.Bounds(), rayCount, ctx.Int64("seed"))
	anyHit := ctx.Bool("any")

	sigCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	start = time.Now()
	hits, err := runQueries(sigCtx, tree, sc.Triangles, rays, anyHit, runtime.GOMAXPROCS(0))
	if err != nil {
		return err
	}
	queryTime := time.Since(start)

	if ctx.Bool("verify") {
		if err = tree.Validate(bvh.Primitives(sc.Triangles)); err != nil {
			return err
		}
		if err = verifyQueries(tree, sc.Triangles, rays, anyHit); err != nil {
			return err
		}
		logger.Noticef("verified %d rays against brute force intersection", min(len(rays), maxVerifiedRays))
	}

	stats := tree.Stats()
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Strategy", buildOpts.Strategy.String()})
	table.Append([]string{"Triangles", fmt.Sprintf("%d", len(sc.Triangles))})
	table.Append([]string{"Build time", buildTime.String()})
	table.Append([]string{"Nodes / leafs", fmt.Sprintf("%d / %d", stats.Nodes, stats.Leafs)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.2f", stats.SAHCost)})
	table.Append([]string{"Query type", map[bool]string{false: "nearest", true: "any"}[anyHit]})
	table.Append([]string{"Rays / hits", fmt.Sprintf("%d / %d", len(rays), hits)})
	table.Append([]string{"Query time", queryTime.String()})
	table.Append([]string{"Throughput", fmt.Sprintf("%.2f MRays/s", float64(len(rays))/queryTime.Seconds()/1e6)})
	table.Render()
	logger.Noticef("benchmark results\n%s", buf.String())

	return nil
}

// Trace rays against tree using the given number of goroutines and return
// the number of rays that hit a primitive.
func runQueries(ctx context.Context, tree *bvh.BVH, tris []bvh.Triangle, rays []bvh.Ray, anyHit bool, workers int) (uint64, error) {
	var hits atomic.Uint64
	g, gctx := errgroup.WithContext(ctx)
	chunk := max(1, (len(rays)+workers-1)/workers)
	for first := 0; first < len(rays); first += chunk {
		batch := rays[first:min(first+chunk, len(rays))]
		g.Go(func() error {
			var batchHits uint64
			for index, ray := range batch {
				if index%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if anyHit {
					if tree.IntersectAny(tris, ray) {
						batchHits++
					}
				} else if tree.Intersect(tris, ray).Ok() {
					batchHits++
				}
			}
			hits.Add(batchHits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return hits.Load(), nil
}

// Generate rays with origins inside the scene bounds and uniformly
// distributed directions.
func randomRays(bounds bvh.AABB, count int, seed int64) []bvh.Ray {
	rng := rand.New(rand.NewSource(seed))
	extent := bounds.Max.Sub(bounds.Min)

	rays := make([]bvh.Ray, count)
	for index := range rays {
		origin := types.XYZ(
			bounds.Min[0]+rng.Float32()*extent[0],
			bounds.Min[1]+rng.Float32()*extent[1],
			bounds.Min[2]+rng.Float32()*extent[2],
		)

		z := 2*rng.Float32() - 1
		phi := 2 * math32.Pi * rng.Float32()
		r := math32.Sqrt(math32.Max(0, 1-z*z))
		dir := types.XYZ(r*math32.Cos(phi), r*math32.Sin(phi), z)

		rays[index] = bvh.NewRay(origin, dir)
	}
	return rays
}

// Compare BVH query results with brute force intersection.
func verifyQueries(tree *bvh.BVH, tris []bvh.Triangle, rays []bvh.Ray, anyHit bool) error {
	for index, ray := range rays[:min(len(rays), maxVerifiedRays)] {
		if anyHit {
			if got, exp := tree.IntersectAny(tris, ray), bvh.BruteForceAny(tris, ray); got != exp {
				return fmt.Errorf("ray %d: expected any-hit result %t; got %t", index, exp, got)
			}
			continue
		}

		got, exp := tree.Intersect(tris, ray), bvh.BruteForce(tris, ray)
		if got.Ok() != exp.Ok() || (exp.Ok() && math32.Abs(got.T-exp.T) > 1e-5*math32.Max(1, exp.T)) {
			return fmt.Errorf("ray %d: expected hit %+v; got %+v", index, exp, got)
		}
	}
	return nil
}
