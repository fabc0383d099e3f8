// Package join implements the spatial join engine: assigning each
// event point to the administrative region whose polygon contains it.
package join

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mapfold/regiongraph-cli/internal/geo"
	"github.com/mapfold/regiongraph-cli/internal/model"
)

// Stats reports what the join did with its input.
type Stats struct {
	Assigned   int
	Unassigned int
	// Skipped counts points with non-finite or out-of-range coordinates.
	// They are excluded from containment testing but kept in the output
	// with an empty region, so the record itself is never lost.
	Skipped int
}

// Engine performs the point-in-region assignment. Work is sharded
// across workers with errgroup; each worker writes only its own output
// indices, so no coordination is needed beyond the final wait.
type Engine struct {
	logger      *zap.Logger
	concurrency int
}

// NewEngine creates a join engine. A concurrency of zero or less
// defaults to GOMAXPROCS.
func NewEngine(logger *zap.Logger, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		logger:      logger.Named("join"),
		concurrency: concurrency,
	}
}

// projectedRegion is a region prepared for containment testing: its
// geometry projected into the run's planar frame, plus the bounding
// box used as a cheap pre-filter before the exact ring test.
type projectedRegion struct {
	id    string
	geom  orb.MultiPolygon
	bound orb.Bound
}

// Assign labels every point with the identifier of the first region
// (in input order) whose polygon contains its projected coordinate.
//
// Regions are assumed non-overlapping; where they do overlap,
// first-match-wins in input order is the defined tie-break. Points
// contained by no region keep an empty RegionID. The bounding-box
// pre-filter changes complexity, never results.
func (e *Engine) Assign(ctx context.Context, points []model.Point, regions []model.Region, params geo.Params) ([]model.Point, Stats, error) {
	prepared := make([]projectedRegion, 0, len(regions))
	for _, r := range regions {
		projected := geo.ProjectMultiPolygon(r.Geometry, params)
		prepared = append(prepared, projectedRegion{
			id:    r.ID,
			geom:  projected,
			bound: projected.Bound(),
		})
	}

	labeled := make([]model.Point, len(points))
	shardStats := make([]Stats, e.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	chunk := (len(points) + e.concurrency - 1) / e.concurrency
	if chunk == 0 {
		chunk = 1
	}

	for w := 0; w < e.concurrency; w++ {
		start := w * chunk
		if start >= len(points) {
			break
		}
		end := start + chunk
		if end > len(points) {
			end = len(points)
		}
		w := w

		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("spatial join aborted: %w", err)
				}
				labeled[i] = e.assignOne(points[i], prepared, params, &shardStats[w])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	for _, s := range shardStats {
		stats.Assigned += s.Assigned
		stats.Unassigned += s.Unassigned
		stats.Skipped += s.Skipped
	}

	e.logger.Info("Spatial join complete",
		zap.Int("points", len(points)),
		zap.Int("regions", len(prepared)),
		zap.Int("assigned", stats.Assigned),
		zap.Int("unassigned", stats.Unassigned),
		zap.Int("skipped", stats.Skipped),
	)
	return labeled, stats, nil
}

func (e *Engine) assignOne(p model.Point, regions []projectedRegion, params geo.Params, stats *Stats) model.Point {
	out := p
	out.RegionID = ""

	if !validCoordinate(p.Lon, p.Lat) {
		stats.Skipped++
		return out
	}

	pt := geo.Project(orb.Point{p.Lon, p.Lat}, params)
	for _, r := range regions {
		if !r.bound.Contains(pt) {
			continue
		}
		if geo.MultiPolygonContains(r.geom, pt) {
			out.RegionID = r.id
			stats.Assigned++
			return out
		}
	}

	stats.Unassigned++
	return out
}

// validCoordinate rejects non-finite and out-of-range geographic
// coordinates before they reach the projection.
func validCoordinate(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}
