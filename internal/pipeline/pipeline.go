// Package pipeline orchestrates the processing stages: region
// validation, projection fitting, spatial join, aggregation, centroid
// extraction, and proximity graph construction.
//
// A run either produces a complete artifact set or fails with a
// descriptive error. No partially computed result is ever returned, so
// downstream consumers never see an artifact set that looks complete
// but is not.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/aggregate"
	"github.com/mapfold/regiongraph-cli/internal/config"
	"github.com/mapfold/regiongraph-cli/internal/geo"
	"github.com/mapfold/regiongraph-cli/internal/join"
	"github.com/mapfold/regiongraph-cli/internal/knn"
	"github.com/mapfold/regiongraph-cli/internal/model"
)

// ErrDuplicateRegionID marks input polygon sets that reuse a region
// identifier. Duplicates are undefined behavior for the whole
// pipeline, so the run fails fast instead of silently picking one.
var ErrDuplicateRegionID = errors.New("duplicate region identifier")

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSearcher injects a custom neighbor searcher, primarily so tests
// and future spatial-index implementations can replace the brute-force
// search without touching edge semantics.
func WithSearcher(s knn.NeighborSearcher) Option {
	return func(p *Pipeline) {
		p.searcher = s
	}
}

// Pipeline runs the full geometric processing flow over in-memory
// collections.
type Pipeline struct {
	cfg      *config.Config
	logger   *zap.Logger
	joiner   *join.Engine
	searcher knn.NeighborSearcher
}

// New creates a pipeline from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		logger:   logger.Named("pipeline"),
		joiner:   join.NewEngine(logger, cfg.Join.Concurrency),
		searcher: knn.BruteForce(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes every stage in order and returns the complete artifact
// set. Projection parameters are fitted once, from the valid polygon
// set, before any point or centroid is projected; every later stage
// reuses that same frame.
func (p *Pipeline) Run(ctx context.Context, points []model.Point, regions []model.Region) (*model.ArtifactSet, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.logger.With(zap.String("run_id", runID))

	valid, excluded, err := validateRegions(regions)
	if err != nil {
		return nil, err
	}
	if excluded > 0 {
		log.Warn("Excluded regions with missing identifiers", zap.Int("count", excluded))
	}

	params, err := geo.FitParams(regionGeometries(valid), p.cfg.Projection.Width, p.cfg.Projection.Height, p.cfg.Projection.Padding)
	if err != nil {
		return nil, fmt.Errorf("fitting projection parameters: %w", err)
	}

	labeled, joinStats, err := p.joiner.Assign(ctx, points, valid, params)
	if err != nil {
		return nil, fmt.Errorf("spatial join failed: %w", err)
	}

	counts := aggregate.CountByRegion(labeled, regionIDs(valid))

	centroids, skippedCentroids := knn.ExtractCentroids(valid, params, log)

	edges := knn.BuildGraph(centroids, knn.GraphConfig{
		K:      p.cfg.Graph.K,
		Mutual: p.cfg.Graph.Mutual,
	}, p.searcher)

	stats := model.RunStats{
		RunID:            runID,
		TotalPoints:      len(points),
		AssignedPoints:   joinStats.Assigned,
		UnassignedPoints: joinStats.Unassigned,
		SkippedPoints:    joinStats.Skipped,
		ExcludedRegions:  excluded,
		SkippedCentroids: skippedCentroids,
		EdgeCount:        len(edges),
		Duration:         time.Since(start),
	}

	log.Info("Pipeline run complete",
		zap.Int("points", stats.TotalPoints),
		zap.Int("assigned", stats.AssignedPoints),
		zap.Int("unassigned", stats.UnassignedPoints),
		zap.Int("regions", len(valid)),
		zap.Int("centroids", len(centroids)),
		zap.Int("edges", stats.EdgeCount),
		zap.Duration("duration", stats.Duration),
	)

	return &model.ArtifactSet{
		Points:    labeled,
		Counts:    counts,
		Centroids: centroids,
		Edges:     edges,
		Stats:     stats,
	}, nil
}

// validateRegions drops polygons with empty identifiers (counted, not
// fatal) and fails fast on duplicated identifiers.
func validateRegions(regions []model.Region) ([]model.Region, int, error) {
	valid := make([]model.Region, 0, len(regions))
	seen := make(map[string]bool, len(regions))
	excluded := 0

	for _, r := range regions {
		if r.ID == "" {
			excluded++
			continue
		}
		if seen[r.ID] {
			return nil, 0, fmt.Errorf("%w: %q", ErrDuplicateRegionID, r.ID)
		}
		seen[r.ID] = true
		valid = append(valid, r)
	}
	return valid, excluded, nil
}

func regionGeometries(regions []model.Region) []orb.MultiPolygon {
	geoms := make([]orb.MultiPolygon, len(regions))
	for i, r := range regions {
		geoms[i] = r.Geometry
	}
	return geoms
}

func regionIDs(regions []model.Region) []string {
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	return ids
}
