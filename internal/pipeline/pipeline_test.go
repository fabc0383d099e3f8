package pipeline

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/config"
	"github.com/mapfold/regiongraph-cli/internal/model"
)

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Graph.K = 1
	cfg.Join.Concurrency = 2
	return cfg
}

func square(id string, minLon, minLat, maxLon, maxLat float64) model.Region {
	return model.Region{
		ID: id,
		Geometry: orb.MultiPolygon{{orb.Ring{
			{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
		}}},
	}
}

func testInputs() ([]model.Point, []model.Region) {
	regions := []model.Region{
		square("A", 0, 0, 2, 2),
		square("B", 3, 0, 5, 2),
		square("C", 20, 20, 22, 22),
	}
	points := []model.Point{
		{Lon: 1, Lat: 1, Metadata: model.Properties{"kind": "theft"}},
		{Lon: 1.5, Lat: 0.5},
		{Lon: 4, Lat: 1},
		{Lon: 10, Lat: 10}, // in no region
	}
	return points, regions
}

func TestRunProducesCompleteArtifactSet(t *testing.T) {
	points, regions := testInputs()

	artifacts, err := New(testConfig(), zap.NewNop()).Run(context.Background(), points, regions)
	require.NoError(t, err)

	// Labeled points: input order preserved, metadata untouched.
	require.Len(t, artifacts.Points, 4)
	assert.Equal(t, "A", artifacts.Points[0].RegionID)
	assert.Equal(t, "theft", artifacts.Points[0].Metadata["kind"])
	assert.Equal(t, "A", artifacts.Points[1].RegionID)
	assert.Equal(t, "B", artifacts.Points[2].RegionID)
	assert.Empty(t, artifacts.Points[3].RegionID)

	// Counts: zero-floored over every valid region.
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 0}, artifacts.Counts)

	// Centroids: one per region, input order.
	require.Len(t, artifacts.Centroids, 3)
	assert.Equal(t, "A", artifacts.Centroids[0].RegionID)
	assert.Equal(t, "C", artifacts.Centroids[2].RegionID)

	// k=1: A and B pick each other, C picks B.
	require.Len(t, artifacts.Edges, 2)

	assert.Equal(t, 4, artifacts.Stats.TotalPoints)
	assert.Equal(t, 3, artifacts.Stats.AssignedPoints)
	assert.Equal(t, 1, artifacts.Stats.UnassignedPoints)
	assert.Zero(t, artifacts.Stats.SkippedPoints)
	assert.Equal(t, 2, artifacts.Stats.EdgeCount)
	assert.NotEmpty(t, artifacts.Stats.RunID)
}

func TestRunIdempotent(t *testing.T) {
	points, regions := testInputs()
	p := New(testConfig(), zap.NewNop())

	first, err := p.Run(context.Background(), points, regions)
	require.NoError(t, err)
	second, err := p.Run(context.Background(), points, regions)
	require.NoError(t, err)

	// Identical input yields identical artifacts; only the run id and
	// wall-clock duration may differ.
	diff := cmp.Diff(first, second,
		cmpopts.IgnoreFields(model.RunStats{}, "RunID", "Duration"))
	assert.Empty(t, diff)
	assert.NotEqual(t, first.Stats.RunID, second.Stats.RunID)
}

func TestRunSingleRegionSinglePoint(t *testing.T) {
	// A point on the square's own corner vertex still joins, and a lone
	// region yields no edges.
	regions := []model.Region{square("A", 0, 0, 2, 2)}
	points := []model.Point{{Lon: 0, Lat: 0}}

	artifacts, err := New(testConfig(), zap.NewNop()).Run(context.Background(), points, regions)
	require.NoError(t, err)

	assert.Equal(t, "A", artifacts.Points[0].RegionID)
	assert.Equal(t, map[string]int{"A": 1}, artifacts.Counts)
	assert.Empty(t, artifacts.Edges)
}

func TestRunDuplicateRegionID(t *testing.T) {
	regions := []model.Region{
		square("A", 0, 0, 2, 2),
		square("A", 3, 0, 5, 2),
	}

	_, err := New(testConfig(), zap.NewNop()).Run(context.Background(), nil, regions)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateRegionID)
	assert.Contains(t, err.Error(), `"A"`)
}

func TestRunExcludesRegionsWithEmptyID(t *testing.T) {
	regions := []model.Region{
		square("A", 0, 0, 2, 2),
		square("", 3, 0, 5, 2),
	}
	points := []model.Point{{Lon: 4, Lat: 1}} // inside the unnamed region

	artifacts, err := New(testConfig(), zap.NewNop()).Run(context.Background(), points, regions)
	require.NoError(t, err)

	assert.Empty(t, artifacts.Points[0].RegionID, "unnamed regions never label points")
	assert.Equal(t, map[string]int{"A": 0}, artifacts.Counts)
	assert.Equal(t, 1, artifacts.Stats.ExcludedRegions)
	assert.Len(t, artifacts.Centroids, 1)
}

func TestRunNoValidRegions(t *testing.T) {
	_, err := New(testConfig(), zap.NewNop()).Run(context.Background(), nil, nil)
	require.Error(t, err, "no polygons means no projection frame")
}

func TestRunCancelledContext(t *testing.T) {
	points, regions := testInputs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig(), zap.NewNop()).Run(ctx, points, regions)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
