package knn

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/geo"
	"github.com/mapfold/regiongraph-cli/internal/model"
)

func regionMP(id string, ring orb.Ring) model.Region {
	return model.Region{ID: id, Geometry: orb.MultiPolygon{{ring}}}
}

func TestExtractCentroids(t *testing.T) {
	regions := []model.Region{
		regionMP("west", orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}),
		regionMP("east", orb.Ring{{4, 0}, {6, 0}, {6, 2}, {4, 2}, {4, 0}}),
	}
	geoms := []orb.MultiPolygon{regions[0].Geometry, regions[1].Geometry}
	params, err := geo.FitParams(geoms, 1000, 800, 0.05)
	require.NoError(t, err)

	centroids, skipped := ExtractCentroids(regions, params, zap.NewNop())
	require.Len(t, centroids, 2)
	assert.Zero(t, skipped)

	// Input order preserved, one centroid per region.
	assert.Equal(t, "west", centroids[0].RegionID)
	assert.Equal(t, "east", centroids[1].RegionID)
	assert.Less(t, centroids[0].X, centroids[1].X, "west centroid sits west of east centroid")

	// Centroids land inside their own (projected, convex) squares.
	projected := geo.ProjectMultiPolygon(regions[0].Geometry, params)
	assert.True(t, geo.MultiPolygonContains(projected, orb.Point{centroids[0].X, centroids[0].Y}))
}

func TestExtractCentroidsSkipsDegenerateRegions(t *testing.T) {
	nan := math.NaN()
	regions := []model.Region{
		regionMP("good", orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}),
		regionMP("bad", orb.Ring{{nan, nan}, {nan, nan}, {nan, nan}, {nan, nan}}),
	}
	params, err := geo.FitParams([]orb.MultiPolygon{regions[0].Geometry}, 100, 100, 0)
	require.NoError(t, err)

	centroids, skipped := ExtractCentroids(regions, params, zap.NewNop())
	require.Len(t, centroids, 1)
	assert.Equal(t, "good", centroids[0].RegionID)
	assert.Equal(t, 1, skipped)
}

func TestExtractCentroidsEmptyInput(t *testing.T) {
	centroids, skipped := ExtractCentroids(nil, geo.Params{Scale: 1}, zap.NewNop())
	assert.Empty(t, centroids)
	assert.Zero(t, skipped)
}
