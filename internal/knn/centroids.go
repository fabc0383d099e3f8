// Package knn extracts region centroids and builds the k-nearest
// neighbor proximity graph over them.
package knn

import (
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/geo"
	"github.com/mapfold/regiongraph-cli/internal/model"
)

// ExtractCentroids computes one projected centroid per region, in
// input order. Regions whose centroid comes out non-finite (fully
// degenerate geometry, even after the vertex-average fallback) are
// skipped and logged, never retried.
//
// Output order is stable for a given input. Graph construction does
// not depend on it for correctness, only for deterministic
// tie-breaking.
func ExtractCentroids(regions []model.Region, params geo.Params, logger *zap.Logger) ([]model.Centroid, int) {
	log := logger.Named("centroids")
	centroids := make([]model.Centroid, 0, len(regions))
	skipped := 0

	for _, r := range regions {
		projected := geo.ProjectMultiPolygon(r.Geometry, params)
		c, ok := geo.Centroid(projected)
		if !ok {
			skipped++
			log.Warn("Excluding region with non-finite centroid",
				zap.String("region_id", r.ID))
			continue
		}
		centroids = append(centroids, model.Centroid{
			RegionID: r.ID,
			X:        c.X(),
			Y:        c.Y(),
		})
	}

	if skipped > 0 {
		log.Info("Centroid extraction finished with exclusions",
			zap.Int("centroids", len(centroids)),
			zap.Int("skipped", skipped))
	}
	return centroids, skipped
}
