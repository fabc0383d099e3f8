// Package loader reads region polygons and event points from GeoJSON
// and CSV sources into the pipeline's input types. It owns every
// file-format concern so the core packages stay free of I/O.
package loader

import (
	"fmt"
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

// Stats reports how much of an input file survived loading.
type Stats struct {
	Loaded  int
	Dropped int
}

// LoadRegionsGeoJSON reads a FeatureCollection of Polygon or
// MultiPolygon features. The region identifier comes from the
// idProperty feature property; features with a missing or empty
// identifier, or non-polygonal geometry, are dropped and counted.
// A duplicated identifier fails the load.
func LoadRegionsGeoJSON(path, idProperty string, logger *zap.Logger) ([]model.Region, Stats, error) {
	log := logger.Named("loader")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading regions file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("parsing regions GeoJSON: %w", err)
	}

	var regions []model.Region
	var stats Stats
	seen := make(map[string]bool)

	for i, f := range fc.Features {
		geom, ok := featureMultiPolygon(f)
		if !ok {
			stats.Dropped++
			log.Warn("Dropping feature with non-polygonal geometry", zap.Int("feature", i))
			continue
		}

		id := propertyString(f.Properties, idProperty)
		if id == "" {
			stats.Dropped++
			log.Warn("Dropping region with missing identifier",
				zap.Int("feature", i),
				zap.String("id_property", idProperty))
			continue
		}
		if seen[id] {
			return nil, Stats{}, fmt.Errorf("regions file contains duplicate identifier %q", id)
		}
		seen[id] = true

		regions = append(regions, model.Region{
			ID:       id,
			Geometry: geom,
			Metadata: model.Properties(f.Properties),
		})
		stats.Loaded++
	}

	if stats.Loaded == 0 {
		return nil, stats, fmt.Errorf("regions file %s contains no usable polygon features", path)
	}
	log.Info("Loaded regions",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("dropped", stats.Dropped))
	return regions, stats, nil
}

// LoadPointsGeoJSON reads a FeatureCollection of Point features.
// Non-point features are dropped and counted; properties ride along as
// opaque metadata.
func LoadPointsGeoJSON(path string, logger *zap.Logger) ([]model.Point, Stats, error) {
	log := logger.Named("loader")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading points file: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("parsing points GeoJSON: %w", err)
	}

	var points []model.Point
	var stats Stats

	for i, f := range fc.Features {
		if f.Geometry == nil || !f.Geometry.IsPoint() || len(f.Geometry.Point) < 2 {
			stats.Dropped++
			log.Warn("Dropping non-point feature", zap.Int("feature", i))
			continue
		}
		points = append(points, model.Point{
			Lon:      f.Geometry.Point[0],
			Lat:      f.Geometry.Point[1],
			Metadata: model.Properties(f.Properties),
		})
		stats.Loaded++
	}

	log.Info("Loaded points",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("dropped", stats.Dropped))
	return points, stats, nil
}

// featureMultiPolygon converts a feature's geometry into a
// MultiPolygon, accepting both Polygon and MultiPolygon types.
func featureMultiPolygon(f *geojson.Feature) (orb.MultiPolygon, bool) {
	if f.Geometry == nil {
		return nil, false
	}
	switch {
	case f.Geometry.IsPolygon():
		return orb.MultiPolygon{coordsToPolygon(f.Geometry.Polygon)}, true
	case f.Geometry.IsMultiPolygon():
		mp := make(orb.MultiPolygon, 0, len(f.Geometry.MultiPolygon))
		for _, polyCoords := range f.Geometry.MultiPolygon {
			mp = append(mp, coordsToPolygon(polyCoords))
		}
		return mp, true
	default:
		return nil, false
	}
}

func coordsToPolygon(coords [][][]float64) orb.Polygon {
	poly := make(orb.Polygon, 0, len(coords))
	for _, ringCoords := range coords {
		ring := make(orb.Ring, 0, len(ringCoords))
		for _, pos := range ringCoords {
			if len(pos) < 2 {
				continue
			}
			ring = append(ring, orb.Point{pos[0], pos[1]})
		}
		poly = append(poly, ring)
	}
	return poly
}

// propertyString extracts a property as a non-empty string. Numeric
// identifiers (common in open-data exports) are formatted; anything
// else yields "".
func propertyString(props map[string]interface{}, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
