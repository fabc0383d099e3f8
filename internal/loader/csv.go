package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

// LoadPointsCSV reads event points from a CSV export with latitude and
// longitude columns. Rows with missing, unparseable, or non-finite
// coordinates are dropped and counted, mirroring the upstream
// preprocessing behavior; all other columns become opaque metadata.
func LoadPointsCSV(path, latCol, lonCol string, logger *zap.Logger) ([]model.Point, Stats, error) {
	log := logger.Named("loader")

	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening points CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading points CSV header: %w", err)
	}
	latIdx, err := columnIndex(header, latCol)
	if err != nil {
		return nil, Stats{}, err
	}
	lonIdx, err := columnIndex(header, lonCol)
	if err != nil {
		return nil, Stats{}, err
	}

	var points []model.Point
	var stats Stats

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Stats{}, fmt.Errorf("reading points CSV: %w", err)
		}
		if latIdx >= len(record) || lonIdx >= len(record) {
			stats.Dropped++
			continue
		}

		lat, latErr := strconv.ParseFloat(strings.TrimSpace(record[latIdx]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(record[lonIdx]), 64)
		if latErr != nil || lonErr != nil || !finite(lat) || !finite(lon) {
			stats.Dropped++
			continue
		}

		meta := make(model.Properties, len(header))
		for i, col := range header {
			if i == latIdx || i == lonIdx || i >= len(record) {
				continue
			}
			meta[col] = record[i]
		}

		points = append(points, model.Point{Lon: lon, Lat: lat, Metadata: meta})
		stats.Loaded++
	}

	if stats.Loaded == 0 {
		return nil, stats, fmt.Errorf("points CSV %s contains no rows with valid coordinates", path)
	}
	if stats.Dropped > 0 {
		log.Warn("Dropped rows with missing or invalid coordinates", zap.Int("count", stats.Dropped))
	}
	log.Info("Loaded points",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("dropped", stats.Dropped))
	return points, stats, nil
}

// LoadRegionsCSV reads region polygons from a CSV export with a WKT
// geometry column and a name column. Rows with empty geometry or an
// empty name are dropped and counted; a malformed WKT geometry fails
// the load, and so does a duplicated region name.
func LoadRegionsCSV(path, geomCol, nameCol string, logger *zap.Logger) ([]model.Region, Stats, error) {
	log := logger.Named("loader")

	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("opening regions CSV: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("reading regions CSV header: %w", err)
	}
	geomIdx, err := columnIndex(header, geomCol)
	if err != nil {
		return nil, Stats{}, err
	}
	nameIdx, err := columnIndex(header, nameCol)
	if err != nil {
		return nil, Stats{}, err
	}

	var regions []model.Region
	var stats Stats
	seen := make(map[string]bool)
	row := 1

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, Stats{}, fmt.Errorf("reading regions CSV: %w", err)
		}
		row++
		if geomIdx >= len(record) || nameIdx >= len(record) {
			stats.Dropped++
			continue
		}

		wkt := strings.TrimSpace(record[geomIdx])
		id := strings.TrimSpace(record[nameIdx])
		if wkt == "" || id == "" {
			stats.Dropped++
			continue
		}
		if seen[id] {
			return nil, Stats{}, fmt.Errorf("regions CSV contains duplicate identifier %q (row %d)", id, row)
		}

		geom, err := ParseWKT(wkt)
		if err != nil {
			return nil, Stats{}, fmt.Errorf("regions CSV row %d: %w", row, err)
		}
		seen[id] = true

		meta := make(model.Properties, len(header))
		for i, col := range header {
			if i == geomIdx || i == nameIdx || i >= len(record) {
				continue
			}
			meta[col] = record[i]
		}

		regions = append(regions, model.Region{ID: id, Geometry: geom, Metadata: meta})
		stats.Loaded++
	}

	if stats.Loaded == 0 {
		return nil, stats, fmt.Errorf("regions CSV %s contains no usable rows", path)
	}
	if stats.Dropped > 0 {
		log.Warn("Dropped rows with missing geometry or name", zap.Int("count", stats.Dropped))
	}
	log.Info("Loaded regions",
		zap.String("path", path),
		zap.Int("loaded", stats.Loaded),
		zap.Int("dropped", stats.Dropped))
	return regions, stats, nil
}

// columnIndex finds a header column, erroring with the available
// columns so misconfigured exports are easy to diagnose.
func columnIndex(header []string, name string) (int, error) {
	for i, col := range header {
		if strings.TrimSpace(col) == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("column %q not found in header (available: %s)", name, strings.Join(header, ", "))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
