// Package export writes the pipeline's artifact set out for the
// rendering layer: JSON files always, PostgreSQL optionally.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Artifact file names, stable because the renderer loads them by name.
const (
	LabeledPointsFile = "labeled_points.geojson"
	RegionCountsFile  = "region_counts.json"
	CentroidsFile     = "centroids.json"
	EdgesFile         = "edges.json"
	RunStatsFile      = "run_stats.json"
)

// Writer serializes an artifact set into a directory.
type Writer struct {
	dir string
	log *zap.Logger
}

// NewWriter creates a writer targeting dir, creating it if needed.
func NewWriter(dir string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Writer{dir: dir, log: logger.Named("export")}, nil
}

// WriteAll writes every artifact. Any failed write fails the export;
// a partial artifact directory is reported, never silently accepted.
func (w *Writer) WriteAll(artifacts *model.ArtifactSet) error {
	if err := w.writeJSON(LabeledPointsFile, labeledPointsCollection(artifacts.Points)); err != nil {
		return err
	}
	if err := w.writeJSON(RegionCountsFile, artifacts.Counts); err != nil {
		return err
	}
	if err := w.writeJSON(CentroidsFile, artifacts.Centroids); err != nil {
		return err
	}
	if err := w.writeJSON(EdgesFile, artifacts.Edges); err != nil {
		return err
	}
	if err := w.writeJSON(RunStatsFile, artifacts.Stats); err != nil {
		return err
	}

	w.log.Info("Artifacts written",
		zap.String("dir", w.dir),
		zap.Int("points", len(artifacts.Points)),
		zap.Int("centroids", len(artifacts.Centroids)),
		zap.Int("edges", len(artifacts.Edges)))
	return nil
}

func (w *Writer) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// labeledPointsCollection renders the labeled points as a GeoJSON
// FeatureCollection. The region label rides in the "regionId"
// property; the key is absent for unassigned points rather than null,
// matching the documented output schema.
func labeledPointsCollection(points []model.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewPointFeature([]float64{p.Lon, p.Lat})
		for k, v := range p.Metadata {
			f.SetProperty(k, v)
		}
		if p.Assigned() {
			f.SetProperty("regionId", p.RegionID)
		}
		fc.AddFeature(f)
	}
	return fc
}
