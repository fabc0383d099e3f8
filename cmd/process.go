package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/config"
	"github.com/mapfold/regiongraph-cli/internal/export"
	"github.com/mapfold/regiongraph-cli/internal/loader"
	"github.com/mapfold/regiongraph-cli/internal/model"
	"github.com/mapfold/regiongraph-cli/internal/observability"
	"github.com/mapfold/regiongraph-cli/internal/pipeline"
)

// newProcessCmd creates and configures the `process` command.
func newProcessCmd() *cobra.Command {
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Runs the full join/aggregate/graph pipeline over one input pair",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so CLI values override the
			// config file and environment with the right precedence.
			bindings := map[string]string{
				"input.regions":     "regions",
				"input.points":      "points",
				"input.id_property": "id-property",
				"input.geom_column": "geom-column",
				"input.lat_column":  "lat-column",
				"input.lon_column":  "lon-column",
				"output.dir":        "out",
				"graph.k":           "k",
				"graph.mutual":      "mutual",
				"projection.width":  "width",
				"projection.height": "height",
				"projection.padding": "padding",
				"join.concurrency":  "concurrency",
				"store.dsn":         "store-dsn",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if cfg.Input.Regions == "" || cfg.Input.Points == "" {
				return fmt.Errorf("both --regions and --points inputs are required")
			}

			regions, points, err := loadInputs(cfg, logger)
			if err != nil {
				return err
			}

			artifacts, err := pipeline.New(cfg, logger).Run(ctx, points, regions)
			if err != nil {
				return err
			}

			writer, err := export.NewWriter(cfg.Output.Dir, logger)
			if err != nil {
				return err
			}
			if err := writer.WriteAll(artifacts); err != nil {
				return err
			}

			if cfg.Store.DSN != "" {
				if err := persistArtifacts(ctx, cfg.Store.DSN, artifacts, logger); err != nil {
					return err
				}
			}

			logger.Info("Run finished",
				zap.String("run_id", artifacts.Stats.RunID),
				zap.String("output_dir", cfg.Output.Dir))
			return nil
		},
	}

	flags := processCmd.Flags()
	flags.String("regions", "", "region polygons file (.geojson or .csv with a WKT column)")
	flags.String("points", "", "event points file (.geojson or .csv with lat/lon columns)")
	flags.String("out", "out", "output directory for artifacts")
	flags.String("id-property", "PRI_NEIGH", "GeoJSON property / CSV column holding the region identifier")
	flags.String("geom-column", "the_geom", "CSV column holding WKT region geometry")
	flags.String("lat-column", "Latitude", "CSV column holding point latitude")
	flags.String("lon-column", "Longitude", "CSV column holding point longitude")
	flags.Int("k", 5, "nearest neighbors per region centroid")
	flags.Bool("mutual", false, "require mutual k-NN membership for an edge")
	flags.Float64("width", 1000, "viewport width of the planar frame")
	flags.Float64("height", 800, "viewport height of the planar frame")
	flags.Float64("padding", 0.05, "viewport padding fraction")
	flags.Int("concurrency", 0, "spatial join worker count (0 = GOMAXPROCS)")
	flags.String("store-dsn", "", "optional PostgreSQL DSN to persist artifacts")

	return processCmd
}

// loadInputs dispatches on file extension: .csv uses the column-mapped
// CSV loaders, everything else is treated as GeoJSON.
func loadInputs(cfg *config.Config, logger *zap.Logger) ([]model.Region, []model.Point, error) {
	var regions []model.Region
	var err error

	if isCSV(cfg.Input.Regions) {
		regions, _, err = loader.LoadRegionsCSV(cfg.Input.Regions, cfg.Input.GeomColumn, cfg.Input.IDProperty, logger)
	} else {
		regions, _, err = loader.LoadRegionsGeoJSON(cfg.Input.Regions, cfg.Input.IDProperty, logger)
	}
	if err != nil {
		return nil, nil, err
	}

	var points []model.Point
	if isCSV(cfg.Input.Points) {
		points, _, err = loader.LoadPointsCSV(cfg.Input.Points, cfg.Input.LatColumn, cfg.Input.LonColumn, logger)
	} else {
		points, _, err = loader.LoadPointsGeoJSON(cfg.Input.Points, logger)
	}
	if err != nil {
		return nil, nil, err
	}

	return regions, points, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}

// persistArtifacts opens a pooled connection, ensures the artifact
// schema, and writes the run inside one transaction.
func persistArtifacts(ctx context.Context, dsn string, artifacts *model.ArtifactSet, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to artifact store: %w", err)
	}
	defer pool.Close()

	store, err := export.NewStore(ctx, pool, logger)
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	return store.Persist(ctx, artifacts)
}
