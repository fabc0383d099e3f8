package export

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

// DBPool abstracts pgxpool.Pool so the store can be mocked in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store persists artifact sets to PostgreSQL, keyed by run ID so
// successive runs over fresh exports can live side by side.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// NewStore creates a store and verifies the connection.
func NewStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the artifact tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
        CREATE TABLE IF NOT EXISTS labeled_points (
            run_id    TEXT NOT NULL,
            lon       DOUBLE PRECISION NOT NULL,
            lat       DOUBLE PRECISION NOT NULL,
            region_id TEXT
        );
        CREATE TABLE IF NOT EXISTS region_counts (
            run_id    TEXT NOT NULL,
            region_id TEXT NOT NULL,
            count     INTEGER NOT NULL,
            PRIMARY KEY (run_id, region_id)
        );
        CREATE TABLE IF NOT EXISTS region_centroids (
            run_id    TEXT NOT NULL,
            region_id TEXT NOT NULL,
            x         DOUBLE PRECISION NOT NULL,
            y         DOUBLE PRECISION NOT NULL,
            PRIMARY KEY (run_id, region_id)
        );
        CREATE TABLE IF NOT EXISTS region_edges (
            run_id   TEXT NOT NULL,
            region_a TEXT NOT NULL,
            region_b TEXT NOT NULL,
            ax DOUBLE PRECISION NOT NULL,
            ay DOUBLE PRECISION NOT NULL,
            bx DOUBLE PRECISION NOT NULL,
            by DOUBLE PRECISION NOT NULL,
            PRIMARY KEY (run_id, region_a, region_b)
        );
    `
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create artifact schema: %w", err)
	}
	return nil
}

// Persist writes the whole artifact set inside one transaction, so a
// failed run never leaves a partial artifact set behind.
func (s *Store) Persist(ctx context.Context, artifacts *model.ArtifactSet) error {
	runID := artifacts.Stats.RunID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit returns ErrTxClosed; that
		// is the normal path, not a failure worth logging.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if err := s.persistPoints(ctx, tx, runID, artifacts.Points); err != nil {
		return err
	}
	if err := s.persistDerived(ctx, tx, runID, artifacts); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("Artifacts persisted",
		zap.String("run_id", runID),
		zap.Int("points", len(artifacts.Points)),
		zap.Int("edges", len(artifacts.Edges)))
	return nil
}

func (s *Store) persistPoints(ctx context.Context, tx pgx.Tx, runID string, points []model.Point) error {
	if len(points) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(points))
	for i, p := range points {
		var regionID interface{}
		if p.Assigned() {
			regionID = p.RegionID
		}
		rows[i] = []interface{}{runID, p.Lon, p.Lat, regionID}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"labeled_points"},
		[]string{"run_id", "lon", "lat", "region_id"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy labeled points: %w", err)
	}
	if int(copyCount) != len(points) {
		return fmt.Errorf("mismatch in copied point count: expected %d, got %d", len(points), copyCount)
	}
	return nil
}

// persistDerived batches counts, centroids, and edges in one round trip.
func (s *Store) persistDerived(ctx context.Context, tx pgx.Tx, runID string, artifacts *model.ArtifactSet) error {
	batch := &pgx.Batch{}

	const sqlCount = `
        INSERT INTO region_counts (run_id, region_id, count)
        VALUES ($1, $2, $3)
        ON CONFLICT (run_id, region_id) DO UPDATE SET count = EXCLUDED.count;
    `
	// Sorted keys keep the batch order deterministic across runs.
	countIDs := make([]string, 0, len(artifacts.Counts))
	for id := range artifacts.Counts {
		countIDs = append(countIDs, id)
	}
	sort.Strings(countIDs)
	for _, id := range countIDs {
		batch.Queue(sqlCount, runID, id, artifacts.Counts[id])
	}

	const sqlCentroid = `
        INSERT INTO region_centroids (run_id, region_id, x, y)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (run_id, region_id) DO UPDATE SET x = EXCLUDED.x, y = EXCLUDED.y;
    `
	for _, c := range artifacts.Centroids {
		batch.Queue(sqlCentroid, runID, c.RegionID, c.X, c.Y)
	}

	const sqlEdge = `
        INSERT INTO region_edges (run_id, region_a, region_b, ax, ay, bx, by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, region_a, region_b) DO NOTHING;
    `
	for _, e := range artifacts.Edges {
		batch.Queue(sqlEdge, runID, e.A, e.B, e.AX, e.AY, e.BX, e.BY)
	}

	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	if br == nil {
		return fmt.Errorf("failed to send batch: batch results is nil")
	}
	defer func() {
		_ = br.Close()
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to execute artifact batch insert (index %d): %w", i, err)
		}
	}
	return nil
}
