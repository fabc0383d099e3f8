package export

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mapfold/regiongraph-cli/internal/model"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex so SQL mock
// expectations survive reformatting.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

const (
	sqlInsertCount = `
        INSERT INTO region_counts (run_id, region_id, count)
        VALUES ($1, $2, $3)
        ON CONFLICT (run_id, region_id) DO UPDATE SET count = EXCLUDED.count;
    `
	sqlInsertCentroid = `
        INSERT INTO region_centroids (run_id, region_id, x, y)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (run_id, region_id) DO UPDATE SET x = EXCLUDED.x, y = EXCLUDED.y;
    `
	sqlInsertEdge = `
        INSERT INTO region_edges (run_id, region_a, region_b, ax, ay, bx, by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (run_id, region_a, region_b) DO NOTHING;
    `
)

var pointColumns = []string{"run_id", "lon", "lat", "region_id"}

func storeArtifacts() *model.ArtifactSet {
	return &model.ArtifactSet{
		Points: []model.Point{
			{Lon: -87.632, Lat: 41.883, RegionID: "Loop"},
			{Lon: -87.9, Lat: 41.6},
		},
		Counts: map[string]int{"Loop": 1, "Avalon Park": 0},
		Centroids: []model.Centroid{
			{RegionID: "Loop", X: 500, Y: 400},
		},
		Edges: []model.Edge{
			{A: "Loop", B: "Avalon Park", AX: 500, AY: 400, BX: 510, BY: 380},
		},
		Stats: model.RunStats{RunID: "run-1"},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewStore(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing().WillReturnError(nil)
	store, err := NewStore(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)

	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS labeled_points").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPersist(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a full artifact set in one transaction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := NewStore(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		artifacts := storeArtifacts()

		mockPool.ExpectBegin()

		mockPool.ExpectCopyFrom(pgx.Identifier{"labeled_points"}, pointColumns).
			WillReturnResult(2)

		batchExp := mockPool.ExpectBatch()
		// Counts queue in sorted region order for determinism.
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertCount)).
			WithArgs("run-1", "Avalon Park", 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertCount)).
			WithArgs("run-1", "Loop", 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertCentroid)).
			WithArgs("run-1", "Loop", 500.0, 400.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		batchExp.ExpectExec(flexibleSQLMatcher(sqlInsertEdge)).
			WithArgs("run-1", "Loop", "Avalon Park", 500.0, 400.0, 510.0, 380.0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		// Commit, then the deferred rollback that reports the tx closed.
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.Persist(ctx, artifacts))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail on copy count mismatch", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := NewStore(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		mockPool.ExpectBegin()
		mockPool.ExpectCopyFrom(pgx.Identifier{"labeled_points"}, pointColumns).
			WillReturnResult(1) // two points go in, one comes back
		mockPool.ExpectRollback()

		err = store.Persist(ctx, storeArtifacts())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied point count")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should fail when begin fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := NewStore(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		beginErr := errors.New("connection lost")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err = store.Persist(ctx, storeArtifacts())
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
	})

	t.Run("should skip copy and batch for an empty artifact set", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		mockPool.ExpectPing().WillReturnError(nil)
		store, err := NewStore(ctx, mockPool, zap.NewNop())
		require.NoError(t, err)

		mockPool.ExpectBegin()
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		empty := &model.ArtifactSet{Stats: model.RunStats{RunID: "run-empty"}}
		require.NoError(t, store.Persist(ctx, empty))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
