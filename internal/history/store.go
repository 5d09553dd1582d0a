// internal/history/store.go
// Optional Postgres persistence of run results, so flaky units and seed
// reproductions can be tracked across runs.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
)

// DBPool abstracts the pgxpool.Pool so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the PostgreSQL run-history repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("history"),
	}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    seed        BIGINT NOT NULL,
    passed      INT NOT NULL,
    failed      INT NOT NULL,
    errored     INT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS outcomes (
    run_id      TEXT NOT NULL REFERENCES runs(id),
    unit_id     TEXT NOT NULL,
    status      TEXT NOT NULL,
    detail      TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL,
    PRIMARY KEY (run_id, unit_id)
);`

// EnsureSchema creates the history tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure history schema: %w", err)
	}
	return nil
}

// RecordRun persists one aggregate result and its per-unit outcomes in a
// single transaction.
func (s *Store) RecordRun(ctx context.Context, result *schemas.AggregateResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	const insertRun = `
        INSERT INTO runs (id, seed, passed, failed, errored, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	if _, err := tx.Exec(ctx, insertRun,
		result.RunID, result.Seed,
		result.Passed, result.Failed, result.Errored,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	if len(result.Outcomes) > 0 {
		rows := make([][]any, len(result.Outcomes))
		for i, o := range result.Outcomes {
			rows[i] = []any{result.RunID, o.UnitID, string(o.Status), o.Detail, o.Duration.Milliseconds()}
		}

		copied, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"outcomes"},
			[]string{"run_id", "unit_id", "status", "detail", "duration_ms"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy outcomes: %w", err)
		}
		if int(copied) != len(result.Outcomes) {
			return fmt.Errorf("mismatch in copied outcome count: expected %d, got %d", len(result.Outcomes), copied)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run recorded", zap.String("run_id", result.RunID), zap.Int("outcomes", len(result.Outcomes)))
	return nil
}
