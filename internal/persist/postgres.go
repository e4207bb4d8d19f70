package persist

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
)

type pgStore struct {
	db *DB
}

func (s *pgStore) migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDBFromPool(s.db.Pool)
	defer sqlDB.Close()
	return RunMigrations(ctx, sqlDB, "postgres", "postgres")
}

func (s *pgStore) CreateRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := s.db.Pool.QueryRow(ctx,
		`INSERT INTO runs (scenario, seed, min_size, level_count, bodies)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		run.Scenario, run.Seed, run.MinSize, run.LevelCount, run.Bodies,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

func (s *pgStore) AppendSamples(ctx context.Context, runID int64, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("samples begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range samples {
		if _, err := tx.Exec(ctx,
			`INSERT INTO run_samples (run_id, tick, bodies, moved, changed, candidates, contacts, mismatches, buckets, tick_nanos)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			runID, int64(m.Tick), m.Bodies, m.Moved, m.Changed, m.Candidates, m.Contacts, m.Mismatches, m.Buckets, m.TickTime.Nanoseconds(),
		); err != nil {
			return fmt.Errorf("samples insert: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *pgStore) FinishRun(ctx context.Context, runID int64, ticks uint64) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE runs SET finished_at = now(), ticks = $2 WHERE id = $1`,
		runID, int64(ticks),
	)
	return err
}

func (s *pgStore) Summary(ctx context.Context, runID int64) (RunSummary, error) {
	sum := RunSummary{ID: runID}
	var ticks int64
	err := s.db.Pool.QueryRow(ctx,
		`SELECT r.scenario, r.ticks, r.finished_at IS NOT NULL,
		        (SELECT count(*) FROM run_samples WHERE run_id = r.id)
		 FROM runs r WHERE r.id = $1`,
		runID,
	).Scan(&sum.Scenario, &ticks, &sum.Finished, &sum.Samples)
	if err != nil {
		return sum, fmt.Errorf("run summary: %w", err)
	}
	sum.Ticks = uint64(ticks)
	return sum, nil
}

func (s *pgStore) Close() error {
	s.db.Close()
	return nil
}
