package persist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/l1jgo/hashbounds/internal/config"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	conn *sql.DB
}

// openSQLite opens (or creates) the database file named by cfg.DSN.
func openSQLite(ctx context.Context, cfg config.StoreConfig) (*sqliteStore, error) {
	conn, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := RunMigrations(ctx, conn, "sqlite3", "sqlite"); err != nil {
		conn.Close()
		return nil, err
	}
	return &sqliteStore{conn: conn}, nil
}

func (s *sqliteStore) CreateRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO runs (scenario, seed, min_size, level_count, bodies) VALUES (?, ?, ?, ?, ?)`,
		run.Scenario, run.Seed, run.MinSize, run.LevelCount, run.Bodies,
	)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) AppendSamples(ctx context.Context, runID int64, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("samples begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_samples (run_id, tick, bodies, moved, changed, candidates, contacts, mismatches, buckets, tick_nanos)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("samples prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range samples {
		if _, err := stmt.ExecContext(ctx,
			runID, int64(m.Tick), m.Bodies, m.Moved, m.Changed, m.Candidates, m.Contacts, m.Mismatches, m.Buckets, m.TickTime.Nanoseconds(),
		); err != nil {
			return fmt.Errorf("samples insert: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) FinishRun(ctx context.Context, runID int64, ticks uint64) error {
	_, err := s.conn.ExecContext(ctx,
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, ticks = ? WHERE id = ?`,
		int64(ticks), runID,
	)
	return err
}

func (s *sqliteStore) Summary(ctx context.Context, runID int64) (RunSummary, error) {
	sum := RunSummary{ID: runID}
	var ticks int64
	err := s.conn.QueryRowContext(ctx,
		`SELECT r.scenario, r.ticks, r.finished_at IS NOT NULL,
		        (SELECT count(*) FROM run_samples WHERE run_id = r.id)
		 FROM runs r WHERE r.id = ?`,
		runID,
	).Scan(&sum.Scenario, &ticks, &sum.Finished, &sum.Samples)
	if err != nil {
		return sum, fmt.Errorf("run summary: %w", err)
	}
	sum.Ticks = uint64(ticks)
	return sum, nil
}

func (s *sqliteStore) Close() error {
	return s.conn.Close()
}
