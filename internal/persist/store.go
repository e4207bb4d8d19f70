// Package persist records run statistics in PostgreSQL or SQLite.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/hashbounds/internal/config"
	"go.uber.org/zap"
)

var ErrNoDriver = errors.New("persist: no store driver configured")

// Run describes one simulation run.
type Run struct {
	Scenario   string
	Seed       int64
	MinSize    float64
	LevelCount int
	Bodies     int
}

// Sample is the per-tick measurement of a run.
type Sample struct {
	Tick       uint64
	Bodies     int
	Moved      int
	Changed    int
	Candidates int
	Contacts   int
	Mismatches int
	Buckets    int
	TickTime   time.Duration
}

// RunSummary is a finished or running run as read back from the store.
type RunSummary struct {
	ID       int64
	Scenario string
	Ticks    uint64
	Finished bool
	Samples  int
}

type Store interface {
	CreateRun(ctx context.Context, run Run) (int64, error)
	// AppendSamples writes the batch in one transaction.
	AppendSamples(ctx context.Context, runID int64, samples []Sample) error
	FinishRun(ctx context.Context, runID int64, ticks uint64) error
	Summary(ctx context.Context, runID int64) (RunSummary, error)
	Close() error
}

// Open connects to the configured store and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		db, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		s := &pgStore{db: db}
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("run store ready", zap.String("driver", cfg.Driver))
		return s, nil
	case "sqlite":
		s, err := openSQLite(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info("run store ready", zap.String("driver", cfg.Driver), zap.String("path", cfg.DSN))
		return s, nil
	case "":
		return nil, ErrNoDriver
	}
	return nil, fmt.Errorf("persist: unknown driver %q", cfg.Driver)
}
