package system

import (
	"context"
	"time"

	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/persist"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

// StatsSystem samples TickStats every tick and writes the samples to the
// run store in batches of interval. Phase 5 (Persist).
type StatsSystem struct {
	world    *world.State
	store    persist.Store
	runID    int64
	runner   *coresys.Runner
	stats    *TickStats
	log      *zap.Logger
	interval int
	buf      []persist.Sample
	totals   Totals
}

// Totals summarizes a whole run.
type Totals struct {
	Ticks       uint64
	Moved       int
	Changed     int
	Candidates  int
	MaxContacts int
	Began       int
	Mismatches  int
	Pruned      int
	Flushed     int // samples written to the store
}

// NewStatsSystem creates the system. store may be nil, in which case only
// totals are kept.
func NewStatsSystem(ws *world.State, store persist.Store, runID int64, runner *coresys.Runner, intervalTicks int, stats *TickStats, log *zap.Logger) *StatsSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &StatsSystem{
		world:    ws,
		store:    store,
		runID:    runID,
		runner:   runner,
		stats:    stats,
		log:      log,
		interval: intervalTicks,
		buf:      make([]persist.Sample, 0, intervalTicks),
	}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *StatsSystem) Update(_ time.Duration) {
	st := s.stats
	s.totals.Ticks = st.Tick
	s.totals.Moved += st.Moved
	s.totals.Changed += st.Changed
	s.totals.Candidates += st.Candidates
	s.totals.MaxContacts = max(s.totals.MaxContacts, st.Contacts)
	s.totals.Began += st.Began
	s.totals.Mismatches += st.Mismatches

	if s.store == nil {
		return
	}
	buckets := 0
	for _, n := range s.world.Index.Stats().Buckets {
		buckets += n
	}
	s.buf = append(s.buf, persist.Sample{
		Tick:       st.Tick,
		Bodies:     s.world.Len(),
		Moved:      st.Moved,
		Changed:    st.Changed,
		Candidates: st.Candidates,
		Contacts:   st.Contacts,
		Mismatches: st.Mismatches,
		Buckets:    buckets,
		TickTime:   s.lastTickTime(),
	})
	if len(s.buf) < s.interval {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(ctx)
}

// lastTickTime is the runtime of the previous full tick.
func (s *StatsSystem) lastTickTime() time.Duration {
	if s.runner == nil {
		return 0
	}
	var d time.Duration
	for p := coresys.PhaseInput; p <= coresys.PhaseCleanup; p++ {
		d += s.runner.PhaseTime(p)
	}
	return d
}

// Flush writes buffered samples. Failed batches are dropped so a broken
// store cannot grow memory without bound.
func (s *StatsSystem) Flush(ctx context.Context) {
	if s.store == nil || len(s.buf) == 0 {
		return
	}
	if err := s.store.AppendSamples(ctx, s.runID, s.buf); err != nil {
		s.log.Error("write run samples", zap.Int64("run", s.runID), zap.Int("samples", len(s.buf)), zap.Error(err))
	} else {
		s.totals.Flushed += len(s.buf)
	}
	s.buf = s.buf[:0]
}

// RecordPruned adds pruned buckets to the totals. Pruning runs after this
// system in the tick, so CleanupSystem reports it directly.
func (s *StatsSystem) RecordPruned(n int) { s.totals.Pruned += n }

func (s *StatsSystem) Totals() Totals { return s.totals }
