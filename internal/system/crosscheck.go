package system

import (
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

const maxLoggedMismatches = 5

// CrossCheckSystem compares index neighbourhoods against a plain reference
// grid every interval ticks and logs any disagreement. Phase 3 (Detect).
type CrossCheckSystem struct {
	world    *world.State
	ref      *world.RefGrid
	stats    *TickStats
	log      *zap.Logger
	interval int
	ticks    int

	checks     int
	mismatches int
}

func NewCrossCheckSystem(ws *world.State, cellSize float64, intervalTicks int, stats *TickStats, log *zap.Logger) *CrossCheckSystem {
	return &CrossCheckSystem{
		world:    ws,
		ref:      world.NewRefGrid(cellSize),
		stats:    stats,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *CrossCheckSystem) Phase() coresys.Phase { return coresys.PhaseDetect }

func (s *CrossCheckSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.ticks++
	if s.ticks < s.interval {
		return
	}
	s.ticks = 0
	s.stats.Mismatches += s.Check()
}

// Check syncs the reference grid and compares every body's neighbourhood.
// It returns the number of bodies whose neighbourhoods differ.
func (s *CrossCheckSystem) Check() int {
	ws := s.world
	ws.Bodies.Each(func(id ecs.EntityID, b *world.Body) {
		s.ref.Move(id, b.Box)
	})
	s.ref.Retain(ws.Bodies.Has)

	bad := 0
	got := make(map[ecs.EntityID]struct{})
	ws.Bodies.Each(func(id ecs.EntityID, b *world.Body) {
		clear(got)
		if err := ws.Nearby(b.Box, func(other ecs.EntityID, _ *world.Body) bool {
			got[other] = struct{}{}
			return true
		}); err != nil {
			s.log.Warn("cross-check query", zap.Stringer("entity", id), zap.Error(err))
			return
		}
		want := s.ref.Overlapping(b.Box)
		missing, extra := diff(want, got)
		if missing == 0 && extra == 0 {
			return
		}
		bad++
		if bad <= maxLoggedMismatches {
			s.log.Warn("index disagrees with reference grid",
				zap.Stringer("entity", id),
				zap.Int("missing", missing),
				zap.Int("extra", extra),
			)
		}
	})

	s.checks++
	s.mismatches += bad
	s.log.Debug("cross-check done", zap.Int("bodies", ws.Bodies.Len()), zap.Int("mismatches", bad))
	return bad
}

// Totals returns how many checks ran and how many mismatches they found.
func (s *CrossCheckSystem) Totals() (checks, mismatches int) {
	return s.checks, s.mismatches
}

func diff(want, got map[ecs.EntityID]struct{}) (missing, extra int) {
	for id := range want {
		if _, ok := got[id]; !ok {
			missing++
		}
	}
	for id := range got {
		if _, ok := want[id]; !ok {
			extra++
		}
	}
	return missing, extra
}
