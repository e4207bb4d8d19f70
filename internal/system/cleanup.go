package system

import (
	"time"

	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

// CleanupSystem flushes the deferred destruction queue at tick end and
// prunes empty index buckets every interval ticks. Phase 6 (Cleanup).
type CleanupSystem struct {
	world    *world.State
	stats    *TickStats
	log      *zap.Logger
	interval int
	ticks    int
	onPrune  func(int)
}

func NewCleanupSystem(ws *world.State, pruneInterval int, stats *TickStats, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: ws, stats: stats, log: log, interval: pruneInterval}
}

// OnPrune registers fn to receive the bucket count of every prune.
func (s *CleanupSystem) OnPrune(fn func(int)) { s.onPrune = fn }

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.stats.Despawned += s.world.Flush()

	if s.interval <= 0 {
		return
	}
	s.ticks++
	if s.ticks < s.interval {
		return
	}
	s.ticks = 0
	n := s.world.Index.Prune()
	s.stats.Pruned += n
	if n > 0 {
		s.log.Debug("pruned empty buckets", zap.Uint64("tick", s.stats.Tick), zap.Int("buckets", n))
	}
	if s.onPrune != nil {
		s.onPrune(n)
	}
}
