package system

import (
	"time"

	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

// IndexSyncSystem pushes queued moves into the spatial index. Phase 2 (Index).
type IndexSyncSystem struct {
	world *world.State
	stats *TickStats
	log   *zap.Logger
}

func NewIndexSyncSystem(ws *world.State, stats *TickStats, log *zap.Logger) *IndexSyncSystem {
	return &IndexSyncSystem{world: ws, stats: stats, log: log}
}

func (s *IndexSyncSystem) Phase() coresys.Phase { return coresys.PhaseIndex }

func (s *IndexSyncSystem) Update(_ time.Duration) {
	moved, changed, err := s.world.ApplyMoves()
	if err != nil {
		s.log.Warn("index sync", zap.Uint64("tick", s.stats.Tick), zap.Error(err))
	}
	s.stats.Moved += moved
	s.stats.Changed += changed
}
