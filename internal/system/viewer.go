package system

import (
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/viewer"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

// FrameSink receives viewer frames. *viewer.Hub implements it.
type FrameSink interface {
	Broadcast(*viewer.Frame) error
	ClientCount() int
}

// ViewerSystem snapshots the world for connected viewers every interval
// ticks. Phase 4 (Output).
type ViewerSystem struct {
	world    *world.State
	contacts *ContactSystem
	sink     FrameSink
	stats    *TickStats
	log      *zap.Logger
	interval int
	ticks    int
}

func NewViewerSystem(ws *world.State, contacts *ContactSystem, sink FrameSink, intervalTicks int, stats *TickStats, log *zap.Logger) *ViewerSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &ViewerSystem{
		world:    ws,
		contacts: contacts,
		sink:     sink,
		stats:    stats,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *ViewerSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *ViewerSystem) Update(_ time.Duration) {
	s.ticks++
	if s.ticks < s.interval {
		return
	}
	s.ticks = 0
	if s.sink.ClientCount() == 0 {
		return
	}
	if err := s.sink.Broadcast(s.Frame()); err != nil {
		s.log.Warn("viewer frame", zap.Uint64("tick", s.stats.Tick), zap.Error(err))
	}
}

// Frame builds a snapshot of the current tick.
func (s *ViewerSystem) Frame() *viewer.Frame {
	ws := s.world
	f := &viewer.Frame{
		Tick:    s.stats.Tick,
		Bounds:  [4]float64{ws.Bounds.MinX, ws.Bounds.MinY, ws.Bounds.MaxX, ws.Bounds.MaxY},
		Bodies:  make([]viewer.BodyView, 0, ws.Bodies.Len()),
		Buckets: ws.Index.Stats().Buckets,
	}
	ws.Bodies.Each(func(id ecs.EntityID, b *world.Body) {
		level, _ := ws.Index.LevelOf(id)
		f.Bodies = append(f.Bodies, viewer.BodyView{
			ID:    uint64(id),
			Kind:  b.Kind,
			X:     b.Box.MinX,
			Y:     b.Box.MinY,
			W:     b.Box.Width,
			H:     b.Box.Height,
			Level: level,
		})
	})
	if s.contacts != nil {
		for _, p := range s.contacts.Pairs() {
			f.Contacts = append(f.Contacts, [2]uint64{uint64(p.A), uint64(p.B)})
		}
	}
	return f
}
