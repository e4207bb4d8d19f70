package system

import (
	"math"
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"github.com/l1jgo/hashbounds/internal/world"
)

// MovementSystem integrates velocity and bounces bodies off the world
// bounds. New boxes are queued on the world and applied by IndexSyncSystem.
// Phase 1 (Move).
type MovementSystem struct {
	world *world.State
}

func NewMovementSystem(ws *world.State) *MovementSystem {
	return &MovementSystem{world: ws}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseMove }

func (s *MovementSystem) Update(dt time.Duration) {
	sec := dt.Seconds()
	bounds := s.world.Bounds
	ecs.Each2(s.world.Bodies, s.world.Motions, func(id ecs.EntityID, b *world.Body, m *world.Motion) {
		if m.VX == 0 && m.VY == 0 {
			return
		}
		dx, dy := m.VX*sec, m.VY*sec
		box := b.Box

		dx, m.VX = bounce(box.MinX+dx, box.MaxX+dx, bounds.MinX, bounds.MaxX, dx, m.VX)
		dy, m.VY = bounce(box.MinY+dy, box.MaxY+dy, bounds.MinY, bounds.MaxY, dy, m.VY)
		if dx == 0 && dy == 0 {
			return
		}
		s.world.QueueMove(id, translate(box, dx, dy))
	})
}

// bounce corrects a step along one axis so [lo, hi] stays within
// [wall0, wall1], reflecting the velocity when a wall is hit. Bodies larger
// than the world stay where they are on that axis.
func bounce(lo, hi, wall0, wall1, d, v float64) (float64, float64) {
	switch {
	case hi-lo > wall1-wall0:
		return 0, 0
	case lo < wall0:
		return d + (wall0 - lo), math.Abs(v)
	case hi > wall1:
		return d - (hi - wall1), -math.Abs(v)
	}
	return d, v
}

// translate moves a box without changing which representation is canonical.
func translate(b hashbounds.Box, dx, dy float64) hashbounds.Box {
	if b.Format == hashbounds.FormatMinMax {
		return hashbounds.MinMax(b.MinX+dx, b.MinY+dy, b.MaxX+dx, b.MaxY+dy)
	}
	return hashbounds.PosSize(b.X+dx, b.Y+dy, b.Width, b.Height)
}
