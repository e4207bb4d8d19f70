package system

import (
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/scripting"
	"github.com/l1jgo/hashbounds/internal/world"
)

// ScriptSystem lets the Lua steer hook set every moving body's velocity.
// Phase 0 (Input), after InputSystem.
type ScriptSystem struct {
	world  *world.State
	engine *scripting.Engine
	stats  *TickStats
}

func NewScriptSystem(ws *world.State, engine *scripting.Engine, stats *TickStats) *ScriptSystem {
	return &ScriptSystem{world: ws, engine: engine, stats: stats}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *ScriptSystem) Update(_ time.Duration) {
	if s.engine == nil || !s.engine.HasSteer() {
		return
	}
	ecs.Each2(s.world.Bodies, s.world.Motions, func(id ecs.EntityID, b *world.Body, m *world.Motion) {
		vx, vy, ok := s.engine.Steer(bodyContext(id, b, m, s.stats.Tick))
		if ok {
			m.VX, m.VY = vx, vy
		}
	})
}

func bodyContext(id ecs.EntityID, b *world.Body, m *world.Motion, tick uint64) scripting.BodyContext {
	ctx := scripting.BodyContext{
		ID:     uint64(id),
		Kind:   b.Kind,
		X:      b.Box.MinX,
		Y:      b.Box.MinY,
		Width:  b.Box.Width,
		Height: b.Box.Height,
		Tick:   tick,
	}
	if m != nil {
		ctx.VX, ctx.VY = m.VX, m.VY
	}
	return ctx
}
