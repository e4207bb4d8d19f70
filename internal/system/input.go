package system

import (
	"time"

	"github.com/l1jgo/hashbounds/internal/core/event"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
)

// TickStats holds counters for the tick in progress. InputSystem resets it
// at tick start; later phases fill it in and StatsSystem samples it.
type TickStats struct {
	Tick       uint64
	Moved      int
	Changed    int
	Candidates int
	Contacts   int
	Began      int
	Ended      int
	Mismatches int
	Despawned  int
	Pruned     int
}

// InputSystem starts every tick: it advances the tick counter and delivers
// last tick's events. Phase 0 (Input).
type InputSystem struct {
	bus   *event.Bus
	stats *TickStats
}

func NewInputSystem(bus *event.Bus, stats *TickStats) *InputSystem {
	return &InputSystem{bus: bus, stats: stats}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	*s.stats = TickStats{Tick: s.stats.Tick + 1}
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
