package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each tick and records how long
// each phase took on the last tick.
type Runner struct {
	systems []System
	sorted  bool
	last    map[Phase]time.Duration
	ticks   uint64
	now     func() time.Time
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		last:    make(map[Phase]time.Duration, 8),
		now:     time.Now,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	clear(r.last)
	for _, s := range r.systems {
		start := r.now()
		s.Update(dt)
		r.last[s.Phase()] += r.now().Sub(start)
	}
	r.ticks++
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// Ticks returns how many full ticks have run.
func (r *Runner) Ticks() uint64 { return r.ticks }

// PhaseTime returns how long phase took during the last full tick.
func (r *Runner) PhaseTime(phase Phase) time.Duration { return r.last[phase] }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		// stable so systems within a phase keep registration order
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
