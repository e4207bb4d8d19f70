package system

import (
	"cmp"
	"slices"
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	"github.com/l1jgo/hashbounds/internal/core/event"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"github.com/l1jgo/hashbounds/internal/scripting"
	"github.com/l1jgo/hashbounds/internal/world"
	"go.uber.org/zap"
)

// Pair is an unordered contact; A is always the lower ID.
type Pair struct {
	A, B ecs.EntityID
}

func makePair(a, b ecs.EntityID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

func comparePairs(x, y Pair) int {
	if c := cmp.Compare(x.A, y.A); c != 0 {
		return c
	}
	return cmp.Compare(x.B, y.B)
}

// ContactSystem finds overlapping bodies: the index supplies candidates and
// each candidate is tested exactly. It emits ContactBegan and ContactEnded
// when the overlap set changes. Phase 3 (Detect).
type ContactSystem struct {
	world  *world.State
	bus    *event.Bus
	engine *scripting.Engine
	stats  *TickStats
	log    *zap.Logger

	active map[Pair]struct{}
	next   map[Pair]struct{}
	pairs  []Pair // sorted copy of active
}

func NewContactSystem(ws *world.State, bus *event.Bus, engine *scripting.Engine, stats *TickStats, log *zap.Logger) *ContactSystem {
	return &ContactSystem{
		world:  ws,
		bus:    bus,
		engine: engine,
		stats:  stats,
		log:    log,
		active: make(map[Pair]struct{}),
		next:   make(map[Pair]struct{}),
	}
}

func (s *ContactSystem) Phase() coresys.Phase { return coresys.PhaseDetect }

func (s *ContactSystem) Update(_ time.Duration) {
	ws := s.world
	candidates := 0
	ws.Bodies.Each(func(id ecs.EntityID, b *world.Body) {
		box := b.Box
		_, err := ws.Index.Query(&box, func(other ecs.EntityID) bool {
			if other <= id {
				return true
			}
			candidates++
			ob, ok := ws.Bodies.Get(other)
			if ok && hashbounds.Overlaps(box, ob.Box) {
				s.next[Pair{A: id, B: other}] = struct{}{}
			}
			return true
		})
		if err != nil {
			s.log.Warn("contact query", zap.Stringer("entity", id), zap.Error(err))
		}
	})

	var began, ended []Pair
	for p := range s.next {
		if _, ok := s.active[p]; !ok {
			began = append(began, p)
		}
	}
	for p := range s.active {
		if _, ok := s.next[p]; !ok {
			ended = append(ended, p)
		}
	}
	slices.SortFunc(began, comparePairs)
	slices.SortFunc(ended, comparePairs)

	tick := s.stats.Tick
	for _, p := range began {
		event.Emit(s.bus, event.ContactBegan{A: p.A, B: p.B, Tick: tick})
		s.runHook(p)
	}
	for _, p := range ended {
		event.Emit(s.bus, event.ContactEnded{A: p.A, B: p.B, Tick: tick})
	}

	s.active, s.next = s.next, s.active
	clear(s.next)
	s.pairs = s.pairs[:0]
	for p := range s.active {
		s.pairs = append(s.pairs, p)
	}
	slices.SortFunc(s.pairs, comparePairs)

	s.stats.Candidates += candidates
	s.stats.Contacts = len(s.active)
	s.stats.Began += len(began)
	s.stats.Ended += len(ended)
}

func (s *ContactSystem) runHook(p Pair) {
	if s.engine == nil || !s.engine.HasOnContact() {
		return
	}
	a, okA := s.world.Bodies.Get(p.A)
	b, okB := s.world.Bodies.Get(p.B)
	if !okA || !okB {
		return
	}
	ma, _ := s.world.Motions.Get(p.A)
	mb, _ := s.world.Motions.Get(p.B)
	tick := s.stats.Tick
	if !s.engine.OnContact(bodyContext(p.A, a, ma, tick), bodyContext(p.B, b, mb, tick)) {
		return
	}
	if err := s.world.Despawn(p.B); err != nil {
		s.log.Warn("on_contact despawn", zap.Stringer("entity", p.B), zap.Error(err))
	}
}

// Pairs returns the current contacts in ascending order. The slice is
// reused on the next Update.
func (s *ContactSystem) Pairs() []Pair { return s.pairs }

// Touching reports whether a and b were in contact at the last Update.
func (s *ContactSystem) Touching(a, b ecs.EntityID) bool {
	_, ok := s.active[makePair(a, b)]
	return ok
}
