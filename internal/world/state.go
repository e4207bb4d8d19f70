package world

import (
	"errors"
	"fmt"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	"github.com/l1jgo/hashbounds/internal/core/event"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"go.uber.org/zap"
)

// ErrUnknownBody is returned for IDs that do not name a live body.
var ErrUnknownBody = errors.New("world: unknown body")

// Body is the spatial component of an entity.
type Body struct {
	Box  hashbounds.Box
	Kind string
}

// Motion is velocity in world units per second.
type Motion struct {
	VX, VY float64
}

// State holds all bodies of a run. Accessed only from the tick goroutine.
type State struct {
	ecs     *ecs.World
	Bodies  *ecs.ComponentStore[Body]
	Motions *ecs.ComponentStore[Motion]
	Index   *hashbounds.Index[ecs.EntityID]
	Bounds  hashbounds.Box

	pending []pendingMove

	bus *event.Bus
	log *zap.Logger
}

type pendingMove struct {
	id  ecs.EntityID
	box hashbounds.Box
}

// NewState builds an empty world whose index pre-creates buckets over bounds.
func NewState(minSize float64, levelCount int, bounds hashbounds.Box, bus *event.Bus, log *zap.Logger) (*State, error) {
	if err := bounds.Normalize(); err != nil {
		return nil, fmt.Errorf("world bounds: %w", err)
	}
	idx, err := hashbounds.New[ecs.EntityID](minSize, levelCount,
		hashbounds.WithInitialBounds(bounds),
		hashbounds.WithLogger(log.Named("index")),
	)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	w := ecs.NewWorld()
	s := &State{
		ecs:     w,
		Bodies:  ecs.NewComponentStore[Body](),
		Motions: ecs.NewComponentStore[Motion](),
		Index:   idx,
		Bounds:  bounds,
		bus:     bus,
		log:     log,
	}
	w.Registry().Register("bodies", s.Bodies)
	w.Registry().Register("motions", s.Motions)
	return s, nil
}

func (s *State) ECS() *ecs.World { return s.ecs }

// Components reports how many components each store holds.
func (s *State) Components() []ecs.StoreCount { return s.ecs.Registry().Counts() }

// Len returns the number of live bodies.
func (s *State) Len() int { return s.Bodies.Len() }

// Spawn creates a body and inserts it into the index.
func (s *State) Spawn(kind string, box hashbounds.Box, vx, vy float64) (ecs.EntityID, error) {
	if err := box.Normalize(); err != nil {
		return 0, err
	}
	id := s.ecs.CreateEntity()
	if err := s.Index.Insert(id, box); err != nil {
		s.ecs.Pool().Destroy(id)
		return 0, fmt.Errorf("index %s: %w", id, err)
	}
	s.Bodies.Set(id, &Body{Box: box, Kind: kind})
	if vx != 0 || vy != 0 {
		s.Motions.Set(id, &Motion{VX: vx, VY: vy})
	}
	event.Emit(s.bus, event.BodySpawned{EntityID: id, Kind: kind})
	return id, nil
}

// Despawn queues id for removal at the end of the tick.
func (s *State) Despawn(id ecs.EntityID) error {
	if !s.Bodies.Has(id) {
		return ErrUnknownBody
	}
	s.ecs.MarkForDestruction(id)
	return nil
}

// Flush removes queued bodies from the index and the component stores.
func (s *State) Flush() int {
	return s.ecs.FlushDestroyQueue(func(id ecs.EntityID) {
		if err := s.Index.Remove(id); err != nil {
			s.log.Warn("despawn: body missing from index", zap.Stringer("entity", id), zap.Error(err))
		}
		event.Emit(s.bus, event.BodyDespawned{EntityID: id})
	})
}

// Move stores the new box of id and updates the index. It reports whether
// the body moved to different buckets.
func (s *State) Move(id ecs.EntityID, box hashbounds.Box) (bool, error) {
	b, ok := s.Bodies.Get(id)
	if !ok {
		return false, ErrUnknownBody
	}
	if err := box.Normalize(); err != nil {
		return false, err
	}
	changed, err := s.Index.Update(id, box)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", id, err)
	}
	b.Box = box
	return changed, nil
}

// QueueMove records a new box for id, applied by ApplyMoves.
func (s *State) QueueMove(id ecs.EntityID, box hashbounds.Box) {
	s.pending = append(s.pending, pendingMove{id: id, box: box})
}

// ApplyMoves applies every queued move in order. Moves of bodies that were
// despawned meanwhile are dropped. changed counts moves that switched buckets.
func (s *State) ApplyMoves() (moved, changed int, err error) {
	var errs []error
	for _, m := range s.pending {
		if !s.Bodies.Has(m.id) {
			continue
		}
		c, merr := s.Move(m.id, m.box)
		if merr != nil {
			errs = append(errs, merr)
			continue
		}
		moved++
		if c {
			changed++
		}
	}
	s.pending = s.pending[:0]
	return moved, changed, errors.Join(errs...)
}

// Nearby calls fn for every body whose box overlaps box. The index narrows
// the candidates and each one is checked exactly.
func (s *State) Nearby(box hashbounds.Box, fn func(ecs.EntityID, *Body) bool) error {
	if err := box.Normalize(); err != nil {
		return err
	}
	_, err := s.Index.Query(&box, func(id ecs.EntityID) bool {
		b, ok := s.Bodies.Get(id)
		if !ok || !hashbounds.Overlaps(b.Box, box) {
			return true
		}
		return fn(id, b)
	})
	return err
}
