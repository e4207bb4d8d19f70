package ecs

// ComponentStore keeps components densely packed so iteration order is
// stable between runs with the same seed. Removal swaps the last element
// into the hole.
type ComponentStore[T any] struct {
	ids    []EntityID
	vals   []*T
	sparse map[EntityID]int
}

func NewComponentStore[T any]() *ComponentStore[T] {
	return &ComponentStore[T]{
		ids:    make([]EntityID, 0, 256),
		vals:   make([]*T, 0, 256),
		sparse: make(map[EntityID]int, 256),
	}
}

func (s *ComponentStore[T]) Set(id EntityID, c *T) {
	if i, ok := s.sparse[id]; ok {
		s.vals[i] = c
		return
	}
	s.sparse[id] = len(s.ids)
	s.ids = append(s.ids, id)
	s.vals = append(s.vals, c)
}

func (s *ComponentStore[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.sparse[id]
	if !ok {
		return nil, false
	}
	return s.vals[i], true
}

func (s *ComponentStore[T]) Remove(id EntityID) bool {
	i, ok := s.sparse[id]
	if !ok {
		return false
	}
	last := len(s.ids) - 1
	if i != last {
		s.ids[i] = s.ids[last]
		s.vals[i] = s.vals[last]
		s.sparse[s.ids[i]] = i
	}
	s.vals[last] = nil
	s.ids = s.ids[:last]
	s.vals = s.vals[:last]
	delete(s.sparse, id)
	return true
}

func (s *ComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.sparse[id]
	return ok
}

func (s *ComponentStore[T]) Len() int {
	return len(s.ids)
}

// Each visits components in dense order. fn must not add or remove components.
func (s *ComponentStore[T]) Each(fn func(EntityID, *T)) {
	for i, id := range s.ids {
		fn(id, s.vals[i])
	}
}
