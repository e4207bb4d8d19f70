package ecs

// Store is what the Registry needs from a component store.
type Store interface {
	// Remove drops id's component and reports whether there was one.
	Remove(id EntityID) bool
	Len() int
}

// StoreCount is the number of live components in one registered store.
type StoreCount struct {
	Name  string
	Count int
}

// Registry names every component store of a world so destroyed entities
// can be cleared from all of them and occupancy can be reported per store.
type Registry struct {
	names  []string
	stores []Store
}

func NewRegistry() *Registry {
	return &Registry{
		names:  make([]string, 0, 4),
		stores: make([]Store, 0, 4),
	}
}

// Register adds a component store under name. Names are for reporting only
// and are not checked for uniqueness.
func (r *Registry) Register(name string, store Store) {
	r.names = append(r.names, name)
	r.stores = append(r.stores, store)
}

// RemoveAll clears id from every store and returns how many held it.
func (r *Registry) RemoveAll(id EntityID) int {
	n := 0
	for _, s := range r.stores {
		if s.Remove(id) {
			n++
		}
	}
	return n
}

// Len returns the number of registered stores.
func (r *Registry) Len() int { return len(r.stores) }

// Counts lists component counts in registration order.
func (r *Registry) Counts() []StoreCount {
	out := make([]StoreCount, len(r.stores))
	for i, s := range r.stores {
		out[i] = StoreCount{Name: r.names[i], Count: s.Len()}
	}
	return out
}
