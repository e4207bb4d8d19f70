package ecs

// Each2 iterates over entities that have both component A and B, walking
// the smaller store in its dense order.
func Each2[A, B any](sa *ComponentStore[A], sb *ComponentStore[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		for i, id := range sa.ids {
			if j, ok := sb.sparse[id]; ok {
				fn(id, sa.vals[i], sb.vals[j])
			}
		}
		return
	}
	for j, id := range sb.ids {
		if i, ok := sa.sparse[id]; ok {
			fn(id, sa.vals[i], sb.vals[j])
		}
	}
}
