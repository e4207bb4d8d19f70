package hashbounds

// record is the per-index bookkeeping for one entry. It outlives Remove so a
// re-inserted entry keeps its allocation and cached level.
type record[T comparable] struct {
	entry T

	// bucket span at the assigned level, inclusive on both ends
	k1x, k1y, k2x, k2y int
	// slots[i] is the entry's position in the item list of the i-th bucket
	// of the span, row-major with y varying fastest
	slots []int

	level          int
	cacheW, cacheH float64
	cached         bool
	present        bool

	// query generation that last visited this record
	stamp uint32
}

func (r *record[T]) slotKey(bx, by int) int {
	return (bx-r.k1x)*(r.k2y-r.k1y+1) + by - r.k1y
}

func (r *record[T]) sameSpan(k1x, k1y, k2x, k2y int) bool {
	return r.k1x == k1x && r.k1y == k1y && r.k2x == k2x && r.k2y == k2y
}

// Quadrant selectors returned by classify. Values 0..8 index bucket.quads.
const (
	quadEnclosing = -1
	quadAll       = 0
)

// quadGroups lists, per selector, which child slots a query must descend
// into: everything, each single quadrant, then the four adjacent pairs.
// Child slot = (by&1)*2 + (bx&1), so 0 and 1 share the low-y row.
var quadGroups = [9][]int{
	{0, 1, 2, 3},
	{0}, {1}, {2}, {3},
	{0, 1}, {2, 3},
	{0, 2}, {1, 3},
}

func childSlot(bx, by int) int {
	return (by&1)*2 + bx&1
}

// bucket is one square cell of a grid and a node of the quadrant tree that
// links each grid to the next coarser one.
type bucket[T comparable] struct {
	bx, by int
	size   float64

	minX, minY, maxX, maxY float64
	halfX, halfY           float64

	// non-empty nodes in this subtree: 1 for own items plus 1 per non-empty child
	count int
	items []*record[T]

	parent   *bucket[T]
	children [4]*bucket[T]
	quads    [9][]*bucket[T]
}

func newBucket[T comparable](bx, by int, size float64) *bucket[T] {
	minX := float64(bx) * size
	minY := float64(by) * size
	return &bucket[T]{
		bx:    bx,
		by:    by,
		size:  size,
		minX:  minX,
		minY:  minY,
		maxX:  minX + size,
		maxY:  minY + size,
		halfX: minX + size/2,
		halfY: minY + size/2,
	}
}

func (b *bucket[T]) setChild(slot int, child *bucket[T]) {
	b.children[slot] = child
	b.updateQuads()
}

// updateQuads rebuilds the selector lists so traversal never has to test
// for missing children.
func (b *bucket[T]) updateQuads() {
	for i, group := range quadGroups {
		list := b.quads[i][:0]
		for _, slot := range group {
			if c := b.children[slot]; c != nil {
				list = append(list, c)
			}
		}
		b.quads[i] = list
	}
}

func (b *bucket[T]) increment() {
	if b.count == 0 && b.parent != nil {
		b.parent.increment()
	}
	b.count++
}

func (b *bucket[T]) decrement() {
	b.count--
	if b.count == 0 && b.parent != nil {
		b.parent.decrement()
	}
}

func (b *bucket[T]) add(r *record[T], slot int) {
	n := len(b.items)
	r.slots[slot] = n
	b.items = append(b.items, r)
	if n == 0 {
		b.increment()
	}
}

// remove swaps the last item into r's position. Item order is not kept.
func (b *bucket[T]) remove(r *record[T], slot int) {
	i := r.slots[slot]
	last := len(b.items) - 1
	if i != last {
		moved := b.items[last]
		b.items[i] = moved
		moved.slots[moved.slotKey(b.bx, b.by)] = i
	}
	b.items[last] = nil
	b.items = b.items[:last]
	if last == 0 {
		b.decrement()
	}
}

// classify picks which children can hold entries overlapping box.
// Comparisons against the midlines are strict on the low side so boxes that
// only touch a midline still reach the quadrant beyond it.
func (b *bucket[T]) classify(box *Box) int {
	if len(b.quads[quadAll]) <= 1 {
		return quadAll
	}
	if box.MaxY < b.halfY {
		if box.MaxX < b.halfX {
			return 1
		} else if box.MinX >= b.halfX {
			return 2
		}
		return 5
	} else if box.MinY >= b.halfY {
		if box.MaxX < b.halfX {
			return 3
		} else if box.MinX >= b.halfX {
			return 4
		}
		return 6
	}
	if box.MaxX < b.halfX {
		return 7
	} else if box.MinX >= b.halfX {
		return 8
	}
	if box.MinX <= b.minX && box.MaxX >= b.maxX && box.MinY <= b.minY && box.MaxY >= b.maxY {
		return quadEnclosing
	}
	return quadAll
}

// visitItems calls visit for every item not yet seen in this generation.
func (b *bucket[T]) visitItems(visit func(T) bool, gen uint32) bool {
	for _, r := range b.items {
		if r.stamp == gen {
			continue
		}
		r.stamp = gen
		if !visit(r.entry) {
			return false
		}
	}
	return true
}

func (b *bucket[T]) query(box *Box, visit func(T) bool, gen uint32) bool {
	if b.count == 0 {
		return true
	}
	q := b.classify(box)
	if q == quadEnclosing {
		return b.queryAll(visit, gen)
	}
	if !b.visitItems(visit, gen) {
		return false
	}
	for _, c := range b.quads[q] {
		if !c.query(box, visit, gen) {
			return false
		}
	}
	return true
}

func (b *bucket[T]) queryAll(visit func(T) bool, gen uint32) bool {
	if b.count == 0 {
		return true
	}
	if !b.visitItems(visit, gen) {
		return false
	}
	for _, c := range b.quads[quadAll] {
		if !c.queryAll(visit, gen) {
			return false
		}
	}
	return true
}
