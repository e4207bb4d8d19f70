package hashbounds

import (
	"fmt"
	"math"
)

type cell struct {
	x, y int
}

// grid is one resolution level: a sparse map of buckets, each linked to its
// parent in the next coarser grid.
type grid[T comparable] struct {
	level   int
	size    float64
	inv     float64
	buckets map[cell]*bucket[T]

	prev *grid[T] // finer
	next *grid[T] // coarser
}

func newGrid[T comparable](size float64, level int) *grid[T] {
	return &grid[T]{
		level:   level,
		size:    size,
		inv:     1 / size,
		buckets: make(map[cell]*bucket[T]),
	}
}

func (g *grid[T]) span(box *Box) (k1x, k1y, k2x, k2y int) {
	return int(math.Floor(box.MinX * g.inv)),
		int(math.Floor(box.MinY * g.inv)),
		int(math.Floor(box.MaxX * g.inv)),
		int(math.Floor(box.MaxY * g.inv))
}

// initializeArea creates every bucket covering box so later inserts there
// skip allocation. Ancestors come along through createBucket.
func (g *grid[T]) initializeArea(box *Box) {
	k1x, k1y, k2x, k2y := g.span(box)
	for x := k1x; x <= k2x; x++ {
		for y := k1y; y <= k2y; y++ {
			if g.buckets[cell{x, y}] == nil {
				g.createBucket(x, y)
			}
		}
	}
}

func (g *grid[T]) createBucket(x, y int) *bucket[T] {
	b := newBucket[T](x, y, g.size)
	g.buckets[cell{x, y}] = b

	if g.next != nil {
		// arithmetic shift floors negative coordinates too
		pc := cell{x >> 1, y >> 1}
		parent := g.next.buckets[pc]
		if parent == nil {
			parent = g.next.createBucket(pc.x, pc.y)
		}
		b.parent = parent
		parent.setChild(childSlot(x, y), b)
	}
	return b
}

func (g *grid[T]) insert(r *record[T], box *Box) {
	k1x, k1y, k2x, k2y := g.span(box)
	g.insertSpan(r, k1x, k1y, k2x, k2y)
}

func (g *grid[T]) insertSpan(r *record[T], k1x, k1y, k2x, k2y int) {
	r.k1x, r.k1y, r.k2x, r.k2y = k1x, k1y, k2x, k2y
	n := (k2x - k1x + 1) * (k2y - k1y + 1)
	if cap(r.slots) < n {
		r.slots = make([]int, n)
	} else {
		r.slots = r.slots[:n]
	}

	slot := 0
	for x := k1x; x <= k2x; x++ {
		for y := k1y; y <= k2y; y++ {
			b := g.buckets[cell{x, y}]
			if b == nil {
				b = g.createBucket(x, y)
			}
			b.add(r, slot)
			slot++
		}
	}
}

func (g *grid[T]) remove(r *record[T]) {
	slot := 0
	for x := r.k1x; x <= r.k2x; x++ {
		for y := r.k1y; y <= r.k2y; y++ {
			g.buckets[cell{x, y}].remove(r, slot)
			slot++
		}
	}
}

// update moves r to the span of box. Moves inside the current span are free.
func (g *grid[T]) update(r *record[T], box *Box) bool {
	k1x, k1y, k2x, k2y := g.span(box)
	if r.sameSpan(k1x, k1y, k2x, k2y) {
		return false
	}
	g.remove(r)
	g.insertSpan(r, k1x, k1y, k2x, k2y)
	return true
}

// prune drops every empty bucket of this grid and of all coarser grids,
// returning how many buckets were released.
func (g *grid[T]) prune() int {
	n := 0
	for _, b := range g.buckets {
		if b.count == 0 {
			n += g.pruneBucket(b)
		}
	}
	if g.next != nil {
		n += g.next.prune()
	}
	return n
}

func (g *grid[T]) pruneBucket(b *bucket[T]) int {
	if b.count != 0 {
		panic(fmt.Sprintf("hashbounds: prune of non-empty bucket (%d,%d) at level %d", b.bx, b.by, g.level))
	}
	n := 1
	for slot, c := range b.children {
		if c != nil {
			c.parent = nil
			b.children[slot] = nil
		}
	}
	if p := b.parent; p != nil {
		b.parent = nil
		p.setChild(childSlot(b.bx, b.by), nil)
		if p.count == 0 {
			n += g.next.pruneBucket(p)
		}
	}
	delete(g.buckets, cell{b.bx, b.by})
	return n
}

func (g *grid[T]) query(box *Box, visit func(T) bool, gen uint32) bool {
	if box == nil {
		for _, b := range g.buckets {
			if !b.queryAll(visit, gen) {
				return false
			}
		}
		return true
	}

	k1x, k1y, k2x, k2y := g.span(box)
	// A query much larger than the populated area walks the map instead.
	if area := float64(k2x-k1x+1) * float64(k2y-k1y+1); area > float64(len(g.buckets)) {
		for c, b := range g.buckets {
			if c.x < k1x || c.x > k2x || c.y < k1y || c.y > k2y {
				continue
			}
			if !b.query(box, visit, gen) {
				return false
			}
		}
		return true
	}

	for x := k1x; x <= k2x; x++ {
		for y := k1y; y <= k2y; y++ {
			if b := g.buckets[cell{x, y}]; b != nil {
				if !b.query(box, visit, gen) {
					return false
				}
			}
		}
	}
	return true
}
