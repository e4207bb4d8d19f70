// Package hashbounds is a multi-resolution spatial index for axis-aligned
// boxes. Entries live in one of several uniform grids chosen by size; the
// grids are stitched into quadrant trees so queries can skip empty or
// irrelevant regions.
//
// An Index is not safe for concurrent use, and queries mutate per-entry
// deduplication stamps, so even concurrent reads must be serialized.
package hashbounds

import (
	"fmt"
	"math"
	"math/bits"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	// maxLevels keeps bucket sizes and extent ratios inside float64 and uint64 range.
	maxLevels = 62
	// maxLevelTable bounds the size of the precomputed level table.
	maxLevelTable = 1<<12 + 1
	// maxCoordCells bounds |coordinate|/minSize so finest-level bucket
	// coordinates stay exact in float64 and their spans fit in an int.
	maxCoordCells = 1 << 52
)

var lastID atomic.Uint64

// Option configures an Index.
type Option func(*options)

type options struct {
	initial *Box
	id      uint64
	hasID   bool
	log     *zap.Logger
}

// WithInitialBounds pre-creates buckets over box. Entries outside it still work.
func WithInitialBounds(box Box) Option {
	return func(o *options) { o.initial = &box }
}

// WithID fixes the index ID instead of drawing one from the process counter.
func WithID(id uint64) Option {
	return func(o *options) { o.id, o.hasID = id, true }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// Index tracks entries of type T, usually a small handle such as an entity ID.
type Index[T comparable] struct {
	id         uint64
	minSize    float64
	minSizeInv float64
	coordLimit float64
	levelCount int

	levels []*grid[T] // 0 = finest
	base   *grid[T]   // coarsest, where queries start

	levelTable []uint8
	levelLimit float64 // extents at or above this many min cells go to the coarsest level

	records    map[T]*record[T]
	live       int
	generation uint32

	initial    Box
	hasInitial bool

	log *zap.Logger
}

// New creates an index whose finest buckets are minSize wide and which has
// levelCount levels, each doubling the bucket size of the previous one.
func New[T comparable](minSize float64, levelCount int, opts ...Option) (*Index[T], error) {
	if levelCount < 1 || levelCount > maxLevels {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLevelCount, levelCount)
	}
	if !(minSize > 0) || math.IsInf(minSize, 0) {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidMinSize, minSize)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}

	ix := &Index[T]{
		minSize:    minSize,
		minSizeInv: 1 / minSize,
		coordLimit: minSize * maxCoordCells,
		levelCount: levelCount,
		log:        o.log,
	}
	if o.hasID {
		ix.id = o.id
	} else {
		ix.id = lastID.Add(1)
	}
	if o.initial != nil {
		ix.initial = *o.initial
		if err := ix.normalize(&ix.initial); err != nil {
			return nil, fmt.Errorf("initial bounds: %w", err)
		}
		ix.hasInitial = true
	}

	ix.setupLevelTable()
	ix.init()
	return ix, nil
}

// setupLevelTable precomputes ceil(log2(i)) for the extents a level can hold.
func (ix *Index[T]) setupLevelTable() {
	ix.levelLimit = 1
	if ix.levelCount >= 2 {
		ix.levelLimit = math.Ldexp(1, ix.levelCount-2) + 1
	}
	n := maxLevelTable
	if ix.levelLimit < float64(n) {
		n = int(ix.levelLimit)
	}
	ix.levelTable = make([]uint8, n)
	for i := 1; i < n; i++ {
		ix.levelTable[i] = uint8(bits.Len(uint(i - 1)))
	}
}

func (ix *Index[T]) init() {
	ix.levels = make([]*grid[T], ix.levelCount)
	for level := range ix.levels {
		ix.levels[level] = newGrid[T](ix.minSize*math.Ldexp(1, level), level)
	}
	for level, g := range ix.levels {
		if level > 0 {
			g.prev = ix.levels[level-1]
		}
		if level < ix.levelCount-1 {
			g.next = ix.levels[level+1]
		}
	}
	ix.base = ix.levels[ix.levelCount-1]
	ix.records = make(map[T]*record[T])
	ix.live = 0
	ix.generation = 0

	if ix.hasInitial {
		ix.levels[0].initializeArea(&ix.initial)
	}
}

// ID identifies this index instance.
func (ix *Index[T]) ID() uint64 { return ix.id }

// Len returns the number of entries currently present.
func (ix *Index[T]) Len() int { return ix.live }

// LevelCount returns the number of grids.
func (ix *Index[T]) LevelCount() int { return ix.levelCount }

// BucketSize returns the bucket edge length at level.
func (ix *Index[T]) BucketSize(level int) float64 { return ix.levels[level].size }

// Clear drops every entry and bucket and takes a fresh ID, then pre-creates
// the initial area again.
func (ix *Index[T]) Clear() {
	old := ix.id
	ix.id = lastID.Add(1)
	ix.init()
	ix.log.Debug("index cleared", zap.Uint64("old_id", old), zap.Uint64("id", ix.id))
}

// Prune releases empty buckets. Insert and Remove never do this on their own.
func (ix *Index[T]) Prune() int {
	n := ix.levels[0].prune()
	if n > 0 {
		ix.log.Debug("index pruned", zap.Uint64("id", ix.id), zap.Int("buckets", n))
	}
	return n
}

// normalize is Box.Normalize plus a range check: coordinates whose finest
// bucket index would not fit in an int are rejected as degenerate.
func (ix *Index[T]) normalize(box *Box) error {
	if err := box.Normalize(); err != nil {
		return err
	}
	if box.MinX < -ix.coordLimit || box.MinY < -ix.coordLimit ||
		box.MaxX > ix.coordLimit || box.MaxY > ix.coordLimit {
		return fmt.Errorf("%w: coordinate magnitude above %g", ErrDegenerateBox, ix.coordLimit)
	}
	return nil
}

// levelFor returns the level for box, reusing r's cached level when the
// size has not changed.
func (ix *Index[T]) levelFor(box *Box, r *record[T]) int {
	if r.cached && r.cacheW == box.Width && r.cacheH == box.Height {
		return r.level
	}
	r.level = ix.levelOf(math.Max(box.Width, box.Height))
	r.cacheW, r.cacheH, r.cached = box.Width, box.Height, true
	return r.level
}

// levelOf is the smallest level whose bucket edge is at least extent.
func (ix *Index[T]) levelOf(extent float64) int {
	f := math.Ceil(extent * ix.minSizeInv)
	switch {
	case !(f > 0):
		return 0
	case f >= ix.levelLimit:
		return ix.levelCount - 1
	case f < float64(len(ix.levelTable)):
		return int(ix.levelTable[int(f)])
	}
	return bits.Len64(uint64(f) - 1)
}

// Insert adds entry with the given bounds.
func (ix *Index[T]) Insert(entry T, box Box) error {
	r := ix.records[entry]
	if r != nil && r.present {
		return ErrAlreadyPresent
	}
	if err := ix.normalize(&box); err != nil {
		return err
	}
	if r == nil {
		r = &record[T]{entry: entry}
		ix.records[entry] = r
	}
	r.present = true
	ix.live++
	ix.levels[ix.levelFor(&box, r)].insert(r, &box)
	return nil
}

// Remove takes entry out of the index. Its buckets stay allocated until Prune
// and its record stays behind for a later Insert to reuse; Clear drops both.
func (ix *Index[T]) Remove(entry T) error {
	r := ix.records[entry]
	if r == nil || !r.present {
		return ErrNotPresent
	}
	ix.levels[r.level].remove(r)
	r.present = false
	ix.live--
	return nil
}

// Update moves entry to new bounds and reports whether its buckets changed.
func (ix *Index[T]) Update(entry T, box Box) (bool, error) {
	r := ix.records[entry]
	if r == nil || !r.present {
		return false, ErrNotPresent
	}
	if err := ix.normalize(&box); err != nil {
		return false, err
	}

	prev := r.level
	level := ix.levelFor(&box, r)
	if prev != level {
		ix.levels[prev].remove(r)
		ix.levels[level].insert(r, &box)
		return true, nil
	}
	return ix.levels[level].update(r, &box), nil
}

// Contains reports whether entry is currently present.
func (ix *Index[T]) Contains(entry T) bool {
	r := ix.records[entry]
	return r != nil && r.present
}

// LevelOf returns the level entry is stored at.
func (ix *Index[T]) LevelOf(entry T) (int, bool) {
	r := ix.records[entry]
	if r == nil || !r.present {
		return 0, false
	}
	return r.level, true
}

// Query calls visit once for every entry that may overlap box, or for every
// entry when box is nil. Results can include entries that do not overlap,
// so callers needing exact answers must test with Overlaps. Iteration stops
// when visit returns false, in which case Query returns false.
//
// visit must not modify the index.
func (ix *Index[T]) Query(box *Box, visit func(T) bool) (bool, error) {
	var q *Box
	if box != nil {
		b := *box
		if err := ix.normalize(&b); err != nil {
			return false, err
		}
		q = &b
	}
	return ix.base.query(q, visit, ix.nextGeneration()), nil
}

// ForEach is Query without early termination.
func (ix *Index[T]) ForEach(box *Box, fn func(T)) error {
	_, err := ix.Query(box, func(e T) bool {
		fn(e)
		return true
	})
	return err
}

// Collect returns the distinct entries Query would visit.
func (ix *Index[T]) Collect(box *Box) ([]T, error) {
	var out []T
	_, err := ix.Query(box, func(e T) bool {
		out = append(out, e)
		return true
	})
	return out, err
}

// nextGeneration hands out the stamp for a new query. Before the counter
// can overflow every stamp is cleared and counting restarts at 1, so a
// stale stamp can never equal a live generation.
func (ix *Index[T]) nextGeneration() uint32 {
	if ix.generation >= math.MaxUint32-1 {
		for _, r := range ix.records {
			r.stamp = 0
		}
		ix.generation = 0
		ix.log.Debug("query generation wrapped", zap.Uint64("id", ix.id), zap.Int("records", len(ix.records)))
	}
	ix.generation++
	return ix.generation
}

// BoundsFitWithinHash reports whether box lies inside the pre-created area.
// It is false when no initial bounds were given.
func (ix *Index[T]) BoundsFitWithinHash(box Box) (bool, error) {
	if err := ix.normalize(&box); err != nil {
		return false, err
	}
	return ix.hasInitial && Contains(box, ix.initial), nil
}

// Stats is a snapshot of bucket usage.
type Stats struct {
	Entries      int
	Buckets      []int // resident buckets per level
	EmptyBuckets []int
}

func (ix *Index[T]) Stats() Stats {
	s := Stats{
		Entries:      ix.live,
		Buckets:      make([]int, ix.levelCount),
		EmptyBuckets: make([]int, ix.levelCount),
	}
	for level, g := range ix.levels {
		s.Buckets[level] = len(g.buckets)
		for _, b := range g.buckets {
			if b.count == 0 {
				s.EmptyBuckets[level]++
			}
		}
	}
	return s
}
