package world

import (
	"math"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
)

// RefGrid is a plain single-resolution grid. It answers the same queries as
// the index with none of its tricks, so the two can be compared.
// Accessed only from the tick goroutine.
type RefGrid struct {
	size  float64
	cells map[cellKey]map[ecs.EntityID]struct{}
	boxes map[ecs.EntityID]hashbounds.Box
}

type cellKey struct {
	cx, cy int
}

func NewRefGrid(cellSize float64) *RefGrid {
	return &RefGrid{
		size:  cellSize,
		cells: make(map[cellKey]map[ecs.EntityID]struct{}),
		boxes: make(map[ecs.EntityID]hashbounds.Box),
	}
}

func (g *RefGrid) toCellCoord(v float64) int {
	return int(math.Floor(v / g.size))
}

func (g *RefGrid) span(b hashbounds.Box) (x1, y1, x2, y2 int) {
	return g.toCellCoord(b.MinX), g.toCellCoord(b.MinY), g.toCellCoord(b.MaxX), g.toCellCoord(b.MaxY)
}

// Add places id into every cell its box touches. Box must be normalized.
func (g *RefGrid) Add(id ecs.EntityID, box hashbounds.Box) {
	g.boxes[id] = box
	x1, y1, x2, y2 := g.span(box)
	for cx := x1; cx <= x2; cx++ {
		for cy := y1; cy <= y2; cy++ {
			k := cellKey{cx, cy}
			cell := g.cells[k]
			if cell == nil {
				cell = make(map[ecs.EntityID]struct{})
				g.cells[k] = cell
			}
			cell[id] = struct{}{}
		}
	}
}

func (g *RefGrid) Remove(id ecs.EntityID) {
	box, ok := g.boxes[id]
	if !ok {
		return
	}
	delete(g.boxes, id)
	x1, y1, x2, y2 := g.span(box)
	for cx := x1; cx <= x2; cx++ {
		for cy := y1; cy <= y2; cy++ {
			k := cellKey{cx, cy}
			if cell := g.cells[k]; cell != nil {
				delete(cell, id)
				if len(cell) == 0 {
					delete(g.cells, k)
				}
			}
		}
	}
}

// Move updates id's cells when its box changes.
func (g *RefGrid) Move(id ecs.EntityID, box hashbounds.Box) {
	old, ok := g.boxes[id]
	if ok {
		ox1, oy1, ox2, oy2 := g.span(old)
		nx1, ny1, nx2, ny2 := g.span(box)
		if ox1 == nx1 && oy1 == ny1 && ox2 == nx2 && oy2 == ny2 {
			g.boxes[id] = box
			return
		}
		g.Remove(id)
	}
	g.Add(id, box)
}

// Overlapping returns the IDs whose boxes overlap box, exactly.
func (g *RefGrid) Overlapping(box hashbounds.Box) map[ecs.EntityID]struct{} {
	out := make(map[ecs.EntityID]struct{})
	x1, y1, x2, y2 := g.span(box)
	for cx := x1; cx <= x2; cx++ {
		for cy := y1; cy <= y2; cy++ {
			for id := range g.cells[cellKey{cx, cy}] {
				if _, seen := out[id]; seen {
					continue
				}
				if hashbounds.Overlaps(g.boxes[id], box) {
					out[id] = struct{}{}
				}
			}
		}
	}
	return out
}

// Retain removes every ID for which keep returns false.
func (g *RefGrid) Retain(keep func(ecs.EntityID) bool) int {
	var drop []ecs.EntityID
	for id := range g.boxes {
		if !keep(id) {
			drop = append(drop, id)
		}
	}
	for _, id := range drop {
		g.Remove(id)
	}
	return len(drop)
}

func (g *RefGrid) Len() int { return len(g.boxes) }
