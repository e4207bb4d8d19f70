package hashbounds

import (
	"fmt"
	"math"
)

// Format records which representation of a Box is canonical.
type Format uint8

const (
	FormatUnset   Format = iota // neither field set has been filled in
	FormatPosSize               // X, Y, Width, Height
	FormatMinMax                // MinX, MinY, MaxX, MaxY
)

func (f Format) String() string {
	switch f {
	case FormatUnset:
		return "unset"
	case FormatPosSize:
		return "pos-size"
	case FormatMinMax:
		return "min-max"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// Box is an axis-aligned rectangle carried in both origin/size and min/max
// form. Format says which half is authoritative; Normalize derives the other.
type Box struct {
	X, Y, Width, Height    float64
	MinX, MinY, MaxX, MaxY float64
	Format                 Format
}

// PosSize builds a box from an origin and a size.
func PosSize(x, y, width, height float64) Box {
	b := Box{X: x, Y: y, Width: width, Height: height, Format: FormatPosSize}
	b.psToMM()
	return b
}

// MinMax builds a box from its two corners.
func MinMax(minX, minY, maxX, maxY float64) Box {
	b := Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY, Format: FormatMinMax}
	b.mmToPS()
	return b
}

func (b *Box) psToMM() {
	b.MinX = b.X
	b.MinY = b.Y
	b.MaxX = b.X + b.Width
	b.MaxY = b.Y + b.Height
}

func (b *Box) mmToPS() {
	b.X = b.MinX
	b.Y = b.MinY
	b.Width = b.MaxX - b.MinX
	b.Height = b.MaxY - b.MinY
}

// Normalize recomputes the derived representation from the canonical one.
// Calling it repeatedly is a no-op.
func (b *Box) Normalize() error {
	switch b.Format {
	case FormatPosSize:
		b.psToMM()
	case FormatMinMax:
		b.mmToPS()
	case FormatUnset:
		return fmt.Errorf("%w: no field set tagged", ErrInvalidBoxFormat)
	default:
		return fmt.Errorf("%w: unknown %s", ErrInvalidBoxFormat, b.Format)
	}
	if !finite(b.MinX) || !finite(b.MinY) || !finite(b.MaxX) || !finite(b.MaxY) {
		return fmt.Errorf("%w: non-finite coordinate", ErrDegenerateBox)
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative extent %gx%g", ErrDegenerateBox, b.Width, b.Height)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Truncate clips the box to the given area, editing whichever
// representation is canonical. Call Normalize afterwards to refresh the other.
func (b *Box) Truncate(minX, minY, maxX, maxY float64) error {
	switch b.Format {
	case FormatPosSize:
		b.X = math.Max(b.X, minX)
		b.Y = math.Max(b.Y, minY)
		if b.X+b.Width > maxX {
			b.Width = maxX - b.X
		}
		if b.Y+b.Height > maxY {
			b.Height = maxY - b.Y
		}
	case FormatMinMax:
		b.MinX = math.Max(b.MinX, minX)
		b.MinY = math.Max(b.MinY, minY)
		b.MaxX = math.Min(b.MaxX, maxX)
		b.MaxY = math.Min(b.MaxY, maxY)
	default:
		return fmt.Errorf("%w: truncate on %s box", ErrInvalidBoxFormat, b.Format)
	}
	return nil
}

// Overlaps reports whether two normalized boxes intersect. Touching edges count.
func Overlaps(a, b Box) bool {
	return !(a.MinX > b.MaxX || a.MinY > b.MaxY || a.MaxX < b.MinX || a.MaxY < b.MinY)
}

// Contains reports whether inner lies entirely within outer.
func Contains(inner, outer Box) bool {
	return inner.MinX >= outer.MinX && inner.MaxX <= outer.MaxX &&
		inner.MinY >= outer.MinY && inner.MaxY <= outer.MaxY
}
