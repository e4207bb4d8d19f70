package hashbounds

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxConvertMinMax(t *testing.T) {
	b := MinMax(-10, -10, 10, 10)
	assert.Equal(t, FormatMinMax, b.Format)
	assert.Equal(t, b.MinX, b.X)
	assert.Equal(t, b.MinY, b.Y)
	assert.Equal(t, b.MaxX-b.MinX, b.Width)
	assert.Equal(t, b.MaxY-b.MinY, b.Height)
}

func TestBoxConvertPosSize(t *testing.T) {
	b := PosSize(-10, -10, 20, 20)
	assert.Equal(t, FormatPosSize, b.Format)
	assert.Equal(t, b.X, b.MinX)
	assert.Equal(t, b.Y, b.MinY)
	assert.Equal(t, b.X+b.Width, b.MaxX)
	assert.Equal(t, b.Y+b.Height, b.MaxY)
}

func TestBoxRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		box  Box
	}{
		{"pos-size", PosSize(3.5, -7.25, 12, 0.5)},
		{"min-max", MinMax(-100, -50, 25.5, 75)},
		{"point", PosSize(4, 4, 0, 0)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := tc.box
			require.NoError(t, b.Normalize())
			require.NoError(t, b.Normalize())
			assert.Equal(t, tc.box, b)

			// rebuild from the other representation
			var other Box
			if b.Format == FormatPosSize {
				other = MinMax(b.MinX, b.MinY, b.MaxX, b.MaxY)
			} else {
				other = PosSize(b.X, b.Y, b.Width, b.Height)
			}
			assert.Equal(t, b.MinX, other.MinX)
			assert.Equal(t, b.MinY, other.MinY)
			assert.Equal(t, b.MaxX, other.MaxX)
			assert.Equal(t, b.MaxY, other.MaxY)
		})
	}
}

func TestBoxInvalidFormat(t *testing.T) {
	var unset Box
	assert.ErrorIs(t, unset.Normalize(), ErrInvalidBoxFormat)

	bad := Box{Format: Format(100)}
	assert.ErrorIs(t, bad.Normalize(), ErrInvalidBoxFormat)
	assert.ErrorIs(t, bad.Truncate(0, 0, 1, 1), ErrInvalidBoxFormat)
}

func TestBoxDegenerate(t *testing.T) {
	neg := PosSize(0, 0, -1, 4)
	assert.ErrorIs(t, neg.Normalize(), ErrDegenerateBox)

	nan := MinMax(0, math.NaN(), 1, 1)
	assert.ErrorIs(t, nan.Normalize(), ErrDegenerateBox)

	inf := PosSize(math.Inf(-1), 0, 1, 1)
	assert.ErrorIs(t, inf.Normalize(), ErrDegenerateBox)
}

func TestBoxTruncate(t *testing.T) {
	const max = 10 * 16
	const min = -10 * 16
	area := MinMax(min, min, max, max)

	boxes := []Box{
		PosSize(max-5, max-5, 10, 10),
		MinMax(max-5, max-5, max+5, max+5),
		PosSize(min-5, min-5, 10, 10),
		MinMax(min-5, min-5, min+5, min+5),
	}
	for i := range boxes {
		assert.False(t, Contains(boxes[i], area), "box %d", i)
		require.NoError(t, boxes[i].Truncate(area.MinX, area.MinY, area.MaxX, area.MaxY))
		require.NoError(t, boxes[i].Normalize())
		assert.True(t, Contains(boxes[i], area), "box %d after truncate", i)
	}
}

func TestOverlaps(t *testing.T) {
	a := MinMax(0, 0, 10, 10)
	assert.True(t, Overlaps(a, MinMax(5, 5, 15, 15)))
	assert.True(t, Overlaps(a, MinMax(10, 10, 20, 20)), "touching corners overlap")
	assert.True(t, Overlaps(a, MinMax(2, 2, 3, 3)))
	assert.False(t, Overlaps(a, MinMax(10.5, 0, 20, 10)))
	assert.False(t, Overlaps(a, MinMax(0, -5, 10, -0.1)))
}
