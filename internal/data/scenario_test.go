package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenarioDetectsBoxFormat(t *testing.T) {
	path := writeFile(t, "scene.yaml", `
name: mixed
bounds: {min_x: -100, min_y: -100, max_x: 100, max_y: 100}
bodies:
  - kind: rock
    box: {x: 1, y: 2, width: 3, height: 4}
  - kind: ship
    box: {min_x: -10, min_y: -10, max_x: -5, max_y: 0}
    velocity: {x: 2, y: -1}
  - box: {x: 0, y: 0, width: 0, height: 0}
`)
	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "mixed", sc.Name)
	assert.Equal(t, 200.0, sc.Bounds.Width)
	require.Len(t, sc.Bodies, 3)

	assert.Equal(t, hashbounds.FormatPosSize, sc.Bodies[0].Box.Format)
	assert.Equal(t, 4.0, sc.Bodies[0].Box.MaxX)
	assert.Equal(t, 6.0, sc.Bodies[0].Box.MaxY)

	assert.Equal(t, hashbounds.FormatMinMax, sc.Bodies[1].Box.Format)
	assert.Equal(t, 5.0, sc.Bodies[1].Box.Width)
	assert.Equal(t, 2.0, sc.Bodies[1].VX)
	assert.Equal(t, -1.0, sc.Bodies[1].VY)

	assert.Equal(t, "body", sc.Bodies[2].Kind)
}

func TestLoadScenarioRejectsBadBoxes(t *testing.T) {
	for _, tc := range []struct {
		name, body string
		want       error
	}{
		{"partial", `
bounds: {min_x: 0, min_y: 0, max_x: 10, max_y: 10}
bodies:
  - box: {x: 1, y: 2, width: 3}
`, hashbounds.ErrInvalidBoxFormat},
		{"both", `
bounds: {min_x: 0, min_y: 0, max_x: 10, max_y: 10}
bodies:
  - box: {x: 1, y: 2, width: 3, height: 1, min_x: 0, min_y: 0, max_x: 1, max_y: 1}
`, hashbounds.ErrInvalidBoxFormat},
		{"negative", `
bounds: {min_x: 0, min_y: 0, max_x: 10, max_y: 10}
bodies:
  - box: {x: 1, y: 2, width: -3, height: 1}
`, hashbounds.ErrDegenerateBox},
		{"no bounds", `
bodies: []
`, hashbounds.ErrInvalidBoxFormat},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadScenario(writeFile(t, "bad.yaml", tc.body))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestGenerateWriteLoad(t *testing.T) {
	sc, err := GenerateScenario(GenerateOptions{
		Seed:     3,
		Bodies:   200,
		Bounds:   hashbounds.MinMax(-500, -500, 500, 500),
		MinSize:  2,
		MaxSize:  150,
		MaxSpeed: 50,
	})
	require.NoError(t, err)
	require.Len(t, sc.Bodies, 200)
	for i, b := range sc.Bodies {
		assert.GreaterOrEqual(t, b.Box.MinX, sc.Bounds.MinX, "body %d", i)
		assert.GreaterOrEqual(t, b.Box.MinY, sc.Bounds.MinY, "body %d", i)
		assert.InDelta(t, sc.Bounds.MaxX, max(b.Box.MaxX, sc.Bounds.MaxX), 1e-9, "body %d", i)
		assert.InDelta(t, sc.Bounds.MaxY, max(b.Box.MaxY, sc.Bounds.MaxY), 1e-9, "body %d", i)
		assert.LessOrEqual(t, b.VX, 50.0)
		assert.GreaterOrEqual(t, b.VX, -50.0)
	}

	again, err := GenerateScenario(GenerateOptions{
		Seed: 3, Bodies: 200, Bounds: hashbounds.MinMax(-500, -500, 500, 500),
		MinSize: 2, MaxSize: 150, MaxSpeed: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, sc, again, "same seed, same scenario")

	path := filepath.Join(t.TempDir(), "gen.yaml")
	require.NoError(t, WriteScenario(path, sc))
	loaded, err := LoadScenario(path)
	require.NoError(t, err)
	require.Len(t, loaded.Bodies, len(sc.Bodies))
	for i := range sc.Bodies {
		assert.Equal(t, sc.Bodies[i].Box.Format, loaded.Bodies[i].Box.Format)
		assert.InDelta(t, sc.Bodies[i].Box.MinX, loaded.Bodies[i].Box.MinX, 1e-9)
		assert.InDelta(t, sc.Bodies[i].Box.MaxY, loaded.Bodies[i].Box.MaxY, 1e-9)
		assert.Equal(t, sc.Bodies[i].Kind, loaded.Bodies[i].Kind)
	}
}

func TestGenerateRejectsBadRange(t *testing.T) {
	_, err := GenerateScenario(GenerateOptions{Bodies: 1, Bounds: hashbounds.MinMax(0, 0, 1, 1), MinSize: 5, MaxSize: 1})
	assert.ErrorIs(t, err, hashbounds.ErrDegenerateBox)
}
