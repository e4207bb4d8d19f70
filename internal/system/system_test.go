package system

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/hashbounds/internal/core/ecs"
	"github.com/l1jgo/hashbounds/internal/core/event"
	coresys "github.com/l1jgo/hashbounds/internal/core/system"
	"github.com/l1jgo/hashbounds/internal/hashbounds"
	"github.com/l1jgo/hashbounds/internal/persist"
	"github.com/l1jgo/hashbounds/internal/scripting"
	"github.com/l1jgo/hashbounds/internal/viewer"
	"github.com/l1jgo/hashbounds/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type harness struct {
	bus     *event.Bus
	world   *world.State
	stats   *TickStats
	runner  *coresys.Runner
	contact *ContactSystem
}

func newHarness(t *testing.T, engine *scripting.Engine) *harness {
	t.Helper()
	bus := event.NewBus()
	ws, err := world.NewState(8, 6, hashbounds.MinMax(0, 0, 400, 400), bus, zap.NewNop())
	require.NoError(t, err)
	h := &harness{bus: bus, world: ws, stats: &TickStats{}, runner: coresys.NewRunner()}
	h.contact = NewContactSystem(ws, bus, engine, h.stats, zap.NewNop())

	h.runner.Register(NewCleanupSystem(ws, 0, h.stats, zap.NewNop()))
	h.runner.Register(h.contact)
	h.runner.Register(NewIndexSyncSystem(ws, h.stats, zap.NewNop()))
	h.runner.Register(NewMovementSystem(ws))
	h.runner.Register(NewInputSystem(bus, h.stats))
	if engine != nil {
		h.runner.Register(NewScriptSystem(ws, engine, h.stats))
	}
	return h
}

func (h *harness) tick() { h.runner.Tick(100 * time.Millisecond) }

func (h *harness) spawn(t *testing.T, box hashbounds.Box, vx, vy float64) ecs.EntityID {
	t.Helper()
	id, err := h.world.Spawn("body", box, vx, vy)
	require.NoError(t, err)
	return id
}

func TestBounce(t *testing.T) {
	for _, tc := range []struct {
		name         string
		lo, hi, d, v float64
		wantD, wantV float64
	}{
		{"inside", 10, 20, 5, 50, 5, 50},
		{"left wall", -5, 5, -10, -100, -5, 100},
		{"right wall", 95, 105, 10, 100, 5, -100},
		{"too wide", -10, 120, 3, 30, 0, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d, v := bounce(tc.lo, tc.hi, 0, 100, tc.d, tc.v)
			assert.Equal(t, tc.wantD, d)
			assert.Equal(t, tc.wantV, v)
		})
	}
}

func TestTranslateKeepsFormat(t *testing.T) {
	mm := translate(hashbounds.MinMax(0, 0, 2, 2), 1, -1)
	assert.Equal(t, hashbounds.FormatMinMax, mm.Format)
	assert.Equal(t, 3.0, mm.MaxX)
	assert.Equal(t, -1.0, mm.MinY)

	ps := translate(hashbounds.PosSize(0, 0, 2, 2), 1, -1)
	assert.Equal(t, hashbounds.FormatPosSize, ps.Format)
	assert.Equal(t, 1.0, ps.X)
	assert.Equal(t, 2.0, ps.Width)
}

func TestMovementUpdatesIndex(t *testing.T) {
	h := newHarness(t, nil)
	id := h.spawn(t, hashbounds.PosSize(10, 10, 4, 4), 100, 0)
	still := h.spawn(t, hashbounds.PosSize(300, 300, 4, 4), 0, 0)

	h.tick()
	body, _ := h.world.Bodies.Get(id)
	assert.InDelta(t, 20.0, body.Box.MinX, 1e-9)
	assert.Equal(t, 1, h.stats.Moved)

	found := false
	require.NoError(t, h.world.Nearby(hashbounds.PosSize(19, 11, 1, 1), func(got ecs.EntityID, _ *world.Body) bool {
		found = got == id
		return true
	}))
	assert.True(t, found)

	sb, _ := h.world.Bodies.Get(still)
	assert.Equal(t, 300.0, sb.Box.MinX)
}

func TestMovementBouncesOffBounds(t *testing.T) {
	h := newHarness(t, nil)
	id := h.spawn(t, hashbounds.MinMax(390, 10, 398, 18), 50, 0)
	h.tick()

	body, _ := h.world.Bodies.Get(id)
	m, _ := h.world.Motions.Get(id)
	assert.Equal(t, 400.0, body.Box.MaxX)
	assert.Equal(t, -50.0, m.VX)
	assert.True(t, hashbounds.Contains(body.Box, h.world.Bounds))

	h.tick()
	body, _ = h.world.Bodies.Get(id)
	assert.InDelta(t, 395.0, body.Box.MaxX, 1e-9)
}

func TestContactEvents(t *testing.T) {
	h := newHarness(t, nil)
	var began []event.ContactBegan
	var ended []event.ContactEnded
	event.Subscribe(h.bus, func(ev event.ContactBegan) { began = append(began, ev) })
	event.Subscribe(h.bus, func(ev event.ContactEnded) { ended = append(ended, ev) })

	a := h.spawn(t, hashbounds.PosSize(100, 100, 10, 10), 0, 0)
	b := h.spawn(t, hashbounds.PosSize(105, 105, 10, 10), 0, 0)
	c := h.spawn(t, hashbounds.PosSize(110, 110, 10, 10), 0, 0) // touches a's corner
	far := h.spawn(t, hashbounds.PosSize(300, 300, 10, 10), 0, 0)

	h.tick()
	assert.Equal(t, 3, h.stats.Contacts)
	assert.True(t, h.contact.Touching(a, b))
	assert.True(t, h.contact.Touching(c, a))
	assert.False(t, h.contact.Touching(a, far))
	assert.Equal(t, []Pair{makePair(a, b), makePair(a, c), makePair(b, c)}, h.contact.Pairs())
	assert.Empty(t, began, "events arrive next tick")

	_, err := h.world.Move(c, hashbounds.PosSize(200, 200, 10, 10))
	require.NoError(t, err)
	h.tick()
	require.Len(t, began, 3)
	assert.Equal(t, a, began[0].A)
	assert.Equal(t, uint64(1), began[0].Tick)
	assert.Equal(t, 2, h.stats.Ended)

	h.tick()
	require.Len(t, ended, 2)
	for _, ev := range ended {
		assert.True(t, ev.A == c || ev.B == c)
	}
}

func TestContactMatchesBruteForce(t *testing.T) {
	h := newHarness(t, nil)
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 300; i++ {
		w, ht := 1+rng.Float64()*40, 1+rng.Float64()*40
		h.spawn(t, hashbounds.PosSize(rng.Float64()*(400-w), rng.Float64()*(400-ht), w, ht),
			rng.Float64()*200-100, rng.Float64()*200-100)
	}
	for i := 0; i < 10; i++ {
		h.tick()
	}

	want := 0
	type entry struct {
		id  ecs.EntityID
		box hashbounds.Box
	}
	var all []entry
	h.world.Bodies.Each(func(id ecs.EntityID, b *world.Body) { all = append(all, entry{id, b.Box}) })
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if hashbounds.Overlaps(all[i].box, all[j].box) {
				want++
				assert.True(t, h.contact.Touching(all[i].id, all[j].id))
			}
		}
	}
	assert.Equal(t, want, h.stats.Contacts)
	assert.Len(t, h.contact.Pairs(), want)
}

func TestCrossCheckFindsNoMismatches(t *testing.T) {
	h := newHarness(t, nil)
	stats := h.stats
	cc := NewCrossCheckSystem(h.world, 32, 3, stats, zap.NewNop())
	h.runner.Register(cc)

	rng := rand.New(rand.NewSource(5))
	ids := make([]ecs.EntityID, 0, 200)
	for i := 0; i < 200; i++ {
		ids = append(ids, h.spawn(t, hashbounds.PosSize(rng.Float64()*380, rng.Float64()*380, rng.Float64()*20, rng.Float64()*20),
			rng.Float64()*300-150, rng.Float64()*300-150))
	}
	for i := 0; i < 9; i++ {
		if i == 4 {
			for _, id := range ids[:20] {
				require.NoError(t, h.world.Despawn(id))
			}
		}
		h.tick()
	}
	checks, mismatches := cc.Totals()
	assert.Equal(t, 3, checks)
	assert.Zero(t, mismatches)
	assert.Zero(t, cc.Check())
}

func TestCleanupPrunes(t *testing.T) {
	bus := event.NewBus()
	ws, err := world.NewState(8, 4, hashbounds.MinMax(0, 0, 64, 64), bus, zap.NewNop())
	require.NoError(t, err)
	stats := &TickStats{}
	cs := NewCleanupSystem(ws, 2, stats, zap.NewNop())
	var pruned []int
	cs.OnPrune(func(n int) { pruned = append(pruned, n) })

	id, err := ws.Spawn("rock", hashbounds.PosSize(500, 500, 4, 4), 0, 0)
	require.NoError(t, err)
	require.NoError(t, ws.Despawn(id))

	cs.Update(0)
	assert.Equal(t, 1, stats.Despawned)
	assert.Empty(t, pruned)

	cs.Update(0)
	require.Len(t, pruned, 1)
	assert.Positive(t, pruned[0])
	assert.Zero(t, ws.Index.Len())
}

type fakeStore struct {
	batches [][]persist.Sample
	fail    bool
}

func (f *fakeStore) CreateRun(context.Context, persist.Run) (int64, error) { return 1, nil }
func (f *fakeStore) AppendSamples(_ context.Context, _ int64, s []persist.Sample) error {
	if f.fail {
		return assert.AnError
	}
	f.batches = append(f.batches, append([]persist.Sample(nil), s...))
	return nil
}
func (f *fakeStore) FinishRun(context.Context, int64, uint64) error { return nil }
func (f *fakeStore) Summary(context.Context, int64) (persist.RunSummary, error) {
	return persist.RunSummary{}, nil
}
func (f *fakeStore) Close() error { return nil }

func TestStatsSystemBatches(t *testing.T) {
	h := newHarness(t, nil)
	store := &fakeStore{}
	ss := NewStatsSystem(h.world, store, 1, h.runner, 4, h.stats, zap.NewNop())
	h.runner.Register(ss)
	h.spawn(t, hashbounds.PosSize(10, 10, 4, 4), 10, 10)

	for i := 0; i < 10; i++ {
		h.tick()
	}
	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 4)
	assert.Equal(t, uint64(1), store.batches[0][0].Tick)
	assert.Equal(t, 1, store.batches[0][0].Bodies)
	assert.Equal(t, 1, store.batches[0][0].Moved)

	ss.Flush(context.Background())
	require.Len(t, store.batches, 3)
	assert.Len(t, store.batches[2], 2)

	tot := ss.Totals()
	assert.Equal(t, uint64(10), tot.Ticks)
	assert.Equal(t, 10, tot.Moved)
	assert.Equal(t, 10, tot.Flushed)
}

func TestStatsSystemDropsFailedBatch(t *testing.T) {
	h := newHarness(t, nil)
	store := &fakeStore{fail: true}
	ss := NewStatsSystem(h.world, store, 1, nil, 2, h.stats, zap.NewNop())
	h.runner.Register(ss)
	h.tick()
	h.tick()
	assert.Empty(t, ss.buf)
	assert.Zero(t, ss.Totals().Flushed)
}

type fakeSink struct {
	clients int
	frames  []*viewer.Frame
}

func (f *fakeSink) Broadcast(fr *viewer.Frame) error {
	f.frames = append(f.frames, fr)
	return nil
}
func (f *fakeSink) ClientCount() int { return f.clients }

func TestViewerSystem(t *testing.T) {
	h := newHarness(t, nil)
	sink := &fakeSink{}
	h.runner.Register(NewViewerSystem(h.world, h.contact, sink, 2, h.stats, zap.NewNop()))
	a := h.spawn(t, hashbounds.PosSize(10, 10, 4, 4), 0, 0)
	h.spawn(t, hashbounds.PosSize(12, 12, 40, 40), 0, 0)

	h.tick()
	h.tick()
	assert.Empty(t, sink.frames, "no clients, no frames")

	sink.clients = 1
	h.tick()
	h.tick()
	require.Len(t, sink.frames, 1)
	f := sink.frames[0]
	assert.Equal(t, uint64(4), f.Tick)
	require.Len(t, f.Bodies, 2)
	assert.Equal(t, uint64(a), f.Bodies[0].ID)
	assert.Equal(t, 0, f.Bodies[0].Level)
	assert.Equal(t, 3, f.Bodies[1].Level)
	assert.Len(t, f.Contacts, 1)
	assert.Len(t, f.Buckets, 6)
	assert.Equal(t, [4]float64{0, 0, 400, 400}, f.Bounds)
}

func TestScriptSystemSteersAndDespawns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(`
function steer(body)
  return 0, 20
end
function on_contact(a, b)
  return true
end`), 0o644))
	engine, err := scripting.NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer engine.Close()

	h := newHarness(t, engine)
	mover := h.spawn(t, hashbounds.PosSize(50, 50, 4, 4), 100, 0)
	a := h.spawn(t, hashbounds.PosSize(200, 200, 4, 4), 0, 0)
	b := h.spawn(t, hashbounds.PosSize(202, 202, 4, 4), 0, 0)

	h.tick()
	body, _ := h.world.Bodies.Get(mover)
	assert.InDelta(t, 50.0, body.Box.MinX, 1e-9)
	assert.InDelta(t, 52.0, body.Box.MinY, 1e-9)

	assert.True(t, h.world.Bodies.Has(a))
	assert.False(t, h.world.Bodies.Has(b), "on_contact asked for b to go")
	assert.Equal(t, 1, h.stats.Despawned)
}

func TestContactHookDespawnsOnceWithoutWarnings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(`
function on_contact(a, b)
  return true
end`), 0o644))
	engine, err := scripting.NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	defer engine.Close()

	h := newHarness(t, engine)
	core, logs := observer.New(zapcore.WarnLevel)
	h.contact.log = zap.New(core)

	// three mutually overlapping bodies: c is the B side of two pairs
	a := h.spawn(t, hashbounds.PosSize(100, 100, 10, 10), 0, 0)
	b := h.spawn(t, hashbounds.PosSize(102, 102, 10, 10), 0, 0)
	c := h.spawn(t, hashbounds.PosSize(104, 104, 10, 10), 0, 0)

	h.tick()
	assert.Equal(t, 3, h.stats.Began)
	assert.Equal(t, 2, h.stats.Despawned)
	assert.True(t, h.world.Bodies.Has(a))
	assert.False(t, h.world.Bodies.Has(b))
	assert.False(t, h.world.Bodies.Has(c))
	assert.Zero(t, logs.Len(), "unexpected warnings: %v", logs.All())
}
