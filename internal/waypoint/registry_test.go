package waypoint

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiltpilot/navsim/pkg/core"
)

var start = core.Vector3{X: 50, Y: 50, Z: 2000}

func newTestRegistry(values ...float64) *Registry {
	return NewRegistry(&FixedSource{Values: values}, DefaultOptions())
}

func assertNearestIsClosest(t *testing.T, r *Registry, current core.Vector3) {
	t.Helper()
	nearest, ok := r.Nearest()
	require.True(t, ok)
	require.False(t, nearest.IsHit, "nearest must be unhit while unhit waypoints exist")
	want := nearest.Position.Distance(current)
	for _, wp := range r.Waypoints() {
		if wp.IsHit {
			continue
		}
		assert.GreaterOrEqual(t, wp.Position.Distance(current), want, "waypoint %d is closer than nearest %d", wp.ID, nearest.ID)
	}
}

func TestSpawn_FirstBecomesNearest(t *testing.T) {
	r := newTestRegistry(100, 200)

	id := r.Spawn(start)

	assert.Equal(t, core.WaypointID(0), id)
	nearest, ok := r.Nearest()
	require.True(t, ok)
	assert.Equal(t, core.Vector3{X: 150, Y: 250, Z: 2000}, nearest.Position)
	assert.Equal(t, DefaultHitRadius, nearest.HitRadius)
	assert.Equal(t, DefaultNearRadius, nearest.NearRadius)
	assert.False(t, nearest.IsHit)
}

func TestSpawn_OffsetsStayInJitterRange(t *testing.T) {
	r := NewRegistry(NewRandomSource(42), DefaultOptions())
	for range 50 {
		r.Spawn(start)
	}
	for _, wp := range r.Waypoints() {
		assert.GreaterOrEqual(t, wp.Position.X, start.X)
		assert.Less(t, wp.Position.X, start.X+DefaultSpawnJitter)
		assert.GreaterOrEqual(t, wp.Position.Y, start.Y)
		assert.Less(t, wp.Position.Y, start.Y+DefaultSpawnJitter)
		assert.Equal(t, start.Z, wp.Position.Z)
	}
}

func TestNewRandomSource_SeedIsDeterministic(t *testing.T) {
	a, b := NewRandomSource(7), NewRandomSource(7)
	for range 10 {
		assert.Equal(t, a.Uniform(0, 1600), b.Uniform(0, 1600))
	}
}

func TestCheckHit_SingleWaypointApproach(t *testing.T) {
	d := 150 / math.Sqrt2
	r := newTestRegistry(d, d)
	r.Spawn(start)

	nearest, _ := r.Nearest()
	require.InDelta(t, 150.0, nearest.Position.Distance(start), 1e-9)

	assert.True(t, r.CheckHit(start))
	assert.Equal(t, 1, r.HitsCount())
}

func TestCheckHit_OutsideRadius(t *testing.T) {
	r := newTestRegistry(0)
	r.Add(core.Vector3{X: 50, Y: 250.0001, Z: 2000}, start)

	assert.False(t, r.CheckHit(start))
	assert.Zero(t, r.HitsCount())
}

func TestCheckHit_NeverTwiceForSameWaypoint(t *testing.T) {
	r := newTestRegistry()
	r.Add(start, start)

	assert.True(t, r.CheckHit(start))
	assert.False(t, r.CheckHit(start))
	assert.Equal(t, 1, r.HitsCount())
}

func TestCheckHit_EmptyRegistry(t *testing.T) {
	r := newTestRegistry()
	assert.False(t, r.CheckHit(start))
	_, ok := r.DistanceRatio(start)
	assert.False(t, ok)
	_, ok = r.Nearest()
	assert.False(t, ok)
}

func TestDistanceRatio(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
		ok       bool
	}{
		{"inside near radius", 300, 0.75, true},
		{"exactly near radius", 400, 1, true},
		{"outside near radius", 450, 0, false},
		{"on top", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry()
			r.Add(core.Vector3{X: start.X + tt.distance, Y: start.Y, Z: start.Z}, start)

			got, ok := r.DistanceRatio(start)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestDistanceRatio_UsesAltitude(t *testing.T) {
	r := newTestRegistry()
	r.Add(core.Vector3{X: 50, Y: 50, Z: 2300}, start)

	got, ok := r.DistanceRatio(start)
	require.True(t, ok)
	assert.InDelta(t, 0.75, got, 1e-12)
}

func TestDistanceRatio_HitNearestHasNoRatio(t *testing.T) {
	r := newTestRegistry()
	r.Add(start, start)
	require.True(t, r.CheckHit(start))

	_, ok := r.DistanceRatio(start)
	assert.False(t, ok)
}

func TestRecomputeNearest_PicksClosestUnhit(t *testing.T) {
	r := newTestRegistry()
	r.Add(core.Vector3{X: 900, Y: 900}, start)
	r.Add(core.Vector3{X: 500, Y: 500}, start)
	r.Add(core.Vector3{X: 100, Y: 100}, start)
	r.Add(core.Vector3{X: 1500, Y: 1500}, start)

	current := core.Vector3{X: 120, Y: 80}
	r.RecomputeNearest(current)

	nearest, _ := r.Nearest()
	assert.Equal(t, core.WaypointID(2), nearest.ID)
	assertNearestIsClosest(t, r, current)
}

func TestRecomputeNearest_TieKeepsEarlier(t *testing.T) {
	r := newTestRegistry()
	r.Add(core.Vector3{X: 100}, core.Vector3{})
	r.Add(core.Vector3{X: -100}, core.Vector3{})

	nearest, _ := r.Nearest()
	assert.Equal(t, core.WaypointID(0), nearest.ID)
}

func TestRecomputeNearest_ReplacesHitNearest(t *testing.T) {
	r := newTestRegistry()
	r.Add(start, start)
	require.True(t, r.CheckHit(start))

	r.Add(core.Vector3{X: 1000, Y: 1000, Z: 2000}, start)
	r.Add(core.Vector3{X: 400, Y: 400, Z: 2000}, start)

	nearest, _ := r.Nearest()
	assert.Equal(t, core.WaypointID(2), nearest.ID)
	assertNearestIsClosest(t, r, start)
}

func TestRecomputeNearest_HitNearestWithNoUnhitStays(t *testing.T) {
	r := newTestRegistry()
	r.Add(start, start)
	require.True(t, r.CheckHit(start))

	r.RecomputeNearest(start)

	nearest, ok := r.Nearest()
	require.True(t, ok)
	assert.Equal(t, core.WaypointID(0), nearest.ID)
	assert.True(t, nearest.IsHit)
	assert.False(t, r.CheckHit(start))
}

func TestRecomputeNearest_Idempotent(t *testing.T) {
	r := NewRegistry(NewRandomSource(3), DefaultOptions())
	for range 8 {
		r.Spawn(start)
	}
	current := core.Vector3{X: 700, Y: 300, Z: 1900}

	r.RecomputeNearest(current)
	first, _ := r.Nearest()
	r.RecomputeNearest(current)
	second, _ := r.Nearest()

	assert.Equal(t, first, second)
}

func TestRegistry_MonotonicityAcrossHits(t *testing.T) {
	r := NewRegistry(NewRandomSource(11), DefaultOptions())
	for range 6 {
		r.Spawn(start)
	}

	for range 5 {
		nearest, _ := r.Nearest()
		// Fly onto the nearest waypoint.
		pos := nearest.Position
		hitsBefore, lenBefore := r.HitsCount(), r.Len()

		require.True(t, r.CheckHit(pos))
		assert.Equal(t, hitsBefore+1, r.HitsCount())

		r.Spawn(pos)
		assert.Equal(t, lenBefore+1, r.Len())
		assertNearestIsClosest(t, r, pos)

		hit := 0
		for _, wp := range r.Waypoints() {
			if wp.IsHit {
				hit++
			}
		}
		assert.Equal(t, r.HitsCount(), hit)
	}
}

func TestWaypoints_ReturnsCopy(t *testing.T) {
	r := newTestRegistry()
	r.Add(start, start)

	wps := r.Waypoints()
	wps[0].IsHit = true

	nearest, _ := r.Nearest()
	assert.False(t, nearest.IsHit)
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	r := NewRegistry(NewRandomSource(5), DefaultOptions())
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = r.Waypoints()
				_, _ = r.DistanceRatio(start)
			}
		}()
	}
	for range 100 {
		r.Spawn(start)
	}
	wg.Wait()
	assert.Equal(t, 100, r.Len())
}
