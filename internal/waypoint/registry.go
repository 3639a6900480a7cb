// Package waypoint owns the ordered waypoint sequence and nearest-waypoint
// selection.
package waypoint

import (
	"sync"

	"github.com/tiltpilot/navsim/pkg/core"
)

const (
	DefaultHitRadius   = 200.0
	DefaultNearRadius  = 400.0
	DefaultSpawnJitter = 1600.0
)

// Options configures waypoint placement.
type Options struct {
	HitRadius   float64
	NearRadius  float64
	SpawnJitter float64
}

// DefaultOptions returns the stock placement settings.
func DefaultOptions() Options {
	return Options{
		HitRadius:   DefaultHitRadius,
		NearRadius:  DefaultNearRadius,
		SpawnJitter: DefaultSpawnJitter,
	}
}

// Registry is an append-only waypoint sequence with a cached nearest index.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	points    []core.Waypoint
	nearest   int // -1 when empty
	hitsCount int

	rand RandomSource
	opts Options
}

// NewRegistry creates an empty registry that places waypoints with rand.
func NewRegistry(rand RandomSource, opts Options) *Registry {
	return &Registry{
		nearest: -1,
		rand:    rand,
		opts:    opts,
	}
}

// Spawn appends a waypoint jittered from origin on the horizontal plane and
// refreshes the nearest selection against origin.
func (r *Registry) Spawn(origin core.Vector3) core.WaypointID {
	offset := core.Vector3{
		X: r.rand.Uniform(0, r.opts.SpawnJitter),
		Y: r.rand.Uniform(0, r.opts.SpawnJitter),
	}
	return r.Add(origin.Add(offset), origin)
}

// Add appends a waypoint at an exact position. current is the vehicle
// position used to refresh the nearest selection.
func (r *Registry) Add(pos, current core.Vector3) core.WaypointID {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := core.WaypointID(len(r.points))
	r.points = append(r.points, core.Waypoint{
		ID:         id,
		Position:   pos,
		HitRadius:  r.opts.HitRadius,
		NearRadius: r.opts.NearRadius,
	})

	if r.nearest < 0 {
		r.nearest = int(id)
	} else {
		r.recomputeLocked(current)
	}
	return id
}

// RecomputeNearest rescans the sequence in insertion order and selects the
// closest unhit waypoint to current. Ties keep the earlier waypoint.
//
// When the cached nearest is already hit, the first unhit waypoint in scan
// order is taken as the starting candidate before the strict comparison
// continues.
func (r *Registry) RecomputeNearest(current core.Vector3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputeLocked(current)
}

func (r *Registry) recomputeLocked(current core.Vector3) {
	if r.nearest < 0 {
		return
	}

	best := r.nearest
	target := 0.0
	seeded := !r.points[best].IsHit
	if seeded {
		target = r.points[best].Position.Distance(current)
	}

	for i := range r.points {
		p := &r.points[i]
		if p.IsHit {
			continue
		}
		d := p.Position.Distance(current)
		if !seeded {
			best, target, seeded = i, d, true
			continue
		}
		if d < target {
			best, target = i, d
		}
	}
	r.nearest = best
}

// DistanceRatio returns distance/NearRadius for the nearest waypoint when the
// vehicle is within its near radius. The second result is false when there is
// no unhit nearest waypoint or it is out of range.
func (r *Registry) DistanceRatio(current core.Vector3) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.nearest < 0 {
		return 0, false
	}
	p := r.points[r.nearest]
	if p.IsHit {
		return 0, false
	}
	d := p.Position.Distance(current)
	if d > p.NearRadius {
		return 0, false
	}
	return d / p.NearRadius, true
}

// CheckHit marks the nearest waypoint hit when current is within its hit
// radius. It does not spawn a replacement.
func (r *Registry) CheckHit(current core.Vector3) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nearest < 0 {
		return false
	}
	p := &r.points[r.nearest]
	if p.IsHit || p.Position.Distance(current) > p.HitRadius {
		return false
	}
	p.IsHit = true
	r.hitsCount++
	return true
}

// Nearest returns a copy of the nearest waypoint.
func (r *Registry) Nearest() (core.Waypoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.nearest < 0 {
		return core.Waypoint{}, false
	}
	return r.points[r.nearest], true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.points)
}

func (r *Registry) HitsCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hitsCount
}

// Waypoints returns a snapshot of the sequence in insertion order.
func (r *Registry) Waypoints() []core.Waypoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Waypoint, len(r.points))
	copy(out, r.points)
	return out
}
