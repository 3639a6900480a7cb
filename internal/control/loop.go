// Package control runs the polling loop that ties the sensor, integrator,
// waypoint registry and indicators together.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tiltpilot/navsim/internal/evaluator"
	"github.com/tiltpilot/navsim/internal/indicator"
	"github.com/tiltpilot/navsim/internal/kinematics"
	"github.com/tiltpilot/navsim/internal/timeutil"
	"github.com/tiltpilot/navsim/internal/waypoint"
	"github.com/tiltpilot/navsim/pkg/core"
)

const meterName = "github.com/tiltpilot/navsim/internal/control"

// DefaultStep is the integration time unit per tick.
const DefaultStep = 0.01

// Phase is the loop state.
type Phase int

const (
	Running Phase = iota
	Done
)

func (p Phase) String() string {
	if p == Done {
		return "done"
	}
	return "running"
}

// Sampler supplies calibrated tilt samples.
type Sampler interface {
	SampleTilt(ctx context.Context) (core.Vector3, error)
}

// Telemetry receives everything the loop reports. Implementations must not
// block for long; the loop calls them inline.
type Telemetry interface {
	Status(s core.StatusLine)
	Waypoint(e core.WaypointEvent)
	Hazard(e core.HazardEvent)
}

type noTelemetry struct{}

func (noTelemetry) Status(core.StatusLine)      {}
func (noTelemetry) Waypoint(core.WaypointEvent) {}
func (noTelemetry) Hazard(core.HazardEvent)     {}

// Config holds the per-run constants of the loop.
type Config struct {
	TotalWaypoints int
	Step           float64
	Bounds         evaluator.Bounds
}

// Loop is the single polling goroutine of a run. It is not safe for
// concurrent use; the triggers only talk to it through indicator.State.
type Loop struct {
	sampler    Sampler
	integrator *kinematics.Integrator
	registry   *waypoint.Registry
	indicators *indicator.State
	out        indicator.Output
	cfg        Config

	telemetry Telemetry
	pacer     Pacer
	logger    *slog.Logger
	clock     timeutil.Clock
	runUUID   string

	state  core.VehicleState
	phase  Phase
	ticks  uint
	hazard evaluator.HazardReason

	tickCounter   metric.Int64Counter
	hitCounter    metric.Int64Counter
	hazardCounter metric.Int64Counter
}

// New builds a loop starting from start. Indicator writes for the success
// and alarm channels go to out; proximity is driven through indicators.
func New(
	sampler Sampler,
	integrator *kinematics.Integrator,
	registry *waypoint.Registry,
	indicators *indicator.State,
	out indicator.Output,
	start core.VehicleState,
	cfg Config,
	opts ...Option,
) (*Loop, error) {
	if cfg.TotalWaypoints <= 0 {
		cfg.TotalWaypoints = 1
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultStep
	}
	if cfg.Bounds.Max <= cfg.Bounds.Min {
		cfg.Bounds = evaluator.DefaultBounds
	}
	l := &Loop{
		sampler:    sampler,
		integrator: integrator,
		registry:   registry,
		indicators: indicators,
		out:        out,
		cfg:        cfg,
		telemetry:  noTelemetry{},
		pacer:      NoopPacer{},
		logger:     slog.Default(),
		clock:      timeutil.RealClock{},
		state:      start,
		hazard:     evaluator.HazardNone,
	}
	for _, opt := range opts {
		opt(l)
	}

	m := otel.Meter(meterName)
	var err error
	l.tickCounter, err = m.Int64Counter("control.ticks", metric.WithDescription("Loop iterations"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}
	l.hitCounter, err = m.Int64Counter("control.waypoints.hit", metric.WithDescription("Waypoints hit"))
	if err != nil {
		return nil, fmt.Errorf("creating hit counter: %w", err)
	}
	l.hazardCounter, err = m.Int64Counter("control.hazards", metric.WithDescription("Hazard onsets"))
	if err != nil {
		return nil, fmt.Errorf("creating hazard counter: %w", err)
	}
	return l, nil
}

// State returns the current vehicle state.
func (l *Loop) State() core.VehicleState { return l.state }

// Phase returns the current loop state.
func (l *Loop) Phase() Phase { return l.phase }

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint { return l.ticks }

// Prime places the first waypoint at the start position. It does nothing
// once the registry holds a waypoint.
func (l *Loop) Prime() {
	if l.registry.Len() > 0 {
		return
	}
	l.spawn()
}

// Tick runs one iteration. A sampler error leaves the state untouched.
func (l *Loop) Tick(ctx context.Context) (Phase, error) {
	if l.phase == Done {
		return Done, nil
	}

	tilt, err := l.sampler.SampleTilt(ctx)
	if err != nil {
		return l.phase, fmt.Errorf("sample tilt: %w", err)
	}

	l.integrator.Integrate(&l.state, tilt, l.cfg.Step)
	l.ticks++
	l.tickCounter.Add(ctx, 1)

	l.emitStatus()

	pos := l.state.Position
	if l.registry.CheckHit(pos) {
		l.out.SetIndicator(indicator.Success, true)
		l.indicators.DisableFast()
		l.hitCounter.Add(ctx, 1)

		hit, _ := l.registry.Nearest()
		l.telemetry.Waypoint(core.WaypointEvent{
			RunUUID:   l.runUUID,
			Tick:      l.ticks,
			Time:      l.clock.Now(),
			Kind:      core.WaypointHit,
			Waypoint:  hit,
			HitsCount: l.registry.HitsCount(),
		})
		l.logger.Info("waypoint hit", "id", int(hit.ID), "hits", l.registry.HitsCount())
		l.spawn()
	} else {
		l.out.SetIndicator(indicator.Success, false)
		if ratio, ok := l.registry.DistanceRatio(pos); ok {
			l.indicators.EnableFast(ratio)
		} else {
			l.indicators.DisableFast()
		}
	}

	l.evaluateHazard(ctx)

	if l.registry.HitsCount() == l.cfg.TotalWaypoints {
		l.out.SetIndicator(indicator.Success, true)
		l.indicators.DisableFast()
		l.phase = Done
		l.logger.Info("DONE", "ticks", l.ticks, "hits", l.registry.HitsCount())
	}
	return l.phase, nil
}

// Run ticks until the run completes, ctx is cancelled or the sampler fails.
// The returned summary is valid in every case.
func (l *Loop) Run(ctx context.Context) (core.RunSummary, error) {
	l.Prime()
	for {
		if err := ctx.Err(); err != nil {
			return l.Summary(core.OutcomeAborted), err
		}

		started := l.clock.Now()
		phase, err := l.Tick(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return l.Summary(core.OutcomeAborted), ctxErr
			}
			return l.Summary(core.OutcomeFailed), err
		}
		if phase == Done {
			return l.Summary(core.OutcomeCompleted), nil
		}

		if err := l.pacer.Pace(ctx, started); err != nil {
			return l.Summary(core.OutcomeAborted), err
		}
	}
}

// Summary describes the run so far with the given outcome.
func (l *Loop) Summary(outcome core.RunOutcome) core.RunSummary {
	return core.RunSummary{
		RunUUID:          l.runUUID,
		EndTime:          l.clock.Now(),
		Ticks:            l.ticks,
		HitsCount:        l.registry.HitsCount(),
		WaypointsSpawned: l.registry.Len(),
		Outcome:          outcome,
		Final:            l.state,
		Remaining:        l.indicators.Countdown(),
	}
}

func (l *Loop) spawn() {
	id := l.registry.Spawn(l.state.Position)
	wp := l.registry.Waypoints()[id]
	l.telemetry.Waypoint(core.WaypointEvent{
		RunUUID:   l.runUUID,
		Tick:      l.ticks,
		Time:      l.clock.Now(),
		Kind:      core.WaypointSpawned,
		Waypoint:  wp,
		HitsCount: l.registry.HitsCount(),
	})
	l.logger.Debug("waypoint spawned", "id", int(id), "x", wp.Position.X, "y", wp.Position.Y)
}

func (l *Loop) emitStatus() {
	line := core.StatusLine{
		RunUUID:    l.runUUID,
		Tick:       l.ticks,
		Time:       l.clock.Now(),
		HeadingDeg: l.state.HeadingDegrees(),
		Position:   l.state.Position,
		Velocity:   l.state.Velocity,
		NearestID:  -1,
		Remaining:  l.indicators.Countdown(),
		Hazard:     evaluator.EvaluateHazard(l.state, l.cfg.Bounds),
	}
	if wp, ok := l.registry.Nearest(); ok {
		line.NearestID = wp.ID
		line.Nearest = wp.Position
	}
	l.telemetry.Status(line)
	l.logger.Debug("status",
		"heading", line.HeadingDeg,
		"x", line.Position.X,
		"y", line.Position.Y,
		"z", line.Position.Z,
		"nearest", int(line.NearestID),
		"m", line.Remaining.Minutes,
		"s", line.Remaining.Seconds,
	)
}

func (l *Loop) evaluateHazard(ctx context.Context) {
	reason := evaluator.Hazard(l.state, l.cfg.Bounds)
	active := reason != evaluator.HazardNone
	wasActive := l.hazard != evaluator.HazardNone

	l.out.SetIndicator(indicator.Alarm, active)
	if active {
		l.logger.Warn("CRASH", "reason", string(reason))
	}

	if active != wasActive {
		if active {
			l.hazardCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(reason))))
		}
		l.telemetry.Hazard(core.HazardEvent{
			RunUUID:  l.runUUID,
			Tick:     l.ticks,
			Time:     l.clock.Now(),
			Active:   active,
			Reason:   string(reason),
			Position: l.state.Position,
			Velocity: l.state.Velocity,
		})
	}
	l.hazard = reason
}
