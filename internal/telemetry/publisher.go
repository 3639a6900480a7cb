// Package telemetry turns control loop output into dispatcher events.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tiltpilot/navsim/internal/dispatcher"
	"github.com/tiltpilot/navsim/internal/session"
	"github.com/tiltpilot/navsim/pkg/core"
)

// Dispatcher commands.
const (
	CmdRunStart      = ":RUN:START:"
	CmdStatus        = ":STATUS:"
	CmdWaypointSpawn = ":WAYPOINT:SPAWN:"
	CmdWaypointHit   = ":WAYPOINT:HIT:"
	CmdHazard        = ":HAZARD:"
	CmdRunEnd        = ":RUN:END:"
)

// Dispatcher is the part of dispatcher.Dispatcher the publisher needs.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
	Flush()
}

// Publisher implements control.Telemetry on top of a dispatcher and keeps
// the session context current.
type Publisher struct {
	d       Dispatcher
	session *session.Context
	logger  *slog.Logger

	hits    atomic.Int64
	dropped atomic.Uint64
}

// NewPublisher creates a publisher. session may be nil.
func NewPublisher(d Dispatcher, sess *session.Context, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{d: d, session: sess, logger: logger}
}

// StartRun records run as the current session and dispatches it
// synchronously so every later record can be attached to it.
func (p *Publisher) StartRun(run *core.Run) error {
	if p.session != nil {
		p.session.SetRun(run)
	}
	p.hits.Store(0)
	if _, err := p.d.Dispatch(event(CmdRunStart, run)); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// EndRun waits for queued records, then dispatches the summary.
func (p *Publisher) EndRun(summary core.RunSummary) error {
	p.d.Flush()
	if p.session != nil {
		p.session.Finish(summary)
	}
	if _, err := p.d.Dispatch(event(CmdRunEnd, &summary)); err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	return nil
}

func (p *Publisher) Status(s core.StatusLine) {
	if p.session != nil {
		p.session.Observe(s, int(p.hits.Load()))
	}
	if _, err := p.d.Dispatch(event(CmdStatus, &s)); err != nil {
		// queue full under load; the next tick supersedes it
		if p.dropped.Add(1)%1000 == 1 {
			p.logger.Warn("status dropped", "tick", s.Tick, "error", err, "dropped", p.dropped.Load())
		}
	}
}

func (p *Publisher) Waypoint(e core.WaypointEvent) {
	cmd := CmdWaypointSpawn
	if e.Kind == core.WaypointHit {
		cmd = CmdWaypointHit
		p.hits.Store(int64(e.HitsCount))
	}
	if _, err := p.d.Dispatch(event(cmd, &e)); err != nil {
		p.logger.Error("waypoint event not dispatched", "kind", string(e.Kind), "id", int(e.Waypoint.ID), "error", err)
	}
}

func (p *Publisher) Hazard(e core.HazardEvent) {
	if _, err := p.d.Dispatch(event(CmdHazard, &e)); err != nil {
		p.logger.Error("hazard event not dispatched", "active", e.Active, "error", err)
	}
}

// Dropped returns how many status lines could not be queued.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func event(cmd string, payload any) dispatcher.Event {
	return dispatcher.Event{Command: cmd, Payload: payload, Timestamp: time.Now()}
}
