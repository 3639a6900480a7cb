package control

import (
	"context"
	"time"

	"github.com/tiltpilot/navsim/internal/timeutil"
)

// Pacer holds the loop back so one tick lasts at least a minimum duration.
type Pacer interface {
	// Pace blocks until the tick that began at started may end.
	Pace(ctx context.Context, started time.Time) error
}

// ClockPacer waits out the rest of Min on Clock.
type ClockPacer struct {
	Clock timeutil.Clock
	Min   time.Duration
}

func (p ClockPacer) Pace(ctx context.Context, started time.Time) error {
	wait := p.Min - p.Clock.Since(started)
	if wait <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(wait):
		return nil
	}
}

// NoopPacer never waits.
type NoopPacer struct{}

func (NoopPacer) Pace(ctx context.Context, _ time.Time) error {
	return ctx.Err()
}
