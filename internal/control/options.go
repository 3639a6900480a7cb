package control

import (
	"log/slog"

	"github.com/tiltpilot/navsim/internal/timeutil"
)

// Option configures a Loop.
type Option func(*Loop)

// WithTelemetry sends status lines and events to t.
func WithTelemetry(t Telemetry) Option {
	return func(l *Loop) {
		l.telemetry = t
	}
}

// WithPacer sets the minimum tick duration policy.
func WithPacer(p Pacer) Option {
	return func(l *Loop) {
		l.pacer = p
	}
}

// WithLogger sets the logger for status, CRASH and DONE lines.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// WithRunUUID stamps every status line and event with id.
func WithRunUUID(id string) Option {
	return func(l *Loop) {
		l.runUUID = id
	}
}
