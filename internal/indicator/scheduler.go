package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiltpilot/navsim/internal/timeutil"
)

// Periods configures both triggers.
type Periods struct {
	FastBase      time.Duration
	FastFloor     time.Duration
	SlowCadence   time.Duration
	CountdownUnit time.Duration
	Countdown     time.Duration
}

// DefaultPeriods returns the stock trigger timing.
func DefaultPeriods() Periods {
	return Periods{
		FastBase:      500 * time.Millisecond,
		FastFloor:     100 * time.Millisecond,
		SlowCadence:   time.Second,
		CountdownUnit: time.Second,
		Countdown:     time.Minute,
	}
}

// Scheduler runs the fast and slow triggers on their own goroutines.
type Scheduler struct {
	State   *State
	Clock   timeutil.Clock
	Periods Periods
	Logger  *slog.Logger

	wg sync.WaitGroup
}

// NewScheduler wires a scheduler around state.
func NewScheduler(state *State, clock timeutil.Clock, periods Periods, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{State: state, Clock: clock, Periods: periods, Logger: logger}
}

// Start launches both triggers. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)
	go s.runFast(ctx)
	go s.runSlow(ctx)
}

// Wait blocks until both triggers have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runFast(ctx context.Context) {
	defer s.wg.Done()

	timer := s.Clock.NewTimer(s.Periods.FastFloor)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			next := s.State.FireFast(s.Periods.FastBase, s.Periods.FastFloor)
			timer.Reset(next)
		}
	}
}

func (s *Scheduler) runSlow(ctx context.Context) {
	defer s.wg.Done()

	ticker := s.Clock.NewTicker(s.Periods.SlowCadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			cd := s.State.FireSlow(s.Periods.CountdownUnit)
			s.Logger.Debug("countdown", "m", cd.Minutes, "s", cd.Seconds)
		}
	}
}
