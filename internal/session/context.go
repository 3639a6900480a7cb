package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiltpilot/navsim/pkg/core"
)

// Context holds the current run and the latest loop progress. The logging
// ContextHandler reads it on every record.
type Context struct {
	mu      sync.RWMutex
	Run     *core.Run
	Tick    uint
	Hits    int
	Last    *core.StatusLine
	Summary *core.RunSummary
}

// NewContext creates a new Context with no run loaded.
func NewContext() *Context {
	return &Context{
		Run: &core.Run{Name: "No run loaded"},
	}
}

// NewRunUUID returns a fresh run identifier.
func NewRunUUID() string {
	return uuid.NewString()
}

// GetRun returns the current run
func (c *Context) GetRun() *core.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Run
}

// SetRun replaces the current run and resets progress.
func (c *Context) SetRun(run *core.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if run.RunUUID == "" {
		run.RunUUID = NewRunUUID()
	}
	c.Run = run
	c.Tick = 0
	c.Hits = 0
	c.Last = nil
	c.Summary = nil
}

// Observe records the latest status line.
func (c *Context) Observe(s core.StatusLine, hits int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Tick = s.Tick
	c.Hits = hits
	c.Last = &s
}

// Finish stores the run summary.
func (c *Context) Finish(summary core.RunSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Summary = &summary
	c.Tick = summary.Ticks
	c.Hits = summary.HitsCount
}

// Snapshot is a consistent copy of the session for status reporting.
type Snapshot struct {
	Run     core.Run         `json:"run"`
	Tick    uint             `json:"tick"`
	Hits    int              `json:"hits"`
	Last    *core.StatusLine `json:"last,omitempty"`
	Summary *core.RunSummary `json:"summary,omitempty"`
	Time    time.Time        `json:"time"`
}

// Snapshot copies the current state.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Run: *c.Run, Tick: c.Tick, Hits: c.Hits, Time: time.Now()}
	if c.Last != nil {
		last := *c.Last
		snap.Last = &last
	}
	if c.Summary != nil {
		sum := *c.Summary
		snap.Summary = &sum
	}
	return snap
}

// LogAttrs returns the attributes injected into every log record while a
// run is loaded. It satisfies logging.ContextProvider.
func (c *Context) LogAttrs(context.Context) []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Run == nil || c.Run.RunUUID == "" {
		return nil
	}
	return []slog.Attr{
		slog.String("run", c.Run.RunUUID),
		slog.Uint64("tick", uint64(c.Tick)),
		slog.Int("hits", c.Hits),
	}
}
