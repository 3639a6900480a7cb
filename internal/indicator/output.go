package indicator

import (
	"log/slog"
	"sync"
)

// LogOutput logs indicator transitions. Used when no board is attached.
type LogOutput struct {
	Logger *slog.Logger

	mu    sync.Mutex
	level map[Channel]bool
}

func NewLogOutput(logger *slog.Logger) *LogOutput {
	return &LogOutput{Logger: logger, level: make(map[Channel]bool)}
}

func (o *LogOutput) SetIndicator(ch Channel, on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.level[ch] == on {
		return
	}
	o.level[ch] = on
	if ch == Proximity {
		// blinks are too chatty for info
		o.Logger.Debug("indicator", "channel", ch.String(), "on", on)
		return
	}
	o.Logger.Info("indicator", "channel", ch.String(), "on", on)
}

// Level returns the last level set for ch.
func (o *LogOutput) Level(ch Channel) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level[ch]
}

// Multi fans indicator writes out to several outputs.
type Multi []Output

func (m Multi) SetIndicator(ch Channel, on bool) {
	for _, o := range m {
		o.SetIndicator(ch, on)
	}
}

// Recorder remembers every write. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	Writes []Write
}

// Write is one recorded indicator change.
type Write struct {
	Channel Channel
	On      bool
}

func (r *Recorder) SetIndicator(ch Channel, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes = append(r.Writes, Write{Channel: ch, On: on})
}

// Last returns the most recent level written to ch.
func (r *Recorder) Last(ch Channel) (on, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Writes) - 1; i >= 0; i-- {
		if r.Writes[i].Channel == ch {
			return r.Writes[i].On, true
		}
	}
	return false, false
}

// Count returns the number of writes to ch.
func (r *Recorder) Count(ch Channel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.Writes {
		if w.Channel == ch {
			n++
		}
	}
	return n
}
