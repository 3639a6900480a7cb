package logging

import (
	"time"

	"github.com/rs/zerolog"
)

// badKey matches the key slog uses for arguments that are not key-value pairs.
const badKey = "!BADKEY"

// DispatcherLogger adapts zerolog.Logger to the dispatcher.Logger interface.
// Arguments follow slog conventions so dispatcher records read the same as
// the rest of navsim's output.
type DispatcherLogger struct {
	logger zerolog.Logger
}

func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger}
}

func (l *DispatcherLogger) Debug(msg string, args ...any) {
	write(l.logger.Debug(), msg, args)
}

func (l *DispatcherLogger) Info(msg string, args ...any) {
	write(l.logger.Info(), msg, args)
}

func (l *DispatcherLogger) Error(msg string, args ...any) {
	write(l.logger.Error(), msg, args)
}

// write adds args in order. A non-string key or a trailing key without a
// value is logged under badKey.
func write(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for len(args) > 0 {
		key, ok := args[0].(string)
		if !ok || len(args) == 1 {
			e = field(e, badKey, args[0])
			args = args[1:]
			continue
		}
		e = field(e, key, args[1])
		args = args[2:]
	}
	e.Msg(msg)
}

func field(e *zerolog.Event, key string, v any) *zerolog.Event {
	switch v := v.(type) {
	case error:
		return e.AnErr(key, v)
	case time.Duration:
		return e.Dur(key, v)
	}
	return e.Interface(key, v)
}
