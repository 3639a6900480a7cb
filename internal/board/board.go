// Package board talks to the microcontroller carrying the accelerometer and
// indicator LEDs over a line-oriented serial protocol:
//
//	A\n             -> "x,y,z\n" raw accelerometer counts
//	L <ch> <0|1>\n  -> sets indicator channel ch
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/tiltpilot/navsim/internal/indicator"
	"github.com/tiltpilot/navsim/internal/sensor"
)

var (
	// ErrWriteFailed wraps failures writing a command to the port.
	ErrWriteFailed = errors.New("board: write failed")
	// ErrNoResponse is returned when a sample request is not answered in time.
	ErrNoResponse = errors.New("board: no response")
	// ErrClosed is returned by reads after Close.
	ErrClosed = errors.New("board: closed")
)

// DefaultResponseTimeout bounds the wait for a sample reply.
const DefaultResponseTimeout = time.Second

// pollInterval is the read timeout set on ports that support one, so the
// reader notices Close without a reply arriving.
const pollInterval = 100 * time.Millisecond

// Port is the subset of serial.Port the board uses.
type Port interface {
	io.ReadWriteCloser
}

// TimeoutPort is a Port whose reads return (0, nil) after the read timeout.
type TimeoutPort interface {
	Port
	SetReadTimeout(timeout time.Duration) error
}

var _ TimeoutPort = (serial.Port)(nil)

// Option configures a Board.
type Option func(*Board)

// WithResponseTimeout sets how long ReadRaw waits for a reply.
func WithResponseTimeout(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.responseTimeout = d
		}
	}
}

type readResult struct {
	line string
	err  error
}

// Board implements sensor.RawReader and indicator.Output.
//
// Port reads happen on a dedicated goroutine, one line per request, so
// indicator writes never queue behind an outstanding sample.
type Board struct {
	writeMu sync.Mutex
	readMu  sync.Mutex
	port    Port
	logger  *slog.Logger

	responseTimeout time.Duration
	requests        chan chan readResult
	done            chan struct{}
	closeOnce       sync.Once
}

var (
	_ sensor.RawReader = (*Board)(nil)
	_ indicator.Output = (*Board)(nil)
)

// New wraps an already open port and starts its reader.
func New(port Port, logger *slog.Logger, opts ...Option) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		port:            port,
		logger:          logger,
		responseTimeout: DefaultResponseTimeout,
		requests:        make(chan chan readResult),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if tp, ok := port.(TimeoutPort); ok {
		if err := tp.SetReadTimeout(pollInterval); err != nil {
			logger.Warn("set read timeout", "error", err)
		}
	}
	go b.readLoop()
	return b
}

// Open opens the serial device at path.
func Open(path string, opts PortOptions, logger *slog.Logger) (*Board, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return New(port, logger, WithResponseTimeout(opts.ResponseTimeout)), nil
}

// readLoop answers each request with the next line from the port. A request
// abandoned by its caller still consumes its line so replies stay paired
// with the commands that caused them.
func (b *Board) readLoop() {
	var pending []byte
	buf := make([]byte, 64)
	for {
		var reply chan readResult
		select {
		case reply = <-b.requests:
		case <-b.done:
			return
		}

		for {
			if i := bytes.IndexByte(pending, '\n'); i >= 0 {
				line := string(pending[:i+1])
				pending = append(pending[:0], pending[i+1:]...)
				reply <- readResult{line: line}
				break
			}
			n, err := b.port.Read(buf)
			pending = append(pending, buf[:n]...)
			if err != nil {
				select {
				case <-b.done:
					err = ErrClosed
				default:
				}
				reply <- readResult{line: string(pending), err: err}
				pending = pending[:0]
				break
			}
			if n == 0 {
				select {
				case <-b.done:
					reply <- readResult{err: ErrClosed}
					return
				default:
				}
			}
		}
	}
}

// ReadRaw requests one accelerometer sample. It returns when the reply
// arrives, ctx is done, the response timeout passes or the board is closed.
func (b *Board) ReadRaw(ctx context.Context) (sensor.RawSample, error) {
	if err := ctx.Err(); err != nil {
		return sensor.RawSample{}, err
	}
	b.readMu.Lock()
	defer b.readMu.Unlock()

	timer := time.NewTimer(b.responseTimeout)
	defer timer.Stop()

	if err := b.write("A\n"); err != nil {
		return sensor.RawSample{}, err
	}
	reply := make(chan readResult, 1)
	select {
	case b.requests <- reply:
	case <-ctx.Done():
		return sensor.RawSample{}, ctx.Err()
	case <-timer.C:
		return sensor.RawSample{}, fmt.Errorf("%w after %s", ErrNoResponse, b.responseTimeout)
	case <-b.done:
		return sensor.RawSample{}, ErrClosed
	}

	select {
	case r := <-reply:
		if r.err != nil {
			return sensor.RawSample{}, fmt.Errorf("read sample: %w", r.err)
		}
		return sensor.ParseSample(r.line)
	case <-ctx.Done():
		return sensor.RawSample{}, ctx.Err()
	case <-timer.C:
		return sensor.RawSample{}, fmt.Errorf("%w after %s", ErrNoResponse, b.responseTimeout)
	case <-b.done:
		return sensor.RawSample{}, ErrClosed
	}
}

// SetIndicator sends an LED command. Failures are logged, the loop keeps
// running without the indicator.
func (b *Board) SetIndicator(ch indicator.Channel, on bool) {
	level := 0
	if on {
		level = 1
	}
	if err := b.write(fmt.Sprintf("L %d %d\n", int(ch), level)); err != nil {
		b.logger.Warn("set indicator", "channel", ch.String(), "on", on, "error", err)
	}
}

func (b *Board) write(cmd string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := io.WriteString(b.port, cmd); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// Close turns every indicator off, stops the reader and closes the port.
func (b *Board) Close() error {
	for _, ch := range []indicator.Channel{indicator.Proximity, indicator.Success, indicator.Alarm} {
		b.SetIndicator(ch, false)
	}
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		err = b.port.Close()
	})
	return err
}
