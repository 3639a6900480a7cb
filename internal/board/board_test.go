package board

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/tiltpilot/navsim/internal/indicator"
	"github.com/tiltpilot/navsim/internal/sensor"
)

type fakePort struct {
	in       *strings.Reader
	out      bytes.Buffer
	writeErr error
	closed   bool
}

func newFakePort(replies string) *fakePort {
	return &fakePort{in: strings.NewReader(replies)}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.in.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.out.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// silentPort accepts writes and never answers; Read blocks until Close.
type silentPort struct {
	mu     sync.Mutex
	out    bytes.Buffer
	closed chan struct{}
	once   sync.Once
}

func newSilentPort() *silentPort { return &silentPort{closed: make(chan struct{})} }

func (p *silentPort) Read([]byte) (int, error) {
	<-p.closed
	return 0, io.EOF
}

func (p *silentPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *silentPort) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *silentPort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

// timeoutPort never answers either, but its reads time out like a serial
// port with a read timeout set.
type timeoutPort struct {
	silentPort
	timeout time.Duration
}

func (p *timeoutPort) SetReadTimeout(d time.Duration) error {
	p.timeout = d
	return nil
}

func (p *timeoutPort) Read([]byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.EOF
	case <-time.After(p.timeout):
		return 0, nil
	}
}

func quiet() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestReadRaw(t *testing.T) {
	port := newFakePort("12,-3,1001\n-400,0,998\n")
	b := New(port, quiet())

	got, err := b.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sensor.RawSample{X: 12, Y: -3, Z: 1001}, got)

	got, err = b.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sensor.RawSample{X: -400, Z: 998}, got)

	assert.Equal(t, "A\nA\n", port.out.String())
}

func TestReadRaw_Malformed(t *testing.T) {
	b := New(newFakePort("garbage\n"), quiet())
	_, err := b.ReadRaw(context.Background())
	assert.ErrorIs(t, err, sensor.ErrMalformedSample)
}

func TestReadRaw_WriteFails(t *testing.T) {
	port := newFakePort("")
	port.writeErr = errors.New("disconnected")
	b := New(port, quiet())

	_, err := b.ReadRaw(context.Background())
	assert.ErrorIs(t, err, ErrWriteFailed)
}

func TestReadRaw_EOF(t *testing.T) {
	b := New(newFakePort("1,2"), quiet())
	_, err := b.ReadRaw(context.Background())
	assert.Error(t, err)
}

func TestBoard_CalibratesThroughSensor(t *testing.T) {
	b := New(newFakePort("0,0,1000\n500,0,1000\n"), quiet())

	c, err := sensor.Calibrate(context.Background(), b, 1000)
	require.NoError(t, err)
	tilt, err := c.SampleTilt(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.5, tilt.X)
}

func TestSetIndicator(t *testing.T) {
	port := newFakePort("")
	b := New(port, quiet())

	b.SetIndicator(indicator.Success, true)
	b.SetIndicator(indicator.Alarm, false)

	assert.Equal(t, "L 1 1\nL 2 0\n", port.out.String())
}

func TestSetIndicator_WriteErrorIsNotFatal(t *testing.T) {
	port := newFakePort("")
	port.writeErr = errors.New("disconnected")
	b := New(port, quiet())

	assert.NotPanics(t, func() { b.SetIndicator(indicator.Proximity, true) })
}

func TestClose_TurnsIndicatorsOff(t *testing.T) {
	port := newFakePort("")
	b := New(port, quiet())

	require.NoError(t, b.Close())
	assert.True(t, port.closed)
	assert.Equal(t, "L 0 0\nL 1 0\nL 2 0\n", port.out.String())
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 115200, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	mode, err = PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)
}

func TestPortOptions_Invalid(t *testing.T) {
	for _, opts := range []PortOptions{
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "mark"},
	} {
		_, err := opts.Normalize()
		assert.Error(t, err, "%+v", opts)
	}
}

func TestReadRaw_NoResponseTimesOut(t *testing.T) {
	port := newSilentPort()
	b := New(port, quiet(), WithResponseTimeout(50*time.Millisecond))
	defer b.Close()

	start := time.Now()
	_, err := b.ReadRaw(context.Background())
	assert.ErrorIs(t, err, ErrNoResponse)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReadRaw_ReturnsOnCancel(t *testing.T) {
	port := newSilentPort()
	b := New(port, quiet(), WithResponseTimeout(time.Hour))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := b.ReadRaw(ctx)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("ReadRaw ignored cancellation")
	}
}

func TestSetIndicator_NotBlockedByPendingRead(t *testing.T) {
	port := newSilentPort()
	b := New(port, quiet(), WithResponseTimeout(time.Hour))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = b.ReadRaw(ctx) }()
	time.Sleep(20 * time.Millisecond)

	// The triggers reach the board through indicator.State.
	st := indicator.NewState(b, time.Minute)
	st.EnableFast(0.5)
	done := make(chan struct{})
	go func() {
		st.FireFast(500*time.Millisecond, 100*time.Millisecond)
		st.FireSlow(time.Second)
		st.DisableFast()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("indicator writes blocked behind a sample request")
	}
	assert.Equal(t, "A\nL 0 1\nL 0 0\n", port.written())
}

func TestReadRaw_AfterClose(t *testing.T) {
	b := New(newSilentPort(), quiet())
	require.NoError(t, b.Close())

	_, err := b.ReadRaw(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNew_SetsReadTimeout(t *testing.T) {
	port := &timeoutPort{silentPort: silentPort{closed: make(chan struct{})}}
	b := New(port, quiet(), WithResponseTimeout(30*time.Millisecond))

	assert.Equal(t, pollInterval, port.timeout)
	_, err := b.ReadRaw(context.Background())
	assert.ErrorIs(t, err, ErrNoResponse)

	require.NoError(t, b.Close())
}

func TestReadRaw_LateReplyIsNotReused(t *testing.T) {
	pr, pw := io.Pipe()
	port := &pipePort{r: pr}
	b := New(port, quiet(), WithResponseTimeout(100*time.Millisecond))
	defer b.Close()

	_, err := b.ReadRaw(context.Background())
	require.ErrorIs(t, err, ErrNoResponse)

	go func() { _, _ = io.WriteString(pw, "1,1,1\n2,2,2\n") }()
	got, err := b.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sensor.RawSample{X: 2, Y: 2, Z: 2}, got)
}

// pipePort reads from a pipe and discards writes.
type pipePort struct {
	r *io.PipeReader
}

func (p *pipePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *pipePort) Close() error                { return p.r.Close() }
