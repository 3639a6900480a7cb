package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/tiltpilot/navsim/pkg/streaming"
)

const (
	sendChSize   = 4096
	ackChSize    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// link manages a WebSocket connection with a single write goroutine.
type link struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL  string
	secret string

	// start_run message replayed after a reconnect.
	startRunMsg []byte

	dropped uint64
	logger  *slog.Logger
}

func newLink(logger *slog.Logger) *link {
	if logger == nil {
		logger = slog.Default()
	}
	return &link{
		sendCh: make(chan []byte, sendChSize),
		ackCh:  make(chan streaming.AckMessage, ackChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (l *link) dial(rawURL, secret string) error {
	l.wsURL = rawURL
	l.secret = secret

	conn, err := l.dialOnce()
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	go l.writeLoop()
	go l.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (l *link) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(l.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if l.secret != "" {
		q := u.Query()
		q.Set("secret", l.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (l *link) current() *ws.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (l *link) writeLoop() {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.sendCh:
			conn := l.current()
			if conn == nil {
				continue
			}

			if err := writeText(conn, data); err != nil {
				l.logger.Warn("WebSocket write error", "error", err)
				go l.reconnect()
				return
			}
		}
	}
}

func writeText(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// readLoop reads ack messages from the server and routes them to ackCh.
func (l *link) readLoop() {
	for {
		conn := l.current()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.Warn("WebSocket read error", "error", err)
			go l.reconnect()
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			l.logger.Debug("Non-ack message received", "raw", string(message))
			continue
		}

		select {
		case l.ackCh <- ack:
		default:
			l.logger.Debug("Ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect re-establishes the connection with exponential backoff, replays
// start_run and restarts the read/write loops.
func (l *link) reconnect() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}

		l.logger.Info("Reconnecting to WebSocket", "attempt", attempt)
		conn, err := l.dialOnce()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		l.mu.Lock()
		l.conn = conn
		startRun := l.startRunMsg
		l.mu.Unlock()

		if startRun != nil {
			if err := writeText(conn, startRun); err != nil {
				l.logger.Warn("Failed to replay start_run after reconnect", "error", err)
				_ = conn.Close()
				continue
			}
		}

		l.logger.Info("WebSocket reconnected", "attempt", attempt)
		go l.writeLoop()
		go l.readLoop()
		return
	}

	l.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (l *link) send(data []byte) {
	select {
	case l.sendCh <- data:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
		l.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges with a
// matching ack message or the timeout expires.
func (l *link) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-l.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
