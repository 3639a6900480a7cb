// Package websocket streams run telemetry live to a server over a WebSocket.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tiltpilot/navsim/internal/storage"
	"github.com/tiltpilot/navsim/pkg/core"
	"github.com/tiltpilot/navsim/pkg/streaming"
)

// StreamPath is appended to the API server URL.
const StreamPath = "/api/v1/stream"

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// ConfigFromServer derives the stream URL from an http(s) API base URL.
func ConfigFromServer(serverURL, apiKey string) Config {
	u := strings.TrimRight(serverURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return Config{URL: u + StreamPath, Secret: apiKey}
}

// Backend streams run data over WebSocket. Status lines are fire-and-forget;
// run start and end wait for a server ack.
type Backend struct {
	link *link
	cfg  Config
}

var _ storage.Backend = (*Backend)(nil)

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	return &Backend{
		link: newLink(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.link.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.link.close()
}

// Dropped reports how many messages were discarded on a full send queue.
func (b *Backend) Dropped() uint64 {
	b.link.mu.Lock()
	defer b.link.mu.Unlock()
	return b.link.dropped
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.link.send(data)
	return nil
}

// StartRun sends the run header and waits for server ack. The message is
// kept for replay after a reconnect.
func (b *Backend) StartRun(run *core.Run) error {
	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{Run: run})
	if err != nil {
		return err
	}

	b.link.mu.Lock()
	b.link.startRunMsg = data
	b.link.mu.Unlock()

	return b.link.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// EndRun sends the summary and waits for server ack.
func (b *Backend) EndRun(summary *core.RunSummary) error {
	data, err := marshalEnvelope(streaming.TypeEndRun, streaming.EndRunPayload{Summary: summary})
	if err != nil {
		return err
	}
	err = b.link.sendAndWait(data, streaming.TypeEndRun, ackTimeout)

	b.link.mu.Lock()
	b.link.startRunMsg = nil
	b.link.mu.Unlock()

	return err
}

func (b *Backend) RecordStatus(s *core.StatusLine) error {
	return b.sendEnvelope(streaming.TypeStatus, s)
}

func (b *Backend) RecordWaypointEvent(e *core.WaypointEvent) error {
	return b.sendEnvelope(streaming.TypeWaypoint, e)
}

func (b *Backend) RecordHazardEvent(e *core.HazardEvent) error {
	return b.sendEnvelope(streaming.TypeHazard, e)
}
