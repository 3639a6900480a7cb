// Package streaming defines the websocket wire format for live run telemetry.
package streaming

import (
	"encoding/json"

	"github.com/tiltpilot/navsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun = "start_run"
	TypeEndRun   = "end_run"
	TypeStatus   = "status"
	TypeWaypoint = "waypoint"
	TypeHazard   = "hazard"
	TypeAck      = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces a run to the server.
type StartRunPayload struct {
	Run *core.Run `json:"run"`
}

// EndRunPayload closes a run.
type EndRunPayload struct {
	Summary *core.RunSummary `json:"summary"`
}
