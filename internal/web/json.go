package web

import (
	"encoding/json"

	"github.com/sweeney/semaphor/internal/status"
)

// wsEnvelope is one websocket message.
type wsEnvelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// stateEnvelope wraps a status snapshot for the live stream. The data
// field carries the same document as /index.json.
func stateEnvelope(snap status.Snapshot) wsEnvelope {
	return wsEnvelope{Type: "state", Data: json.RawMessage(status.FormatJSON(snap))}
}
