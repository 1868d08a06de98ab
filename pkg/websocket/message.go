package websocket

import (
	"encoding/json"
	"time"
)

// Message types pushed to console clients.
const (
	TypeAppState         = "app.state"
	TypeDeletionProgress = "deletion.progress"
	TypeDivisionRefresh  = "division.refresh"
)

// Envelope wraps every outbound message so the frontend can dispatch on Type.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RefreshPayload names the list view to refetch.
type RefreshPayload struct {
	Path string `json:"path"`
}

// Encode marshals payload into an envelope of the given type.
func Encode(messageType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: messageType, Payload: payload, Timestamp: time.Now().UTC()})
}
