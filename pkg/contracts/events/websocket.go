// Package events defines the frames pushed to dashboard clients over the
// live-update websocket.
package events

import "time"

// Message types.
const (
	TypeConnection      = "connection"
	TypeDatasetReloaded = "dataset:reloaded"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ConnectionData greets a client right after it registers.
type ConnectionData struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// DatasetReloaded is broadcast after every successful load.
type DatasetReloaded struct {
	Fingerprint  string    `json:"fingerprint"`
	LoadedAt     time.Time `json:"loaded_at"`
	TotalRecords int       `json:"total_records"`
	TotalTenders int       `json:"total_tenders"`
	Changed      bool      `json:"changed"`
}

// NewMessage wraps data in an envelope stamped with now in RFC 3339.
func NewMessage(messageType string, data interface{}, now time.Time, traceID string) Message {
	return Message{
		Type:      messageType,
		Data:      data,
		Timestamp: now.UTC().Format(time.RFC3339),
		TraceID:   traceID,
	}
}
