// Package websocket pushes live dashboard events to browser clients.
//
// A Hub owns the set of connected clients and fans broadcast messages out to
// them. Every client receives a "connection" message when it registers and
// then every event the hub broadcasts, such as "dataset:reloaded". Clients do
// not send commands; anything they write other than heartbeats is ignored.
package websocket

import (
	"time"
)

// Connection is the part of *websocket.Conn the client pumps use.
type Connection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	RemoteAddr() string
}
