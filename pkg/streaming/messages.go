// Package streaming defines the JSON frames sent to a map client over WebSocket.
package streaming

import (
	"encoding/json"

	"github.com/adventurelime/explorer/pkg/core"
)

// Message type constants of the map protocol.
const (
	TypeHello = "hello"
	TypePath  = "path"
	TypeTiles = "tiles"
	TypeEvent = "event"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the client's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload announces the session and the region the grid covers. It is replayed after a reconnect.
type HelloPayload struct {
	SessionID string      `json:"sessionId"`
	Region    core.Region `json:"region"`
	TileEdge  float64     `json:"tileEdge"`
}

// PathPayload carries the whole recorded path and its WKT line string.
type PathPayload struct {
	Points []core.GeoPoint `json:"points"`
	Line   string          `json:"line,omitempty"`
}

// TileFrame is one tile with progress and its lon/lat outline as WKT.
type TileFrame struct {
	ID       string `json:"id"`
	HitCount int    `json:"hitCount"`
	Unlocked bool   `json:"unlocked"`
	Outline  string `json:"outline"`
}

// TilesPayload carries every touched tile.
type TilesPayload struct {
	Tiles []TileFrame `json:"tiles"`
}

// EventPayload forwards a session event by name.
type EventPayload struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}
