// Package websocket streams render frames to a map client over a WebSocket connection.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adventurelime/explorer/internal/geo"
	"github.com/adventurelime/explorer/internal/render"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/adventurelime/explorer/pkg/streaming"
)

const helloTimeout = 10 * time.Second

// Config holds the map client connection settings.
type Config struct {
	URL   string
	Token string
}

// Renderer implements render.Renderer by sending JSON frames. Frames are fire-and-forget
// except the hello frame, which waits for an ack.
type Renderer struct {
	conn *connection
	cfg  Config
}

var _ render.Renderer = (*Renderer)(nil)

// New creates a renderer. Call Connect before rendering.
func New(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Connect dials the map client and introduces the session.
func (r *Renderer) Connect(hello streaming.HelloPayload) error {
	if err := r.conn.dial(r.cfg.URL, r.cfg.Token); err != nil {
		return err
	}
	data, err := marshalEnvelope(streaming.TypeHello, hello)
	if err != nil {
		return err
	}

	r.conn.mu.Lock()
	r.conn.cachedHello = data
	r.conn.mu.Unlock()

	return r.conn.sendAndWait(data, streaming.TypeHello, helloTimeout)
}

// Close disconnects from the map client.
func (r *Renderer) Close() error {
	return r.conn.close()
}

// RenderPath sends the full path and its WKT line string.
func (r *Renderer) RenderPath(points []core.GeoPoint) error {
	payload := streaming.PathPayload{Points: points}
	if line := geo.PathLineString(points); !line.IsEmpty() {
		payload.Line = line.AsText()
	}
	return r.sendEnvelope(streaming.TypePath, payload)
}

// RenderTiles sends every tile view with its outline as WKT.
func (r *Renderer) RenderTiles(tiles []render.TileView) error {
	frames := make([]streaming.TileFrame, 0, len(tiles))
	for _, t := range tiles {
		frames = append(frames, streaming.TileFrame{
			ID:       t.ID.String(),
			HitCount: t.State.HitCount,
			Unlocked: t.State.Unlocked,
			Outline:  t.Outline.AsText(),
		})
	}
	return r.sendEnvelope(streaming.TypeTiles, streaming.TilesPayload{Tiles: frames})
}

// Publish forwards a session event to the map client.
func (r *Renderer) Publish(ev core.Event) {
	if err := r.sendEnvelope(streaming.TypeEvent, streaming.EventPayload{Name: ev.EventName(), Data: ev}); err != nil {
		r.conn.logger.Warn("Failed to forward event", "event", ev.EventName(), "error", err)
	}
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

func (r *Renderer) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if !r.conn.send(data) {
		return fmt.Errorf("send queue full, dropped %s frame", msgType)
	}
	return nil
}
