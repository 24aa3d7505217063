package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adventurelime/explorer/internal/grid"
	"github.com/adventurelime/explorer/internal/render"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/adventurelime/explorer/pkg/streaming"
)

// testServer upgrades to WebSocket, records every frame and acks hello frames.
func testServer(t *testing.T) (*httptest.Server, *frameLog) {
	t.Helper()
	fl := &frameLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl.setToken(r.URL.Query().Get("token"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			fl.add(env)

			if env.Type == streaming.TypeHello {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, fl
}

type frameLog struct {
	mu     sync.Mutex
	frames []streaming.Envelope
	token  string
}

func (f *frameLog) add(env streaming.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, env)
}

func (f *frameLog) setToken(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = tok
}

func (f *frameLog) all() []streaming.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]streaming.Envelope(nil), f.frames...)
}

func (f *frameLog) ofType(typ string) []streaming.Envelope {
	var out []streaming.Envelope
	for _, env := range f.all() {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connect(t *testing.T, srv *httptest.Server) *Renderer {
	t.Helper()
	r := New(Config{URL: wsURL(srv), Token: "map-secret"}, nil)
	require.NoError(t, r.Connect(streaming.HelloPayload{SessionID: "s-1", TileEdge: 50}))
	t.Cleanup(func() { r.Close() })
	return r
}

func TestConnect_SendsHelloAndToken(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()

	connect(t, srv)

	hello := fl.ofType(streaming.TypeHello)
	require.Len(t, hello, 1)
	var payload streaming.HelloPayload
	require.NoError(t, json.Unmarshal(hello[0].Payload, &payload))
	assert.Equal(t, "s-1", payload.SessionID)

	fl.mu.Lock()
	assert.Equal(t, "map-secret", fl.token)
	fl.mu.Unlock()
}

func TestRenderPath(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()
	r := connect(t, srv)

	points := []core.GeoPoint{{Lat: 43.66, Lon: -79.39}, {Lat: 43.661, Lon: -79.391}}
	require.NoError(t, r.RenderPath(points))

	require.Eventually(t, func() bool { return len(fl.ofType(streaming.TypePath)) == 1 }, time.Second, 5*time.Millisecond)
	var payload streaming.PathPayload
	require.NoError(t, json.Unmarshal(fl.ofType(streaming.TypePath)[0].Payload, &payload))
	assert.Equal(t, points, payload.Points)
	assert.True(t, strings.HasPrefix(payload.Line, "LINESTRING"))
}

func TestRenderPath_SinglePointHasNoLine(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()
	r := connect(t, srv)

	require.NoError(t, r.RenderPath([]core.GeoPoint{{Lat: 1, Lon: 1}}))

	require.Eventually(t, func() bool { return len(fl.ofType(streaming.TypePath)) == 1 }, time.Second, 5*time.Millisecond)
	var payload streaming.PathPayload
	require.NoError(t, json.Unmarshal(fl.ofType(streaming.TypePath)[0].Payload, &payload))
	assert.Empty(t, payload.Line)
}

func TestRenderTiles(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()
	r := connect(t, srv)

	idx, err := grid.Configure(core.Region{
		Center:  core.GeoPoint{Lat: 43.661, Lon: -79.395},
		LatSpan: 0.018,
		LonSpan: 0.020,
	}, 50)
	require.NoError(t, err)
	t.Cleanup(idx.Close)

	views := render.Views(idx, map[core.TileID]core.TileState{
		{Row: 1, Col: 2}: {HitCount: 10, Unlocked: true},
	})
	require.NoError(t, r.RenderTiles(views))

	require.Eventually(t, func() bool { return len(fl.ofType(streaming.TypeTiles)) == 1 }, time.Second, 5*time.Millisecond)
	var payload streaming.TilesPayload
	require.NoError(t, json.Unmarshal(fl.ofType(streaming.TypeTiles)[0].Payload, &payload))
	require.Len(t, payload.Tiles, 1)
	assert.Equal(t, "1_2", payload.Tiles[0].ID)
	assert.True(t, payload.Tiles[0].Unlocked)
	assert.True(t, strings.HasPrefix(payload.Tiles[0].Outline, "POLYGON"))
}

func TestPublish(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()
	r := connect(t, srv)

	r.Publish(core.LevelUp{Level: 3})

	require.Eventually(t, func() bool { return len(fl.ofType(streaming.TypeEvent)) == 1 }, time.Second, 5*time.Millisecond)
	var payload struct {
		Name string       `json:"name"`
		Data core.LevelUp `json:"data"`
	}
	require.NoError(t, json.Unmarshal(fl.ofType(streaming.TypeEvent)[0].Payload, &payload))
	assert.Equal(t, "level_up", payload.Name)
	assert.Equal(t, 3, payload.Data.Level)
}

func TestConnect_DialFailure(t *testing.T) {
	r := New(Config{URL: "ws://127.0.0.1:1/map"}, nil)
	assert.Error(t, r.Connect(streaming.HelloPayload{}))
	assert.NoError(t, r.Close())
}

func TestConnect_InvalidURL(t *testing.T) {
	r := New(Config{URL: "://bad"}, nil)
	assert.ErrorContains(t, r.Connect(streaming.HelloPayload{}), "invalid websocket URL")
}

func TestReconnectReplaysHello(t *testing.T) {
	srv, fl := testServer(t)
	defer srv.Close()

	r := New(Config{URL: wsURL(srv)}, nil)
	r.conn.backoff = 10 * time.Millisecond
	require.NoError(t, r.Connect(streaming.HelloPayload{SessionID: "s-2"}))
	t.Cleanup(func() { r.Close() })

	// drop the connection from our side to force the loops into reconnect
	r.conn.mu.Lock()
	_ = r.conn.conn.Close()
	r.conn.mu.Unlock()

	require.Eventually(t, func() bool { return len(fl.ofType(streaming.TypeHello)) == 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	r := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, r.Connect(streaming.HelloPayload{}))
	require.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
