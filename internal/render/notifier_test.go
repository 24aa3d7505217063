package render

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adventurelime/explorer/internal/grid"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRenderer struct {
	paths atomic.Int32
	tiles atomic.Int32

	mu       sync.Mutex
	lastPath []core.GeoPoint
}

func (r *countingRenderer) RenderPath(points []core.GeoPoint) error {
	r.paths.Add(1)
	r.mu.Lock()
	r.lastPath = points
	r.mu.Unlock()
	return nil
}

func (r *countingRenderer) RenderTiles([]TileView) error {
	r.tiles.Add(1)
	return nil
}

func TestNotifier_BurstCoalesces(t *testing.T) {
	r := &countingRenderer{}
	points := []core.GeoPoint{{Lat: 1, Lon: 2}}
	n := NewNotifier(r, Sources{
		Path:  func() []core.GeoPoint { return points },
		Tiles: func() []TileView { return nil },
	}, 100*time.Millisecond, nil)
	defer n.Stop()

	for i := 0; i < 20; i++ {
		n.PathChanged()
		time.Sleep(time.Millisecond)
	}

	require.Eventually(t, func() bool { return r.paths.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), r.paths.Load())
	assert.Equal(t, int32(0), r.tiles.Load(), "tiles were not marked")
	assert.Equal(t, 1, n.Renders())

	r.mu.Lock()
	assert.Equal(t, points, r.lastPath)
	r.mu.Unlock()
}

func TestNotifier_BothLayersInOneRender(t *testing.T) {
	r := &countingRenderer{}
	n := NewNotifier(r, Sources{
		Path:  func() []core.GeoPoint { return nil },
		Tiles: func() []TileView { return nil },
	}, 10*time.Millisecond, nil)
	defer n.Stop()

	n.PathChanged()
	n.TilesChanged()

	require.Eventually(t, func() bool { return r.tiles.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), r.paths.Load())
	assert.Equal(t, 1, n.Renders())
}

func TestNotifier_StopCancelsPending(t *testing.T) {
	r := &countingRenderer{}
	n := NewNotifier(r, Sources{Path: func() []core.GeoPoint { return nil }}, 20*time.Millisecond, nil)

	n.PathChanged()
	n.Stop()
	n.PathChanged()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), r.paths.Load())
	n.Stop()
}

func TestViews(t *testing.T) {
	idx, err := grid.Configure(core.Region{
		Center:  core.GeoPoint{Lat: 43.661, Lon: -79.395},
		LatSpan: 0.018,
		LonSpan: 0.020,
	}, 50)
	require.NoError(t, err)
	t.Cleanup(idx.Close)

	views := Views(idx, map[core.TileID]core.TileState{
		{Row: 2, Col: 1}:       {HitCount: 3},
		{Row: 0, Col: 5}:       {HitCount: 10, Unlocked: true},
		{Row: 9999, Col: 9999}: {HitCount: 1},
	})

	require.Len(t, views, 2)
	assert.Equal(t, core.TileID{Row: 0, Col: 5}, views[0].ID)
	assert.True(t, views[0].State.Unlocked)
	assert.Equal(t, core.TileID{Row: 2, Col: 1}, views[1].ID)
	assert.False(t, views[1].Outline.IsEmpty())
}

func TestNop(t *testing.T) {
	var r Renderer = Nop{}
	assert.NoError(t, r.RenderPath(nil))
	assert.NoError(t, r.RenderTiles(nil))
}
