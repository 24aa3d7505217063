package pathlog

import (
	"math"
	"sync"
	"testing"

	"github.com/adventurelime/explorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flat treats lat/lon as planar metres.
type flat struct{}

func (flat) Distance(a, b core.GeoPoint) float64 {
	return math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
}

func pt(x, y float64) core.GeoPoint {
	return core.GeoPoint{Lat: y, Lon: x}
}

func TestRecord_MovementThreshold(t *testing.T) {
	l := New(flat{}, 5)

	assert.True(t, l.Record(pt(0, 0)), "first point is always accepted")
	assert.False(t, l.Record(pt(3, 0)), "below threshold")
	assert.False(t, l.Record(pt(4.99, 0)))
	assert.True(t, l.Record(pt(5, 0)), "exactly at threshold")
	assert.Equal(t, 2, l.Len())
}

func TestRecord_ComparesAgainstLastPointOnly(t *testing.T) {
	l := New(flat{}, 5)

	require.True(t, l.Record(pt(0, 0)))
	require.True(t, l.Record(pt(10, 0)))
	// 10 m from the last point but back at the first one
	assert.True(t, l.Record(pt(0, 0)))

	assert.Equal(t, []core.GeoPoint{pt(0, 0), pt(10, 0), pt(0, 0)}, l.Points())
}

func TestSnapshot_IsACopy(t *testing.T) {
	l := New(flat{}, 0)
	l.Record(pt(1, 1))

	snap := l.Snapshot()
	snap.Points[0] = pt(99, 99)
	l.Record(pt(2, 2))

	assert.Len(t, snap.Points, 1)
	assert.Equal(t, pt(1, 1), l.Points()[0])
}

func TestAdvance(t *testing.T) {
	l := New(flat{}, 0)
	for i := 0; i < 5; i++ {
		l.Record(pt(float64(i), 0))
	}
	snap := l.Snapshot()

	assert.True(t, l.Advance(snap.Generation, 3))
	assert.Equal(t, 3, l.Cursor())

	assert.False(t, l.Advance(snap.Generation, 2), "cursor never moves backwards")
	assert.False(t, l.Advance(snap.Generation, 6), "cursor never passes the end")
	assert.Equal(t, 3, l.Cursor())
}

func TestAdvance_StaleAfterClear(t *testing.T) {
	l := New(flat{}, 0)
	l.Record(pt(0, 0))
	l.Record(pt(1, 0))
	snap := l.Snapshot()

	l.Clear()
	l.Record(pt(5, 5))
	l.Record(pt(6, 6))

	assert.False(t, l.Advance(snap.Generation, 2))
	assert.Equal(t, 0, l.Cursor())
}

func TestClear(t *testing.T) {
	l := New(flat{}, 0)
	l.Record(pt(0, 0))
	l.Record(pt(1, 0))
	snap := l.Snapshot()
	require.True(t, l.Advance(snap.Generation, 2))

	l.Clear()

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, l.Cursor())
	assert.True(t, l.Record(pt(1, 0)), "first point after clear is accepted")
}

func TestRestore_ClampsCursor(t *testing.T) {
	l := New(flat{}, 0)
	points := []core.GeoPoint{pt(0, 0), pt(1, 0), pt(2, 0)}

	l.Restore(points, 10)
	assert.Equal(t, 3, l.Cursor())

	l.Restore(points, -4)
	assert.Equal(t, 0, l.Cursor())

	points[0] = pt(42, 42)
	assert.Equal(t, pt(0, 0), l.Points()[0], "restore copies its input")
}

func TestRecord_Concurrent(t *testing.T) {
	l := New(flat{}, 0)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				l.Record(pt(float64(w), float64(i)))
				_ = l.Snapshot()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 800, l.Len())
}
