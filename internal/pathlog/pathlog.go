// Package pathlog holds the append-only log of accepted location points and its scan cursor.
package pathlog

import (
	"sync"

	"github.com/adventurelime/explorer/pkg/core"
)

// Measurer returns the ground distance between two points in metres.
type Measurer interface {
	Distance(a, b core.GeoPoint) float64
}

// Snapshot is an immutable copy of the log.
// Generation changes on every Clear so a stale snapshot cannot move the cursor.
type Snapshot struct {
	Points     []core.GeoPoint
	Cursor     int
	Generation uint64
}

// Log is safe for concurrent use. All state sits behind one mutex held only for copies and appends.
type Log struct {
	mu         sync.Mutex
	points     []core.GeoPoint
	cursor     int
	generation uint64

	threshold float64
	measure   Measurer
}

// New returns an empty log that accepts a point only when it is at least threshold metres from
// the previous one.
func New(measure Measurer, threshold float64) *Log {
	return &Log{
		points:    make([]core.GeoPoint, 0, 256),
		threshold: threshold,
		measure:   measure,
	}
}

// Record appends p if it moved far enough from the last recorded point and reports whether it did.
// The first point is always accepted.
func (l *Log) Record(p core.GeoPoint) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.points); n > 0 {
		if l.measure.Distance(l.points[n-1], p) < l.threshold {
			return false
		}
	}
	l.points = append(l.points, p)
	return true
}

// Snapshot copies the points together with the cursor.
func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	points := make([]core.GeoPoint, len(l.points))
	copy(points, l.points)
	return Snapshot{Points: points, Cursor: l.cursor, Generation: l.generation}
}

// Points returns a copy of the recorded points.
func (l *Log) Points() []core.GeoPoint {
	return l.Snapshot().Points
}

// Len returns the number of recorded points.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.points)
}

// Cursor returns the number of points already analyzed.
func (l *Log) Cursor() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Advance moves the cursor to cursor if the log was not cleared since the snapshot was taken
// (same generation). The cursor never moves backwards and never passes the end of the log.
func (l *Log) Advance(generation uint64, cursor int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if generation != l.generation || cursor < l.cursor || cursor > len(l.points) {
		return false
	}
	l.cursor = cursor
	return true
}

// Clear empties the log and resets the cursor to 0.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.points = make([]core.GeoPoint, 0, 256)
	l.cursor = 0
	l.generation++
}

// Restore replaces the log contents with persisted state. The cursor is clamped into [0, len(points)].
func (l *Log) Restore(points []core.GeoPoint, cursor int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.points = make([]core.GeoPoint, len(points), len(points)+256)
	copy(l.points, points)
	l.cursor = min(max(cursor, 0), len(points))
	l.generation++
}
