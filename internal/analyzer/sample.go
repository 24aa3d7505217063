package analyzer

import "math"

// sampleSegment visits points along a->b every spacing metres, starting one spacing from a.
// A segment shorter than spacing gets a single sample at b; a zero-length segment gets none.
// The start point is excluded so a shared vertex is counted once across consecutive segments.
func sampleSegment(ax, ay, bx, by, spacing float64, visit func(x, y float64)) int {
	length := math.Hypot(bx-ax, by-ay)
	if length == 0 || math.IsNaN(length) {
		return 0
	}
	n := max(1, int(math.Floor(length/spacing)))
	for k := 1; k <= n; k++ {
		d := math.Min(float64(k)*spacing, length)
		t := d / length
		visit(ax+(bx-ax)*t, ay+(by-ay)*t)
	}
	return n
}
