// Package achievement unlocks threshold goals from running progress totals.
package achievement

import (
	"sync"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
)

// Event is a progress signal. Both kinds carry running totals, not deltas.
type Event interface {
	Kind() core.AchievementKind
	Value() float64
}

// CoverageUpdated carries the explored share of the grid in [0,1].
type CoverageUpdated struct {
	Percent float64
}

// POIVisited carries the number of distinct points of interest visited so far.
type POIVisited struct {
	Count int
}

func (CoverageUpdated) Kind() core.AchievementKind { return core.KindCoverage }
func (e CoverageUpdated) Value() float64           { return e.Percent }
func (POIVisited) Kind() core.AchievementKind      { return core.KindPOI }
func (e POIVisited) Value() float64                { return float64(e.Count) }

// Engine holds the catalog with each achievement's progress and unlock time.
type Engine struct {
	mu      sync.Mutex
	catalog []core.Achievement
}

// NewEngine creates an engine over catalog. The catalog order decides which achievement wins when
// several qualify at once.
func NewEngine(catalog []core.Achievement) *Engine {
	e := &Engine{catalog: make([]core.Achievement, len(catalog))}
	for i, a := range catalog {
		a.Progress = 0
		a.UnlockedAt = nil
		e.catalog[i] = a
	}
	return e
}

// Apply overwrites the progress of every achievement of the event's kind and unlocks the first one
// that newly reaches its target. Already unlocked achievements never lock again.
func (e *Engine) Apply(ev Event, now time.Time) (core.Achievement, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	found := -1
	for i := range e.catalog {
		a := &e.catalog[i]
		if a.Kind != ev.Kind() {
			continue
		}
		a.Progress = ev.Value()
		if found < 0 && !a.IsUnlocked() && a.Progress >= a.Target {
			found = i
		}
	}
	if found < 0 {
		return core.Achievement{}, false
	}

	at := now
	e.catalog[found].UnlockedAt = &at
	return clone(e.catalog[found]), true
}

// ApplyAll applies ev until no further achievement unlocks and returns every unlock in catalog order.
func (e *Engine) ApplyAll(ev Event, now time.Time) []core.Achievement {
	var out []core.Achievement
	for {
		a, ok := e.Apply(ev, now)
		if !ok {
			return out
		}
		out = append(out, a)
	}
}

// Achievements returns a copy of the catalog with current progress.
func (e *Engine) Achievements() []core.Achievement {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Achievement, len(e.catalog))
	for i, a := range e.catalog {
		out[i] = clone(a)
	}
	return out
}

// Unlocked returns the unlock time of every unlocked achievement.
func (e *Engine) Unlocked() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]time.Time)
	for _, a := range e.catalog {
		if a.UnlockedAt != nil {
			out[a.ID] = *a.UnlockedAt
		}
	}
	return out
}

// Restore marks the given achievements unlocked at their recorded time. Unknown ids are ignored.
func (e *Engine) Restore(unlocked map[string]time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.catalog {
		if at, ok := unlocked[e.catalog[i].ID]; ok {
			at := at
			e.catalog[i].UnlockedAt = &at
		}
	}
}

// Reset clears progress and unlock times.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.catalog {
		e.catalog[i].Progress = 0
		e.catalog[i].UnlockedAt = nil
	}
}

func clone(a core.Achievement) core.Achievement {
	if a.UnlockedAt != nil {
		at := *a.UnlockedAt
		a.UnlockedAt = &at
	}
	return a
}
