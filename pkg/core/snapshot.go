// pkg/core/snapshot.go
package core

import "time"

// ExplorationSnapshot is the persisted form of path, tile progress and scan cursor.
// The cursor is stored with the path it indexes so both are checkpointed together.
type ExplorationSnapshot struct {
	Path            []GeoPoint     `json:"path"`
	UnlockedTileIDs []string       `json:"unlockedTileIds"`
	Cursor          int            `json:"cursor"`
	TileHitCounts   map[string]int `json:"tileHitCounts"`
}

// ProgressionSnapshot is the persisted form of ProgressionState.
type ProgressionSnapshot struct {
	XP            int                  `json:"xp"`
	ExploredTiles []string             `json:"exploredTiles"`
	VisitedPOIs   []string             `json:"visitedPOIs"`
	Achievements  map[string]time.Time `json:"achievements,omitempty"`
}

// Snapshot converts the state into its persisted form.
func (s ProgressionState) Snapshot() ProgressionSnapshot {
	return ProgressionSnapshot{
		XP:            s.XP,
		ExploredTiles: sortedKeys(s.ExploredTiles),
		VisitedPOIs:   sortedKeys(s.VisitedPOIs),
	}
}

// State converts a persisted snapshot back into a ProgressionState.
func (s ProgressionSnapshot) State() ProgressionState {
	state := NewProgressionState()
	if s.XP > 0 {
		state.XP = s.XP
	}
	for _, id := range s.ExploredTiles {
		state.ExploredTiles[id] = struct{}{}
	}
	for _, id := range s.VisitedPOIs {
		state.VisitedPOIs[id] = struct{}{}
	}
	return state
}
