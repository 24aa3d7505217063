// pkg/core/status.go
package core

// Status is a point-in-time summary of a session, reported by the :STATUS: command and the status monitor.
type Status struct {
	SessionID     string  `json:"sessionId"`
	PathPoints    int     `json:"pathPoints"`
	PathMetres    float64 `json:"pathMetres"`
	Cursor        int     `json:"cursor"`
	TileCount     int     `json:"tileCount"`
	UnlockedTiles int     `json:"unlockedTiles"`
	Coverage      float64 `json:"coverage"`
	XP            int     `json:"xp"`
	Level         int     `json:"level"`
	LevelProgress float64 `json:"levelProgress"`
	VisitedPOIs   int     `json:"visitedPOIs"`
	Achievements  int     `json:"achievements"`
	ActiveQuest   string  `json:"activeQuest,omitempty"`
	PendingWrites int     `json:"pendingWrites"`
	DroppedEvents int64   `json:"droppedEvents"`
}
