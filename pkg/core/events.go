// pkg/core/events.go
package core

// Event is a typed notification pushed to subscribers.
type Event interface {
	EventName() string
}

// XPChanged is emitted after every XP mutation.
type XPChanged struct {
	XP            int
	Level         int
	LevelProgress float64
}

// LevelUp is emitted once per award that crosses at least one level boundary.
type LevelUp struct {
	Level int
}

// TileExplored is emitted when the ledger records a tile for the first time.
type TileExplored struct {
	TileID string
}

// TileUnlocked is emitted by the analyzer when a tile crosses the unlock threshold.
type TileUnlocked struct {
	ID TileID
}

// POIDiscovered is emitted when the ledger records a point of interest for the first time.
type POIDiscovered struct {
	POIID string
	Count int
}

// AchievementUnlocked carries the achievement that was just earned.
type AchievementUnlocked struct {
	Achievement Achievement
}

// PathCleared is emitted when a clear command was applied.
type PathCleared struct {
	Token uint64
}

// ProgressReset is emitted after the ledger was reset.
type ProgressReset struct{}

// QuestCompleted is emitted when the point of interest of the active quest is discovered.
type QuestCompleted struct {
	POIID string
}

func (XPChanged) EventName() string           { return "xp_changed" }
func (LevelUp) EventName() string             { return "level_up" }
func (TileExplored) EventName() string        { return "tile_explored" }
func (TileUnlocked) EventName() string        { return "tile_unlocked" }
func (POIDiscovered) EventName() string       { return "poi_discovered" }
func (AchievementUnlocked) EventName() string { return "achievement_unlocked" }
func (PathCleared) EventName() string         { return "path_cleared" }
func (ProgressReset) EventName() string       { return "progress_reset" }
func (QuestCompleted) EventName() string      { return "quest_completed" }
