// pkg/core/progress.go
package core

import (
	"sort"
	"time"
)

// XPPerLevel is the XP needed to advance one level.
const XPPerLevel = 1000

// LevelForXP returns the level reached with xp experience points.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// LevelProgressForXP returns the fraction of the current level completed, in [0,1).
func LevelProgressForXP(xp int) float64 {
	if xp < 0 {
		return 0
	}
	return float64(xp%XPPerLevel) / XPPerLevel
}

// ProgressionState is the account-level progression owned by the ledger.
type ProgressionState struct {
	XP            int
	ExploredTiles map[string]struct{}
	VisitedPOIs   map[string]struct{}
}

// NewProgressionState returns an empty state with initialized sets.
func NewProgressionState() ProgressionState {
	return ProgressionState{
		ExploredTiles: make(map[string]struct{}),
		VisitedPOIs:   make(map[string]struct{}),
	}
}

// Level is derived from XP.
func (s ProgressionState) Level() int {
	return LevelForXP(s.XP)
}

// LevelProgress is derived from XP.
func (s ProgressionState) LevelProgress() float64 {
	return LevelProgressForXP(s.XP)
}

// Clone returns a deep copy.
func (s ProgressionState) Clone() ProgressionState {
	out := ProgressionState{
		XP:            s.XP,
		ExploredTiles: make(map[string]struct{}, len(s.ExploredTiles)),
		VisitedPOIs:   make(map[string]struct{}, len(s.VisitedPOIs)),
	}
	for id := range s.ExploredTiles {
		out.ExploredTiles[id] = struct{}{}
	}
	for id := range s.VisitedPOIs {
		out.VisitedPOIs[id] = struct{}{}
	}
	return out
}

// AchievementKind selects which progress signal drives an achievement.
type AchievementKind string

const (
	KindCoverage AchievementKind = "coverage"
	KindPOI      AchievementKind = "poi"
)

// Achievement is a threshold goal. UnlockedAt is nil until the goal is met and never changes afterwards.
type Achievement struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Kind        AchievementKind `json:"kind" yaml:"kind"`
	Target      float64         `json:"target" yaml:"target"`
	Progress    float64         `json:"progress" yaml:"-"`
	UnlockedAt  *time.Time      `json:"unlockedAt,omitempty" yaml:"-"`
}

// IsUnlocked reports whether the achievement has been earned.
func (a Achievement) IsUnlocked() bool {
	return a.UnlockedAt != nil
}

// sortedKeys returns set members in a stable order for persistence.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
