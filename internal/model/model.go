package model

import (
	"time"

	"gorm.io/datatypes"
)

// SnapshotRowID is the primary key of the single row each snapshot table holds.
const SnapshotRowID = 1

// DatabaseModels lists every table migrated at startup.
var DatabaseModels = []any{
	&ExplorationSnapshot{},
	&ProgressionSnapshot{},
}

// ExplorationSnapshot stores path, tile progress and cursor in one row so they are always
// written together.
type ExplorationSnapshot struct {
	ID              uint           `gorm:"primaryKey;autoIncrement:false"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime"`
	Path            datatypes.JSON `gorm:"not null"`
	UnlockedTileIDs datatypes.JSON `gorm:"not null"`
	TileHitCounts   datatypes.JSON `gorm:"not null"`
	Cursor          int            `gorm:"not null;default:0"`
	PathLength      int            `gorm:"not null;default:0"`
}

func (*ExplorationSnapshot) TableName() string {
	return "exploration_snapshots"
}

// ProgressionSnapshot stores the ledger state and achievement unlock times.
type ProgressionSnapshot struct {
	ID            uint           `gorm:"primaryKey;autoIncrement:false"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	XP            int            `gorm:"not null;default:0"`
	Level         int            `gorm:"not null;default:1"`
	ExploredTiles datatypes.JSON `gorm:"not null"`
	VisitedPOIs   datatypes.JSON `gorm:"not null"`
	Achievements  datatypes.JSON
}

func (*ProgressionSnapshot) TableName() string {
	return "progression_snapshots"
}
