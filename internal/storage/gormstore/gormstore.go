// Package gormstore persists snapshots in a SQL database through gorm.
// Each snapshot kind is a single-row table; saves are upserts run in a transaction.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adventurelime/explorer/internal/model"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Backend stores snapshots in the tables declared in the model package.
type Backend struct {
	db *gorm.DB
}

// New wraps an open, migrated database.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Init verifies the snapshot tables exist.
func (b *Backend) Init() error {
	for _, m := range model.DatabaseModels {
		if !b.db.Migrator().HasTable(m) {
			return fmt.Errorf("missing table for %T", m)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (b *Backend) LoadExploration(ctx context.Context) (core.ExplorationSnapshot, error) {
	var rec model.ExplorationSnapshot
	if err := b.first(ctx, &rec); err != nil {
		return core.ExplorationSnapshot{}, readErr(storage.KindExploration, err)
	}

	var snap core.ExplorationSnapshot
	if err := decode(rec.Path, &snap.Path); err != nil {
		return core.ExplorationSnapshot{}, &storage.ReadError{Kind: storage.KindExploration, Err: err}
	}
	if err := decode(rec.UnlockedTileIDs, &snap.UnlockedTileIDs); err != nil {
		return core.ExplorationSnapshot{}, &storage.ReadError{Kind: storage.KindExploration, Err: err}
	}
	if err := decode(rec.TileHitCounts, &snap.TileHitCounts); err != nil {
		return core.ExplorationSnapshot{}, &storage.ReadError{Kind: storage.KindExploration, Err: err}
	}
	snap.Cursor = rec.Cursor
	return snap, nil
}

func (b *Backend) SaveExploration(ctx context.Context, snap core.ExplorationSnapshot) error {
	rec := model.ExplorationSnapshot{
		ID:         model.SnapshotRowID,
		Cursor:     snap.Cursor,
		PathLength: len(snap.Path),
	}
	var err error
	if rec.Path, err = encode(snap.Path); err != nil {
		return &storage.WriteError{Kind: storage.KindExploration, Err: err}
	}
	if rec.UnlockedTileIDs, err = encode(snap.UnlockedTileIDs); err != nil {
		return &storage.WriteError{Kind: storage.KindExploration, Err: err}
	}
	if rec.TileHitCounts, err = encode(snap.TileHitCounts); err != nil {
		return &storage.WriteError{Kind: storage.KindExploration, Err: err}
	}
	if err := b.upsert(ctx, &rec); err != nil {
		return &storage.WriteError{Kind: storage.KindExploration, Err: err}
	}
	return nil
}

func (b *Backend) LoadProgression(ctx context.Context) (core.ProgressionSnapshot, error) {
	var rec model.ProgressionSnapshot
	if err := b.first(ctx, &rec); err != nil {
		return core.ProgressionSnapshot{}, readErr(storage.KindProgression, err)
	}

	snap := core.ProgressionSnapshot{XP: rec.XP}
	if err := decode(rec.ExploredTiles, &snap.ExploredTiles); err != nil {
		return core.ProgressionSnapshot{}, &storage.ReadError{Kind: storage.KindProgression, Err: err}
	}
	if err := decode(rec.VisitedPOIs, &snap.VisitedPOIs); err != nil {
		return core.ProgressionSnapshot{}, &storage.ReadError{Kind: storage.KindProgression, Err: err}
	}
	if len(rec.Achievements) > 0 {
		if err := decode(rec.Achievements, &snap.Achievements); err != nil {
			return core.ProgressionSnapshot{}, &storage.ReadError{Kind: storage.KindProgression, Err: err}
		}
	}
	return snap, nil
}

func (b *Backend) SaveProgression(ctx context.Context, snap core.ProgressionSnapshot) error {
	rec := model.ProgressionSnapshot{
		ID:    model.SnapshotRowID,
		XP:    snap.XP,
		Level: core.LevelForXP(snap.XP),
	}
	var err error
	if rec.ExploredTiles, err = encode(snap.ExploredTiles); err != nil {
		return &storage.WriteError{Kind: storage.KindProgression, Err: err}
	}
	if rec.VisitedPOIs, err = encode(snap.VisitedPOIs); err != nil {
		return &storage.WriteError{Kind: storage.KindProgression, Err: err}
	}
	if len(snap.Achievements) > 0 {
		if rec.Achievements, err = encode(snap.Achievements); err != nil {
			return &storage.WriteError{Kind: storage.KindProgression, Err: err}
		}
	}
	if err := b.upsert(ctx, &rec); err != nil {
		return &storage.WriteError{Kind: storage.KindProgression, Err: err}
	}
	return nil
}

func (b *Backend) first(ctx context.Context, dest any) error {
	return b.db.WithContext(ctx).Where("id = ?", model.SnapshotRowID).First(dest).Error
}

func (b *Backend) upsert(ctx context.Context, rec any) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(rec).Error
	})
}

// readErr maps a missing row to ErrNoPriorState. Driver errors stay plain so they are not mistaken for
// an empty store.
func readErr(kind string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNoPriorState
	}
	return fmt.Errorf("loading %s snapshot: %w", kind, err)
}

func encode(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func decode(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
