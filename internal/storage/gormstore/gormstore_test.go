package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/database"
	"github.com/adventurelime/explorer/internal/model"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	m := database.NewManager(zerolog.Nop())
	db, err := m.Open(config.StorageConfig{Type: "sqlite"})
	require.NoError(t, err)

	b := New(db)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func TestLoad_EmptyDatabase(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	_, err := b.LoadExploration(ctx)
	assert.ErrorIs(t, err, storage.ErrNoPriorState)

	_, err = b.LoadProgression(ctx)
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
}

func TestExploration_RoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	snap := core.ExplorationSnapshot{
		Path: []core.GeoPoint{
			{Lat: 43.661, Lon: -79.395},
			{Lat: 43.6612, Lon: -79.3951},
		},
		UnlockedTileIDs: []string{"3_4", "3_5"},
		Cursor:          2,
		TileHitCounts:   map[string]int{"3_4": 10, "3_5": 4},
	}
	require.NoError(t, b.SaveExploration(ctx, snap))

	got, err := b.LoadExploration(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestExploration_OverwritesSingleRow(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveExploration(ctx, core.ExplorationSnapshot{
		Path:   []core.GeoPoint{{Lat: 1, Lon: 1}},
		Cursor: 1,
	}))
	second := core.ExplorationSnapshot{
		Path:            []core.GeoPoint{{Lat: 2, Lon: 2}, {Lat: 3, Lon: 3}},
		UnlockedTileIDs: []string{"0_0"},
		Cursor:          2,
		TileHitCounts:   map[string]int{"0_0": 12},
	}
	require.NoError(t, b.SaveExploration(ctx, second))

	got, err := b.LoadExploration(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	var count int64
	require.NoError(t, b.db.Model(&model.ExplorationSnapshot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProgression_RoundTrip(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	unlocked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := core.ProgressionSnapshot{
		XP:            1175,
		ExploredTiles: []string{"1_1", "1_2"},
		VisitedPOIs:   []string{"library"},
		Achievements:  map[string]time.Time{"map_10": unlocked},
	}
	require.NoError(t, b.SaveProgression(ctx, snap))

	got, err := b.LoadProgression(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap.XP, got.XP)
	assert.Equal(t, snap.ExploredTiles, got.ExploredTiles)
	assert.Equal(t, snap.VisitedPOIs, got.VisitedPOIs)
	require.Contains(t, got.Achievements, "map_10")
	assert.True(t, unlocked.Equal(got.Achievements["map_10"]))

	var rec model.ProgressionSnapshot
	require.NoError(t, b.db.First(&rec).Error)
	assert.Equal(t, 2, rec.Level)
}

func TestProgression_NoAchievements(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	require.NoError(t, b.SaveProgression(ctx, core.ProgressionSnapshot{XP: 25, ExploredTiles: []string{"0_0"}, VisitedPOIs: []string{}}))

	got, err := b.LoadProgression(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, got.XP)
	assert.Nil(t, got.Achievements)
}

func TestLoad_CorruptColumn(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	rec := model.ExplorationSnapshot{
		ID:              model.SnapshotRowID,
		Path:            datatypes.JSON(`{not json`),
		UnlockedTileIDs: datatypes.JSON(`[]`),
		TileHitCounts:   datatypes.JSON(`{}`),
	}
	require.NoError(t, b.db.Create(&rec).Error)

	_, err := b.LoadExploration(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
	var readErr *storage.ReadError
	assert.ErrorAs(t, err, &readErr)
}

func TestLoad_ClosedDatabaseIsNotEmpty(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.SaveProgression(ctx, core.ProgressionSnapshot{XP: 5000, ExploredTiles: []string{"0_0"}}))
	require.NoError(t, b.Close())

	_, err := b.LoadProgression(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNoPriorState)
	var readErr *storage.ReadError
	assert.False(t, errors.As(err, &readErr))

	_, err = b.LoadExploration(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNoPriorState)
}
