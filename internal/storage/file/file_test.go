package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.Backend = (*Backend)(nil)

func newBackend(t *testing.T, compress bool) *Backend {
	t.Helper()
	b := New(config.FileConfig{Dir: filepath.Join(t.TempDir(), "progress"), Compress: compress})
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })
	return b
}

func sampleExploration() core.ExplorationSnapshot {
	path := make([]core.GeoPoint, 50)
	for i := range path {
		path[i] = core.GeoPoint{Lat: 43.652 + float64(i)*0.0001, Lon: -79.405 + float64(i)*0.00007}
	}
	return core.ExplorationSnapshot{
		Path:            path,
		UnlockedTileIDs: []string{"0_0", "0_1", "3_7"},
		Cursor:          42,
		TileHitCounts:   map[string]int{"0_0": 4, "0_1": 9, "3_7": 5, "4_4": 2},
	}
}

func TestExploration_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(fmt.Sprintf("compress=%v", compress), func(t *testing.T) {
			b := newBackend(t, compress)
			want := sampleExploration()

			require.NoError(t, b.SaveExploration(context.Background(), want))
			got, err := b.LoadExploration(context.Background())
			require.NoError(t, err)

			assert.Equal(t, want, got)
		})
	}
}

func TestProgression_RoundTrip(t *testing.T) {
	b := newBackend(t, false)
	unlocked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := core.ProgressionSnapshot{
		XP:            1675,
		ExploredTiles: []string{"0_0", "0_1"},
		VisitedPOIs:   []string{"robarts"},
		Achievements:  map[string]time.Time{"map_10": unlocked},
	}

	require.NoError(t, b.SaveProgression(context.Background(), want))
	got, err := b.LoadProgression(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want.XP, got.XP)
	assert.Equal(t, want.ExploredTiles, got.ExploredTiles)
	assert.Equal(t, want.VisitedPOIs, got.VisitedPOIs)
	assert.True(t, unlocked.Equal(got.Achievements["map_10"]))
}

func TestLoad_MissingFile(t *testing.T) {
	b := newBackend(t, false)

	_, err := b.LoadExploration(context.Background())
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
	_, err = b.LoadProgression(context.Background())
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
}

func TestLoad_CorruptFile(t *testing.T) {
	b := newBackend(t, false)
	require.NoError(t, os.WriteFile(b.Path(storage.KindExploration), []byte(`{"path":[{"lat":1`), 0644))

	_, err := b.LoadExploration(context.Background())
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
	var readErr *storage.ReadError
	assert.True(t, errors.As(err, &readErr))
}

func TestLoad_CorruptGzip(t *testing.T) {
	b := newBackend(t, true)
	require.NoError(t, os.WriteFile(b.Path(storage.KindProgression), []byte("not gzip"), 0644))

	_, err := b.LoadProgression(context.Background())
	assert.ErrorIs(t, err, storage.ErrNoPriorState)
}

func TestLoad_UnreadableFileIsNotEmpty(t *testing.T) {
	b := newBackend(t, false)
	require.NoError(t, b.SaveProgression(context.Background(), core.ProgressionSnapshot{XP: 5000}))
	require.NoError(t, os.Remove(b.Path(storage.KindProgression)))
	// a directory in place of the snapshot fails on read, not on decode
	require.NoError(t, os.Mkdir(b.Path(storage.KindProgression), 0755))

	_, err := b.LoadProgression(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNoPriorState)
	var readErr *storage.ReadError
	assert.False(t, errors.As(err, &readErr))
}

func TestSave_IgnoresAbandonedTempFiles(t *testing.T) {
	b := newBackend(t, false)
	want := sampleExploration()
	require.NoError(t, b.SaveExploration(context.Background(), want))

	// a crash between create and rename leaves a temp file behind
	stale := filepath.Join(b.cfg.Dir, ".exploration.json.123.tmp")
	require.NoError(t, os.WriteFile(stale, []byte(`{"path":`), 0644))

	got, err := b.LoadExploration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	b := newBackend(t, false)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.SaveProgression(context.Background(), core.ProgressionSnapshot{XP: i}))
	}

	entries, err := os.ReadDir(b.cfg.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "progression.json", entries[0].Name())
}

func TestSave_Overwrites(t *testing.T) {
	b := newBackend(t, false)
	require.NoError(t, b.SaveProgression(context.Background(), core.ProgressionSnapshot{XP: 10}))
	require.NoError(t, b.SaveProgression(context.Background(), core.ProgressionSnapshot{XP: 20}))

	got, err := b.LoadProgression(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, got.XP)
}

func TestSave_WriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	b := New(config.FileConfig{Dir: blocker})

	err := b.SaveExploration(context.Background(), sampleExploration())
	var writeErr *storage.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, storage.KindExploration, writeErr.Kind)
}

func TestPersistedJSONShape(t *testing.T) {
	b := newBackend(t, false)
	require.NoError(t, b.SaveExploration(context.Background(), core.ExplorationSnapshot{
		Path:            []core.GeoPoint{{Lat: 1.5, Lon: 2.5}},
		UnlockedTileIDs: []string{"0_0"},
		Cursor:          1,
		TileHitCounts:   map[string]int{"0_0": 4},
	}))

	raw, err := os.ReadFile(b.Path(storage.KindExploration))
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"path":[{"lat":1.5,"lon":2.5}],"unlockedTileIds":["0_0"],"cursor":1,"tileHitCounts":{"0_0":4}}`,
		string(raw))
}
