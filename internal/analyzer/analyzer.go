// Package analyzer turns new path segments into per-tile hit counts and unlocks.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/adventurelime/explorer/internal/grid"
	"github.com/adventurelime/explorer/internal/pathlog"
	"github.com/adventurelime/explorer/pkg/core"
	"golang.org/x/sync/semaphore"
)

// ErrPassInProgress is returned when a pass is requested while another one is running.
var ErrPassInProgress = errors.New("analysis pass already running")

// Config holds the sampling parameters.
type Config struct {
	SampleSpacing   float64
	UnlockThreshold float64
}

// Publisher receives unlock events.
type Publisher interface {
	Publish(core.Event)
}

// Persister stores the exploration snapshot off the analysis path. SaveExploration is called with the
// tile-state lock held, so saves are queued in the order the states changed; it must not block.
type Persister interface {
	SaveExploration(core.ExplorationSnapshot)
}

// Notifier is told when the set of unlocked tiles changed.
type Notifier interface {
	TilesChanged()
}

// Dependencies holds the collaborators of an Analyzer. Persister, Notifier and Publisher are optional.
type Dependencies struct {
	Grid      *grid.Index
	Path      *pathlog.Log
	Persister Persister
	Notifier  Notifier
	Publisher Publisher
	Logger    *slog.Logger
}

// Result describes one pass.
type Result struct {
	Skipped  bool
	Stale    bool
	Segments int
	Samples  int
	Touched  int
	Unlocked []core.TileID
	Cursor   int
	Duration time.Duration
}

// Analyzer owns the tile states. Only a pass, Restore or Clear mutate them.
type Analyzer struct {
	deps         Dependencies
	cfg          Config
	requiredHits float64

	sem *semaphore.Weighted

	mu     sync.RWMutex
	states map[core.TileID]core.TileState

	metrics *metrics
}

// New creates an analyzer for the grid and path in deps.
func New(deps Dependencies, cfg Config) (*Analyzer, error) {
	if deps.Grid == nil || deps.Path == nil {
		return nil, errors.New("analyzer requires a grid and a path log")
	}
	if cfg.SampleSpacing <= 0 {
		return nil, fmt.Errorf("sample spacing must be positive, got %v", cfg.SampleSpacing)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		deps:         deps,
		cfg:          cfg,
		requiredHits: math.Max(1, deps.Grid.Edge()/cfg.SampleSpacing),
		sem:          semaphore.NewWeighted(1),
		states:       make(map[core.TileID]core.TileState),
		metrics:      m,
	}, nil
}

// RequiredHits returns the number of samples that counts as full coverage of one tile.
func (a *Analyzer) RequiredHits() float64 {
	return a.requiredHits
}

// Analyze runs one incremental pass over the points recorded since the last one.
// It returns ErrPassInProgress without doing anything if a pass is already running.
func (a *Analyzer) Analyze(ctx context.Context) (Result, error) {
	if !a.sem.TryAcquire(1) {
		a.metrics.skipped(ctx)
		return Result{Skipped: true}, ErrPassInProgress
	}
	defer a.sem.Release(1)

	start := time.Now()
	snap := a.deps.Path.Snapshot()
	if len(snap.Points)-snap.Cursor < 2 {
		return Result{Skipped: true, Cursor: snap.Cursor}, nil
	}

	proj := a.deps.Grid.Projection()
	deltas := make(map[core.TileID]int)
	res := Result{}

	from := max(1, snap.Cursor)
	ax, ay := proj.ToXY(snap.Points[from-1])
	for i := from; i < len(snap.Points); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		bx, by := proj.ToXY(snap.Points[i])
		res.Samples += sampleSegment(ax, ay, bx, by, a.cfg.SampleSpacing, func(x, y float64) {
			if id, ok := a.deps.Grid.LocateXY(x, y); ok {
				deltas[id]++
			}
		})
		res.Segments++
		ax, ay = bx, by
	}

	a.mu.Lock()
	// advancing under the state lock keeps a concurrent Clear from interleaving with apply
	if !a.deps.Path.Advance(snap.Generation, len(snap.Points)) {
		a.mu.Unlock()
		a.deps.Logger.DebugContext(ctx, "Discarding analysis pass, path was cleared", "generation", snap.Generation)
		return Result{Stale: true}, nil
	}
	res.Unlocked = a.apply(deltas)
	res.Touched = len(deltas)
	res.Cursor = len(snap.Points)
	a.persistLocked()
	a.mu.Unlock()

	res.Duration = time.Since(start)
	a.metrics.record(ctx, res)

	if len(res.Unlocked) > 0 {
		if a.deps.Publisher != nil {
			for _, id := range res.Unlocked {
				a.deps.Publisher.Publish(core.TileUnlocked{ID: id})
			}
		}
		if a.deps.Notifier != nil {
			a.deps.Notifier.TilesChanged()
		}
	}

	a.deps.Logger.DebugContext(ctx, "Analysis pass complete",
		"segments", res.Segments,
		"samples", res.Samples,
		"touched", res.Touched,
		"unlocked", len(res.Unlocked),
		"cursor", res.Cursor,
		"duration", res.Duration,
	)
	return res, nil
}

// apply adds deltas to tiles that are still locked and returns the tiles that crossed the threshold.
// Caller holds a.mu.
func (a *Analyzer) apply(deltas map[core.TileID]int) []core.TileID {
	var unlocked []core.TileID
	for id, delta := range deltas {
		st := a.states[id]
		if st.Unlocked {
			continue
		}
		st.HitCount += delta
		if float64(st.HitCount)/a.requiredHits >= a.cfg.UnlockThreshold {
			st.Unlocked = true
			unlocked = append(unlocked, id)
		}
		a.states[id] = st
	}
	sortIDs(unlocked)
	return unlocked
}

// State returns the state of one tile; untouched tiles are (0, false).
func (a *Analyzer) State(id core.TileID) core.TileState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.states[id]
}

// States returns a copy of every touched tile's state.
func (a *Analyzer) States() map[core.TileID]core.TileState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[core.TileID]core.TileState, len(a.states))
	for id, st := range a.states {
		out[id] = st
	}
	return out
}

// UnlockedTiles returns the unlocked tile ids in row-major order.
func (a *Analyzer) UnlockedTiles() []core.TileID {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []core.TileID
	for id, st := range a.states {
		if st.Unlocked {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

// Snapshot captures tile states, path and cursor together.
func (a *Analyzer) Snapshot() core.ExplorationSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

// Persist queues the current snapshot.
func (a *Analyzer) Persist() {
	a.mu.RLock()
	defer a.mu.RUnlock()
	a.persistLocked()
}

// persistLocked queues the current snapshot. Caller holds a.mu.
func (a *Analyzer) persistLocked() {
	if a.deps.Persister != nil {
		a.deps.Persister.SaveExploration(a.snapshotLocked())
	}
}

func (a *Analyzer) snapshotLocked() core.ExplorationSnapshot {
	path := a.deps.Path.Snapshot()
	snap := core.ExplorationSnapshot{
		Path:            path.Points,
		Cursor:          path.Cursor,
		UnlockedTileIDs: make([]string, 0),
		TileHitCounts:   make(map[string]int, len(a.states)),
	}
	ids := make([]core.TileID, 0, len(a.states))
	for id := range a.states {
		ids = append(ids, id)
	}
	sortIDs(ids)
	for _, id := range ids {
		st := a.states[id]
		snap.TileHitCounts[id.String()] = st.HitCount
		if st.Unlocked {
			snap.UnlockedTileIDs = append(snap.UnlockedTileIDs, id.String())
		}
	}
	return snap
}

// Restore loads persisted state. Tile ids that are malformed or not part of the current grid are ignored.
func (a *Analyzer) Restore(snap core.ExplorationSnapshot) (ignored int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	states := make(map[core.TileID]core.TileState, len(snap.TileHitCounts))
	resolve := func(raw string) (core.TileID, bool) {
		id, err := core.ParseTileID(raw)
		if err != nil || !a.deps.Grid.Has(id) {
			ignored++
			return core.TileID{}, false
		}
		return id, true
	}

	for raw, hits := range snap.TileHitCounts {
		id, ok := resolve(raw)
		if !ok {
			continue
		}
		st := states[id]
		st.HitCount = max(hits, 0)
		states[id] = st
	}
	for _, raw := range snap.UnlockedTileIDs {
		id, ok := resolve(raw)
		if !ok {
			continue
		}
		st := states[id]
		st.Unlocked = true
		states[id] = st
	}

	a.states = states
	a.deps.Path.Restore(snap.Path, snap.Cursor)

	if ignored > 0 {
		a.deps.Logger.Warn("Ignored tiles not in the current grid", "count", ignored)
	}
	return ignored
}

// Clear wipes the path and every tile's progress and queues the empty snapshot. The grid is untouched.
func (a *Analyzer) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.states = make(map[core.TileID]core.TileState)
	a.deps.Path.Clear()
	a.persistLocked()
}

func sortIDs(ids []core.TileID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Row != ids[j].Row {
			return ids[i].Row < ids[j].Row
		}
		return ids[i].Col < ids[j].Col
	})
}
