// Package session wires the exploration components together and owns their lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adventurelime/explorer/internal/achievement"
	"github.com/adventurelime/explorer/internal/analyzer"
	"github.com/adventurelime/explorer/internal/cache"
	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/events"
	"github.com/adventurelime/explorer/internal/grid"
	"github.com/adventurelime/explorer/internal/logging"
	"github.com/adventurelime/explorer/internal/mission"
	"github.com/adventurelime/explorer/internal/pathlog"
	"github.com/adventurelime/explorer/internal/progression"
	"github.com/adventurelime/explorer/internal/render"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/internal/worker"
	"github.com/adventurelime/explorer/pkg/core"
)

// ErrUnknownPOI is returned when a quest names a point of interest that is not configured.
var ErrUnknownPOI = errors.New("unknown point of interest")

// Dependencies holds everything a session is built from. Renderer, Catalog and POIs are optional.
type Dependencies struct {
	SessionID string
	Grid      config.GridSettings
	Analyzer  config.AnalyzerSettings
	Rewards   progression.Rewards
	Catalog   []core.Achievement
	POIs      []core.POI
	Backend   storage.Backend
	Renderer  render.Renderer
	Debounce  time.Duration
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session owns one instance of every component and routes events between them.
type Session struct {
	deps Dependencies

	grid      *grid.Index
	path      *pathlog.Log
	writer    *worker.Writer
	bus       *events.Bus
	ledger    *progression.Ledger
	engine    *achievement.Engine
	pois      *cache.POICache
	notifier  *render.Notifier
	analyzer  *analyzer.Analyzer
	scheduler *analyzer.Scheduler
	quests    *mission.Context

	clearMu   sync.Mutex
	lastClear uint64

	startOnce sync.Once
	// restored is set once persisted state is loaded; before that a final save would overwrite it
	restored  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New builds the components. Nothing runs until Start.
func New(deps Dependencies) (*Session, error) {
	if deps.Backend == nil {
		return nil, errors.New("session requires a storage backend")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger

	idx, err := grid.Configure(deps.Grid.Region, deps.Grid.TileEdge)
	if err != nil {
		return nil, fmt.Errorf("configuring grid: %w", err)
	}

	s := &Session{
		deps:   deps,
		grid:   idx,
		path:   pathlog.New(idx.Projection(), deps.Analyzer.MovementThreshold),
		writer: worker.NewWriter(deps.Backend, logger.With("component", "writer")),
		bus:    events.NewBus(logger.With("component", "events")),
		engine: achievement.NewEngine(deps.Catalog),
		pois:   cache.NewPOICache(idx.Projection().Distance),
		quests: mission.NewContext(),
	}
	for _, poi := range deps.POIs {
		s.pois.Add(poi)
	}

	s.ledger = progression.New(progression.Dependencies{
		Persister: s.writer,
		Publisher: s.bus,
		Logger:    logger.With("component", "progression"),
	}, deps.Rewards)

	s.notifier = render.NewNotifier(deps.Renderer, render.Sources{
		Path:  s.path.Points,
		Tiles: func() []render.TileView { return render.Views(s.grid, s.analyzer.States()) },
	}, deps.Debounce, logger.With("component", "render"))

	s.analyzer, err = analyzer.New(analyzer.Dependencies{
		Grid:      idx,
		Path:      s.path,
		Persister: s.writer,
		Notifier:  s.notifier,
		Publisher: unlockRouter{s},
		Logger:    logger.With("component", "analyzer"),
	}, analyzer.Config{
		SampleSpacing:   deps.Analyzer.SampleSpacing,
		UnlockThreshold: deps.Analyzer.UnlockThreshold,
	})
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}

	s.scheduler, err = analyzer.NewScheduler(deps.Analyzer.Interval, s.runPass)
	if err != nil {
		s.teardown()
		return nil, err
	}

	return s, nil
}

// unlockRouter forwards analyzer events to the bus and credits unlocked tiles to the ledger.
type unlockRouter struct{ s *Session }

func (r unlockRouter) Publish(ev core.Event) {
	r.s.bus.Publish(ev)
	if unlocked, ok := ev.(core.TileUnlocked); ok {
		r.s.exploreTile(unlocked.ID)
	}
}

// Start restores persisted state and starts the periodic analysis. Missing or unreadable snapshots
// start the session empty.
func (s *Session) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		err = s.restore(ctx)
		if err != nil {
			return
		}
		s.restored.Store(true)
		s.scheduler.Start()
		s.deps.Logger.Info("Session started",
			"tiles", s.grid.Len(),
			"pathPoints", s.path.Len(),
			"xp", s.ledger.State().XP,
		)
	})
	return err
}

func (s *Session) restore(ctx context.Context) error {
	prog, err := s.deps.Backend.LoadProgression(ctx)
	if err := s.checkLoad(storage.KindProgression, err); err != nil {
		return err
	}
	if err == nil {
		if err := s.ledger.Restore(prog); err != nil {
			return fmt.Errorf("restoring progression: %w", err)
		}
		s.engine.Restore(prog.Achievements)
	}

	expl, err := s.deps.Backend.LoadExploration(ctx)
	if err := s.checkLoad(storage.KindExploration, err); err != nil {
		return err
	}
	if err == nil {
		s.analyzer.Restore(expl)
		s.notifier.PathChanged()
		s.notifier.TilesChanged()
		s.creditUnlocked()
	}

	// a changed catalog may have goals that the restored totals already meet
	st := s.ledger.State()
	s.checkAchievements(achievement.CoverageUpdated{Percent: s.coverage(len(st.ExploredTiles))})
	s.checkAchievements(achievement.POIVisited{Count: len(st.VisitedPOIs)})
	return nil
}

// checkLoad returns the load error only when it is not a recoverable missing or corrupt snapshot.
// creditUnlocked gives ledger credit for restored unlocked tiles whose progression write was lost.
func (s *Session) creditUnlocked() {
	explored := s.ledger.State().ExploredTiles
	for _, id := range s.analyzer.UnlockedTiles() {
		if _, ok := explored[id.String()]; ok {
			continue
		}
		s.deps.Logger.Info("Crediting unlocked tile missing from progression", "tile", id.String())
		s.exploreTile(id)
	}
}

func (s *Session) checkLoad(kind string, err error) error {
	if err == nil {
		return nil
	}
	var readErr *storage.ReadError
	if errors.As(err, &readErr) {
		s.deps.Logger.Warn("Ignoring unreadable snapshot", "kind", kind, "error", err)
		return nil
	}
	if errors.Is(err, storage.ErrNoPriorState) {
		s.deps.Logger.Debug("No prior snapshot", "kind", kind)
		return nil
	}
	return fmt.Errorf("loading %s snapshot: %w", kind, err)
}

func (s *Session) runPass(ctx context.Context) {
	ctx = logging.ContextWith(ctx, slog.String("trigger", "scheduler"))
	_, err := s.analyzer.Analyze(ctx)
	if err != nil && !errors.Is(err, analyzer.ErrPassInProgress) && !errors.Is(err, context.Canceled) {
		s.deps.Logger.Error("Analysis pass failed", "error", err)
	}
}

// RecordFix appends a location fix to the path. Fixes outside the region and fixes too close to the
// previous point are dropped. It reports whether the point was recorded.
func (s *Session) RecordFix(fix core.Fix) bool {
	if !s.grid.Region().Contains(fix.Point) {
		s.deps.Logger.Debug("Dropping fix outside region", "point", fix.Point.String())
		return false
	}
	if !s.path.Record(fix.Point) {
		return false
	}
	s.notifier.PathChanged()

	for _, poi := range s.pois.Within(fix.Point) {
		if _, err := s.DiscoverPOI(poi.ID); err != nil {
			s.deps.Logger.Error("Failed to record point of interest", "poi", poi.ID, "error", err)
		}
	}
	return true
}

// RequestAnalysis asks the scheduler for a pass without waiting for it.
func (s *Session) RequestAnalysis() error {
	return s.scheduler.Trigger()
}

// AnalyzeNow runs a pass on the calling goroutine.
func (s *Session) AnalyzeNow(ctx context.Context) (analyzer.Result, error) {
	return s.analyzer.Analyze(logging.ContextWith(ctx, slog.String("trigger", "direct")))
}

// Clear wipes the path and tile progress when token is newer than the last applied clear.
// XP and achievements are untouched. It reports whether the clear was applied.
func (s *Session) Clear(token uint64) bool {
	s.clearMu.Lock()
	if token <= s.lastClear {
		s.clearMu.Unlock()
		s.deps.Logger.Debug("Ignoring stale clear", "token", token, "last", s.lastClear)
		return false
	}
	s.lastClear = token
	s.clearMu.Unlock()

	s.analyzer.Clear()
	s.bus.Publish(core.PathCleared{Token: token})
	s.notifier.PathChanged()
	s.notifier.TilesChanged()

	s.deps.Logger.Info("Path cleared", "token", token)
	return true
}

// ResetProgress clears XP, visited sets and achievements. The path and tile states are kept.
func (s *Session) ResetProgress() error {
	err := errors.Join(s.ledger.Reset(), s.ledger.ResetAchievements())
	s.engine.Reset()
	s.bus.Publish(core.ProgressReset{})
	s.deps.Logger.Info("Progress reset")
	return err
}

// DiscoverPOI records a visit and reports whether it was the first one. Completing the active quest's
// target ends the quest.
func (s *Session) DiscoverPOI(id string) (bool, error) {
	isNew, err := s.ledger.DiscoverPOI(id)
	if errors.Is(err, progression.ErrClosed) {
		return false, err
	}
	if isNew {
		s.checkAchievements(achievement.POIVisited{Count: len(s.ledger.State().VisitedPOIs)})
	}
	if s.quests.Complete(id) {
		s.bus.Publish(core.QuestCompleted{POIID: id})
		s.deps.Logger.Info("Quest completed", "poi", id)
	}
	return isNew, err
}

func (s *Session) exploreTile(id core.TileID) {
	isNew, err := s.ledger.ExploreTile(id.String())
	if err != nil {
		s.deps.Logger.Error("Failed to record explored tile", "tile", id.String(), "error", err)
	}
	if isNew {
		s.checkAchievements(achievement.CoverageUpdated{Percent: s.coverage(len(s.ledger.State().ExploredTiles))})
	}
}

func (s *Session) checkAchievements(ev achievement.Event) {
	for _, a := range s.engine.ApplyAll(ev, s.deps.Now()) {
		if err := s.ledger.RecordAchievement(a.ID, *a.UnlockedAt); err != nil {
			s.deps.Logger.Error("Failed to record achievement", "achievement", a.ID, "error", err)
		}
		s.bus.Publish(core.AchievementUnlocked{Achievement: a})
		s.deps.Logger.Info("Achievement unlocked", "achievement", a.ID, "title", a.Title)
	}
}

func (s *Session) coverage(explored int) float64 {
	if n := s.grid.Len(); n > 0 {
		return float64(explored) / float64(n)
	}
	return 0
}

// StartQuest makes a configured point of interest the quest target.
func (s *Session) StartQuest(poiID string) error {
	poi, ok := s.pois.Get(poiID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPOI, poiID)
	}
	s.quests.Start(poi)
	s.deps.Logger.Info("Quest started", "poi", poi.ID, "name", poi.Name)
	return nil
}

// EndQuest abandons the active quest and reports whether there was one.
func (s *Session) EndQuest() bool {
	poi, ok := s.quests.End()
	if ok {
		s.deps.Logger.Info("Quest ended", "poi", poi.ID)
	}
	return ok
}

// ActiveQuest returns the target of the active quest.
func (s *Session) ActiveQuest() (core.POI, bool) {
	return s.quests.Active()
}

// HighlightPOI marks a point of interest on the map. An empty id clears the highlight.
func (s *Session) HighlightPOI(id string) error {
	if id != "" {
		if _, ok := s.pois.Get(id); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPOI, id)
		}
	}
	s.quests.Highlight(id)
	return nil
}

// HighlightedPOI returns the highlighted point of interest id.
func (s *Session) HighlightedPOI() string {
	return s.quests.Highlighted()
}

// Subscribe registers an event subscriber. See events.Bus.Subscribe.
func (s *Session) Subscribe(buffer int) (<-chan core.Event, func()) {
	return s.bus.Subscribe(buffer)
}

// Achievements returns the catalog with current progress.
func (s *Session) Achievements() []core.Achievement {
	return s.engine.Achievements()
}

// Progression returns a copy of the progression state.
func (s *Session) Progression() core.ProgressionState {
	return s.ledger.State()
}

// TileState returns the state of one tile.
func (s *Session) TileState(id core.TileID) core.TileState {
	return s.analyzer.State(id)
}

// Grid returns the tile grid.
func (s *Session) Grid() *grid.Index {
	return s.grid
}

// Status summarizes the session.
func (s *Session) Status() core.Status {
	st := s.ledger.State()
	path := s.path.Snapshot()
	status := core.Status{
		SessionID:     s.deps.SessionID,
		PathPoints:    len(path.Points),
		PathMetres:    s.grid.Projection().PathLength(path.Points),
		Cursor:        path.Cursor,
		TileCount:     s.grid.Len(),
		UnlockedTiles: len(s.analyzer.UnlockedTiles()),
		Coverage:      s.coverage(len(st.ExploredTiles)),
		XP:            st.XP,
		Level:         st.Level(),
		LevelProgress: st.LevelProgress(),
		VisitedPOIs:   len(st.VisitedPOIs),
		Achievements:  len(s.engine.Unlocked()),
		PendingWrites: s.writer.Stats().Pending,
		DroppedEvents: s.bus.Dropped(),
	}
	if poi, ok := s.quests.Active(); ok {
		status.ActiveQuest = poi.ID
	}
	return status
}

// Close stops analysis and render timers, writes the final snapshots and closes the event bus.
// It returns early with ctx's error if the writes do not finish in time.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		done := make(chan error, 1)
		go func() { done <- s.teardown() }()
		select {
		case s.closeErr = <-done:
		case <-ctx.Done():
			s.closeErr = fmt.Errorf("closing session: %w", ctx.Err())
		}
	})
	return s.closeErr
}

func (s *Session) teardown() error {
	var errs []error
	if s.scheduler != nil {
		if err := s.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping scheduler: %w", err))
		}
	}
	s.notifier.Stop()
	s.ledger.Close()
	if s.analyzer != nil && s.restored.Load() {
		s.analyzer.Persist()
	}
	if err := s.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	s.bus.Close()
	s.grid.Close()
	return errors.Join(errs...)
}
