// Package progression owns XP, explored tiles and visited points of interest.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("ledger closed")

// Persister stores progression snapshots. SaveProgression returns once the snapshot is durable or failed.
type Persister interface {
	SaveProgression(ctx context.Context, snap core.ProgressionSnapshot) error
}

// Publisher receives progression events.
type Publisher interface {
	Publish(core.Event)
}

// Rewards holds the XP granted per discovery.
type Rewards struct {
	Tile int
	POI  int
}

// DefaultRewards returns the stock reward amounts.
func DefaultRewards() Rewards {
	return Rewards{Tile: 25, POI: 150}
}

// Dependencies holds the collaborators of a Ledger. All of them are optional.
type Dependencies struct {
	Persister Persister
	Publisher Publisher
	Logger    *slog.Logger
}

// request is one operation run on the owner goroutine.
type request struct {
	fn    func(*state) (result any, changed bool)
	reply chan reply
}

type reply struct {
	result any
	err    error
}

// state is only touched by the owner goroutine.
type state struct {
	core.ProgressionState
	achievements map[string]time.Time
}

// Ledger serializes every read and write of the progression state on one goroutine.
// Mutations are persisted before the call returns; a failed write is reported but the in-memory
// state stays authoritative and the writer retries it later.
type Ledger struct {
	deps    Dependencies
	rewards Rewards

	requests chan request
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New starts a ledger with an empty state.
func New(deps Dependencies, rewards Rewards) *Ledger {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	l := &Ledger{
		deps:     deps,
		rewards:  rewards,
		requests: make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Ledger) run() {
	defer close(l.done)
	st := &state{
		ProgressionState: core.NewProgressionState(),
		achievements:     make(map[string]time.Time),
	}
	for {
		select {
		case req := <-l.requests:
			result, changed := req.fn(st)
			var err error
			if changed && l.deps.Persister != nil {
				snap := st.Snapshot()
				if len(st.achievements) > 0 {
					snap.Achievements = maps.Clone(st.achievements)
				}
				err = l.deps.Persister.SaveProgression(context.Background(), snap)
				if err != nil {
					l.deps.Logger.Error("Failed to persist progression", "error", err)
				}
			}
			req.reply <- reply{result: result, err: err}
		case <-l.stop:
			return
		}
	}
}

func (l *Ledger) do(fn func(*state) (any, bool)) (any, error) {
	req := request{fn: fn, reply: make(chan reply, 1)}
	select {
	case l.requests <- req:
	case <-l.done:
		return nil, ErrClosed
	}
	r := <-req.reply
	return r.result, r.err
}

// Restore replaces the state with a persisted snapshot. Nothing is emitted or written.
func (l *Ledger) Restore(snap core.ProgressionSnapshot) error {
	_, err := l.do(func(st *state) (any, bool) {
		st.ProgressionState = snap.State()
		st.achievements = make(map[string]time.Time, len(snap.Achievements))
		maps.Copy(st.achievements, snap.Achievements)
		return nil, false
	})
	return err
}

// AddXP grants amount experience points. Crossing one or more level boundaries emits a single LevelUp
// with the final level.
func (l *Ledger) AddXP(amount int) error {
	if amount < 0 {
		return fmt.Errorf("xp amount must not be negative, got %d", amount)
	}
	_, err := l.do(func(st *state) (any, bool) {
		l.award(st, amount)
		return nil, true
	})
	return err
}

// ExploreTile records a tile the first time it is seen and grants the tile reward.
// It reports whether the tile was new.
func (l *Ledger) ExploreTile(id string) (bool, error) {
	res, err := l.do(func(st *state) (any, bool) {
		if _, ok := st.ExploredTiles[id]; ok {
			return false, false
		}
		st.ExploredTiles[id] = struct{}{}
		l.publish(core.TileExplored{TileID: id})
		l.award(st, l.rewards.Tile)
		return true, true
	})
	isNew, _ := res.(bool)
	return isNew, err
}

// DiscoverPOI records a point of interest the first time it is visited and grants the POI reward.
// It reports whether the POI was new.
func (l *Ledger) DiscoverPOI(id string) (bool, error) {
	res, err := l.do(func(st *state) (any, bool) {
		if _, ok := st.VisitedPOIs[id]; ok {
			return false, false
		}
		st.VisitedPOIs[id] = struct{}{}
		l.publish(core.POIDiscovered{POIID: id, Count: len(st.VisitedPOIs)})
		l.award(st, l.rewards.POI)
		return true, true
	})
	isNew, _ := res.(bool)
	return isNew, err
}

// RecordAchievement stores the unlock time of an achievement so it survives restarts.
func (l *Ledger) RecordAchievement(id string, at time.Time) error {
	_, err := l.do(func(st *state) (any, bool) {
		if _, ok := st.achievements[id]; ok {
			return nil, false
		}
		st.achievements[id] = at
		return nil, true
	})
	return err
}

// State returns a copy of the current state.
func (l *Ledger) State() core.ProgressionState {
	res, err := l.do(func(st *state) (any, bool) {
		return st.Clone(), false
	})
	if err != nil {
		return core.NewProgressionState()
	}
	return res.(core.ProgressionState)
}

// Achievements returns the recorded unlock times.
func (l *Ledger) Achievements() map[string]time.Time {
	res, err := l.do(func(st *state) (any, bool) {
		return maps.Clone(st.achievements), false
	})
	if err != nil {
		return nil
	}
	return res.(map[string]time.Time)
}

// Level is derived from the current XP.
func (l *Ledger) Level() int {
	return l.State().Level()
}

// LevelProgress is derived from the current XP.
func (l *Ledger) LevelProgress() float64 {
	return l.State().LevelProgress()
}

// Reset clears XP and both sets. Recorded achievements are kept; ResetAchievements drops them.
func (l *Ledger) Reset() error {
	_, err := l.do(func(st *state) (any, bool) {
		st.ProgressionState = core.NewProgressionState()
		l.publish(core.XPChanged{XP: 0, Level: 1, LevelProgress: 0})
		return nil, true
	})
	return err
}

// ResetAchievements forgets every recorded unlock.
func (l *Ledger) ResetAchievements() error {
	_, err := l.do(func(st *state) (any, bool) {
		if len(st.achievements) == 0 {
			return nil, false
		}
		st.achievements = make(map[string]time.Time)
		return nil, true
	})
	return err
}

// Close stops the owner goroutine. Calls after Close return ErrClosed.
func (l *Ledger) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// award adds xp and emits XPChanged plus at most one LevelUp.
func (l *Ledger) award(st *state, amount int) {
	before := st.Level()
	st.XP += amount
	after := st.Level()

	l.publish(core.XPChanged{XP: st.XP, Level: after, LevelProgress: st.LevelProgress()})
	if after > before {
		l.publish(core.LevelUp{Level: after})
		l.deps.Logger.Info("Level up", "level", after, "xp", st.XP)
	}
}

func (l *Ledger) publish(ev core.Event) {
	if l.deps.Publisher != nil {
		l.deps.Publisher.Publish(ev)
	}
}
