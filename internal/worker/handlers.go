package worker

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/adventurelime/explorer/internal/dispatcher"
	"github.com/adventurelime/explorer/internal/monitor"
	"github.com/adventurelime/explorer/internal/parser"
	"github.com/adventurelime/explorer/pkg/core"
)

// PathQueue is the dispatcher queue shared by the commands that change the path.
const PathQueue = "path"

// ErrStaleClear is returned when a clear token is not newer than the last applied one.
var ErrStaleClear = errors.New("stale clear token")

// Commands is the session surface the input handlers drive. session.Session implements it.
type Commands interface {
	RecordFix(fix core.Fix) bool
	RequestAnalysis() error
	Clear(token uint64) bool
	ResetProgress() error
	DiscoverPOI(id string) (bool, error)
	StartQuest(poiID string) error
	EndQuest() bool
	HighlightPOI(id string) error
	Status() core.Status
}

// Dependencies holds the collaborators of the input handlers.
type Dependencies struct {
	Session Commands
	Parser  *parser.Parser
	Logger  *slog.Logger

	// FixBuffer is the size of the queue shared by :FIX: and :CLEAR:.
	FixBuffer int
}

// Handlers translates input commands into session calls.
type Handlers struct {
	deps Dependencies
}

// NewHandlers creates the handler set.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.FixBuffer <= 0 {
		deps.FixBuffer = 10000
	}
	return &Handlers{deps: deps}
}

// RegisterHandlers registers all command handlers with the dispatcher.
func (h *Handlers) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Fixes and clears share one ordered queue so a clear never overtakes the fixes sent before it.
	// Fixes are dropped when the queue is full so ingestion never blocks; clears wait for room.
	d.Register(":FIX:", h.handleFix, dispatcher.Buffered(h.deps.FixBuffer), dispatcher.Queue(PathQueue))
	d.Register(":CLEAR:", h.handleClear,
		dispatcher.Buffered(h.deps.FixBuffer), dispatcher.Queue(PathQueue), dispatcher.Blocking(), dispatcher.Logged())

	// Control commands - sync
	d.Register(":ANALYZE:", h.handleAnalyze, dispatcher.Logged())
	d.Register(":RESET:", h.handleReset, dispatcher.Logged())
	d.Register(":POI:", h.handlePOI, dispatcher.Logged())
	d.Register(":QUEST:START:", h.handleQuestStart, dispatcher.Logged())
	d.Register(":QUEST:END:", h.handleQuestEnd, dispatcher.Logged())
	d.Register(":HIGHLIGHT:", h.handleHighlight, dispatcher.Logged())
	d.Register(":STATUS:", h.handleStatus)
}

func (h *Handlers) handleFix(c dispatcher.Command) (any, error) {
	fix, err := h.deps.Parser.ParseFix(c.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fix: %w", err)
	}
	return h.deps.Session.RecordFix(fix), nil
}

func (h *Handlers) handleClear(c dispatcher.Command) (any, error) {
	token, err := h.deps.Parser.ParseToken(c.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clear: %w", err)
	}
	if !h.deps.Session.Clear(token) {
		return nil, fmt.Errorf("%w: %d", ErrStaleClear, token)
	}
	return "cleared", nil
}

func (h *Handlers) handleAnalyze(dispatcher.Command) (any, error) {
	if err := h.deps.Session.RequestAnalysis(); err != nil {
		return nil, fmt.Errorf("failed to request analysis: %w", err)
	}
	return "requested", nil
}

func (h *Handlers) handleReset(dispatcher.Command) (any, error) {
	if err := h.deps.Session.ResetProgress(); err != nil {
		return nil, fmt.Errorf("failed to reset progress: %w", err)
	}
	return "reset", nil
}

func (h *Handlers) handlePOI(c dispatcher.Command) (any, error) {
	id, err := h.deps.Parser.ParseID(c.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse poi: %w", err)
	}
	return h.deps.Session.DiscoverPOI(id)
}

func (h *Handlers) handleQuestStart(c dispatcher.Command) (any, error) {
	id, err := h.deps.Parser.ParseID(c.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quest: %w", err)
	}
	if err := h.deps.Session.StartQuest(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (h *Handlers) handleQuestEnd(dispatcher.Command) (any, error) {
	return h.deps.Session.EndQuest(), nil
}

func (h *Handlers) handleHighlight(c dispatcher.Command) (any, error) {
	var id string
	if len(c.Args) > 0 {
		id = c.Args[0]
	}
	if err := h.deps.Session.HighlightPOI(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (h *Handlers) handleStatus(dispatcher.Command) (any, error) {
	return monitor.FormatStatus(h.deps.Session.Status()), nil
}
