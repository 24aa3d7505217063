package render

import (
	"log/slog"
	"sync"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
)

// Sources supplies the data rendered after the quiet period.
type Sources struct {
	Path  func() []core.GeoPoint
	Tiles func() []TileView
}

// Notifier coalesces change notifications: a burst of calls within the debounce window results in
// one render of each changed layer, issued once the window passes without new calls.
type Notifier struct {
	renderer Renderer
	sources  Sources
	debounce time.Duration
	logger   *slog.Logger

	mu         sync.Mutex
	timer      *time.Timer
	pathDirty  bool
	tilesDirty bool
	stopped    bool

	renderMu sync.Mutex
	renders  int
}

// NewNotifier creates a notifier. A non-positive debounce renders on the next timer tick.
func NewNotifier(r Renderer, sources Sources, debounce time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		renderer: r,
		sources:  sources,
		debounce: debounce,
		logger:   logger,
	}
}

// PathChanged schedules a path redraw.
func (n *Notifier) PathChanged() {
	n.mark(func() { n.pathDirty = true })
}

// TilesChanged schedules a tile redraw.
func (n *Notifier) TilesChanged() {
	n.mark(func() { n.tilesDirty = true })
}

func (n *Notifier) mark(set func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return
	}
	set()
	if n.timer == nil {
		n.timer = time.AfterFunc(n.debounce, n.fire)
		return
	}
	n.timer.Reset(n.debounce)
}

func (n *Notifier) fire() {
	n.renderMu.Lock()
	defer n.renderMu.Unlock()

	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	path, tiles := n.pathDirty, n.tilesDirty
	n.pathDirty, n.tilesDirty = false, false
	n.mu.Unlock()

	if path && n.sources.Path != nil {
		if err := n.renderer.RenderPath(n.sources.Path()); err != nil {
			n.logger.Warn("Failed to render path", "error", err)
		}
	}
	if tiles && n.sources.Tiles != nil {
		if err := n.renderer.RenderTiles(n.sources.Tiles()); err != nil {
			n.logger.Warn("Failed to render tiles", "error", err)
		}
	}
	if path || tiles {
		n.renders++
	}
}

// Renders returns how many debounced renders ran.
func (n *Notifier) Renders() int {
	n.renderMu.Lock()
	defer n.renderMu.Unlock()
	return n.renders
}

// Stop cancels pending work and waits for a render that is already running. Later calls are ignored.
func (n *Notifier) Stop() {
	n.mu.Lock()
	n.stopped = true
	if n.timer != nil {
		n.timer.Stop()
	}
	n.mu.Unlock()

	n.renderMu.Lock()
	defer n.renderMu.Unlock()
}
