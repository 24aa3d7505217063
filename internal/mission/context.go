// Package mission tracks the quest the explorer is currently on.
package mission

import (
	"sync"

	"github.com/adventurelime/explorer/pkg/core"
)

// Context holds the active quest and the highlighted point of interest
type Context struct {
	mu          sync.RWMutex
	quest       *core.POI
	highlighted string
}

// NewContext creates a Context with no active quest
func NewContext() *Context {
	return &Context{}
}

// Active returns the point of interest of the active quest
func (mc *Context) Active() (core.POI, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.quest == nil {
		return core.POI{}, false
	}
	return *mc.quest, true
}

// Start makes poi the active quest target and highlights it. A running quest is replaced.
func (mc *Context) Start(poi core.POI) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.quest = &poi
	mc.highlighted = poi.ID
}

// End clears the active quest and returns it
func (mc *Context) End() (core.POI, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.quest == nil {
		return core.POI{}, false
	}
	poi := *mc.quest
	mc.quest = nil
	if mc.highlighted == poi.ID {
		mc.highlighted = ""
	}
	return poi, true
}

// Complete ends the quest if id is its target and reports whether it did
func (mc *Context) Complete(id string) bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.quest == nil || mc.quest.ID != id {
		return false
	}
	mc.quest = nil
	if mc.highlighted == id {
		mc.highlighted = ""
	}
	return true
}

// Highlight marks a point of interest for the map. An empty id clears the highlight.
func (mc *Context) Highlight(id string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.highlighted = id
}

// Highlighted returns the highlighted point of interest id
func (mc *Context) Highlighted() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.highlighted
}
