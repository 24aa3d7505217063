// Package events fans typed session events out to subscribers.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/adventurelime/explorer/internal/channel"
	"github.com/adventurelime/explorer/pkg/core"
)

// Bus delivers every published event to every subscriber. Publish never blocks: a subscriber whose
// buffer is full misses the event and the drop is counted.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[int]channel.Channel[core.Event]
	nextID int
	closed bool

	dropped atomic.Int64
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[int]channel.Channel[core.Event]),
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned function unsubscribes
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan core.Event, func()) {
	ch := channel.NewBuffered[core.Event](buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		ch.Close()
		return ch.Receive(), func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch.Receive(), func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish sends ev to all subscribers without blocking.
func (b *Bus) Publish(ev core.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		if !ch.TrySend(ev) {
			b.dropped.Add(1)
			b.logger.Debug("Subscriber buffer full, dropping event", "subscriber", id, "event", ev.EventName())
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Subscribers returns the number of active subscribers.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		ch.Close()
		delete(b.subs, id)
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		ch.Close()
		delete(b.subs, id)
	}
}
