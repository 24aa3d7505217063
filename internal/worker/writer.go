// Package worker runs the background side of a session: the serialized snapshot writer and the
// command handlers registered with the dispatcher.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adventurelime/explorer/internal/queue"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/pkg/core"
)

// ErrWriterClosed is returned for saves requested after Close.
var ErrWriterClosed = errors.New("writer closed")

// write is one queued snapshot. done is nil for fire-and-forget saves.
type write struct {
	kind        string
	exploration core.ExplorationSnapshot
	progression core.ProgressionSnapshot
	done        chan error
}

// Stats describes the writer for status reporting.
type Stats struct {
	Writes    int64
	Failures  int64
	Pending   int
	LastWrite time.Duration
	LastError string
}

// Writer owns all storage I/O. Snapshots are queued and written by one goroutine; queued snapshots
// of the same kind collapse into the newest one. A failed snapshot stays queued and is written
// again together with the next request, and once more on Close.
type Writer struct {
	backend storage.Backend
	logger  *slog.Logger

	pending *queue.Queue[write]
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closed    chan struct{}

	mu    sync.Mutex
	stats Stats
}

// NewWriter starts the writer goroutine for backend.
func NewWriter(backend storage.Backend, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		backend: backend,
		logger:  logger,
		pending: queue.New[write](),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go w.run()
	return w
}

// SaveExploration queues an exploration snapshot without waiting for it to be written.
func (w *Writer) SaveExploration(snap core.ExplorationSnapshot) {
	if w.isClosed() {
		w.logger.Warn("Dropping exploration snapshot, writer closed")
		return
	}
	w.pending.Push(write{kind: storage.KindExploration, exploration: snap})
	w.signal()
}

// SaveProgression queues a progression snapshot and waits until it was written or failed.
func (w *Writer) SaveProgression(ctx context.Context, snap core.ProgressionSnapshot) error {
	if w.isClosed() {
		return ErrWriterClosed
	}
	done := make(chan error, 1)
	w.pending.Push(write{kind: storage.KindProgression, progression: snap, done: done})
	w.signal()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a copy of the writer counters.
func (w *Writer) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Pending = w.pending.Len()
	return s
}

// Close writes whatever is still queued and stops the goroutine.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		close(w.closed)
		close(w.stop)
	})
	<-w.done

	if n := w.pending.Len(); n > 0 {
		return &storage.WriteError{Kind: "pending", Err: errors.New("snapshots left unwritten on close")}
	}
	return nil
}

func (w *Writer) isClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.stop:
			w.flush()
			w.fail(ErrWriterClosed)
			return
		}
	}
}

// flush writes the newest queued snapshot of each kind and answers every waiter of that kind.
func (w *Writer) flush() {
	batch := w.pending.Drain()
	if len(batch) == 0 {
		return
	}

	latest := make(map[string]write)
	waiters := make(map[string][]chan error)
	var order []string
	for _, item := range batch {
		if _, seen := latest[item.kind]; !seen {
			order = append(order, item.kind)
		}
		latest[item.kind] = item
		if item.done != nil {
			waiters[item.kind] = append(waiters[item.kind], item.done)
		}
	}

	var retry []write
	results := make(map[string]error, len(order))
	for _, kind := range order {
		item := latest[kind]
		err := w.persist(item)
		results[kind] = err
		if err != nil {
			item.done = nil
			retry = append(retry, item)
		}
	}
	// requeue before answering so a waiter that sees an error also sees the snapshot pending
	w.pending.Prepend(retry...)
	for kind, chans := range waiters {
		for _, ch := range chans {
			ch <- results[kind]
		}
	}
}

func (w *Writer) persist(item write) error {
	start := time.Now()
	ctx := context.Background()

	var err error
	switch item.kind {
	case storage.KindExploration:
		err = w.backend.SaveExploration(ctx, item.exploration)
	case storage.KindProgression:
		err = w.backend.SaveProgression(ctx, item.progression)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastWrite = time.Since(start)
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
		w.logger.Error("Failed to write snapshot, will retry", "kind", item.kind, "error", err)
		return err
	}
	w.stats.Writes++
	w.stats.LastError = ""
	w.logger.Debug("Snapshot written", "kind", item.kind, "duration", w.stats.LastWrite)
	return nil
}

// fail answers waiters that raced with Close.
func (w *Writer) fail(err error) {
	w.pending.Update(func(item *write) {
		if item.done != nil {
			item.done <- err
			item.done = nil
		}
	})
}
