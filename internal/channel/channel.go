// Package channel wraps Go channels for producers that must never block.
package channel

import "sync/atomic"

// Channel is a closable channel fed with non-blocking sends.
type Channel[T any] interface {
	// TrySend delivers without blocking and reports whether the value was accepted.
	TrySend(T) bool
	Receive() <-chan T
	Len() int
	Close()
}

// Buffered is a fixed-capacity Channel that counts rejected sends.
type Buffered[T any] struct {
	ch       chan T
	rejected atomic.Int64
}

// NewBuffered creates a channel holding up to size values. Sizes below one are raised to one.
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, max(size, 1))}
}

func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		b.rejected.Add(1)
		return false
	}
}

func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of values waiting to be received.
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Rejected returns how many sends found the buffer full.
func (b *Buffered[T]) Rejected() int64 {
	return b.rejected.Load()
}

// Close closes the underlying channel. It must be called once, after the last send.
func (b *Buffered[T]) Close() {
	close(b.ch)
}
