package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/adventurelime/explorer/pkg/core"
)

// ErrNoPriorState is returned by Load* when no snapshot was persisted. A ReadError also matches it.
// Any other load error means the store could not be read and must not be treated as empty.
var ErrNoPriorState = errors.New("no prior state")

// Backend is the interface all storage implementations must satisfy.
// Each Save* call must be atomic: a crash mid-write leaves the previous snapshot readable.
type Backend interface {
	Init() error
	Close() error

	LoadExploration(ctx context.Context) (core.ExplorationSnapshot, error)
	SaveExploration(ctx context.Context, snap core.ExplorationSnapshot) error

	LoadProgression(ctx context.Context) (core.ProgressionSnapshot, error)
	SaveProgression(ctx context.Context, snap core.ProgressionSnapshot) error
}

// Snapshot kinds
const (
	KindExploration = "exploration"
	KindProgression = "progression"
)

// ReadError reports a snapshot that exists but cannot be decoded. It matches ErrNoPriorState.
type ReadError struct {
	Kind string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s snapshot: %v", e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

func (e *ReadError) Is(target error) bool { return target == ErrNoPriorState }

// WriteError reports a failed save. In-memory state stays authoritative; the caller retries later.
type WriteError struct {
	Kind string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s snapshot: %v", e.Kind, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
