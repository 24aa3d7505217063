package file

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/adventurelime/explorer/internal/config"
	"github.com/adventurelime/explorer/internal/storage"
	"github.com/adventurelime/explorer/pkg/core"
)

// Backend persists snapshots as JSON files, optionally gzipped.
// Every save goes to a temp file in the same directory which is synced and renamed over the target.
type Backend struct {
	cfg config.FileConfig
	mu  sync.Mutex
}

// New creates a file backend.
func New(cfg config.FileConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init creates the output directory.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close is a no-op; every save is complete when it returns.
func (b *Backend) Close() error {
	return nil
}

// Path returns the file a snapshot kind is stored in.
func (b *Backend) Path(kind string) string {
	name := kind + ".json"
	if b.cfg.Compress {
		name += ".gz"
	}
	return filepath.Join(b.cfg.Dir, name)
}

func (b *Backend) LoadExploration(_ context.Context) (core.ExplorationSnapshot, error) {
	var snap core.ExplorationSnapshot
	if err := b.load(storage.KindExploration, &snap); err != nil {
		return core.ExplorationSnapshot{}, err
	}
	return snap, nil
}

func (b *Backend) SaveExploration(_ context.Context, snap core.ExplorationSnapshot) error {
	return b.save(storage.KindExploration, snap)
}

func (b *Backend) LoadProgression(_ context.Context) (core.ProgressionSnapshot, error) {
	var snap core.ProgressionSnapshot
	if err := b.load(storage.KindProgression, &snap); err != nil {
		return core.ProgressionSnapshot{}, err
	}
	return snap, nil
}

func (b *Backend) SaveProgression(_ context.Context, snap core.ProgressionSnapshot) error {
	return b.save(storage.KindProgression, snap)
}

func (b *Backend) load(kind string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.Path(kind))
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNoPriorState
	}
	if err != nil {
		return fmt.Errorf("loading %s snapshot: %w", kind, err)
	}

	if b.cfg.Compress {
		if data, err = gunzip(data); err != nil {
			return &storage.ReadError{Kind: kind, Err: err}
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.ReadError{Kind: kind, Err: err}
	}
	return nil
}

func gunzip(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

func (b *Backend) save(kind string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeAtomic(b.Path(kind), v); err != nil {
		return &storage.WriteError{Kind: kind, Err: err}
	}
	return nil
}

func (b *Backend) writeAtomic(target string, v any) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if b.cfg.Compress {
		gzWriter := gzip.NewWriter(tmp)
		if err = json.NewEncoder(gzWriter).Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
		if err = gzWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	} else {
		if err = json.NewEncoder(tmp).Encode(v); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
