// Package monitor periodically samples session status into a status file and the progress sink.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adventurelime/explorer/pkg/core"
)

// StatusSource reports the current session status.
type StatusSource interface {
	Status() core.Status
}

// ProgressRecorder receives every sample. influx.Sink implements it.
type ProgressRecorder interface {
	RecordProgress(core.Status) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     StatusSource
	Recorder   ProgressRecorder
	StatusFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	last      core.Status
	samples   int
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Last returns the most recent sample and how many samples were taken.
func (s *Service) Last() (core.Status, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.samples
}

// FormatStatus renders a status as indented JSON, one line per field.
func FormatStatus(st core.Status) string {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}

// Run samples until ctx is cancelled. A final sample is written on exit.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("status monitor already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval, "file", s.deps.StatusFile)

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Sample()
			return nil
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample takes one status sample and writes it out.
func (s *Service) Sample() {
	st := s.deps.Source.Status()

	s.mu.Lock()
	s.last = st
	s.samples++
	s.mu.Unlock()

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, FormatStatus(st)); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordProgress(st); err != nil {
			s.deps.Logger.Warn("Error recording progress sample", "error", err)
		}
	}
}

// writeStatusFile replaces the status file so readers never see a half-written sample.
func writeStatusFile(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".status-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
