// Package fileaudit persists decision audit records as JSON Lines with
// size-based rotation and bounded retention of rotated files.
package fileaudit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/scopegate/scopegate/internal/domain/audit"
)

// Config holds settings for the file-backed audit store.
type Config struct {
	// Path is the audit log file. Rotated generations live next to it as
	// path.1, path.2, and so on.
	Path string
	// MaxFileSizeMB caps the active file before rotation (default 100).
	MaxFileSizeMB int
	// MaxRotated is how many rotated generations to keep (default 5).
	MaxRotated int
}

// Store implements audit.Store over a single rotating JSON Lines file.
type Store struct {
	path       string
	maxSize    int64
	maxRotated int
	logger     *slog.Logger

	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// New opens (or creates) the audit file and returns the store.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.MaxFileSizeMB <= 0 {
		cfg.MaxFileSizeMB = 100
	}
	if cfg.MaxRotated <= 0 {
		cfg.MaxRotated = 5
	}

	s := &Store{
		path:       cfg.Path,
		maxSize:    int64(cfg.MaxFileSizeMB) * 1024 * 1024,
		maxRotated: cfg.MaxRotated,
		logger:     logger,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append writes records as JSON lines, rotating the file when it exceeds
// the size cap.
func (s *Store) Append(ctx context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audit store is closed")
	}

	for _, rec := range records {
		if s.size >= s.maxSize {
			if err := s.rotateLocked(); err != nil {
				return fmt.Errorf("rotate audit log: %w", err)
			}
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		n, err := s.file.Write(append(data, '\n'))
		if err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
		s.size += int64(n)
	}
	return nil
}

// Flush syncs the active file to disk.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// Close syncs and closes the active file. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.file == nil {
		return nil
	}
	_ = s.file.Sync()
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Store) open() error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log %s: %w", s.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat audit log %s: %w", s.path, err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// rotateLocked shifts path.N to path.N+1, dropping the oldest generation,
// then moves the active file to path.1 and reopens a fresh one. Must be
// called with s.mu held.
func (s *Store) rotateLocked() error {
	_ = s.file.Sync()
	if err := s.file.Close(); err != nil {
		return err
	}
	s.file = nil

	if err := os.Remove(s.rotatedName(s.maxRotated)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("audit rotation: drop oldest generation failed", "error", err)
	}
	for i := s.maxRotated - 1; i >= 1; i-- {
		old := s.rotatedName(i)
		if _, err := os.Stat(old); err != nil {
			continue
		}
		if err := os.Rename(old, s.rotatedName(i+1)); err != nil {
			return err
		}
	}
	if err := os.Rename(s.path, s.rotatedName(1)); err != nil {
		return err
	}

	return s.open()
}

func (s *Store) rotatedName(n int) string {
	return fmt.Sprintf("%s.%d", s.path, n)
}

// Compile-time interface verification.
var _ audit.Store = (*Store)(nil)
