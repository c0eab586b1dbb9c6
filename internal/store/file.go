package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openfolio/papertrader/internal/ledger"
	"github.com/openfolio/papertrader/internal/metrics"
)

// FileStore persists snapshots as a single JSON document on disk. Saves
// write to a temp file in the same directory and rename it over the
// target, so a crash mid-write never clobbers the previous snapshot.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store at path, creating parent
// directories as needed. The snapshot file itself is created on first
// Save with 0600 permissions.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the snapshot atomically via temp file and rename.
func (s *FileStore) Save(ctx context.Context, snap *ledger.Snapshot) error {
	start := time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		metrics.SnapshotErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}

	metrics.SnapshotDuration.WithLabelValues("save").Observe(float64(time.Since(start).Milliseconds()))
	log.Debug().
		Str("path", s.path).
		Int("bytes", len(data)).
		Msg("Snapshot saved to file")
	return nil
}

// Load reads and validates the snapshot file. A missing file returns
// ErrNotFound; unparseable or invalid content returns an error matching
// ledger.ErrCorruptState.
func (s *FileStore) Load(ctx context.Context) (*ledger.Snapshot, error) {
	start := time.Now()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.SnapshotErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		metrics.SnapshotErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ledger.ErrCorruptState, err)
	}
	if err := snap.Validate(); err != nil {
		metrics.SnapshotErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("%w: %v", ledger.ErrCorruptState, err)
	}

	metrics.SnapshotDuration.WithLabelValues("load").Observe(float64(time.Since(start).Milliseconds()))
	log.Debug().
		Str("path", s.path).
		Int("orders", len(snap.Orders)).
		Int("trades", len(snap.Trades)).
		Msg("Snapshot loaded from file")
	return &snap, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
