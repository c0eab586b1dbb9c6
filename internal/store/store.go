// Package store persists ledger snapshots. Two backends are provided: a
// single-file JSON store for local runs and a PostgreSQL store with a
// normalized schema for durable deployments. Both implement Store and
// both guarantee that a snapshot is saved completely or not at all.
package store

import (
	"context"
	"errors"

	"github.com/openfolio/papertrader/internal/ledger"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
// Callers typically treat it as "start fresh" rather than a failure.
var ErrNotFound = errors.New("snapshot not found")

// Store persists complete ledger snapshots. Save atomically replaces the
// previously saved snapshot; Load returns the latest one, validated, or
// ErrNotFound. Corrupt persisted state surfaces as ledger.ErrCorruptState.
type Store interface {
	Save(ctx context.Context, snap *ledger.Snapshot) error
	Load(ctx context.Context) (*ledger.Snapshot, error)
	Close() error
}
