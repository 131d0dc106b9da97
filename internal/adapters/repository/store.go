// Package repository defines the driver state store interface and errors.
package repository

import (
	"context"

	"github.com/okian/pitwall/internal/domain/model"
)

// Store provides read/write access to per-driver merged state. It is the
// source of truth for ranking.
type Store interface {
	// Merge applies a partial update: new fields overwrite old ones,
	// unspecified fields persist, and the update timestamp is server-assigned
	// on every call. Returns the resulting snapshot.
	Merge(ctx context.Context, driverID string, fields map[string]any) (model.Snapshot, error)

	// Get returns one driver's snapshot copy.
	// Returns ErrNotFound when the driver is unknown.
	Get(ctx context.Context, driverID string) (model.Snapshot, error)

	// SnapshotAll returns a point-in-time copy of every driver snapshot.
	// Readers never observe a partially updated set.
	SnapshotAll(ctx context.Context) []model.Snapshot

	// Clear removes all driver state. Entries are never evicted otherwise;
	// stale drivers remain ranked until an explicit reset.
	Clear(ctx context.Context)

	// Count returns the number of tracked drivers.
	Count(ctx context.Context) int
}
