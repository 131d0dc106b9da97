package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/pkg/metrics"
)

// MemStore implements Store with a mutex-guarded map. The lock covers only
// map reads and mutations; callers get copies and never hold the lock across
// network or disk I/O.
type MemStore struct {
	mu      sync.RWMutex
	drivers map[string]model.Snapshot
	order   []string
	clock   func() time.Time
}

// NewMemStore creates an empty in-memory driver state store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		drivers: make(map[string]model.Snapshot),
		clock:   time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Merge applies last-writer-wins per field and stamps the server time.
func (s *MemStore) Merge(_ context.Context, driverID string, fields map[string]any) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, known := s.drivers[driverID]
	if !known {
		s.order = append(s.order, driverID)
	}
	merged := make(map[string]any, len(prev.Fields)+len(fields))
	for k, v := range prev.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	snap := model.Snapshot{
		DriverID:   driverID,
		Fields:     merged,
		LastUpdate: s.clock(),
	}
	s.drivers[driverID] = snap
	metrics.UpdateDriversTracked(len(s.drivers))

	return copySnapshot(snap), nil
}

// Get returns a copy of one driver's snapshot.
func (s *MemStore) Get(_ context.Context, driverID string) (model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.drivers[driverID]
	if !ok {
		return model.Snapshot{}, ErrNotFound
	}
	return copySnapshot(snap), nil
}

// SnapshotAll returns an atomically copied slice of all snapshots, in
// first-merge order. Drivers tied on every ranking field keep the rank of
// whoever was seen first instead of shuffling between reads.
func (s *MemStore) SnapshotAll(_ context.Context) []model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Snapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copySnapshot(s.drivers[id]))
	}
	return out
}

// Clear removes all driver state.
func (s *MemStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers = make(map[string]model.Snapshot)
	s.order = nil
	metrics.UpdateDriversTracked(0)
}

// Count returns the number of tracked drivers.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.drivers)
}

// copySnapshot detaches the fields map so callers can't mutate stored state.
func copySnapshot(s model.Snapshot) model.Snapshot {
	fields := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return s
}
