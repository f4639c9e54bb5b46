// Package store holds the in-memory fire detection dataset as immutable
// copy-on-write snapshots behind an atomic pointer. There is one writer at
// a time; readers never block.
package store

import (
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/firewatch-analytics/internal/domain"
	"github.com/couchcryptid/firewatch-analytics/internal/observability"
)

// State tracks dataset lifecycle.
type State int32

const (
	StateEmpty State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Store is the dataset holder. While a load is in flight readers keep
// getting the last ready snapshot.
type Store struct {
	mu      sync.Mutex // serializes writers
	snap    atomic.Pointer[Snapshot]
	state   atomic.Int32
	metrics *observability.Metrics
}

// New creates an empty store.
func New(metrics *observability.Metrics) *Store {
	return &Store{metrics: metrics}
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

// BeginLoad moves the store into Loading. Readers are unaffected.
func (s *Store) BeginLoad() {
	s.state.Store(int32(StateLoading))
}

// AbortLoad reverts the state after a failed load: Ready if a snapshot
// exists, Empty otherwise.
func (s *Store) AbortLoad() {
	if s.snap.Load() != nil {
		s.state.Store(int32(StateReady))
	} else {
		s.state.Store(int32(StateEmpty))
	}
}

// Replace swaps the whole dataset for the given records.
func (s *Store) Replace(records []domain.FireDetection) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := newSnapshot(domain.Dedup(records), domain.Now())
	s.publish(snap)
	return snap
}

// Append merges records into the dataset, deduplicating against what is
// already held. It returns the records that were actually new alongside
// the published snapshot.
func (s *Store) Append(records []domain.FireDetection) ([]domain.FireDetection, *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var held []domain.FireDetection
	if cur := s.snap.Load(); cur != nil {
		held = cur.records
	}

	seen := make(map[domain.Key]struct{}, len(held))
	for _, r := range held {
		seen[r.Key()] = struct{}{}
	}

	var added []domain.FireDetection
	for _, r := range records {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		added = append(added, r)
	}

	merged := make([]domain.FireDetection, 0, len(held)+len(added))
	merged = append(merged, held...)
	merged = append(merged, added...)

	snap := newSnapshot(merged, domain.Now())
	s.publish(snap)
	return added, snap
}

// Snapshot returns the latest ready snapshot, or ErrNotReady when no load
// has ever completed.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.snap.Load()
	if snap == nil {
		return nil, domain.ErrNotReady
	}
	return snap, nil
}

func (s *Store) publish(snap *Snapshot) {
	s.snap.Store(snap)
	s.state.Store(int32(StateReady))
	s.metrics.DatasetRecords.Set(float64(snap.Len()))
}
