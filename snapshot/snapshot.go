// Package snapshot captures periodic {event count, latest root, timestamp}
// checkpoints and recovers derived state by replaying events recorded after
// the latest one.
package snapshot

import (
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
)

// Snapshot is an immutable checkpoint of the ledger's state at a point in
// time.
type Snapshot struct {
	SnapshotID        uuid.UUID
	SnapshotTimestamp time.Time
	TotalEvents       int64
	MerkleRoot        [32]byte
	SnapshotData      types.ValueMap
	CreatedAt         time.Time
}

// Store is the persistence contract for snapshots.
type Store interface {
	PutSnapshot(s Snapshot) error
	LatestSnapshot() (*Snapshot, bool, error)
	GetSnapshot(id uuid.UUID) (*Snapshot, bool, error)
	ListSnapshots() ([]Snapshot, error)
	DeleteSnapshot(id uuid.UUID) error
	TotalEventCount() (int64, error)
	LatestMerkleRoot() ([32]byte, bool, error)
}

// Manager creates and prunes snapshots.
type Manager struct {
	store Store
	now   func() time.Time
}

// NewManager constructs a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// SetClock overrides the manager's time source, for deterministic tests.
func (m *Manager) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	m.now = now
}

// CreateSnapshot captures the current event count and latest Merkle root
// and persists a new Snapshot.
func (m *Manager) CreateSnapshot() (*Snapshot, error) {
	now := m.now().UTC()

	count, err := m.store.TotalEventCount()
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "count events", err)
	}

	var root [32]byte
	latestRoot, found, err := m.store.LatestMerkleRoot()
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "load latest merkle root", err)
	}
	if found {
		root = latestRoot
	}

	snap := Snapshot{
		SnapshotID:        types.NewID(),
		SnapshotTimestamp: now,
		TotalEvents:       count,
		MerkleRoot:        root,
		SnapshotData:       types.ValueMap{},
		CreatedAt:         now,
	}
	if err := m.store.PutSnapshot(snap); err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "persist snapshot", err)
	}
	return &snap, nil
}

// Cleanup deletes snapshots older than retentionDays. Ledger events and
// Merkle roots are never touched by this path.
func (m *Manager) Cleanup(retentionDays int) (int, error) {
	cutoff := m.now().UTC().AddDate(0, 0, -retentionDays)
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return 0, types.WrapError(types.CodePersistence, "", "list snapshots", err)
	}

	deleted := 0
	for _, s := range snapshots {
		if s.CreatedAt.Before(cutoff) {
			if err := m.store.DeleteSnapshot(s.SnapshotID); err != nil {
				return deleted, types.WrapError(types.CodePersistence, "", "delete snapshot", err)
			}
			deleted++
		}
	}
	return deleted, nil
}
