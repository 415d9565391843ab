package snapshot

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/ledger"
)

type memStore struct {
	snapshots  map[uuid.UUID]Snapshot
	eventCount int64
	latestRoot [32]byte
	hasRoot    bool
	events     []ledger.Event
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[uuid.UUID]Snapshot)}
}

func (m *memStore) PutSnapshot(s Snapshot) error {
	m.snapshots[s.SnapshotID] = s
	return nil
}

func (m *memStore) LatestSnapshot() (*Snapshot, bool, error) {
	var latest *Snapshot
	for _, s := range m.snapshots {
		s := s
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = &s
		}
	}
	return latest, latest != nil, nil
}

func (m *memStore) GetSnapshot(id uuid.UUID) (*Snapshot, bool, error) {
	s, ok := m.snapshots[id]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (m *memStore) ListSnapshots() ([]Snapshot, error) {
	var out []Snapshot
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) DeleteSnapshot(id uuid.UUID) error {
	delete(m.snapshots, id)
	return nil
}

func (m *memStore) TotalEventCount() (int64, error) {
	return m.eventCount, nil
}

func (m *memStore) LatestMerkleRoot() ([32]byte, bool, error) {
	return m.latestRoot, m.hasRoot, nil
}

func (m *memStore) EventsAfter(timestamp time.Time) ([]ledger.Event, error) {
	var out []ledger.Event
	for _, e := range m.events {
		if e.Timestamp.After(timestamp) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestCreateSnapshotCapturesCounts(t *testing.T) {
	store := newMemStore()
	store.eventCount = 10
	mgr := NewManager(store)

	snap, err := mgr.CreateSnapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.TotalEvents)
}

func TestRecoverFromSnapshotReturnsOnlyLaterEvents(t *testing.T) {
	store := newMemStore()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.eventCount = 10
	mgr := NewManager(store)
	mgr.SetClock(func() time.Time { return t0 })

	snap, err := mgr.CreateSnapshot()
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		store.events = append(store.events, ledger.Event{
			EventID:   int64(11 + i),
			Timestamp: t0.Add(time.Duration(i+1) * time.Hour),
		})
	}

	recoverer := NewRecoverer(store, store, nil, nil)
	result, err := recoverer.RecoverFromSnapshot(&snap.SnapshotID)
	require.NoError(t, err)
	assert.Len(t, result.ReplayedEvents, 5)
	assert.Equal(t, t0, result.ReplayFromTime)
}

func TestCleanupRemovesOldSnapshotsOnly(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	old := Snapshot{SnapshotID: uuid.New(), CreatedAt: now.AddDate(0, 0, -90)}
	recent := Snapshot{SnapshotID: uuid.New(), CreatedAt: now.AddDate(0, 0, -1)}
	store.snapshots[old.SnapshotID] = old
	store.snapshots[recent.SnapshotID] = recent

	mgr := NewManager(store)
	mgr.SetClock(func() time.Time { return now })

	deleted, err := mgr.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, found, _ := store.GetSnapshot(old.SnapshotID)
	assert.False(t, found)
	_, found, _ = store.GetSnapshot(recent.SnapshotID)
	assert.True(t, found)
}
