package verify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/crypto"
	"authoritycore/ledger"
	"authoritycore/merkle"
)

type memStore struct {
	events     map[int64]ledger.Event
	rootsByID  map[uuid.UUID]merkle.Root
	rootsBatch map[uuid.UUID]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		events:     make(map[int64]ledger.Event),
		rootsByID:  make(map[uuid.UUID]merkle.Root),
		rootsBatch: make(map[uuid.UUID]uuid.UUID),
	}
}

func (s *memStore) GetMerkleRootByBatch(batchID uuid.UUID) (*merkle.Root, bool, error) {
	rootID, ok := s.rootsBatch[batchID]
	if !ok {
		return nil, false, nil
	}
	root := s.rootsByID[rootID]
	return &root, true, nil
}

func (s *memStore) EventRange(first, last int64) ([]ledger.Event, error) {
	var out []ledger.Event
	for id := first; id <= last; id++ {
		if e, ok := s.events[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) MerkleRootsInRange(start, end time.Time) ([]merkle.Root, error) {
	var out []merkle.Root
	for _, r := range s.rootsByID {
		if !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) GetEvent(eventID int64) (*ledger.Event, bool, error) {
	e, ok := s.events[eventID]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

func (s *memStore) GetMerkleRoot(rootID uuid.UUID) (*merkle.Root, bool, error) {
	r, ok := s.rootsByID[rootID]
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func seedBatch(t *testing.T, store *memStore, signer merkle.BatchSigner, n int, source merkle.Source) merkle.Root {
	t.Helper()
	events := make([]ledger.Event, n)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		events[i] = ledger.Event{
			EventID:     int64(i + 1),
			EventType:   ledger.EventIssued,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			PrincipalID: uuid.New(),
		}
	}
	root, err := merkle.BuildRoot(events, source, signer)
	require.NoError(t, err)

	for i := range events {
		rootID := root.RootID
		events[i].MerkleRootID = &rootID
		store.events[events[i].EventID] = events[i]
	}
	store.rootsByID[root.RootID] = *root
	store.rootsBatch[root.BatchID] = root.RootID
	return *root
}

func TestVerifyBatchRoundTrip(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)
	store := newMemStore()

	root := seedBatch(t, store, signer, 12, merkle.SourceLive)

	verifier := NewVerifier(store, signer)
	result := verifier.VerifyBatch(root.BatchID)
	assert.True(t, result.Verified)
	assert.Equal(t, root.MerkleRoot, result.ComputedRoot)
}

func TestVerifyBatchDetectsCorruption(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)
	store := newMemStore()

	root := seedBatch(t, store, signer, 12, merkle.SourceLive)

	corrupted := store.events[3]
	corrupted.RequestedResource = "tampered"
	store.events[3] = corrupted

	verifier := NewVerifier(store, signer)
	result := verifier.VerifyBatch(root.BatchID)
	assert.False(t, result.Verified)
	assert.NotEqual(t, result.StoredRoot, result.ComputedRoot)
}

func TestVerifyEventInclusion(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)
	store := newMemStore()
	seedBatch(t, store, signer, 12, merkle.SourceLive)

	verifier := NewVerifier(store, signer)
	ok, err := verifier.VerifyEventInclusion(5)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyBackfillOnlyCoversMigrationBatches(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)
	store := newMemStore()

	seedBatch(t, store, signer, 6, merkle.SourceLive)

	verifier := NewVerifier(store, signer)
	summary, err := verifier.VerifyBackfill(time.Time{}, time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalBatches)
}
