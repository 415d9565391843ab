package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"authoritycore/core/mandate"
	"authoritycore/core/principal"
	"authoritycore/core/types"
	"authoritycore/crypto"
	"authoritycore/ledger"
	"authoritycore/merkle"
	"authoritycore/snapshot"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "authority.db"), &bolt.Options{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestPrincipal(t *testing.T) *principal.Principal {
	t.Helper()
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	p, err := principal.Register("agent-1", principal.TypeAgent, "owner-1", priv.PubKey(), priv)
	require.NoError(t, err)
	return p
}

func TestPutGetPrincipal(t *testing.T) {
	store := newTestStore(t)
	p := newTestPrincipal(t)

	require.NoError(t, store.PutPrincipal(p))

	loaded, found, err := store.GetPrincipal(p.PrincipalID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, p.Name, loaded.Name)
	assert.Equal(t, p.PublicKeyPEM, loaded.PublicKeyPEM)
}

func TestSetPolicyDeactivatesPrior(t *testing.T) {
	store := newTestStore(t)
	p := newTestPrincipal(t)
	require.NoError(t, store.PutPrincipal(p))

	first, err := principal.NewPolicy(p.PrincipalID, 3600, []string{"files/*"}, []string{"read"}, true, 2, p.PrincipalID)
	require.NoError(t, err)
	require.NoError(t, store.SetPolicy(first))

	active, found, err := store.GetActivePolicy(p.PrincipalID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.PolicyID, active.PolicyID)

	second, err := principal.NewPolicy(p.PrincipalID, 7200, []string{"files/*"}, []string{"read", "write"}, true, 2, p.PrincipalID)
	require.NoError(t, err)
	require.NoError(t, store.SetPolicy(second))

	active, found, err = store.GetActivePolicy(p.PrincipalID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, second.PolicyID, active.PolicyID)
}

func TestMandateRoundTripAndChildren(t *testing.T) {
	store := newTestStore(t)
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)

	parent := &mandate.Mandate{
		MandateID:     types.NewID(),
		IssuerID:      types.NewID(),
		SubjectID:     types.NewID(),
		ValidFrom:     time.Now().UTC(),
		ValidUntil:    time.Now().UTC().Add(time.Hour),
		ResourceScope: []string{"files/*"},
		ActionScope:   []string{"read"},
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, parent.Sign(priv))
	require.NoError(t, store.PutMandate(parent))

	child := parent.Clone()
	child.MandateID = types.NewID()
	child.ParentMandateID = &parent.MandateID
	child.DelegationDepth = 1
	require.NoError(t, child.Sign(priv))
	require.NoError(t, store.PutMandate(child))

	loaded, found, err := store.GetMandate(parent.MandateID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, parent.SignatureHex(), loaded.SignatureHex())

	children, err := store.Children(parent.MandateID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.MandateID, children[0].MandateID)

	mutated, err := store.MutateMandate(parent.MandateID, func(m *mandate.Mandate) error {
		m.Revoked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, mutated.Revoked)

	reloaded, _, err := store.GetMandate(parent.MandateID)
	require.NoError(t, err)
	assert.True(t, reloaded.Revoked)
}

func TestAppendEventAssignsMonotonicIDs(t *testing.T) {
	store := newTestStore(t)

	first, err := store.AppendEvent(ledger.Event{EventType: ledger.EventIssued, PrincipalID: types.NewID(), Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	second, err := store.AppendEvent(ledger.Event{EventType: ledger.EventIssued, PrincipalID: types.NewID(), Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	assert.Equal(t, first.EventID+1, second.EventID)

	ranged, err := store.EventRange(first.EventID, second.EventID)
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	unbatched, err := store.UnbatchedEvents(10)
	require.NoError(t, err)
	assert.Len(t, unbatched, 2)
}

func TestCommitBatchMarksBatchedAtomically(t *testing.T) {
	store := newTestStore(t)
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)

	e1, err := store.AppendEvent(ledger.Event{EventType: ledger.EventIssued, PrincipalID: types.NewID(), Timestamp: time.Now().UTC()})
	require.NoError(t, err)
	e2, err := store.AppendEvent(ledger.Event{EventType: ledger.EventIssued, PrincipalID: types.NewID(), Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	events, err := store.UnbatchedEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	root, err := merkle.BuildRoot(events, merkle.SourceLive, signer)
	require.NoError(t, err)
	require.NoError(t, store.CommitBatch(*root, e1.EventID, e2.EventID))

	remaining, err := store.UnbatchedEvents(10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	byBatch, found, err := store.GetMerkleRootByBatch(root.BatchID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root.MerkleRoot, byBatch.MerkleRoot)

	latestHash, found, err := store.LatestMerkleRoot()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root.MerkleRoot, latestHash)
}

func TestSnapshotCRUD(t *testing.T) {
	store := newTestStore(t)
	snap := snapshot.Snapshot{
		SnapshotID:        types.NewID(),
		SnapshotTimestamp: time.Now().UTC(),
		TotalEvents:       5,
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, store.PutSnapshot(snap))

	loaded, found, err := store.GetSnapshot(snap.SnapshotID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.TotalEvents, loaded.TotalEvents)

	latest, found, err := store.LatestSnapshot()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, snap.SnapshotID, latest.SnapshotID)

	require.NoError(t, store.DeleteSnapshot(snap.SnapshotID))
	_, found, err = store.GetSnapshot(snap.SnapshotID)
	require.NoError(t, err)
	assert.False(t, found)
}
