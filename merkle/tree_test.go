package merkle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/crypto"
	"authoritycore/ledger"
)

func makeEvents(n int) []ledger.Event {
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
	return events
}

func TestBuildTreeEvenAndOddLeafCounts(t *testing.T) {
	for _, n := range []int{1, 2, 3, 12, 13} {
		leaves, err := LeafHashes(makeEvents(n))
		require.NoError(t, err)
		tree, err := BuildTree(leaves)
		require.NoError(t, err)
		assert.NotEqual(t, [32]byte{}, tree.Root())
	}
}

func TestInclusionProofRoundTrip(t *testing.T) {
	events := makeEvents(12)
	leaves, err := LeafHashes(events)
	require.NoError(t, err)
	tree, err := BuildTree(leaves)
	require.NoError(t, err)

	for i := range leaves {
		proof, ok := tree.Proof(i)
		require.True(t, ok)
		assert.True(t, VerifyProof(leaves[i], proof, tree.Root()))
	}
}

func TestInclusionProofFailsOnSwappedLeaves(t *testing.T) {
	events := makeEvents(12)
	leaves, err := LeafHashes(events)
	require.NoError(t, err)
	tree, err := BuildTree(leaves)
	require.NoError(t, err)

	proof, ok := tree.Proof(0)
	require.True(t, ok)
	assert.False(t, VerifyProof(leaves[1], proof, tree.Root()))
}

func TestBuildRootSignsAndVerifies(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := NewECDSABatchSigner(priv, nil)

	root, err := BuildRoot(makeEvents(5), SourceLive, signer)
	require.NoError(t, err)
	assert.True(t, signer.VerifyRoot(root.MerkleRoot, root.Signature))
	assert.Equal(t, int64(1), root.FirstEventID)
	assert.Equal(t, int64(5), root.LastEventID)
}

func TestBuildRootCorruptedEventChangesRoot(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := NewECDSABatchSigner(priv, nil)

	events := makeEvents(5)
	root, err := BuildRoot(events, SourceLive, signer)
	require.NoError(t, err)

	events[2].RequestedResource = "tampered"
	tamperedRoot, err := BuildRoot(events, SourceLive, signer)
	require.NoError(t, err)

	assert.NotEqual(t, root.MerkleRoot, tamperedRoot.MerkleRoot)
}
