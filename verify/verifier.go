// Package verify recomputes Merkle roots and inclusion proofs from stored
// ledger events and compares them against signed commitments, the only way
// tampering with durable history can be detected after the fact.
package verify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
	"authoritycore/ledger"
	"authoritycore/merkle"
)

// Store is the read-side persistence contract the verifier needs: looking
// up a root by batch, loading its events, and locating which root an event
// belongs to.
type Store interface {
	GetMerkleRootByBatch(batchID uuid.UUID) (*merkle.Root, bool, error)
	EventRange(first, last int64) ([]ledger.Event, error)
	MerkleRootsInRange(start, end time.Time) ([]merkle.Root, error)
	GetEvent(eventID int64) (*ledger.Event, bool, error)
	GetMerkleRoot(rootID uuid.UUID) (*merkle.Root, bool, error)
}

// Result is the outcome of verifying a single batch.
type Result struct {
	BatchID           uuid.UUID
	Verified          bool
	StoredRoot        [32]byte
	ComputedRoot      [32]byte
	SignatureValid    bool
	IsMigrationBatch  bool
	// TimestampInverted is set when the batch's created_at precedes the
	// latest timestamp among its own events. It is only ever expected on
	// migration batches, which sign retroactively, and is never treated as
	// a verification failure.
	TimestampInverted bool
	ErrorMessage      string
}

// Summary aggregates the results of verifying several batches.
type Summary struct {
	TotalBatches    int
	VerifiedBatches int
	FailedBatches   int
	Failures        []Result
}

// Verifier recomputes roots and proofs against a signer's public key.
type Verifier struct {
	store  Store
	signer merkle.BatchSigner
}

// NewVerifier constructs a Verifier backed by store and signer. Only the
// signer's VerifyRoot behavior is used; it need not carry a private key.
func NewVerifier(store Store, signer merkle.BatchSigner) *Verifier {
	return &Verifier{store: store, signer: signer}
}

// VerifyBatch reloads a batch's events, recomputes its root with the same
// leaf function and tree-building rule the batcher used, and compares it
// to the stored, signed root.
func (v *Verifier) VerifyBatch(batchID uuid.UUID) Result {
	root, found, err := v.store.GetMerkleRootByBatch(batchID)
	if err != nil {
		return Result{BatchID: batchID, ErrorMessage: fmt.Sprintf("load merkle root: %v", err)}
	}
	if !found {
		return Result{BatchID: batchID, ErrorMessage: "merkle root not found for batch"}
	}
	isMigration := root.Source == merkle.SourceMigration

	events, err := v.store.EventRange(root.FirstEventID, root.LastEventID)
	if err != nil {
		return Result{BatchID: batchID, StoredRoot: root.MerkleRoot, IsMigrationBatch: isMigration, ErrorMessage: fmt.Sprintf("load batch events: %v", err)}
	}
	if len(events) == 0 {
		return Result{BatchID: batchID, StoredRoot: root.MerkleRoot, IsMigrationBatch: isMigration, ErrorMessage: "no events found for batch"}
	}
	if len(events) != root.EventCount {
		return Result{
			BatchID: batchID, StoredRoot: root.MerkleRoot, IsMigrationBatch: isMigration,
			ErrorMessage: fmt.Sprintf("event count mismatch: expected %d, found %d", root.EventCount, len(events)),
		}
	}

	// Migration batches sign retroactively: their created_at may trail the
	// latest event timestamp. That inversion is expected, not tampering, and
	// is never treated as a verification failure — only noted on the result.
	var latestEvent time.Time
	for _, e := range events {
		if e.Timestamp.After(latestEvent) {
			latestEvent = e.Timestamp
		}
	}
	timestampInverted := root.CreatedAt.Before(latestEvent)

	leaves, err := merkle.LeafHashes(events)
	if err != nil {
		return Result{BatchID: batchID, StoredRoot: root.MerkleRoot, IsMigrationBatch: isMigration, ErrorMessage: fmt.Sprintf("hash events: %v", err)}
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return Result{BatchID: batchID, StoredRoot: root.MerkleRoot, IsMigrationBatch: isMigration, ErrorMessage: fmt.Sprintf("build tree: %v", err)}
	}
	computedRoot := tree.Root()

	rootsMatch := computedRoot == root.MerkleRoot
	signatureValid := v.signer.VerifyRoot(root.MerkleRoot, root.Signature)
	verified := rootsMatch && signatureValid

	result := Result{
		BatchID:           batchID,
		Verified:          verified,
		StoredRoot:        root.MerkleRoot,
		ComputedRoot:      computedRoot,
		SignatureValid:    signatureValid,
		IsMigrationBatch:  isMigration,
		TimestampInverted: timestampInverted,
	}
	if !verified {
		if !rootsMatch {
			result.ErrorMessage = "root mismatch"
		}
		if !signatureValid {
			if result.ErrorMessage != "" {
				result.ErrorMessage += "; "
			}
			result.ErrorMessage += "invalid signature"
		}
	}
	return result
}

// VerifyTimeRange verifies every batch whose created_at falls within
// [start, end] and aggregates the results.
func (v *Verifier) VerifyTimeRange(start, end time.Time) (Summary, error) {
	roots, err := v.store.MerkleRootsInRange(start, end)
	if err != nil {
		return Summary{}, types.WrapError(types.CodePersistence, "", "load merkle roots in range", err)
	}

	summary := Summary{TotalBatches: len(roots)}
	for _, root := range roots {
		result := v.VerifyBatch(root.BatchID)
		if result.Verified {
			summary.VerifiedBatches++
		} else {
			summary.FailedBatches++
			summary.Failures = append(summary.Failures, result)
		}
	}
	return summary, nil
}

// VerifyEventInclusion finds the event's batch, reconstructs the batch's
// leaf hashes, generates a Merkle proof for the event's position, and
// checks the proof against the stored root.
func (v *Verifier) VerifyEventInclusion(eventID int64) (bool, error) {
	event, found, err := v.store.GetEvent(eventID)
	if err != nil {
		return false, types.WrapError(types.CodePersistence, "", "load event", err)
	}
	if !found {
		return false, types.NewError(types.CodeNotFound, types.ReasonNotFound, "event not found")
	}
	if event.MerkleRootID == nil {
		return false, types.NewError(types.CodeStateViolation, "", "event has not been batched yet")
	}

	root, found, err := v.store.GetMerkleRoot(*event.MerkleRootID)
	if err != nil {
		return false, types.WrapError(types.CodePersistence, "", "load merkle root", err)
	}
	if !found {
		return false, types.NewError(types.CodeNotFound, types.ReasonNotFound, "merkle root not found")
	}

	events, err := v.store.EventRange(root.FirstEventID, root.LastEventID)
	if err != nil {
		return false, types.WrapError(types.CodePersistence, "", "load batch events", err)
	}

	leaves, err := merkle.LeafHashes(events)
	if err != nil {
		return false, err
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return false, err
	}

	index := int(eventID - root.FirstEventID)
	proof, ok := tree.Proof(index)
	if !ok {
		return false, types.NewError(types.CodeStateViolation, "", "event index outside batch bounds")
	}

	return merkle.VerifyProof(leaves[index], proof, root.MerkleRoot), nil
}

// VerifyBackfill is a convenience pass that verifies only migration
// batches created within [start, end]. Batches that verify are only
// counted; each failing batch's Result in Failures carries
// IsMigrationBatch and TimestampInverted as VerifyBatch set them.
func (v *Verifier) VerifyBackfill(start, end time.Time) (Summary, error) {
	roots, err := v.store.MerkleRootsInRange(start, end)
	if err != nil {
		return Summary{}, types.WrapError(types.CodePersistence, "", "load merkle roots in range", err)
	}

	summary := Summary{}
	for _, root := range roots {
		if root.Source != merkle.SourceMigration {
			continue
		}
		summary.TotalBatches++
		result := v.VerifyBatch(root.BatchID)
		if result.Verified {
			summary.VerifiedBatches++
		} else {
			summary.FailedBatches++
			summary.Failures = append(summary.Failures, result)
		}
	}
	return summary, nil
}
