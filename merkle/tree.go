// Package merkle builds binary Merkle trees over batches of ledger events,
// signs their roots, and generates inclusion proofs.
package merkle

import (
	"authoritycore/core/types"
	"authoritycore/crypto"
	"authoritycore/ledger"
)

// LeafHash computes the SHA-256 digest of an event's canonical leaf
// payload.
func LeafHash(e ledger.Event) ([32]byte, error) {
	payload, err := crypto.CanonicalJSON(e.Leaf())
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Hash(payload), nil
}

// LeafHashes computes the ordered leaf hashes for a contiguous batch of
// events.
func LeafHashes(events []ledger.Event) ([][32]byte, error) {
	hashes := make([][32]byte, len(events))
	for i, e := range events {
		h, err := LeafHash(e)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

// pairHash combines two node hashes into their parent, the single
// concatenation rule used at every level of the tree.
func pairHash(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return crypto.Hash(buf)
}

// Tree is a binary Merkle tree built from leaf hashes, with every level
// retained so a proof can be generated for any leaf index. Odd levels
// duplicate their last node before pairing, an explicit rule that both
// construction and verification must apply identically.
type Tree struct {
	levels [][][32]byte
}

// BuildTree constructs a Tree from the ordered leaf hashes. Leaves must be
// non-empty.
func BuildTree(leaves [][32]byte) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "cannot build a merkle tree with no leaves")
	}
	levels := [][][32]byte{leaves}
	current := leaves
	for len(current) > 1 {
		if len(current)%2 == 1 {
			current = append(current, current[len(current)-1])
		}
		next := make([][32]byte, len(current)/2)
		for i := 0; i < len(next); i++ {
			next[i] = pairHash(current[2*i], current[2*i+1])
		}
		levels = append(levels, next)
		current = next
	}
	return &Tree{levels: levels}, nil
}

// Root returns the tree's root hash.
func (t *Tree) Root() [32]byte {
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// ProofStep is one sibling hash on the path from a leaf to the root, along
// with whether the sibling sits on the right of the current node.
type ProofStep struct {
	Sibling [32]byte
	Right   bool
}

// Proof returns the inclusion proof for the leaf at index, or false if the
// index is out of range.
func (t *Tree) Proof(index int) ([]ProofStep, bool) {
	if index < 0 || index >= len(t.levels[0]) {
		return nil, false
	}
	var proof []ProofStep
	idx := index
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		// Odd levels were padded with a duplicate during construction; the
		// proof must reconstruct the same padding for the sibling lookup to
		// stay in bounds.
		siblingIdx := idx ^ 1
		if siblingIdx >= len(nodes) {
			siblingIdx = idx
		}
		proof = append(proof, ProofStep{Sibling: nodes[siblingIdx], Right: siblingIdx > idx})
		idx /= 2
	}
	return proof, true
}

// VerifyProof reports whether leaf, combined along proof, reproduces root.
func VerifyProof(leaf [32]byte, proof []ProofStep, root [32]byte) bool {
	current := leaf
	for _, step := range proof {
		if step.Right {
			current = pairHash(current, step.Sibling)
		} else {
			current = pairHash(step.Sibling, current)
		}
	}
	return current == root
}
