package merkle

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
	"authoritycore/crypto"
)

// Source distinguishes a batch built from live ledger traffic from one
// produced by the backfill importer over pre-cryptographic history.
type Source string

const (
	SourceLive      Source = "live"
	SourceMigration Source = "migration"
)

// Root is a signed commitment to one batch of ledger events.
type Root struct {
	RootID      uuid.UUID
	BatchID     uuid.UUID
	MerkleRoot  [32]byte
	Signature   []byte
	EventCount  int
	FirstEventID int64
	LastEventID  int64
	Source       Source
	CreatedAt    time.Time
}

func (r Root) MerkleRootHex() string {
	return hex.EncodeToString(r.MerkleRoot[:])
}

// BatchSigner signs and verifies batch roots with the system's dedicated
// batch-signing key, kept separate from any individual principal's key.
type BatchSigner interface {
	SignRoot(root [32]byte) ([]byte, error)
	VerifyRoot(root [32]byte, signature []byte) bool
}

// ecdsaBatchSigner implements BatchSigner with an ECDSA P-256 key pair,
// reusing the same primitives every mandate signature is built on.
type ecdsaBatchSigner struct {
	priv *crypto.PrivateKey
	pub  *crypto.PublicKey
}

// NewECDSABatchSigner constructs a BatchSigner from a batch-signing key
// pair. priv may be nil for a verify-only signer.
func NewECDSABatchSigner(priv *crypto.PrivateKey, pub *crypto.PublicKey) BatchSigner {
	if pub == nil && priv != nil {
		pub = priv.PubKey()
	}
	return &ecdsaBatchSigner{priv: priv, pub: pub}
}

func (s *ecdsaBatchSigner) SignRoot(root [32]byte) ([]byte, error) {
	if s.priv == nil {
		return nil, types.NewError(types.CodeCrypto, "", "batch signer has no private key")
	}
	return crypto.Sign(root[:], s.priv)
}

func (s *ecdsaBatchSigner) VerifyRoot(root [32]byte, signature []byte) bool {
	if s.pub == nil {
		return false
	}
	return crypto.Verify(root[:], signature, s.pub)
}
