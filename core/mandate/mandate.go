// Package mandate implements the execution mandate lifecycle: issuance
// under policy and parent constraints, validation against requested
// actions/resources, and revocation with cascade to descendants.
package mandate

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
	"authoritycore/crypto"
)

// Mandate is a signed grant of delegated authority from issuer to subject,
// optionally narrowed to a single bound intent and optionally a delegation
// of a parent mandate.
type Mandate struct {
	MandateID        uuid.UUID
	IssuerID         uuid.UUID
	SubjectID        uuid.UUID
	ValidFrom        time.Time
	ValidUntil       time.Time
	ResourceScope    []string
	ActionScope      []string
	Signature        []byte
	CreatedAt        time.Time
	ParentMandateID  *uuid.UUID
	DelegationDepth  int
	IntentHash       string
	Revoked          bool
	RevokedAt        *time.Time
	RevocationReason string
}

// signingPayload is the deterministic canonicalization signed at issuance
// and reverified at every validate call. It covers every attribute except
// Signature and the revocation fields, per the invariant that revocation
// never changes what was originally signed for.
type signingPayload struct {
	MandateID       string   `json:"mandate_id"`
	IssuerID        string   `json:"issuer_id"`
	SubjectID       string   `json:"subject_id"`
	ValidFrom       string   `json:"valid_from"`
	ValidUntil      string   `json:"valid_until"`
	ResourceScope   []string `json:"resource_scope"`
	ActionScope     []string `json:"action_scope"`
	CreatedAt       string   `json:"created_at"`
	ParentMandateID string   `json:"parent_mandate_id,omitempty"`
	DelegationDepth int      `json:"delegation_depth"`
	IntentHash      string   `json:"intent_hash,omitempty"`
}

func (m *Mandate) payload() signingPayload {
	p := signingPayload{
		MandateID:       m.MandateID.String(),
		IssuerID:        m.IssuerID.String(),
		SubjectID:       m.SubjectID.String(),
		ValidFrom:       types.FormatTime(m.ValidFrom),
		ValidUntil:      types.FormatTime(m.ValidUntil),
		ResourceScope:   m.ResourceScope,
		ActionScope:     m.ActionScope,
		CreatedAt:       types.FormatTime(m.CreatedAt),
		DelegationDepth: m.DelegationDepth,
		IntentHash:      m.IntentHash,
	}
	if m.ParentMandateID != nil {
		p.ParentMandateID = m.ParentMandateID.String()
	}
	return p
}

// CanonicalPayload returns the canonical-JSON bytes that Sign and
// VerifySignature operate over.
func (m *Mandate) CanonicalPayload() ([]byte, error) {
	return crypto.CanonicalJSON(m.payload())
}

// Sign computes and stores m.Signature using the issuer's private key.
func (m *Mandate) Sign(issuerKey *crypto.PrivateKey) error {
	payload, err := m.CanonicalPayload()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(payload, issuerKey)
	if err != nil {
		return types.WrapError(types.CodeCrypto, "", "sign mandate", err)
	}
	m.Signature = sig
	return nil
}

// VerifySignature reports whether m.Signature is valid over m's canonical
// payload under the issuer's current public key.
func (m *Mandate) VerifySignature(issuerKey *crypto.PublicKey) (bool, error) {
	payload, err := m.CanonicalPayload()
	if err != nil {
		return false, err
	}
	return crypto.Verify(payload, m.Signature, issuerKey), nil
}

// SignatureHex returns the hex encoding of m.Signature, for display/export.
func (m *Mandate) SignatureHex() string {
	return hex.EncodeToString(m.Signature)
}

// IsActive reports whether m is usable at instant now: not revoked and
// within its validity window.
func (m *Mandate) IsActive(now time.Time) bool {
	if m.Revoked {
		return false
	}
	return !now.Before(m.ValidFrom) && !now.After(m.ValidUntil)
}

// Clone returns a deep copy of m.
func (m *Mandate) Clone() *Mandate {
	if m == nil {
		return nil
	}
	clone := *m
	clone.ResourceScope = append([]string(nil), m.ResourceScope...)
	clone.ActionScope = append([]string(nil), m.ActionScope...)
	if m.ParentMandateID != nil {
		id := *m.ParentMandateID
		clone.ParentMandateID = &id
	}
	if m.RevokedAt != nil {
		t := *m.RevokedAt
		clone.RevokedAt = &t
	}
	clone.Signature = append([]byte(nil), m.Signature...)
	return &clone
}
