package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// CanonicalJSON renders v as canonical JSON: UTF-8 bytes, object keys sorted
// lexicographically at every depth, and no insignificant whitespace. This is
// the single canonicalization shared by mandate signing and intent hashing,
// so two equivalent payloads always hash and sign identically.
//
// Go's encoding/json already emits map keys in sorted order; CanonicalJSON
// forces every nested object through that path by round-tripping the value
// through an untyped decode, so a struct-rooted payload (whose fields marshal
// in declaration order) canonicalizes the same as the equivalent map would.
// Callers are responsible for pre-formatting timestamps as ISO-8601
// Z-suffixed strings and UUIDs as lowercase hyphenated strings, and for
// omitting absent optional fields (via `omitempty` or by building a map)
// rather than encoding them as null.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("crypto: marshal payload: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("crypto: normalize payload: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("crypto: canonicalize payload: %w", err)
	}
	return canonical, nil
}

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// Sign produces an ASN.1 DER ECDSA signature over SHA-256(payload) using the
// issuer's private key.
func Sign(payload []byte, priv *PrivateKey) ([]byte, error) {
	if priv == nil || priv.PrivateKey == nil {
		return nil, fmt.Errorf("crypto: nil private key")
	}
	digest := Hash(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, priv.PrivateKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: sign: %w", err)
	}
	return sig, nil
}

// Verify reports whether signature is a valid ECDSA signature over
// SHA-256(payload) produced by the private counterpart of pub. It returns
// false on a nil key, an empty or malformed signature, or a verification
// mismatch; it never returns an error, since unusable key material is
// rejected when a *PublicKey is decoded.
func Verify(payload, signature []byte, pub *PublicKey) bool {
	if pub == nil || pub.PublicKey == nil || len(signature) == 0 {
		return false
	}
	digest := Hash(payload)
	return ecdsa.VerifyASN1(pub.PublicKey, digest[:], signature)
}
