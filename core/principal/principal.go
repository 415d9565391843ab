// Package principal holds the domain types for registered principals and
// their authority policies, plus the store contract and cache the mandate
// engine reads through.
package principal

import (
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
	"authoritycore/crypto"
)

// Type enumerates the kinds of principal the system can register.
type Type string

const (
	TypeAgent   Type = "agent"
	TypeUser    Type = "user"
	TypeService Type = "service"
)

// Valid reports whether t is a recognized principal type.
func (t Type) Valid() bool {
	switch t {
	case TypeAgent, TypeUser, TypeService:
		return true
	default:
		return false
	}
}

// Principal is a registered identity: an agent, user, or service that can
// hold authority policies and be the issuer or subject of mandates.
type Principal struct {
	PrincipalID   uuid.UUID
	Name          string
	PrincipalType Type
	Owner         string
	PublicKeyPEM  string
	PrivateKeyPEM string
	CreatedAt     time.Time
}

// Clone returns a deep copy of p.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// PublicKey parses the principal's public key PEM.
func (p *Principal) PublicKey() (*crypto.PublicKey, error) {
	return crypto.PublicKeyFromPEM(p.PublicKeyPEM)
}

// PrivateKey parses the principal's private key PEM, if present.
func (p *Principal) PrivateKey() (*crypto.PrivateKey, error) {
	if p.PrivateKeyPEM == "" {
		return nil, types.NewError(types.CodeCrypto, types.ReasonIssuerUnsignable, "principal has no private key on file")
	}
	return crypto.PrivateKeyFromPEM(p.PrivateKeyPEM)
}

// Register validates and constructs a new Principal. If priv is non-nil its
// PEM encoding is stored alongside the public key; callers that only ever
// verify a principal's signatures (never sign on its behalf) pass a nil priv
// and no public key derived from it.
func Register(name string, principalType Type, owner string, pub *crypto.PublicKey, priv *crypto.PrivateKey) (*Principal, error) {
	if name == "" {
		return nil, types.NewError(types.CodeInvalidInput, "", "principal name must be non-empty")
	}
	if !principalType.Valid() {
		return nil, types.NewError(types.CodeInvalidInput, "", "invalid principal type")
	}
	if pub == nil {
		return nil, types.NewError(types.CodeInvalidInput, "", "principal requires a public key")
	}
	if priv != nil && !pub.MatchesPrivateKey(priv) {
		return nil, types.NewError(types.CodeInvalidInput, "", "public key does not match supplied private key")
	}

	pubPEM, err := pub.EncodePEM()
	if err != nil {
		return nil, types.WrapError(types.CodeCrypto, "", "encode public key", err)
	}
	var privPEM string
	if priv != nil {
		privPEM, err = priv.EncodePEM()
		if err != nil {
			return nil, types.WrapError(types.CodeCrypto, "", "encode private key", err)
		}
	}

	return &Principal{
		PrincipalID:   types.NewID(),
		Name:          name,
		PrincipalType: principalType,
		Owner:         owner,
		PublicKeyPEM:  pubPEM,
		PrivateKeyPEM: privPEM,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
