// Package authoritysdk is a thin Go facade over the mandate engine, the
// ledger, batching, verification, and snapshot recovery. It exposes
// exactly the operation set an embedding caller needs and owns none of the
// persistence or signing logic itself.
package authoritysdk

import (
	"github.com/google/uuid"

	"authoritycore/core/intent"
	"authoritycore/core/mandate"
	"authoritycore/core/principal"
	"authoritycore/core/types"
	"authoritycore/crypto"
	"authoritycore/ledger"
	"authoritycore/merkle"
	"authoritycore/snapshot"
	"authoritycore/verify"
)

// PrincipalStore is the subset of storage the facade needs for principal
// and policy management, kept narrow so callers can substitute a fake in
// tests without pulling in bbolt.
type PrincipalStore interface {
	PutPrincipal(p *principal.Principal) error
	GetPrincipal(id uuid.UUID) (*principal.Principal, bool, error)
	SetPolicy(p *principal.Policy) error
	GetActivePolicy(principalID uuid.UUID) (*principal.Policy, bool, error)
	QueryEvents(filter ledger.Filter, limit int, cursor int64) (ledger.Page, error)
}

// PolicyInvalidator drops a cached policy entry after a write. The facade
// calls it whenever SetPolicy succeeds, so a just-replaced policy is never
// served stale out of a PolicyCache sitting in front of the same store.
type PolicyInvalidator interface {
	Invalidate(principalID uuid.UUID)
}

// Client is the facade embedding callers drive instead of talking to the
// mandate engine, ledger, batcher, verifier, and snapshot manager
// individually.
type Client struct {
	engine    *mandate.Engine
	store     PrincipalStore
	batcher   *merkle.Batcher
	verifier  *verify.Verifier
	snapshots *snapshot.Manager
	recoverer *snapshot.Recoverer
	cache     PolicyInvalidator
}

// New constructs a Client wiring every subsystem an embedding daemon or
// test harness needs. The policy cache starts unset; SetPolicyCache wires
// one when a PolicyCache sits in front of store.
func New(engine *mandate.Engine, store PrincipalStore, batcher *merkle.Batcher, verifier *verify.Verifier, snapshots *snapshot.Manager, recoverer *snapshot.Recoverer) *Client {
	return &Client{engine: engine, store: store, batcher: batcher, verifier: verifier, snapshots: snapshots, recoverer: recoverer}
}

// SetPolicyCache wires a PolicyCache so SetPolicy invalidates it
// synchronously.
func (c *Client) SetPolicyCache(cache PolicyInvalidator) {
	c.cache = cache
}

// RegisterPrincipal validates and persists a new principal with a freshly
// generated signing keypair.
func (c *Client) RegisterPrincipal(name string, principalType principal.Type, owner string) (*principal.Principal, error) {
	priv, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, types.WrapError(types.CodeCrypto, "", "generate principal keypair", err)
	}
	p, err := principal.Register(name, principalType, owner, priv.PubKey(), priv)
	if err != nil {
		return nil, err
	}
	if err := c.store.PutPrincipal(p); err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "persist principal", err)
	}
	return p, nil
}

// SetPolicyRequest carries the parameters of a set_policy call.
type SetPolicyRequest struct {
	PrincipalID        uuid.UUID
	MaxValiditySeconds int64
	ResourcePatterns   []string
	Actions            []string
	AllowDelegation    bool
	MaxDelegationDepth int
	CreatedBy          uuid.UUID
}

// SetPolicy replaces the principal's active policy, deactivating the prior
// one, and invalidates any cache entry so the change is visible
// immediately.
func (c *Client) SetPolicy(req SetPolicyRequest) (*principal.Policy, error) {
	p, err := principal.NewPolicy(req.PrincipalID, req.MaxValiditySeconds, req.ResourcePatterns, req.Actions, req.AllowDelegation, req.MaxDelegationDepth, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetPolicy(p); err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "persist policy", err)
	}
	if c.cache != nil {
		c.cache.Invalidate(req.PrincipalID)
	}
	return p, nil
}

// IssueMandate delegates to mandate.Engine.Issue.
func (c *Client) IssueMandate(req mandate.IssueRequest) (*mandate.Mandate, error) {
	return c.engine.Issue(req)
}

// ValidateRequest carries the parameters of a validate call, including an
// optional bound intent built from a raw record.
type ValidateRequest struct {
	MandateID         uuid.UUID
	RequestedAction   string
	RequestedResource string
	Intent            *intent.Record
}

// Validate parses an optional intent record and delegates to
// mandate.Engine.Validate.
func (c *Client) Validate(req ValidateRequest) (mandate.Decision, error) {
	var boundIntent *intent.Intent
	if req.Intent != nil {
		parsed, err := intent.Parse(*req.Intent)
		if err != nil {
			return mandate.Decision{}, err
		}
		boundIntent = parsed
	}
	return c.engine.Validate(req.MandateID, req.RequestedAction, req.RequestedResource, boundIntent)
}

// Revoke delegates to mandate.Engine.Revoke.
func (c *Client) Revoke(mandateID, revokerID uuid.UUID, reason string, cascade bool) error {
	return c.engine.Revoke(mandateID, revokerID, reason, cascade)
}

// QueryEvents delegates to the store's filtered, cursor-paginated ledger
// query.
func (c *Client) QueryEvents(filter ledger.Filter, limit int, cursor int64) (ledger.Page, error) {
	return c.store.QueryEvents(filter, limit, cursor)
}

// CreateSnapshot delegates to snapshot.Manager.CreateSnapshot.
func (c *Client) CreateSnapshot() (*snapshot.Snapshot, error) {
	return c.snapshots.CreateSnapshot()
}

// VerifyBatch delegates to verify.Verifier.VerifyBatch.
func (c *Client) VerifyBatch(batchID uuid.UUID) verify.Result {
	return c.verifier.VerifyBatch(batchID)
}

// Recover delegates to snapshot.Recoverer.RecoverFromSnapshot. A nil id
// recovers from the latest snapshot.
func (c *Client) Recover(id *uuid.UUID) (*snapshot.RecoveryResult, error) {
	return c.recoverer.RecoverFromSnapshot(id)
}

// RunBatch forces the batcher to attempt closing one batch immediately,
// independent of its own size/time triggers. Returns nil if there was
// nothing unbatched.
func (c *Client) RunBatch(maxEvents int) (*merkle.Root, error) {
	return c.batcher.RunOnce(maxEvents)
}
