// Package intent parses and hashes intent records and checks whether an
// intent's requested action/resource falls within a mandate's granted scope.
package intent

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"authoritycore/core/scope"
	"authoritycore/core/types"
	"authoritycore/crypto"
)

// Intent is a transient authorization request: it exists for the duration
// of one issue/validate call plus its contribution to a mandate's
// intent_hash. It is never persisted on its own.
type Intent struct {
	IntentID   uuid.UUID
	Action     string
	Resource   string
	Parameters types.ValueMap
	Context    types.ValueMap
}

// Record is the loosely-typed shape Parse accepts, matching what a JSON
// decode of an external request body produces.
type Record struct {
	Action     string
	Resource   string
	Parameters types.ValueMap
	Context    types.ValueMap
}

// Parse validates a record's required fields and returns a new Intent with
// a freshly assigned IntentID.
func Parse(rec Record) (*Intent, error) {
	if rec.Action == "" {
		return nil, types.NewError(types.CodeInvalidInput, "", "intent action must be non-empty")
	}
	if rec.Resource == "" {
		return nil, types.NewError(types.CodeInvalidInput, "", "intent resource must be non-empty")
	}
	params := rec.Parameters
	if params == nil {
		params = types.ValueMap{}
	}
	ctx := rec.Context
	if ctx == nil {
		ctx = types.ValueMap{}
	}
	return &Intent{
		IntentID:   types.NewID(),
		Action:     rec.Action,
		Resource:   rec.Resource,
		Parameters: params,
		Context:    ctx,
	}, nil
}

// canonicalPayload returns the {action, resource, parameters} view that is
// hashed. context is deliberately excluded so tracing/locale metadata never
// changes the hash a mandate is bound to.
func (i *Intent) canonicalPayload() map[string]interface{} {
	return map[string]interface{}{
		"action":     i.Action,
		"resource":   i.Resource,
		"parameters": i.Parameters,
	}
}

// Hash returns the hex-encoded SHA-256 digest of the intent's canonical
// {action, resource, parameters} payload.
func (i *Intent) Hash() (string, error) {
	payload, err := crypto.CanonicalJSON(i.canonicalPayload())
	if err != nil {
		return "", fmt.Errorf("intent: canonicalize: %w", err)
	}
	digest := crypto.Hash(payload)
	return hex.EncodeToString(digest[:]), nil
}

// MandateScope is the subset of mandate fields needed to check intent
// binding, kept narrow so this package does not import core/mandate (which
// imports this package).
type MandateScope struct {
	ActionScope   []string
	ResourceScope []string
}

// MatchesMandate reports whether the intent's action and resource fall
// within the mandate's granted scope. Intent binding only ever narrows a
// mandate's authority, never widens it.
func MatchesMandate(i *Intent, m MandateScope) bool {
	actionOK := false
	for _, a := range m.ActionScope {
		if a == i.Action {
			actionOK = true
			break
		}
	}
	if !actionOK {
		return false
	}
	return scope.AnyMatches(i.Resource, m.ResourceScope)
}
