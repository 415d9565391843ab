package mandate

import (
	"github.com/google/uuid"

	"authoritycore/core/principal"
)

// PrincipalStore loads registered principals by id.
type PrincipalStore interface {
	GetPrincipal(id uuid.UUID) (*principal.Principal, bool, error)
}

// PolicyStore loads a principal's currently active policy.
type PolicyStore interface {
	GetActivePolicy(principalID uuid.UUID) (*principal.Policy, bool, error)
}

// Store persists mandates and resolves parent/child relationships.
type Store interface {
	GetMandate(id uuid.UUID) (*Mandate, bool, error)
	PutMandate(m *Mandate) error
	// MutateMandate loads the mandate, applies fn, and persists the result
	// atomically with respect to concurrent readers.
	MutateMandate(id uuid.UUID, fn func(*Mandate) error) (*Mandate, error)
	// Children returns every direct, unrevoked child of parentID.
	Children(parentID uuid.UUID) ([]*Mandate, error)
}
