package principal

import (
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
)

// Policy caps what a principal may issue: validity, resource/action
// patterns, and delegation depth. At most one policy is active per
// principal at any time; an inactive policy is never consulted.
type Policy struct {
	PolicyID               uuid.UUID
	PrincipalID             uuid.UUID
	MaxValiditySeconds      int64
	AllowedResourcePatterns []string
	AllowedActions          []string
	AllowDelegation         bool
	MaxDelegationDepth      int
	Active                  bool
	CreatedAt               time.Time
	CreatedBy               uuid.UUID
}

// NewPolicy validates and constructs a new active Policy for principalID.
func NewPolicy(principalID uuid.UUID, maxValiditySeconds int64, resourcePatterns, actions []string, allowDelegation bool, maxDelegationDepth int, createdBy uuid.UUID) (*Policy, error) {
	if maxValiditySeconds <= 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "max_validity_seconds must be positive")
	}
	if len(resourcePatterns) == 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "allowed_resource_patterns must be non-empty")
	}
	if len(actions) == 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "allowed_actions must be non-empty")
	}
	if maxDelegationDepth < 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "max_delegation_depth must be non-negative")
	}

	return &Policy{
		PolicyID:                types.NewID(),
		PrincipalID:             principalID,
		MaxValiditySeconds:      maxValiditySeconds,
		AllowedResourcePatterns: append([]string(nil), resourcePatterns...),
		AllowedActions:          append([]string(nil), actions...),
		AllowDelegation:         allowDelegation,
		MaxDelegationDepth:      maxDelegationDepth,
		Active:                  true,
		CreatedAt:               time.Now().UTC(),
		CreatedBy:               createdBy,
	}, nil
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.AllowedResourcePatterns = append([]string(nil), p.AllowedResourcePatterns...)
	clone.AllowedActions = append([]string(nil), p.AllowedActions...)
	return &clone
}
