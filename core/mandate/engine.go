package mandate

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"authoritycore/core/intent"
	"authoritycore/core/scope"
	"authoritycore/core/types"
	"authoritycore/ledger"
)

// Engine wires the mandate lifecycle with the principal/policy/mandate
// stores and the authority ledger. It emits a ledger.Event through its
// emitter on every decision it makes, denied or not, after the event has
// been durably appended.
type Engine struct {
	principals PrincipalStore
	policies   PolicyStore
	mandates   Store
	writer     ledger.Writer
	emitter    ledger.Emitter
	now        func() time.Time
}

// NewEngine constructs an Engine with a no-op emitter; callers override it
// with SetEmitter once a real one (metrics, tracing, audit feed) exists.
func NewEngine(principals PrincipalStore, policies PolicyStore, mandates Store, writer ledger.Writer) *Engine {
	return &Engine{
		principals: principals,
		policies:   policies,
		mandates:   mandates,
		writer:     writer,
		emitter:    ledger.NoopEmitter{},
		now:        time.Now,
	}
}

// SetEmitter configures the engine's event emitter. Passing nil resets it
// to a no-op implementation.
func (e *Engine) SetEmitter(emitter ledger.Emitter) {
	if emitter == nil {
		e.emitter = ledger.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetClock overrides the engine's time source, for deterministic tests.
func (e *Engine) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	e.now = now
}

func (e *Engine) emit(ev ledger.Event) (ledger.Event, error) {
	stored, err := e.writer.AppendEvent(ev)
	if err != nil {
		return ledger.Event{}, types.WrapError(types.CodePersistence, "", "append ledger event", err)
	}
	e.emitter.Emit(stored)
	return stored, nil
}

func (e *Engine) deny(principalID uuid.UUID, action, resource string, mandateID *uuid.UUID, reason types.Reason, code types.Code, message string) error {
	_, emitErr := e.emit(ledger.Event{
		EventType:         ledger.EventDenied,
		Timestamp:         e.now().UTC(),
		PrincipalID:       principalID,
		MandateID:         mandateID,
		Decision:          ledger.DecisionDenied,
		DenialReason:      reason,
		RequestedAction:   action,
		RequestedResource: resource,
	})
	if emitErr != nil {
		return emitErr
	}
	return types.NewError(code, reason, message)
}

// IssueRequest carries the parameters of an issue call.
type IssueRequest struct {
	IssuerID        uuid.UUID
	SubjectID       uuid.UUID
	ResourceScope   []string
	ActionScope     []string
	ValiditySeconds int64
	Intent          *intent.Intent
	ParentMandateID *uuid.UUID
}

// Issue implements the ordered issuance checks: policy existence, validity
// cap, scope containment within the issuer's policy, and — when delegating
// — containment within the parent mandate. Any failed check records a
// denied ledger event and returns a structured error without persisting a
// mandate; persistence and signing failures return a wrapped error without
// recording an event.
func (e *Engine) Issue(req IssueRequest) (*Mandate, error) {
	if len(req.ResourceScope) == 0 {
		return nil, e.deny(req.IssuerID, "", "", nil, "", types.CodeInvalidInput, "resource_scope must be non-empty")
	}
	if len(req.ActionScope) == 0 {
		return nil, e.deny(req.IssuerID, "", "", nil, "", types.CodeInvalidInput, "action_scope must be non-empty")
	}
	if req.ValiditySeconds <= 0 {
		return nil, e.deny(req.IssuerID, "", "", nil, "", types.CodeInvalidInput, "validity_seconds must be positive")
	}

	policy, found, err := e.policies.GetActivePolicy(req.IssuerID)
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "load issuer policy", err)
	}
	if !found {
		return nil, e.deny(req.IssuerID, "", "", nil, types.ReasonNoPolicy, types.CodeConstraintViolation, "issuer has no active authority policy")
	}

	if req.ValiditySeconds > policy.MaxValiditySeconds {
		return nil, e.deny(req.IssuerID, "", "", nil, types.ReasonValidityExceedsPolicy, types.CodeConstraintViolation, "requested validity exceeds policy maximum")
	}

	if !scope.IsSubset(req.ResourceScope, policy.AllowedResourcePatterns) || !scope.ActionSubset(req.ActionScope, policy.AllowedActions) {
		return nil, e.deny(req.IssuerID, "", "", nil, types.ReasonScopeExceedsPolicy, types.CodeConstraintViolation, "requested scope exceeds issuer's policy")
	}

	now := e.now().UTC()
	validFrom := now
	validUntil := now.Add(time.Duration(req.ValiditySeconds) * time.Second)
	depth := 0

	var parent *Mandate
	if req.ParentMandateID != nil {
		parent, found, err = e.mandates.GetMandate(*req.ParentMandateID)
		if err != nil {
			return nil, types.WrapError(types.CodePersistence, "", "load parent mandate", err)
		}
		if !found || parent.Revoked || now.After(parent.ValidUntil) {
			return nil, e.deny(req.IssuerID, "", "", req.ParentMandateID, types.ReasonParentInvalid, types.CodeConstraintViolation, "parent mandate is invalid, revoked, or expired")
		}
		if validFrom.Before(parent.ValidFrom) || validUntil.After(parent.ValidUntil) {
			return nil, e.deny(req.IssuerID, "", "", req.ParentMandateID, types.ReasonValidityOutsideParent, types.CodeConstraintViolation, "requested validity window exceeds parent mandate's window")
		}
		if !scope.IsSubset(req.ResourceScope, parent.ResourceScope) || !scope.ActionSubset(req.ActionScope, parent.ActionScope) {
			return nil, e.deny(req.IssuerID, "", "", req.ParentMandateID, types.ReasonScopeExceedsParent, types.CodeConstraintViolation, "requested scope exceeds parent mandate's scope")
		}
		depth = parent.DelegationDepth + 1
		if depth > policy.MaxDelegationDepth {
			return nil, e.deny(req.IssuerID, "", "", req.ParentMandateID, types.ReasonDepthExceeded, types.CodeConstraintViolation, "delegation depth exceeds policy maximum")
		}
	}

	issuer, found, err := e.principals.GetPrincipal(req.IssuerID)
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "load issuer", err)
	}
	if !found {
		return nil, e.deny(req.IssuerID, "", "", nil, types.ReasonNotFound, types.CodeNotFound, "issuer principal not found")
	}
	issuerKey, err := issuer.PrivateKey()
	if err != nil {
		return nil, e.deny(req.IssuerID, "", "", nil, types.ReasonIssuerUnsignable, types.CodeCrypto, "issuer has no usable signing key")
	}

	var intentHash string
	if req.Intent != nil {
		if !intent.MatchesMandate(req.Intent, intent.MandateScope{ActionScope: req.ActionScope, ResourceScope: req.ResourceScope}) {
			return nil, e.deny(req.IssuerID, req.Intent.Action, req.Intent.Resource, nil, types.ReasonScopeExceedsPolicy, types.CodeConstraintViolation, "intent falls outside the requested mandate scope")
		}
		intentHash, err = req.Intent.Hash()
		if err != nil {
			return nil, types.WrapError(types.CodeInvalidInput, "", "hash intent", err)
		}
	}

	m := &Mandate{
		MandateID:       types.NewID(),
		IssuerID:        req.IssuerID,
		SubjectID:       req.SubjectID,
		ValidFrom:       validFrom,
		ValidUntil:      validUntil,
		ResourceScope:   append([]string(nil), req.ResourceScope...),
		ActionScope:     append([]string(nil), req.ActionScope...),
		CreatedAt:       now,
		ParentMandateID: req.ParentMandateID,
		DelegationDepth: depth,
		IntentHash:      intentHash,
	}
	if err := m.Sign(issuerKey); err != nil {
		return nil, err
	}

	if err := e.mandates.PutMandate(m); err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "persist mandate", err)
	}

	if _, err := e.emit(ledger.Event{
		EventType:   ledger.EventIssued,
		Timestamp:   now,
		PrincipalID: req.IssuerID,
		MandateID:   &m.MandateID,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// Decision is the outcome of a validate call.
type Decision struct {
	Allowed bool
	Reason  types.Reason
}

// Validate implements the fail-closed validation order: existence, not
// revoked, within validity, signature, scope, and — when the mandate is
// bound to an intent — intent-hash equality. A validated or denied ledger
// event is recorded regardless of outcome.
func (e *Engine) Validate(mandateID uuid.UUID, requestedAction, requestedResource string, boundIntent *intent.Intent) (Decision, error) {
	m, found, err := e.mandates.GetMandate(mandateID)
	if err != nil {
		return Decision{}, types.WrapError(types.CodePersistence, "", "load mandate", err)
	}
	if !found {
		_, emitErr := e.emit(ledger.Event{
			EventType:         ledger.EventDenied,
			Timestamp:         e.now().UTC(),
			MandateID:         &mandateID,
			Decision:          ledger.DecisionDenied,
			DenialReason:      types.ReasonNotFound,
			RequestedAction:   requestedAction,
			RequestedResource: requestedResource,
		})
		return Decision{Allowed: false, Reason: types.ReasonNotFound}, emitErr
	}

	now := e.now().UTC()
	deny := func(reason types.Reason) (Decision, error) {
		_, emitErr := e.emit(ledger.Event{
			EventType:         ledger.EventDenied,
			Timestamp:         now,
			PrincipalID:       m.SubjectID,
			MandateID:         &mandateID,
			Decision:          ledger.DecisionDenied,
			DenialReason:      reason,
			RequestedAction:   requestedAction,
			RequestedResource: requestedResource,
		})
		return Decision{Allowed: false, Reason: reason}, emitErr
	}

	if m.Revoked {
		return deny(types.ReasonRevoked)
	}
	if now.Before(m.ValidFrom) {
		return deny(types.ReasonNotYetValid)
	}
	if now.After(m.ValidUntil) {
		return deny(types.ReasonExpired)
	}

	issuer, found, err := e.principals.GetPrincipal(m.IssuerID)
	if err != nil {
		return Decision{}, types.WrapError(types.CodePersistence, "", "load issuer", err)
	}
	if !found {
		return deny(types.ReasonNotFound)
	}
	issuerKey, err := issuer.PublicKey()
	if err != nil {
		return Decision{}, types.WrapError(types.CodeCrypto, "", "load issuer public key", err)
	}
	valid, err := m.VerifySignature(issuerKey)
	if err != nil {
		return Decision{}, types.WrapError(types.CodeCrypto, "", "verify mandate signature", err)
	}
	if !valid {
		return deny(types.ReasonSignatureInvalid)
	}

	if !scope.ActionSubset([]string{requestedAction}, m.ActionScope) || !scope.AnyMatches(requestedResource, m.ResourceScope) {
		return deny(types.ReasonOutOfScope)
	}

	if m.IntentHash != "" {
		if boundIntent == nil {
			return deny(types.ReasonIntentMismatch)
		}
		h, err := boundIntent.Hash()
		if err != nil {
			return Decision{}, types.WrapError(types.CodeInvalidInput, "", "hash intent", err)
		}
		if h != m.IntentHash {
			return deny(types.ReasonIntentMismatch)
		}
	}

	_, emitErr := e.emit(ledger.Event{
		EventType:         ledger.EventValidated,
		Timestamp:         now,
		PrincipalID:       m.SubjectID,
		MandateID:         &mandateID,
		Decision:          ledger.DecisionAllowed,
		RequestedAction:   requestedAction,
		RequestedResource: requestedResource,
	})
	return Decision{Allowed: true}, emitErr
}

// isAdmin reports whether revokerID is an admin for revocation purposes:
// the issuer, the subject, or any principal holding an active authority
// policy of its own.
func (e *Engine) isAdmin(m *Mandate, revokerID uuid.UUID) (bool, error) {
	if revokerID == m.IssuerID || revokerID == m.SubjectID {
		return true, nil
	}
	_, found, err := e.policies.GetActivePolicy(revokerID)
	if err != nil {
		return false, types.WrapError(types.CodePersistence, "", "load revoker policy", err)
	}
	return found, nil
}

// Revoke marks mandateID revoked and, when cascade is set, recursively
// revokes every unrevoked descendant. A child that fails to revoke does not
// abort its siblings; the cascade continues with them, and the first such
// failure is returned once every child has been attempted. The descendants
// of a child whose revocation failed are not reached.
func (e *Engine) Revoke(mandateID, revokerID uuid.UUID, reason string, cascade bool) error {
	m, found, err := e.mandates.GetMandate(mandateID)
	if err != nil {
		return types.WrapError(types.CodePersistence, "", "load mandate", err)
	}
	if !found {
		return types.NewError(types.CodeNotFound, types.ReasonNotFound, "mandate not found")
	}

	admin, err := e.isAdmin(m, revokerID)
	if err != nil {
		return err
	}
	if !admin {
		return types.NewError(types.CodeAuthorization, "", "revoker lacks authority over this mandate")
	}

	if m.Revoked {
		return types.NewError(types.CodeStateViolation, types.ReasonAlreadyRevoked, "mandate is already revoked")
	}

	now := e.now().UTC()
	_, err = e.mandates.MutateMandate(mandateID, func(mm *Mandate) error {
		if mm.Revoked {
			return types.NewError(types.CodeStateViolation, types.ReasonAlreadyRevoked, "mandate is already revoked")
		}
		mm.Revoked = true
		mm.RevokedAt = &now
		mm.RevocationReason = reason
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := e.emit(ledger.Event{
		EventType:   ledger.EventRevoked,
		Timestamp:   now,
		PrincipalID: revokerID,
		MandateID:   &mandateID,
	}); err != nil {
		return err
	}

	if !cascade {
		return nil
	}

	children, err := e.mandates.Children(mandateID)
	if err != nil {
		return types.WrapError(types.CodePersistence, "", "load child mandates", err)
	}

	var cascadeErr error
	for _, child := range children {
		childReason := fmt.Sprintf("Parent %s revoked: %s", mandateID, reason)
		if err := e.Revoke(child.MandateID, revokerID, childReason, true); err != nil {
			if cascadeErr == nil {
				cascadeErr = err
			}
		}
	}
	return cascadeErr
}
