// Package ledger defines the authority ledger's event shape and the
// append-only writer contract that assigns strictly monotonic event IDs.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"authoritycore/core/types"
)

// EventType enumerates the four things the mandate engine ever records.
type EventType string

const (
	EventIssued    EventType = "issued"
	EventValidated EventType = "validated"
	EventDenied    EventType = "denied"
	EventRevoked   EventType = "revoked"
)

// Decision is the outcome of a validate call, recorded on validated/denied
// events.
type Decision string

const (
	DecisionAllowed Decision = "allowed"
	DecisionDenied  Decision = "denied"
)

// Event is one immutable record in the authority ledger. EventID is assigned
// by the writer at append time and is never set by callers.
type Event struct {
	EventID           int64
	EventType         EventType
	Timestamp         time.Time
	PrincipalID       uuid.UUID
	MandateID         *uuid.UUID
	Decision          Decision
	DenialReason      types.Reason
	RequestedAction   string
	RequestedResource string
	EventMetadata     types.ValueMap
	CorrelationID     string
	MerkleRootID      *uuid.UUID
}

// Type returns the event's type as a plain string.
func (e Event) Type() string {
	return string(e.EventType)
}

// Emitter broadcasts ledger events to downstream subscribers (metrics,
// tracing, external indexers) after they have been durably appended.
// Mirrors the chain's generic event-broadcast interface.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. It is the default until a caller wires
// a real emitter via Engine.SetEmitter.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// LeafPayload is the subset of an event's fields hashed into a Merkle leaf.
// It covers event_id, principal_id, timestamp, event_type and the requested
// action/resource. mandate_id, decision, denial_reason, event_metadata and
// correlation_id are not covered, so a change to any of them does not
// change the leaf hash.
type LeafPayload struct {
	EventID           int64  `json:"event_id"`
	PrincipalID       string `json:"principal_id"`
	Timestamp         string `json:"timestamp"`
	EventType         string `json:"event_type"`
	RequestedAction   string `json:"requested_action,omitempty"`
	RequestedResource string `json:"requested_resource,omitempty"`
}

// Leaf returns the canonical leaf payload for e.
func (e Event) Leaf() LeafPayload {
	return LeafPayload{
		EventID:           e.EventID,
		PrincipalID:       e.PrincipalID.String(),
		Timestamp:         types.FormatTime(e.Timestamp),
		EventType:         string(e.EventType),
		RequestedAction:   e.RequestedAction,
		RequestedResource: e.RequestedResource,
	}
}
