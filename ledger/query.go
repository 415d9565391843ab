package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TimeRange bounds a query or verification pass to events whose timestamp
// falls within [Start, End], both inclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Filter narrows query_events to a principal, an event type, a decision, or
// a time range. Zero-valued fields are treated as "no constraint".
type Filter struct {
	PrincipalID uuid.UUID
	EventType   EventType
	Decision    Decision
	TimeRange   *TimeRange
}

// Matches reports whether e satisfies every constraint set on f.
func (f Filter) Matches(e Event) bool {
	if f.PrincipalID != uuid.Nil && f.PrincipalID != e.PrincipalID {
		return false
	}
	if f.EventType != "" && f.EventType != e.EventType {
		return false
	}
	if f.Decision != "" && f.Decision != e.Decision {
		return false
	}
	if f.TimeRange != nil {
		if e.Timestamp.Before(f.TimeRange.Start) || e.Timestamp.After(f.TimeRange.End) {
			return false
		}
	}
	return true
}

// Page is the result of one query_events call: a page of events in
// ascending event_id order plus the cursor to pass for the next page. When
// NextCursor is nil, there is nothing further to read.
type Page struct {
	Events     []Event
	NextCursor *int64
}

// Reader is the read side of the ledger's persistence contract: range scans
// and cursor-paginated filtered queries.
type Reader interface {
	// EventRange returns events with event_id in [first, last], ascending.
	EventRange(first, last int64) ([]Event, error)
	// UnbatchedEvents returns up to limit events with a nil MerkleRootID,
	// in ascending event_id order, for the batcher to consume.
	UnbatchedEvents(limit int) ([]Event, error)
	// QueryEvents returns events with event_id > cursor matching filter, up
	// to limit, in ascending event_id order.
	QueryEvents(filter Filter, limit int, cursor int64) (Page, error)
}

// Writer is the write side of the ledger's persistence contract: strictly
// ordered, single-writer-serialized append.
type Writer interface {
	// AppendEvent assigns a strictly increasing EventID and persists e,
	// returning the stored copy.
	AppendEvent(e Event) (Event, error)
	// BindEventsToRoot atomically updates every event in [first, last] to
	// reference rootID, exactly once.
	BindEventsToRoot(rootID uuid.UUID, first, last int64) error
}
