package types

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh opaque 128-bit identifier. Every entity ID in this
// system is a UUID except ledger_event_id, which is a monotonic int64
// assigned by the ledger writer's sequence generator.
func NewID() uuid.UUID {
	return uuid.New()
}

// ParseID parses a lowercase hyphenated UUID string.
func ParseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// FormatTime renders t as an ISO-8601 UTC timestamp with microsecond
// precision and a literal "Z" suffix, the timestamp format canonical-JSON
// payloads require.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// ParseTime parses a timestamp produced by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000000Z", s)
}
