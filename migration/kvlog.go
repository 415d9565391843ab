// Package migration imports pre-cryptographic authority history into the
// ledger as source=migration Merkle batches, so everything the system ever
// decided is checkable the same way, even the decisions made before batch
// signing existed.
package migration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"

	"authoritycore/core/types"
)

// LegacyEvent is one row of the pre-cryptographic authority log: whatever a
// prior system recorded about a principal acting, without a mandate
// signature or a ledger event_id.
type LegacyEvent struct {
	PrincipalID       string    `json:"principal_id"`
	Timestamp         time.Time `json:"timestamp"`
	EventType         string    `json:"event_type"`
	RequestedAction   string    `json:"requested_action,omitempty"`
	RequestedResource string    `json:"requested_resource,omitempty"`
}

// Log iterates a legacy authority history in the order it was recorded.
type Log interface {
	Iterate(fn func(LegacyEvent) error) error
}

// LevelDBLog reads a legacy log stored as a LevelDB keyspace, one JSON
// value per key, iterated in key order. Keys are expected to sort in
// recording order (e.g. zero-padded sequence numbers); the importer does
// not re-sort by timestamp.
type LevelDBLog struct {
	db *leveldb.DB
}

// OpenLevelDBLog opens a legacy log at path for reading.
func OpenLevelDBLog(path string) (*LevelDBLog, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "open legacy log", err)
	}
	return &LevelDBLog{db: db}, nil
}

// Close releases the underlying LevelDB handle.
func (l *LevelDBLog) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Iterate walks every record in key order, decoding it as a LegacyEvent and
// invoking fn. Iteration stops at the first error fn returns.
func (l *LevelDBLog) Iterate(fn func(LegacyEvent) error) error {
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		var event LegacyEvent
		if err := json.Unmarshal(iter.Value(), &event); err != nil {
			return types.WrapError(types.CodeInvalidInput, "", "decode legacy event", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
	return iter.Error()
}

// parsePrincipalID tolerates legacy records that never validated their
// principal id as a UUID; an unparseable id becomes the nil UUID rather
// than aborting the whole import.
func parsePrincipalID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
