package migration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authoritycore/core/types"
	"authoritycore/crypto"
	"authoritycore/ledger"
	"authoritycore/merkle"
)

type memLog struct {
	events []LegacyEvent
}

func (l *memLog) Iterate(fn func(LegacyEvent) error) error {
	for _, e := range l.events {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// fakeStore is an in-memory stand-in satisfying both ledger.Writer (for the
// importer's AppendEvent calls) and merkle.Store (for its batch commits).
type fakeStore struct {
	events []ledger.Event
	nextID int64
	roots  map[uuid.UUID]merkle.Root
}

func newFakeStore() *fakeStore {
	return &fakeStore{roots: make(map[uuid.UUID]merkle.Root)}
}

func (s *fakeStore) AppendEvent(e ledger.Event) (ledger.Event, error) {
	s.nextID++
	e.EventID = s.nextID
	s.events = append(s.events, e)
	return e, nil
}

func (s *fakeStore) BindEventsToRoot(rootID uuid.UUID, first, last int64) error {
	for i := range s.events {
		if s.events[i].EventID >= first && s.events[i].EventID <= last {
			id := rootID
			s.events[i].MerkleRootID = &id
		}
	}
	return nil
}

// CommitBatch inserts the root and binds its event range in one step,
// mirroring the atomicity a real store must provide across the two writes.
func (s *fakeStore) CommitBatch(root merkle.Root, firstEventID, lastEventID int64) error {
	s.roots[root.RootID] = root
	return s.BindEventsToRoot(root.RootID, firstEventID, lastEventID)
}

func (s *fakeStore) EventRange(first, last int64) ([]ledger.Event, error) {
	var out []ledger.Event
	for _, e := range s.events {
		if e.EventID >= first && e.EventID <= last {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) UnbatchedEvents(limit int) ([]ledger.Event, error) {
	var out []ledger.Event
	for _, e := range s.events {
		if e.MerkleRootID == nil {
			out = append(out, e)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) QueryEvents(filter ledger.Filter, limit int, cursor int64) (ledger.Page, error) {
	return ledger.Page{}, nil
}

func TestImportReplaysLegacyEventsIntoBatches(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)

	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	log := &memLog{}
	for i := 0; i < 25; i++ {
		log.events = append(log.events, LegacyEvent{
			PrincipalID: types.NewID().String(),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			EventType:   "issued",
		})
	}

	store := newFakeStore()

	importer := NewImporter(log, store, store, signer)
	result, err := importer.Run(10)
	require.NoError(t, err)

	assert.Equal(t, 25, result.EventsImported)
	assert.Equal(t, 3, result.BatchesBuilt)
	assert.NotNil(t, result.LastBatch)
	assert.Equal(t, merkle.SourceMigration, result.LastBatch.Source)
	assert.Len(t, store.roots, 3)
}

func TestImportToleratesUnparseablePrincipalID(t *testing.T) {
	priv, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	signer := merkle.NewECDSABatchSigner(priv, nil)

	log := &memLog{events: []LegacyEvent{
		{PrincipalID: "not-a-uuid", Timestamp: time.Now().UTC(), EventType: "issued"},
	}}
	store := newFakeStore()

	importer := NewImporter(log, store, store, signer)
	result, err := importer.Run(10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventsImported)
	assert.Equal(t, uuid.Nil, store.events[0].PrincipalID)
}
