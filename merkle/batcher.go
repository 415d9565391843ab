package merkle

import (
	"time"

	"authoritycore/core/types"
	"authoritycore/ledger"
)

// Store is the persistence contract the batcher reads unbatched events from
// and writes committed roots to. CommitBatch must insert the root and bind
// every event in its range in one atomic unit — a reader must never be able
// to observe a root with events still unbound, or two roots covering the
// same event-id range.
type Store interface {
	ledger.Reader
	CommitBatch(root Root, firstEventID, lastEventID int64) error
}

// Batcher groups unbatched ledger events into Merkle batches on a size or
// time trigger. The trigger is illustrative, not load-bearing: the
// invariant it exists to satisfy is that every event is batched within a
// bounded time, not that any particular threshold is used.
type Batcher struct {
	store      Store
	signer     BatchSigner
	sizeLimit  int
	timeLimit  time.Duration
	lastBatch  time.Time
	now        func() time.Time
}

// NewBatcher constructs a Batcher with the given size and time triggers.
func NewBatcher(store Store, signer BatchSigner, sizeLimit int, timeLimit time.Duration) *Batcher {
	return &Batcher{
		store:     store,
		signer:    signer,
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		lastBatch: time.Now(),
		now:       time.Now,
	}
}

// ShouldBatch reports whether the batcher should attempt to close a batch
// right now, given the number of currently unbatched events.
func (b *Batcher) ShouldBatch(unbatchedCount int) bool {
	if unbatchedCount == 0 {
		return false
	}
	if unbatchedCount >= b.sizeLimit {
		return true
	}
	return b.now().Sub(b.lastBatch) >= b.timeLimit
}

// RunOnce attempts to close exactly one batch over the oldest unbatched
// events, at most maxEvents of them. It returns the committed Root, or nil if there was nothing to
// batch. The root insert and the events' merkle_root_id update happen in a
// single CommitBatch call, so a reader never observes a half-built batch
// and a crash between the two writes can never leave a range open to be
// double-batched.
func (b *Batcher) RunOnce(maxEvents int) (*Root, error) {
	events, err := b.store.UnbatchedEvents(maxEvents)
	if err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "load unbatched events", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	root, err := BuildRoot(events, SourceLive, b.signer)
	if err != nil {
		return nil, err
	}

	if err := b.store.CommitBatch(*root, root.FirstEventID, root.LastEventID); err != nil {
		return nil, types.WrapError(types.CodePersistence, "", "commit merkle batch", err)
	}

	b.lastBatch = b.now()
	return root, nil
}

// BuildRoot computes and signs the Merkle root over a contiguous batch of
// events. Events must already be sorted in ascending event_id order.
func BuildRoot(events []ledger.Event, source Source, signer BatchSigner) (*Root, error) {
	if len(events) == 0 {
		return nil, types.NewError(types.CodeInvalidInput, "", "cannot build a batch with no events")
	}

	leaves, err := LeafHashes(events)
	if err != nil {
		return nil, types.WrapError(types.CodeInvalidInput, "", "hash batch leaves", err)
	}
	tree, err := BuildTree(leaves)
	if err != nil {
		return nil, err
	}
	rootHash := tree.Root()

	signature, err := signer.SignRoot(rootHash)
	if err != nil {
		return nil, types.WrapError(types.CodeCrypto, "", "sign batch root", err)
	}

	return &Root{
		RootID:       types.NewID(),
		BatchID:      types.NewID(),
		MerkleRoot:   rootHash,
		Signature:    signature,
		EventCount:   len(events),
		FirstEventID: events[0].EventID,
		LastEventID:  events[len(events)-1].EventID,
		Source:       source,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
