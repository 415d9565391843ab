package migration

import (
	"authoritycore/core/types"
	"authoritycore/ledger"
	"authoritycore/merkle"
)

// Result summarizes one import run.
type Result struct {
	EventsImported int
	BatchesBuilt   int
	LastBatch      *merkle.Root
}

// Importer replays a legacy log into the ledger and closes it into
// source=migration Merkle batches of batchSize events each. The final,
// possibly short, batch is still committed — a backfill run never leaves
// a tail of unbatched legacy events behind.
type Importer struct {
	log    Log
	writer ledger.Writer
	store  merkle.Store
	signer merkle.BatchSigner
}

// NewImporter constructs an Importer.
func NewImporter(log Log, writer ledger.Writer, store merkle.Store, signer merkle.BatchSigner) *Importer {
	return &Importer{log: log, writer: writer, store: store, signer: signer}
}

// Run replays every legacy record into the ledger, grouping them into
// batches of batchSize and committing one Merkle batch per group.
func (imp *Importer) Run(batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	result := &Result{}
	var pending []ledger.Event

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		root, err := merkle.BuildRoot(pending, merkle.SourceMigration, imp.signer)
		if err != nil {
			return types.WrapError(types.CodeInvalidInput, "", "build migration batch", err)
		}
		if err := imp.store.CommitBatch(*root, root.FirstEventID, root.LastEventID); err != nil {
			return types.WrapError(types.CodePersistence, "", "commit migration batch", err)
		}
		result.BatchesBuilt++
		result.LastBatch = root
		pending = nil
		return nil
	}

	err := imp.log.Iterate(func(legacy LegacyEvent) error {
		stored, err := imp.writer.AppendEvent(ledger.Event{
			EventType:         ledger.EventType(legacy.EventType),
			Timestamp:         legacy.Timestamp,
			PrincipalID:       parsePrincipalID(legacy.PrincipalID),
			RequestedAction:   legacy.RequestedAction,
			RequestedResource: legacy.RequestedResource,
		})
		if err != nil {
			return types.WrapError(types.CodePersistence, "", "append legacy event", err)
		}
		result.EventsImported++
		pending = append(pending, stored)
		if len(pending) >= batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}
