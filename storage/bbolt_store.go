// Package storage implements the transactional persistence contract the
// core requires: CRUD on principals, policies, and mandates; append-only
// ledger events with a serial id generator; and atomic root/event-range
// binding for Merkle batches. One bucket per entity, a read-modify-write
// Mutate idiom built on db.Update, and db.View for pure reads.
package storage

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"authoritycore/core/mandate"
	"authoritycore/core/principal"
	"authoritycore/core/types"
	"authoritycore/ledger"
	"authoritycore/merkle"
	"authoritycore/snapshot"
)

var (
	bucketPrincipals  = []byte("principals")
	bucketPolicies    = []byte("policies")
	bucketMandates    = []byte("mandates")
	bucketMerkleRoots = []byte("merkle_roots")
	bucketSnapshots   = []byte("snapshots")
	bucketEvents      = []byte("ledger_events")

	// Secondary indices. Each entry maps an index key to the primary key it
	// resolves to, letting range scans stay ordered without scanning every
	// record in the primary bucket.
	idxPolicyByPrincipal  = []byte("idx_policy_by_principal")
	idxMandatesByParent   = []byte("idx_mandates_by_parent")
	idxRootsByBatch       = []byte("idx_roots_by_batch")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// Store is the bbolt-backed implementation of every persistence contract
// the core components consume.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and ensures
// every bucket this store needs exists.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	buckets := [][]byte{
		bucketPrincipals, bucketPolicies, bucketMandates, bucketMerkleRoots,
		bucketSnapshots, bucketEvents, idxPolicyByPrincipal, idxMandatesByParent,
		idxRootsByBatch,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying bbolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func idBytes(id uuid.UUID) []byte {
	return []byte(id.String())
}

func eventIDBytes(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// --- Principals --------------------------------------------------------

type principalRecord struct {
	PrincipalID   string    `json:"principal_id"`
	Name          string    `json:"name"`
	PrincipalType string    `json:"principal_type"`
	Owner         string    `json:"owner"`
	PublicKeyPEM  string    `json:"public_key_pem"`
	PrivateKeyPEM string    `json:"private_key_pem,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toPrincipalRecord(p *principal.Principal) principalRecord {
	return principalRecord{
		PrincipalID:   p.PrincipalID.String(),
		Name:          p.Name,
		PrincipalType: string(p.PrincipalType),
		Owner:         p.Owner,
		PublicKeyPEM:  p.PublicKeyPEM,
		PrivateKeyPEM: p.PrivateKeyPEM,
		CreatedAt:     p.CreatedAt,
	}
}

func (r principalRecord) toDomain() (*principal.Principal, error) {
	id, err := uuid.Parse(r.PrincipalID)
	if err != nil {
		return nil, err
	}
	return &principal.Principal{
		PrincipalID:   id,
		Name:          r.Name,
		PrincipalType: principal.Type(r.PrincipalType),
		Owner:         r.Owner,
		PublicKeyPEM:  r.PublicKeyPEM,
		PrivateKeyPEM: r.PrivateKeyPEM,
		CreatedAt:     r.CreatedAt,
	}, nil
}

// PutPrincipal inserts or replaces a principal record.
func (s *Store) PutPrincipal(p *principal.Principal) error {
	payload, err := json.Marshal(toPrincipalRecord(p))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPrincipals).Put(idBytes(p.PrincipalID), payload)
	})
}

// GetPrincipal loads a principal by id.
func (s *Store) GetPrincipal(id uuid.UUID) (*principal.Principal, bool, error) {
	var rec principalRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPrincipals).Get(idBytes(id))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	p, err := rec.toDomain()
	return p, true, err
}

// --- Policies ------------------------------------------------------------

type policyRecord struct {
	PolicyID                string    `json:"policy_id"`
	PrincipalID              string    `json:"principal_id"`
	MaxValiditySeconds       int64     `json:"max_validity_seconds"`
	AllowedResourcePatterns []string  `json:"allowed_resource_patterns"`
	AllowedActions          []string  `json:"allowed_actions"`
	AllowDelegation         bool      `json:"allow_delegation"`
	MaxDelegationDepth      int       `json:"max_delegation_depth"`
	Active                  bool      `json:"active"`
	CreatedAt               time.Time `json:"created_at"`
	CreatedBy               string    `json:"created_by"`
}

func toPolicyRecord(p *principal.Policy) policyRecord {
	return policyRecord{
		PolicyID:                p.PolicyID.String(),
		PrincipalID:             p.PrincipalID.String(),
		MaxValiditySeconds:      p.MaxValiditySeconds,
		AllowedResourcePatterns: p.AllowedResourcePatterns,
		AllowedActions:          p.AllowedActions,
		AllowDelegation:         p.AllowDelegation,
		MaxDelegationDepth:      p.MaxDelegationDepth,
		Active:                  p.Active,
		CreatedAt:               p.CreatedAt,
		CreatedBy:               p.CreatedBy.String(),
	}
}

func (r policyRecord) toDomain() (*principal.Policy, error) {
	policyID, err := uuid.Parse(r.PolicyID)
	if err != nil {
		return nil, err
	}
	principalID, err := uuid.Parse(r.PrincipalID)
	if err != nil {
		return nil, err
	}
	createdBy, err := uuid.Parse(r.CreatedBy)
	if err != nil {
		return nil, err
	}
	return &principal.Policy{
		PolicyID:                policyID,
		PrincipalID:             principalID,
		MaxValiditySeconds:      r.MaxValiditySeconds,
		AllowedResourcePatterns: r.AllowedResourcePatterns,
		AllowedActions:          r.AllowedActions,
		AllowDelegation:         r.AllowDelegation,
		MaxDelegationDepth:      r.MaxDelegationDepth,
		Active:                  r.Active,
		CreatedAt:               r.CreatedAt,
		CreatedBy:               createdBy,
	}, nil
}

// SetPolicy deactivates the principal's current active policy, if any, and
// persists newPolicy as the new active one, atomically.
func (s *Store) SetPolicy(newPolicy *principal.Policy) error {
	payload, err := json.Marshal(toPolicyRecord(newPolicy))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		idx := tx.Bucket(idxPolicyByPrincipal)
		policies := tx.Bucket(bucketPolicies)

		principalKey := idBytes(newPolicy.PrincipalID)
		if existingID := idx.Get(principalKey); existingID != nil {
			raw := policies.Get(existingID)
			if raw != nil {
				var existing policyRecord
				if err := json.Unmarshal(raw, &existing); err != nil {
					return err
				}
				existing.Active = false
				existingPayload, err := json.Marshal(existing)
				if err != nil {
					return err
				}
				if err := policies.Put(existingID, existingPayload); err != nil {
					return err
				}
			}
		}

		policyKey := idBytes(newPolicy.PolicyID)
		if err := policies.Put(policyKey, payload); err != nil {
			return err
		}
		return idx.Put(principalKey, policyKey)
	})
}

// GetActivePolicy returns the principal's currently active policy, if any.
func (s *Store) GetActivePolicy(principalID uuid.UUID) (*principal.Policy, bool, error) {
	var rec policyRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		policyKey := tx.Bucket(idxPolicyByPrincipal).Get(idBytes(principalID))
		if policyKey == nil {
			return nil
		}
		raw := tx.Bucket(bucketPolicies).Get(policyKey)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		found = rec.Active
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}
	p, err := rec.toDomain()
	return p, true, err
}

// --- Mandates --------------------------------------------------------------

type mandateRecord struct {
	MandateID        string    `json:"mandate_id"`
	IssuerID         string    `json:"issuer_id"`
	SubjectID        string    `json:"subject_id"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
	ResourceScope    []string  `json:"resource_scope"`
	ActionScope      []string  `json:"action_scope"`
	Signature        []byte    `json:"signature"`
	CreatedAt        time.Time `json:"created_at"`
	ParentMandateID  string    `json:"parent_mandate_id,omitempty"`
	DelegationDepth  int       `json:"delegation_depth"`
	IntentHash       string    `json:"intent_hash,omitempty"`
	Revoked          bool      `json:"revoked"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevocationReason string    `json:"revocation_reason,omitempty"`
}

func toMandateRecord(m *mandate.Mandate) mandateRecord {
	r := mandateRecord{
		MandateID:        m.MandateID.String(),
		IssuerID:         m.IssuerID.String(),
		SubjectID:        m.SubjectID.String(),
		ValidFrom:        m.ValidFrom,
		ValidUntil:       m.ValidUntil,
		ResourceScope:    m.ResourceScope,
		ActionScope:      m.ActionScope,
		Signature:        m.Signature,
		CreatedAt:        m.CreatedAt,
		DelegationDepth:  m.DelegationDepth,
		IntentHash:       m.IntentHash,
		Revoked:          m.Revoked,
		RevokedAt:        m.RevokedAt,
		RevocationReason: m.RevocationReason,
	}
	if m.ParentMandateID != nil {
		r.ParentMandateID = m.ParentMandateID.String()
	}
	return r
}

func (r mandateRecord) toDomain() (*mandate.Mandate, error) {
	mandateID, err := uuid.Parse(r.MandateID)
	if err != nil {
		return nil, err
	}
	issuerID, err := uuid.Parse(r.IssuerID)
	if err != nil {
		return nil, err
	}
	subjectID, err := uuid.Parse(r.SubjectID)
	if err != nil {
		return nil, err
	}
	m := &mandate.Mandate{
		MandateID:        mandateID,
		IssuerID:         issuerID,
		SubjectID:        subjectID,
		ValidFrom:        r.ValidFrom,
		ValidUntil:       r.ValidUntil,
		ResourceScope:    r.ResourceScope,
		ActionScope:      r.ActionScope,
		Signature:        r.Signature,
		CreatedAt:        r.CreatedAt,
		DelegationDepth:  r.DelegationDepth,
		IntentHash:       r.IntentHash,
		Revoked:          r.Revoked,
		RevokedAt:        r.RevokedAt,
		RevocationReason: r.RevocationReason,
	}
	if r.ParentMandateID != "" {
		parentID, err := uuid.Parse(r.ParentMandateID)
		if err != nil {
			return nil, err
		}
		m.ParentMandateID = &parentID
	}
	return m, nil
}

// PutMandate inserts or replaces a mandate record and indexes it by parent.
func (s *Store) PutMandate(m *mandate.Mandate) error {
	payload, err := json.Marshal(toMandateRecord(m))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketMandates).Put(idBytes(m.MandateID), payload); err != nil {
			return err
		}
		if m.ParentMandateID != nil {
			key := append(idBytes(*m.ParentMandateID), idBytes(m.MandateID)...)
			if err := tx.Bucket(idxMandatesByParent).Put(key, idBytes(m.MandateID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetMandate loads a mandate by id.
func (s *Store) GetMandate(id uuid.UUID) (*mandate.Mandate, bool, error) {
	var rec mandateRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMandates).Get(idBytes(id))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	m, err := rec.toDomain()
	return m, true, err
}

// MutateMandate loads the mandate, applies fn, and persists the result in
// a single bbolt transaction so concurrent readers never observe a
// partially-applied mutation.
func (s *Store) MutateMandate(id uuid.UUID, fn func(*mandate.Mandate) error) (*mandate.Mandate, error) {
	var result *mandate.Mandate
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMandates)
		raw := bucket.Get(idBytes(id))
		if raw == nil {
			return ErrNotFound
		}
		var rec mandateRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		m, err := rec.toDomain()
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		payload, err := json.Marshal(toMandateRecord(m))
		if err != nil {
			return err
		}
		if err := bucket.Put(idBytes(id), payload); err != nil {
			return err
		}
		result = m
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, types.NewError(types.CodeNotFound, types.ReasonNotFound, "mandate not found")
	}
	return result, err
}

// Children returns every direct, unrevoked child of parentID.
func (s *Store) Children(parentID uuid.UUID) ([]*mandate.Mandate, error) {
	var out []*mandate.Mandate
	prefix := idBytes(parentID)
	err := s.db.View(func(tx *bolt.Tx) error {
		idx := tx.Bucket(idxMandatesByParent)
		mandates := tx.Bucket(bucketMandates)
		c := idx.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			raw := mandates.Get(v)
			if raw == nil {
				continue
			}
			var rec mandateRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}
			m, err := rec.toDomain()
			if err != nil {
				return err
			}
			if !m.Revoked {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// --- Ledger events -----------------------------------------------------

type eventRecord struct {
	EventID           int64             `json:"event_id"`
	EventType         string            `json:"event_type"`
	Timestamp         time.Time         `json:"timestamp"`
	PrincipalID       string            `json:"principal_id"`
	MandateID         string            `json:"mandate_id,omitempty"`
	Decision          string            `json:"decision,omitempty"`
	DenialReason      string            `json:"denial_reason,omitempty"`
	RequestedAction   string            `json:"requested_action,omitempty"`
	RequestedResource string            `json:"requested_resource,omitempty"`
	EventMetadata     types.ValueMap    `json:"event_metadata,omitempty"`
	CorrelationID     string            `json:"correlation_id,omitempty"`
	MerkleRootID      string            `json:"merkle_root_id,omitempty"`
}

func toEventRecord(e ledger.Event) eventRecord {
	r := eventRecord{
		EventID:           e.EventID,
		EventType:         string(e.EventType),
		Timestamp:         e.Timestamp,
		PrincipalID:       e.PrincipalID.String(),
		Decision:          string(e.Decision),
		DenialReason:      string(e.DenialReason),
		RequestedAction:   e.RequestedAction,
		RequestedResource: e.RequestedResource,
		EventMetadata:     e.EventMetadata,
		CorrelationID:     e.CorrelationID,
	}
	if e.MandateID != nil {
		r.MandateID = e.MandateID.String()
	}
	if e.MerkleRootID != nil {
		r.MerkleRootID = e.MerkleRootID.String()
	}
	return r
}

func (r eventRecord) toDomain() (ledger.Event, error) {
	principalID, err := uuid.Parse(r.PrincipalID)
	if err != nil && r.PrincipalID != "" {
		return ledger.Event{}, err
	}
	e := ledger.Event{
		EventID:           r.EventID,
		EventType:         ledger.EventType(r.EventType),
		Timestamp:         r.Timestamp,
		PrincipalID:       principalID,
		Decision:          ledger.Decision(r.Decision),
		DenialReason:      types.Reason(r.DenialReason),
		RequestedAction:   r.RequestedAction,
		RequestedResource: r.RequestedResource,
		EventMetadata:     r.EventMetadata,
		CorrelationID:     r.CorrelationID,
	}
	if r.MandateID != "" {
		id, err := uuid.Parse(r.MandateID)
		if err != nil {
			return ledger.Event{}, err
		}
		e.MandateID = &id
	}
	if r.MerkleRootID != "" {
		id, err := uuid.Parse(r.MerkleRootID)
		if err != nil {
			return ledger.Event{}, err
		}
		e.MerkleRootID = &id
	}
	return e, nil
}

// AppendEvent assigns the next sequence value as EventID and persists e.
// bbolt's per-bucket NextSequence is itself serialized by the write
// transaction, which is what gives the ledger its single-writer ordering
// guarantee.
func (s *Store) AppendEvent(e ledger.Event) (ledger.Event, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		e.EventID = int64(seq)
		payload, err := json.Marshal(toEventRecord(e))
		if err != nil {
			return err
		}
		return bucket.Put(eventIDBytes(e.EventID), payload)
	})
	return e, err
}

// EventRange returns events with event_id in [first, last], ascending.
func (s *Store) EventRange(first, last int64) ([]ledger.Event, error) {
	var out []ledger.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(eventIDBytes(first)); k != nil; k, v = c.Next() {
			id := int64(binary.BigEndian.Uint64(k))
			if id > last {
				break
			}
			var rec eventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			e, err := rec.toDomain()
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// GetEvent loads a single event by id.
func (s *Store) GetEvent(eventID int64) (*ledger.Event, bool, error) {
	var rec eventRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketEvents).Get(eventIDBytes(eventID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	e, err := rec.toDomain()
	return &e, true, err
}

// UnbatchedEvents returns up to limit events with no merkle_root_id, in
// ascending event_id order.
func (s *Store) UnbatchedEvents(limit int) ([]ledger.Event, error) {
	var out []ledger.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
			var rec eventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.MerkleRootID != "" {
				continue
			}
			e, err := rec.toDomain()
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// QueryEvents returns events with event_id > cursor matching filter, up to
// limit, in ascending event_id order, plus the cursor for the next page.
func (s *Store) QueryEvents(filter ledger.Filter, limit int, cursor int64) (ledger.Page, error) {
	var page ledger.Page
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		start := eventIDBytes(cursor + 1)
		for k, v := c.Seek(start); k != nil && len(page.Events) < limit; k, v = c.Next() {
			var rec eventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			e, err := rec.toDomain()
			if err != nil {
				return err
			}
			if filter.Matches(e) {
				page.Events = append(page.Events, e)
			}
		}
		return nil
	})
	if err != nil {
		return ledger.Page{}, err
	}
	if len(page.Events) > 0 {
		last := page.Events[len(page.Events)-1].EventID
		page.NextCursor = &last
	}
	return page, nil
}

// bindEventsToRootTx updates every event in [first, last] to reference
// rootID, within an already-open transaction.
func bindEventsToRootTx(tx *bolt.Tx, rootID uuid.UUID, first, last int64) error {
	bucket := tx.Bucket(bucketEvents)
	c := bucket.Cursor()
	rootIDStr := rootID.String()
	for k, v := c.Seek(eventIDBytes(first)); k != nil; k, v = c.Next() {
		id := int64(binary.BigEndian.Uint64(k))
		if id > last {
			break
		}
		var rec eventRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		rec.MerkleRootID = rootIDStr
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := bucket.Put(k, payload); err != nil {
			return err
		}
	}
	return nil
}

// BindEventsToRoot atomically updates every event in [first, last] to
// reference rootID, in a single bbolt transaction.
func (s *Store) BindEventsToRoot(rootID uuid.UUID, first, last int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return bindEventsToRootTx(tx, rootID, first, last)
	})
}

// EventsAfter returns every event with timestamp strictly after t, in
// ascending event_id order — the replay set for snapshot recovery.
func (s *Store) EventsAfter(t time.Time) ([]ledger.Event, error) {
	var out []ledger.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec eventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			e, err := rec.toDomain()
			if err != nil {
				return err
			}
			if e.Timestamp.After(t) {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

// TotalEventCount returns the number of events ever appended.
func (s *Store) TotalEventCount() (int64, error) {
	var count int64
	err := s.db.View(func(tx *bolt.Tx) error {
		count = int64(tx.Bucket(bucketEvents).Stats().KeyN)
		return nil
	})
	return count, err
}

// --- Merkle roots --------------------------------------------------------

type rootRecord struct {
	RootID       string    `json:"root_id"`
	BatchID      string    `json:"batch_id"`
	MerkleRoot   string    `json:"merkle_root"`
	Signature    []byte    `json:"signature"`
	EventCount   int       `json:"event_count"`
	FirstEventID int64     `json:"first_event_id"`
	LastEventID  int64     `json:"last_event_id"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRootRecord(r merkle.Root) rootRecord {
	return rootRecord{
		RootID:       r.RootID.String(),
		BatchID:      r.BatchID.String(),
		MerkleRoot:   r.MerkleRootHex(),
		Signature:    r.Signature,
		EventCount:   r.EventCount,
		FirstEventID: r.FirstEventID,
		LastEventID:  r.LastEventID,
		Source:       string(r.Source),
		CreatedAt:    r.CreatedAt,
	}
}

func (r rootRecord) toDomain() (merkle.Root, error) {
	rootID, err := uuid.Parse(r.RootID)
	if err != nil {
		return merkle.Root{}, err
	}
	batchID, err := uuid.Parse(r.BatchID)
	if err != nil {
		return merkle.Root{}, err
	}
	raw, err := hex.DecodeString(r.MerkleRoot)
	if err != nil {
		return merkle.Root{}, err
	}
	var hash [32]byte
	copy(hash[:], raw)
	return merkle.Root{
		RootID:       rootID,
		BatchID:      batchID,
		MerkleRoot:   hash,
		Signature:    r.Signature,
		EventCount:   r.EventCount,
		FirstEventID: r.FirstEventID,
		LastEventID:  r.LastEventID,
		Source:       merkle.Source(r.Source),
		CreatedAt:    r.CreatedAt,
	}, nil
}

// putMerkleRootTx inserts a committed batch root and indexes it by batch id,
// within an already-open transaction.
func putMerkleRootTx(tx *bolt.Tx, root merkle.Root) error {
	payload, err := json.Marshal(toRootRecord(root))
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketMerkleRoots).Put(idBytes(root.RootID), payload); err != nil {
		return err
	}
	return tx.Bucket(idxRootsByBatch).Put(idBytes(root.BatchID), idBytes(root.RootID))
}

// CommitBatch inserts a committed batch root and binds every event in
// [firstEventID, lastEventID] to it in a single bbolt transaction. This is
// the only correct way to close a batch: a crash between the root insert
// and the event rewrite would otherwise leave a committed root whose
// events still read as unbatched, and the next RunOnce would build a
// second root over the same event-id range.
func (s *Store) CommitBatch(root merkle.Root, firstEventID, lastEventID int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := putMerkleRootTx(tx, root); err != nil {
			return err
		}
		return bindEventsToRootTx(tx, root.RootID, firstEventID, lastEventID)
	})
}

// GetMerkleRoot loads a committed root by its id.
func (s *Store) GetMerkleRoot(rootID uuid.UUID) (*merkle.Root, bool, error) {
	var rec rootRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMerkleRoots).Get(idBytes(rootID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	r, err := rec.toDomain()
	return &r, true, err
}

// GetMerkleRootByBatch loads a committed root by its batch id.
func (s *Store) GetMerkleRootByBatch(batchID uuid.UUID) (*merkle.Root, bool, error) {
	var rootID uuid.UUID
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(idxRootsByBatch).Get(idBytes(batchID))
		if raw == nil {
			return nil
		}
		id, err := uuid.Parse(string(raw))
		if err != nil {
			return err
		}
		rootID = id
		found = true
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}
	return s.GetMerkleRoot(rootID)
}

// MerkleRootsInRange returns every committed root with created_at in
// [start, end].
func (s *Store) MerkleRootsInRange(start, end time.Time) ([]merkle.Root, error) {
	var out []merkle.Root
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMerkleRoots).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec rootRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !rec.CreatedAt.Before(start) && !rec.CreatedAt.After(end) {
				r, err := rec.toDomain()
				if err != nil {
					return err
				}
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

// LatestMerkleRoot returns the hash of the most recently committed root.
func (s *Store) LatestMerkleRoot() ([32]byte, bool, error) {
	var latest rootRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketMerkleRoots).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec rootRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !found || rec.CreatedAt.After(latest.CreatedAt) {
				latest = rec
				found = true
			}
		}
		return nil
	})
	if err != nil || !found {
		return [32]byte{}, false, err
	}
	r, err := latest.toDomain()
	return r.MerkleRoot, true, err
}

// --- Snapshots -----------------------------------------------------------

type snapshotRecord struct {
	SnapshotID        string         `json:"snapshot_id"`
	SnapshotTimestamp time.Time      `json:"snapshot_timestamp"`
	TotalEvents       int64          `json:"total_events"`
	MerkleRoot        string         `json:"merkle_root"`
	SnapshotData      types.ValueMap `json:"snapshot_data,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

func toSnapshotRecord(s snapshot.Snapshot) snapshotRecord {
	return snapshotRecord{
		SnapshotID:        s.SnapshotID.String(),
		SnapshotTimestamp: s.SnapshotTimestamp,
		TotalEvents:       s.TotalEvents,
		MerkleRoot:        hex.EncodeToString(s.MerkleRoot[:]),
		SnapshotData:      s.SnapshotData,
		CreatedAt:         s.CreatedAt,
	}
}

func (r snapshotRecord) toDomain() (snapshot.Snapshot, error) {
	id, err := uuid.Parse(r.SnapshotID)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	raw, err := hex.DecodeString(r.MerkleRoot)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	var hash [32]byte
	copy(hash[:], raw)
	return snapshot.Snapshot{
		SnapshotID:        id,
		SnapshotTimestamp: r.SnapshotTimestamp,
		TotalEvents:       r.TotalEvents,
		MerkleRoot:        hash,
		SnapshotData:      r.SnapshotData,
		CreatedAt:         r.CreatedAt,
	}, nil
}

// PutSnapshot inserts or replaces a snapshot record.
func (s *Store) PutSnapshot(snap snapshot.Snapshot) error {
	payload, err := json.Marshal(toSnapshotRecord(snap))
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Put(idBytes(snap.SnapshotID), payload)
	})
}

// GetSnapshot loads a snapshot by id.
func (s *Store) GetSnapshot(id uuid.UUID) (*snapshot.Snapshot, bool, error) {
	var rec snapshotRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get(idBytes(id))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &rec)
	})
	if err != nil || !found {
		return nil, false, err
	}
	snap, err := rec.toDomain()
	return &snap, true, err
}

// LatestSnapshot returns the most recently created snapshot, if any.
func (s *Store) LatestSnapshot() (*snapshot.Snapshot, bool, error) {
	var latest snapshotRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec snapshotRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if !found || rec.CreatedAt.After(latest.CreatedAt) {
				latest = rec
				found = true
			}
		}
		return nil
	})
	if err != nil || !found {
		return nil, false, err
	}
	snap, err := latest.toDomain()
	return &snap, true, err
}

// ListSnapshots returns every snapshot on file.
func (s *Store) ListSnapshots() ([]snapshot.Snapshot, error) {
	var out []snapshot.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSnapshots).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec snapshotRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			snap, err := rec.toDomain()
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// DeleteSnapshot removes a snapshot by id.
func (s *Store) DeleteSnapshot(id uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSnapshots).Delete(idBytes(id))
	})
}
