// Package memory provides an in-memory Store backend: a single RWMutex
// guarding plain Go maps, with no business logic beyond the contract
// itself. Used by the engine's test suite.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

type recordKey struct {
	sessionID message.SessionID
	seqNum    int
	direction message.Direction
}

type sequenceKey struct {
	sessionID message.SessionID
	direction message.Direction
}

// Store is the in-memory Store implementation.
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]*store.StoredRecord
	archive map[recordKey][]*store.ArchivedRecord
	seqs    map[sequenceKey]int // next sequence number to use
	closed  bool
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[recordKey]*store.StoredRecord),
		archive: make(map[recordKey][]*store.ArchivedRecord),
		seqs:    make(map[sequenceKey]int),
	}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return &store.StoreError{Code: store.ErrClosed, Message: "store is closed"}
	}
	return nil
}

// Store persists rawBytes, archiving any existing record at the same key
// first. See store.Store.Store for the contract.
func (s *Store) Store(ctx context.Context, sessionID message.SessionID, seqNum int, rawBytes []byte, direction message.Direction, timestamp time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if seqNum <= 0 {
		return &store.StoreError{Code: store.ErrInvalidArgument, Message: "seqNum must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	key := recordKey{sessionID: sessionID, seqNum: seqNum, direction: direction}

	if existing, ok := s.records[key]; ok {
		s.archive[key] = append(s.archive[key], &store.ArchivedRecord{
			StoredRecord: *existing,
			ArchivedAt:   time.Now(),
		})
	}

	bodyCopy := append([]byte(nil), rawBytes...)
	s.records[key] = &store.StoredRecord{
		SessionID: sessionID,
		SeqNum:    seqNum,
		Direction: direction,
		RawBytes:  bodyCopy,
		Timestamp: timestamp,
	}

	sKey := sequenceKey{sessionID: sessionID, direction: direction}
	if next := seqNum + 1; next > s.seqs[sKey] {
		s.seqs[sKey] = next
	}

	return nil
}

// Get returns the live record at the given key.
func (s *Store) Get(ctx context.Context, sessionID message.SessionID, seqNum int, direction message.Direction) (*store.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	key := recordKey{sessionID: sessionID, seqNum: seqNum, direction: direction}
	rec, ok := s.records[key]
	if !ok {
		return nil, &store.StoreError{Code: store.ErrNotFound, Message: "no record at seqNum"}
	}
	clone := *rec
	clone.RawBytes = append([]byte(nil), rec.RawBytes...)
	return &clone, nil
}

// Range returns records in [fromSeq, toSeq] ascending by sequence number.
// toSeq == 0 means through the latest sequence number stored.
func (s *Store) Range(ctx context.Context, sessionID message.SessionID, direction message.Direction, fromSeq, toSeq int) ([]*store.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fromSeq <= 0 {
		return nil, &store.StoreError{Code: store.ErrInvalidArgument, Message: "fromSeq must be positive"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if toSeq == 0 {
		toSeq = s.seqs[sequenceKey{sessionID: sessionID, direction: direction}] - 1
	}

	var out []*store.StoredRecord
	for seq := fromSeq; seq <= toSeq; seq++ {
		key := recordKey{sessionID: sessionID, seqNum: seq, direction: direction}
		if rec, ok := s.records[key]; ok {
			clone := *rec
			clone.RawBytes = append([]byte(nil), rec.RawBytes...)
			out = append(out, &clone)
		}
	}
	return out, nil
}

// FindByField scans live records for sessionID (either direction) whose
// decoded value for tag equals value.
func (s *Store) FindByField(ctx context.Context, sessionID message.SessionID, tag int, value string, decode func([]byte) (*message.Message, error)) ([]*store.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var matches []*store.StoredRecord
	var keys []recordKey
	for k, rec := range s.records {
		if k.sessionID != sessionID {
			continue
		}
		keys = append(keys, k)
		_ = rec
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].seqNum < keys[j].seqNum })

	for _, k := range keys {
		rec := s.records[k]
		parsed, err := decode(rec.RawBytes)
		if err != nil {
			continue
		}
		if parsed.GetString(tag) == value {
			clone := *rec
			clone.RawBytes = append([]byte(nil), rec.RawBytes...)
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

// NextIncoming returns the next expected inbound sequence number.
func (s *Store) NextIncoming(ctx context.Context, sessionID message.SessionID) (int, error) {
	return s.nextSeq(ctx, sessionID, message.Inbound)
}

// NextOutgoing returns the next outbound sequence number to assign.
func (s *Store) NextOutgoing(ctx context.Context, sessionID message.SessionID) (int, error) {
	return s.nextSeq(ctx, sessionID, message.Outbound)
}

func (s *Store) nextSeq(ctx context.Context, sessionID message.SessionID, direction message.Direction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	key := sequenceKey{sessionID: sessionID, direction: direction}
	if n, ok := s.seqs[key]; ok {
		return n, nil
	}
	return 1, nil
}

// SetIncoming durably sets the next expected inbound sequence number.
func (s *Store) SetIncoming(ctx context.Context, sessionID message.SessionID, next int) error {
	return s.setSeq(ctx, sessionID, message.Inbound, next)
}

// SetOutgoing durably sets the next outbound sequence number to assign.
func (s *Store) SetOutgoing(ctx context.Context, sessionID message.SessionID, next int) error {
	return s.setSeq(ctx, sessionID, message.Outbound, next)
}

func (s *Store) setSeq(ctx context.Context, sessionID message.SessionID, direction message.Direction, next int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if next <= 0 {
		return &store.StoreError{Code: store.ErrInvalidArgument, Message: "next must be positive"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.seqs[sequenceKey{sessionID: sessionID, direction: direction}] = next
	return nil
}

// ResetBoth sets both sequence counters to 1, used when a Logon negotiates
// ResetSeqNumFlag=Y.
func (s *Store) ResetBoth(ctx context.Context, sessionID message.SessionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	s.seqs[sequenceKey{sessionID: sessionID, direction: message.Inbound}] = 1
	s.seqs[sequenceKey{sessionID: sessionID, direction: message.Outbound}] = 1
	return nil
}

// Close marks the store closed. Subsequent operations return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ArchiveCount returns the number of archived (overwritten) records for a
// key, exposed for tests asserting archive completeness.
func (s *Store) ArchiveCount(sessionID message.SessionID, seqNum int, direction message.Direction) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.archive[recordKey{sessionID: sessionID, seqNum: seqNum, direction: direction}])
}

var _ store.Store = (*Store)(nil)
