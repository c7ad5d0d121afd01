package file

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

// Store is a durable Store backend. Every Store call appends to the
// mmap-backed log (log.go); prior versions of an overwritten key are never
// erased, so the append-only log itself doubles as the archive — Get/Range
// only ever resolve through the in-memory index to the latest offset, but a
// full replay recovers every version ever written, so overwritten records
// stay available for audit without a separate archive region.
type Store struct {
	mu  sync.RWMutex
	log *appendLog

	latest     map[recordKey]uint64 // key -> offset of the live record entry
	archiveLen map[recordKey]int    // key -> count of superseded versions
	seqs       map[sequenceKey]int
	closed     bool
}

// Open opens (or creates) a durable file-backed store rooted at dir,
// replaying its log to rebuild the in-memory index. New log files are
// created at the default initial segment size.
func Open(dir string) (*Store, error) {
	return OpenWithSegmentSize(dir, logInitialSize)
}

// OpenWithSegmentSize is like Open but lets the caller pick the initial mmap
// segment size for newly created log files, in bytes. Existing files keep
// their on-disk size regardless of this value.
func OpenWithSegmentSize(dir string, initialSize uint64) (*Store, error) {
	l, err := openLog(dir, initialSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		log:        l,
		latest:     make(map[recordKey]uint64),
		archiveLen: make(map[recordKey]int),
		seqs:       make(map[sequenceKey]int),
	}

	err = l.replay(func(e replayEntry) error {
		switch e.kind {
		case entryTypeRecord:
			key := recordKey{sessionID: e.record.SessionID, seqNum: e.record.SeqNum, direction: e.record.Direction}
			if _, existed := s.latest[key]; existed {
				s.archiveLen[key]++
			}
			s.latest[key] = e.offset

			sk := sequenceKey{sessionID: e.record.SessionID, direction: e.record.Direction}
			if next := e.record.SeqNum + 1; next > s.seqs[sk] {
				s.seqs[sk] = next
			}
		case entryTypeSeq:
			sk := sequenceKey{sessionID: e.seq.SessionID, direction: e.seq.Direction}
			s.seqs[sk] = e.seq.Next
		}
		return nil
	})
	if err != nil {
		l.close()
		return nil, err
	}

	return s, nil
}

func (s *Store) checkOpen() error {
	if s.closed {
		return &store.StoreError{Code: store.ErrClosed, Message: "store is closed"}
	}
	return nil
}

// Store appends rawBytes to the durable log and updates the in-memory index,
// archiving the prior live version for the same key so it remains available
// for audit.
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

	offset, err := s.log.appendRecord(recordEntry{
		SessionID: sessionID,
		SeqNum:    seqNum,
		Direction: direction,
		RawBytes:  rawBytes,
		Timestamp: timestamp.UnixNano(),
	})
	if err != nil {
		return wrapIOError(err)
	}

	key := recordKey{sessionID: sessionID, seqNum: seqNum, direction: direction}
	if _, existed := s.latest[key]; existed {
		s.archiveLen[key]++
	}
	s.latest[key] = offset

	sk := sequenceKey{sessionID: sessionID, direction: direction}
	if next := seqNum + 1; next > s.seqs[sk] {
		s.seqs[sk] = next
	}

	return nil
}

// Get returns the live record for the given key.
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
	offset, ok := s.latest[key]
	if !ok {
		return nil, &store.StoreError{Code: store.ErrNotFound, Message: "no record at seqNum"}
	}
	return s.readAt(offset)
}

func (s *Store) readAt(offset uint64) (*store.StoredRecord, error) {
	e, err := s.log.readRecordAt(offset)
	if err != nil {
		return nil, wrapIOError(err)
	}
	return &store.StoredRecord{
		SessionID: e.SessionID,
		SeqNum:    e.SeqNum,
		Direction: e.Direction,
		RawBytes:  e.RawBytes,
		Timestamp: time.Unix(0, e.Timestamp),
	}, nil
}

// Range returns the ordered records in [fromSeq, toSeq]; toSeq == 0 means
// through the latest sequence number stored for that direction.
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
		offset, ok := s.latest[key]
		if !ok {
			continue
		}
		rec, err := s.readAt(offset)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindByField scans live records for sessionID (either direction) whose
// decoded value for tag equals value. Not on the hot path.
func (s *Store) FindByField(ctx context.Context, sessionID message.SessionID, tag int, value string, decode func([]byte) (*message.Message, error)) ([]*store.StoredRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var keys []recordKey
	for k := range s.latest {
		if k.sessionID == sessionID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].seqNum < keys[j].seqNum })

	var matches []*store.StoredRecord
	for _, k := range keys {
		rec, err := s.readAt(s.latest[k])
		if err != nil {
			return nil, err
		}
		parsed, err := decode(rec.RawBytes)
		if err != nil {
			continue
		}
		if parsed.GetString(tag) == value {
			matches = append(matches, rec)
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

	if n, ok := s.seqs[sequenceKey{sessionID: sessionID, direction: direction}]; ok {
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

	if err := s.log.appendSeq(seqEntry{SessionID: sessionID, Direction: direction, Next: next}); err != nil {
		return wrapIOError(err)
	}
	s.seqs[sequenceKey{sessionID: sessionID, direction: direction}] = next
	return nil
}

// ResetBoth sets both sequence counters to 1.
func (s *Store) ResetBoth(ctx context.Context, sessionID message.SessionID) error {
	if err := s.setSeq(ctx, sessionID, message.Inbound, 1); err != nil {
		return err
	}
	return s.setSeq(ctx, sessionID, message.Outbound, 1)
}

// ArchiveCount returns the number of archived (superseded) versions for a
// key, exposed for the conformance suite's invariant-5 assertions.
func (s *Store) ArchiveCount(sessionID message.SessionID, seqNum int, direction message.Direction) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archiveLen[recordKey{sessionID: sessionID, seqNum: seqNum, direction: direction}]
}

// Close syncs and releases the backing file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.log.sync()
	return s.log.close()
}

func wrapIOError(err error) error {
	if _, ok := err.(*store.StoreError); ok {
		return err
	}
	return &store.StoreError{Code: store.ErrIOError, Message: "log I/O failure", Cause: err}
}

var _ store.Store = (*Store)(nil)
