package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

func convertNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &store.StoreError{Code: store.ErrNotFound, Message: "no record at seqNum"}
	}
	return &store.StoreError{Code: store.ErrIOError, Message: "database operation failed", Cause: err}
}

// Store persists rawBytes, flipping any existing live row for the same key
// to archived (Live=false) inside a single transaction before inserting the
// new live row.
func (s *Store) Store(ctx context.Context, sessionID message.SessionID, seqNum int, rawBytes []byte, direction message.Direction, timestamp time.Time) error {
	if seqNum <= 0 {
		return &store.StoreError{Code: store.ErrInvalidArgument, Message: "seqNum must be positive"}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sessionRecord{}).
			Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND seq_num = ? AND direction = ? AND live = ?",
				sessionID.BeginString, sessionID.SenderCompID, sessionID.TargetCompID, seqNum, int(direction), true).
			Update("live", false).Error; err != nil {
			return fmt.Errorf("archive prior record: %w", err)
		}

		rec := sessionRecord{
			BeginString:  sessionID.BeginString,
			SenderCompID: sessionID.SenderCompID,
			TargetCompID: sessionID.TargetCompID,
			SeqNum:       seqNum,
			Direction:    int(direction),
			RawBytes:     append([]byte(nil), rawBytes...),
			Timestamp:    timestamp,
			Live:         true,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert record: %w", err)
		}

		return upsertSeq(tx, sessionID, direction, seqNum+1, true)
	})
}

// Get returns the live record at the given key.
func (s *Store) Get(ctx context.Context, sessionID message.SessionID, seqNum int, direction message.Direction) (*store.StoredRecord, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).
		Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND seq_num = ? AND direction = ? AND live = ?",
			sessionID.BeginString, sessionID.SenderCompID, sessionID.TargetCompID, seqNum, int(direction), true).
		First(&rec).Error
	if err != nil {
		return nil, convertNotFound(err)
	}
	return toStoredRecord(rec), nil
}

// Range returns the ordered (by SeqNum ascending) live records in
// [fromSeq, toSeq]. toSeq == 0 means through the latest sequence number.
func (s *Store) Range(ctx context.Context, sessionID message.SessionID, direction message.Direction, fromSeq, toSeq int) ([]*store.StoredRecord, error) {
	if fromSeq <= 0 {
		return nil, &store.StoreError{Code: store.ErrInvalidArgument, Message: "fromSeq must be positive"}
	}

	if toSeq == 0 {
		next, err := s.NextOutgoingOrIncoming(ctx, sessionID, direction)
		if err != nil {
			return nil, err
		}
		toSeq = next - 1
	}

	var recs []sessionRecord
	err := s.db.WithContext(ctx).
		Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND direction = ? AND live = ? AND seq_num BETWEEN ? AND ?",
			sessionID.BeginString, sessionID.SenderCompID, sessionID.TargetCompID, int(direction), true, fromSeq, toSeq).
		Order("seq_num ASC").
		Find(&recs).Error
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrIOError, Message: "range query failed", Cause: err}
	}

	out := make([]*store.StoredRecord, len(recs))
	for i, r := range recs {
		out[i] = toStoredRecord(r)
	}
	return out, nil
}

// NextOutgoingOrIncoming is a small helper shared by Range's toSeq==0 path.
func (s *Store) NextOutgoingOrIncoming(ctx context.Context, sessionID message.SessionID, direction message.Direction) (int, error) {
	return s.nextSeq(ctx, sessionID, direction)
}

// FindByField scans live records for sessionID whose decoded value for tag
// equals value. Not on the hot path.
func (s *Store) FindByField(ctx context.Context, sessionID message.SessionID, tag int, value string, decode func([]byte) (*message.Message, error)) ([]*store.StoredRecord, error) {
	var recs []sessionRecord
	err := s.db.WithContext(ctx).
		Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND live = ?",
			sessionID.BeginString, sessionID.SenderCompID, sessionID.TargetCompID, true).
		Order("seq_num ASC").
		Find(&recs).Error
	if err != nil {
		return nil, &store.StoreError{Code: store.ErrIOError, Message: "scan query failed", Cause: err}
	}

	var matches []*store.StoredRecord
	for _, r := range recs {
		parsed, err := decode(r.RawBytes)
		if err != nil {
			continue
		}
		if parsed.GetString(tag) == value {
			matches = append(matches, toStoredRecord(r))
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
	var counter sequenceCounter
	err := s.db.WithContext(ctx).
		Where("begin_string = ? AND sender_comp_id = ? AND target_comp_id = ? AND direction = ?",
			sessionID.BeginString, sessionID.SenderCompID, sessionID.TargetCompID, int(direction)).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, &store.StoreError{Code: store.ErrIOError, Message: "read sequence counter failed", Cause: err}
	}
	return counter.Next, nil
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
	if next <= 0 {
		return &store.StoreError{Code: store.ErrInvalidArgument, Message: "next must be positive"}
	}
	return upsertSeq(s.db.WithContext(ctx), sessionID, direction, next, false)
}

// upsertSeq inserts or updates a sequence counter row. When onlyIfHigher is
// true, Store's post-write bump never regresses a counter a concurrent
// SetIncoming/SetOutgoing already advanced past.
func upsertSeq(tx *gorm.DB, sessionID message.SessionID, direction message.Direction, next int, onlyIfHigher bool) error {
	counter := sequenceCounter{
		BeginString:  sessionID.BeginString,
		SenderCompID: sessionID.SenderCompID,
		TargetCompID: sessionID.TargetCompID,
		Direction:    int(direction),
		Next:         next,
	}

	assignment := clause.Assignments(map[string]any{"next": next})
	if onlyIfHigher {
		assignment = clause.Assignments(map[string]any{
			"next": gorm.Expr("CASE WHEN fix_sequence_counters.next < ? THEN ? ELSE fix_sequence_counters.next END", next, next),
		})
	}

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "begin_string"}, {Name: "sender_comp_id"}, {Name: "target_comp_id"}, {Name: "direction"}},
		DoUpdates: assignment,
	}).Create(&counter).Error
	if err != nil {
		return fmt.Errorf("upsert sequence counter: %w", err)
	}
	return nil
}

// ResetBoth sets both sequence counters to 1.
func (s *Store) ResetBoth(ctx context.Context, sessionID message.SessionID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertSeq(tx, sessionID, message.Inbound, 1, false); err != nil {
			return err
		}
		return upsertSeq(tx, sessionID, message.Outbound, 1, false)
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toStoredRecord(r sessionRecord) *store.StoredRecord {
	return &store.StoredRecord{
		SessionID: message.SessionID{
			BeginString:  r.BeginString,
			SenderCompID: r.SenderCompID,
			TargetCompID: r.TargetCompID,
		},
		SeqNum:    r.SeqNum,
		Direction: message.Direction(r.Direction),
		RawBytes:  append([]byte(nil), r.RawBytes...),
		Timestamp: r.Timestamp,
	}
}

var _ store.Store = (*Store)(nil)
