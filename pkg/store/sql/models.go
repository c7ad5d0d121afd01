package sql

import "time"

// sessionRecord is the GORM model backing every stored wire message. Archive-
// on-overwrite is modeled as a boolean flag rather than a separate table: an
// overwrite flips the previous row's Live to false and inserts a new row,
// so a single indexed table serves both Get (WHERE live) and an audit scan
// (all rows for a key, ordered by CreatedAt).
type sessionRecord struct {
	ID           uint `gorm:"primaryKey"`
	BeginString  string `gorm:"index:idx_session_record_key,priority:1"`
	SenderCompID string `gorm:"index:idx_session_record_key,priority:2"`
	TargetCompID string `gorm:"index:idx_session_record_key,priority:3"`
	SeqNum       int    `gorm:"index:idx_session_record_key,priority:4"`
	Direction    int    `gorm:"index:idx_session_record_key,priority:5"`
	RawBytes     []byte
	Timestamp    time.Time
	Live         bool `gorm:"index"`
	CreatedAt    time.Time
}

func (sessionRecord) TableName() string { return "fix_session_records" }

// sequenceCounter is the GORM model for the durable NextIncoming/NextOutgoing
// counters, independent of any stored message.
type sequenceCounter struct {
	BeginString  string `gorm:"primaryKey"`
	SenderCompID string `gorm:"primaryKey"`
	TargetCompID string `gorm:"primaryKey"`
	Direction    int    `gorm:"primaryKey"`
	Next         int
}

func (sequenceCounter) TableName() string { return "fix_sequence_counters" }

// allModels lists every model AutoMigrate must create.
func allModels() []any {
	return []any{&sessionRecord{}, &sequenceCounter{}}
}
