// Package file provides a durable, mmap-backed Store backend: an append-only
// log of session records plus periodic sequence-counter markers, replayed on
// open to rebuild the in-memory index.
package file

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/store"
)

const (
	logMagic        = "FXLG" // FIX Log
	logVersion      = uint16(1)
	logHeaderSize   = 64
	logInitialSize  = 4 * 1024 * 1024 // 4MB initial file size
	logGrowthFactor = 2
)

// Entry types for the append-only log.
const (
	entryTypeRecord uint8 = 0 // a stored wire message
	entryTypeSeq    uint8 = 1 // a durable sequence-counter marker
)

type logHeader struct {
	Magic      [4]byte
	Version    uint16
	EntryCount uint32
	NextOffset uint64
}

// recordEntry is one append-only log entry for a stored wire message.
type recordEntry struct {
	SessionID message.SessionID
	SeqNum    int
	Direction message.Direction
	RawBytes  []byte
	Timestamp int64 // UnixNano
}

// seqEntry is a durable marker recording a sequence counter assignment
// (SetIncoming/SetOutgoing/ResetBoth), so recovery can reconstruct the
// counters without replaying every stored message.
type seqEntry struct {
	SessionID message.SessionID
	Direction message.Direction
	Next      int
}

// appendLog is the low-level mmap-backed append-only log. It knows nothing
// about archive-on-overwrite semantics; that logic lives in Store, which
// replays the log to build an in-memory index of "latest offset per key".
type appendLog struct {
	mu     sync.Mutex
	file   *os.File
	data   []byte
	size   uint64
	header *logHeader
	closed bool
}

func openLog(dir string, initialSize uint64) (*appendLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if initialSize < logHeaderSize {
		initialSize = logInitialSize
	}

	l := &appendLog{}
	path := filepath.Join(dir, "session.log")

	if _, err := os.Stat(path); err == nil {
		if err := l.openExisting(path); err != nil {
			return nil, err
		}
		return l, nil
	}

	if err := l.createNew(path, initialSize); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *appendLog) createNew(path string, initialSize uint64) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if err := f.Truncate(int64(initialSize)); err != nil {
		f.Close()
		return fmt.Errorf("truncate file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(initialSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap: %w", err)
	}

	l.file = f
	l.data = data
	l.size = initialSize
	l.header = &logHeader{Version: logVersion, NextOffset: logHeaderSize}
	copy(l.header.Magic[:], logMagic)
	l.writeHeader()
	return nil
}

func (l *appendLog) openExisting(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat file: %w", err)
	}
	size := uint64(info.Size())
	if size < logHeaderSize {
		f.Close()
		return &store.StoreError{Code: store.ErrCorrupted, Message: "log file smaller than header"}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return fmt.Errorf("mmap: %w", err)
	}

	header := &logHeader{}
	copy(header.Magic[:], data[0:4])
	header.Version = binary.LittleEndian.Uint16(data[4:6])
	header.EntryCount = binary.LittleEndian.Uint32(data[6:10])
	header.NextOffset = binary.LittleEndian.Uint64(data[10:18])

	if string(header.Magic[:]) != logMagic {
		unix.Munmap(data)
		f.Close()
		return &store.StoreError{Code: store.ErrCorrupted, Message: "bad log magic"}
	}
	if header.Version != logVersion {
		unix.Munmap(data)
		f.Close()
		return &store.StoreError{Code: store.ErrCorrupted, Message: "log version mismatch"}
	}

	l.file = f
	l.data = data
	l.size = size
	l.header = header
	return nil
}

func (l *appendLog) writeHeader() {
	copy(l.data[0:4], l.header.Magic[:])
	binary.LittleEndian.PutUint16(l.data[4:6], l.header.Version)
	binary.LittleEndian.PutUint32(l.data[6:10], l.header.EntryCount)
	binary.LittleEndian.PutUint64(l.data[10:18], l.header.NextOffset)
}

func (l *appendLog) ensureSpace(needed uint64) error {
	if l.header.NextOffset+needed <= l.size {
		return nil
	}
	newSize := l.size * logGrowthFactor
	for l.header.NextOffset+needed > newSize {
		newSize *= logGrowthFactor
	}

	if err := unix.Munmap(l.data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	if err := l.file.Truncate(int64(newSize)); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	data, err := unix.Mmap(int(l.file.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	l.data = data
	l.size = newSize
	return nil
}

func writeSessionID(buf []byte, offset uint64, sid message.SessionID) uint64 {
	offset = writeString(buf, offset, sid.BeginString)
	offset = writeString(buf, offset, sid.SenderCompID)
	offset = writeString(buf, offset, sid.TargetCompID)
	return offset
}

func readSessionID(buf []byte, offset uint64) (message.SessionID, uint64, error) {
	begin, offset, err := readString(buf, offset)
	if err != nil {
		return message.SessionID{}, 0, err
	}
	sender, offset, err := readString(buf, offset)
	if err != nil {
		return message.SessionID{}, 0, err
	}
	target, offset, err := readString(buf, offset)
	if err != nil {
		return message.SessionID{}, 0, err
	}
	return message.SessionID{BeginString: begin, SenderCompID: sender, TargetCompID: target}, offset, nil
}

func writeString(buf []byte, offset uint64, s string) uint64 {
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	copy(buf[offset:], s)
	offset += uint64(len(s))
	return offset
}

func readString(buf []byte, offset uint64) (string, uint64, error) {
	if offset+2 > uint64(len(buf)) {
		return "", 0, &store.StoreError{Code: store.ErrCorrupted, Message: "truncated string length"}
	}
	n := binary.LittleEndian.Uint16(buf[offset:])
	offset += 2
	if offset+uint64(n) > uint64(len(buf)) {
		return "", 0, &store.StoreError{Code: store.ErrCorrupted, Message: "truncated string data"}
	}
	s := string(buf[offset : offset+uint64(n)])
	offset += uint64(n)
	return s, offset, nil
}

// sessionIDEncodedLen returns the on-disk size of sid's three length-prefixed
// strings, used to size-check entries before writing.
func sessionIDEncodedLen(sid message.SessionID) uint64 {
	return 6 + uint64(len(sid.BeginString)+len(sid.SenderCompID)+len(sid.TargetCompID))
}

// appendRecord appends a record entry and returns its starting offset (the
// key the in-memory index stores as "where the latest version of this key
// lives").
func (l *appendLog) appendRecord(e recordEntry) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return 0, &store.StoreError{Code: store.ErrClosed, Message: "log is closed"}
	}

	entrySize := 1 + sessionIDEncodedLen(e.SessionID) + 4 + 1 + 8 + 4 + uint64(len(e.RawBytes))
	if err := l.ensureSpace(entrySize); err != nil {
		return 0, err
	}

	start := l.header.NextOffset
	offset := start

	l.data[offset] = entryTypeRecord
	offset++
	offset = writeSessionID(l.data, offset, e.SessionID)
	binary.LittleEndian.PutUint32(l.data[offset:], uint32(e.SeqNum))
	offset += 4
	l.data[offset] = uint8(e.Direction)
	offset++
	binary.LittleEndian.PutUint64(l.data[offset:], uint64(e.Timestamp))
	offset += 8
	binary.LittleEndian.PutUint32(l.data[offset:], uint32(len(e.RawBytes)))
	offset += 4
	copy(l.data[offset:], e.RawBytes)
	offset += uint64(len(e.RawBytes))

	l.header.NextOffset = offset
	l.header.EntryCount++
	l.writeHeader()

	return start, nil
}

func (l *appendLog) appendSeq(e seqEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &store.StoreError{Code: store.ErrClosed, Message: "log is closed"}
	}

	entrySize := 1 + sessionIDEncodedLen(e.SessionID) + 1 + 4
	if err := l.ensureSpace(entrySize); err != nil {
		return err
	}

	offset := l.header.NextOffset
	l.data[offset] = entryTypeSeq
	offset++
	offset = writeSessionID(l.data, offset, e.SessionID)
	l.data[offset] = uint8(e.Direction)
	offset++
	binary.LittleEndian.PutUint32(l.data[offset:], uint32(e.Next))
	offset += 4

	l.header.NextOffset = offset
	l.header.EntryCount++
	l.writeHeader()
	return nil
}

// replayEntry is the parsed result of one on-disk entry, tagged with the
// offset of the record data the in-memory index should remember (0 for seq
// markers, which carry no addressable payload).
type replayEntry struct {
	kind   uint8
	offset uint64 // start offset of record entries, for index rebuilding
	record recordEntry
	seq    seqEntry
}

// replay walks the whole log from the header forward, invoking visit for
// every entry in write order.
func (l *appendLog) replay(visit func(replayEntry) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	offset := uint64(logHeaderSize)
	end := l.header.NextOffset

	for offset < end {
		start := offset
		if offset+1 > l.size {
			return &store.StoreError{Code: store.ErrCorrupted, Message: "truncated entry type"}
		}
		kind := l.data[offset]
		offset++

		switch kind {
		case entryTypeRecord:
			sid, next, err := readSessionID(l.data, offset)
			if err != nil {
				return err
			}
			offset = next
			if offset+4+1+8+4 > l.size {
				return &store.StoreError{Code: store.ErrCorrupted, Message: "truncated record header"}
			}
			seqNum := int(binary.LittleEndian.Uint32(l.data[offset:]))
			offset += 4
			dir := message.Direction(l.data[offset])
			offset++
			ts := int64(binary.LittleEndian.Uint64(l.data[offset:]))
			offset += 8
			dataLen := binary.LittleEndian.Uint32(l.data[offset:])
			offset += 4
			if offset+uint64(dataLen) > l.size {
				return &store.StoreError{Code: store.ErrCorrupted, Message: "truncated record body"}
			}
			raw := make([]byte, dataLen)
			copy(raw, l.data[offset:offset+uint64(dataLen)])
			offset += uint64(dataLen)

			if err := visit(replayEntry{
				kind:   kind,
				offset: start,
				record: recordEntry{SessionID: sid, SeqNum: seqNum, Direction: dir, RawBytes: raw, Timestamp: ts},
			}); err != nil {
				return err
			}

		case entryTypeSeq:
			sid, next, err := readSessionID(l.data, offset)
			if err != nil {
				return err
			}
			offset = next
			if offset+1+4 > l.size {
				return &store.StoreError{Code: store.ErrCorrupted, Message: "truncated seq entry"}
			}
			dir := message.Direction(l.data[offset])
			offset++
			nextSeq := int(binary.LittleEndian.Uint32(l.data[offset:]))
			offset += 4

			if err := visit(replayEntry{
				kind: kind,
				seq:  seqEntry{SessionID: sid, Direction: dir, Next: nextSeq},
			}); err != nil {
				return err
			}

		default:
			return &store.StoreError{Code: store.ErrCorrupted, Message: fmt.Sprintf("unknown entry type %d", kind)}
		}
	}
	return nil
}

// readRecordAt re-reads the record entry starting at offset, used to serve
// Get/Range without keeping every record's bytes resident in memory.
func (l *appendLog) readRecordAt(offset uint64) (recordEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset+1 > l.size || l.data[offset] != entryTypeRecord {
		return recordEntry{}, &store.StoreError{Code: store.ErrCorrupted, Message: "index points at non-record entry"}
	}
	cur := offset + 1
	sid, cur, err := readSessionID(l.data, cur)
	if err != nil {
		return recordEntry{}, err
	}
	seqNum := int(binary.LittleEndian.Uint32(l.data[cur:]))
	cur += 4
	dir := message.Direction(l.data[cur])
	cur++
	ts := int64(binary.LittleEndian.Uint64(l.data[cur:]))
	cur += 8
	dataLen := binary.LittleEndian.Uint32(l.data[cur:])
	cur += 4
	raw := make([]byte, dataLen)
	copy(raw, l.data[cur:cur+uint64(dataLen)])

	return recordEntry{SessionID: sid, SeqNum: seqNum, Direction: dir, RawBytes: raw, Timestamp: ts}, nil
}

func (l *appendLog) sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return &store.StoreError{Code: store.ErrClosed, Message: "log is closed"}
	}
	if err := unix.Msync(l.data, unix.MS_ASYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

func (l *appendLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	if l.data != nil {
		_ = unix.Msync(l.data, unix.MS_SYNC)
		if err := unix.Munmap(l.data); err != nil {
			return fmt.Errorf("munmap: %w", err)
		}
		l.data = nil
	}
	if l.file != nil {
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("close file: %w", err)
		}
		l.file = nil
	}
	return nil
}
