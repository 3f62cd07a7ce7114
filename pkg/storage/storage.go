// Package storage keeps a simulated device image on disk in pebble.
//
// Key layout:
//
//	dbs                  database list: [num u16][len u8][name]...
//	idx/<db u16>         record indices of a database: [index u16]...
//	rec/<db u16><index>  [record id u32][rectype u8][flags u8][body]
//	journal/<seq u64>    JSON JournalEntry, seq counting up from 1
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"

	"github.com/ssargent/bbsync/pkg/desktop"
)

var (
	keyDatabases  = []byte("dbs")
	journalPrefix = []byte("journal/")
	journalEnd    = []byte("journal0")
)

const (
	entryHeaderSize = 6
	flagDirty       = 0x01
)

// Journal operations
const (
	OpPut    = "put"
	OpDelete = "delete"
)

// JournalEntry records one change to the image.
type JournalEntry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Op       string    `json:"op"`
	Database uint16    `json:"database"`
	Index    uint16    `json:"index"`
	RecordID uint32    `json:"record_id"`
	Dirty    bool      `json:"dirty"`
}

// Image is a desktop.Store backed by a pebble database.
type Image struct {
	db  *pebble.DB
	mu  sync.Mutex
	seq uint64 // last journal sequence
}

// Open opens or creates the image at path.
func Open(path string) (*Image, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	img := &Image{db: db}
	if err := img.loadJournalSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return img, nil
}

// Close closes the underlying database.
func (s *Image) Close() error {
	return s.db.Close()
}

func (s *Image) get(key []byte) ([]byte, bool, error) {
	data, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	return append([]byte(nil), data...), true, nil
}

func indexKey(dbID uint16) []byte {
	return binary.BigEndian.AppendUint16([]byte("idx/"), dbID)
}

func recordKey(dbID, index uint16) []byte {
	key := binary.BigEndian.AppendUint16([]byte("rec/"), dbID)
	return binary.BigEndian.AppendUint16(key, index)
}

func journalKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), journalPrefix...), seq)
}

func (s *Image) journalIter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{LowerBound: journalPrefix, UpperBound: journalEnd})
}

// loadJournalSeq picks up the journal sequence where the last run left it.
func (s *Image) loadJournalSeq() error {
	iter, err := s.journalIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	if iter.Last() {
		key := iter.Key()
		if len(key) != len(journalPrefix)+8 {
			return fmt.Errorf("malformed journal key %x", key)
		}
		s.seq = binary.BigEndian.Uint64(key[len(journalPrefix):])
	}
	return iter.Error()
}

// Databases implements desktop.Store.
func (s *Image) Databases(_ context.Context) ([]desktop.DBInfo, error) {
	data, _, err := s.get(keyDatabases)
	if err != nil {
		return nil, err
	}
	return decodeDatabases(data)
}

func decodeDatabases(data []byte) ([]desktop.DBInfo, error) {
	var dbs []desktop.DBInfo
	for off := 0; off < len(data); {
		if off+3 > len(data) {
			return nil, fmt.Errorf("database list truncated at %d", off)
		}
		number := binary.BigEndian.Uint16(data[off:])
		size := int(data[off+2])
		off += 3
		if off+size > len(data) {
			return nil, fmt.Errorf("database list truncated at %d", off)
		}
		dbs = append(dbs, desktop.DBInfo{Number: number, Name: string(data[off : off+size])})
		off += size
	}
	return dbs, nil
}

// CreateDatabase implements desktop.Store.
func (s *Image) CreateDatabase(ctx context.Context, name string) (uint16, error) {
	if len(name) > 0xff {
		return 0, fmt.Errorf("database name too long: %d bytes", len(name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dbs, err := s.Databases(ctx)
	if err != nil {
		return 0, err
	}
	var next uint16
	for _, db := range dbs {
		if db.Name == name {
			return db.Number, nil
		}
		if db.Number >= next {
			next = db.Number + 1
		}
	}

	data, _, err := s.get(keyDatabases)
	if err != nil {
		return 0, err
	}
	data = binary.BigEndian.AppendUint16(data, next)
	data = append(data, byte(len(name)))
	data = append(data, name...)
	if err := s.db.Set(keyDatabases, data, pebble.Sync); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Image) indices(ctx context.Context, dbID uint16) ([]uint16, error) {
	dbs, err := s.Databases(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, db := range dbs {
		if db.Number == dbID {
			found = true
			break
		}
	}
	if !found {
		return nil, desktop.ErrDatabaseNotFound
	}

	data, _, err := s.get(indexKey(dbID))
	if err != nil {
		return nil, err
	}
	out := make([]uint16, 0, len(data)/2)
	for off := 0; off+2 <= len(data); off += 2 {
		out = append(out, binary.BigEndian.Uint16(data[off:]))
	}
	return out, nil
}

func encodeIndices(indices []uint16) []byte {
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	out := make([]byte, 0, len(indices)*2)
	for _, index := range indices {
		out = binary.BigEndian.AppendUint16(out, index)
	}
	return out
}

func encodeEntry(e desktop.Entry) []byte {
	out := make([]byte, entryHeaderSize, entryHeaderSize+len(e.Body))
	binary.BigEndian.PutUint32(out, e.RecordID)
	out[4] = e.RecType
	if e.Dirty {
		out[5] = flagDirty
	}
	return append(out, e.Body...)
}

func decodeEntry(index uint16, data []byte) (desktop.Entry, error) {
	if len(data) < entryHeaderSize {
		return desktop.Entry{}, fmt.Errorf("entry %d truncated: %d bytes", index, len(data))
	}
	return desktop.Entry{
		Index:    index,
		RecordID: binary.BigEndian.Uint32(data),
		RecType:  data[4],
		Dirty:    data[5]&flagDirty != 0,
		Body:     data[entryHeaderSize:],
	}, nil
}

// Entries implements desktop.Store.
func (s *Image) Entries(ctx context.Context, dbID uint16) ([]desktop.Entry, error) {
	indices, err := s.indices(ctx, dbID)
	if err != nil {
		return nil, err
	}
	out := make([]desktop.Entry, 0, len(indices))
	for _, index := range indices {
		e, err := s.GetEntry(ctx, dbID, index)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// GetEntry implements desktop.Store.
func (s *Image) GetEntry(ctx context.Context, dbID, index uint16) (desktop.Entry, error) {
	data, ok, err := s.get(recordKey(dbID, index))
	if err != nil {
		return desktop.Entry{}, err
	}
	if !ok {
		if _, err := s.indices(ctx, dbID); err != nil {
			return desktop.Entry{}, err
		}
		return desktop.Entry{}, desktop.ErrIndexNotFound
	}
	return decodeEntry(index, data)
}

// PutEntry implements desktop.Store.
func (s *Image) PutEntry(ctx context.Context, dbID uint16, e desktop.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indices, err := s.indices(ctx, dbID)
	if err != nil {
		return err
	}
	exists := false
	for _, index := range indices {
		if index == e.Index {
			exists = true
			break
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if !exists {
		indices = append(indices, e.Index)
		if err := batch.Set(indexKey(dbID), encodeIndices(indices), nil); err != nil {
			return err
		}
	}
	if err := batch.Set(recordKey(dbID, e.Index), encodeEntry(e), nil); err != nil {
		return err
	}
	if err := s.journal(batch, JournalEntry{
		Op:       OpPut,
		Database: dbID,
		Index:    e.Index,
		RecordID: e.RecordID,
		Dirty:    e.Dirty,
	}); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// DeleteEntry implements desktop.Store.
func (s *Image) DeleteEntry(ctx context.Context, dbID, index uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.GetEntry(ctx, dbID, index)
	if err != nil {
		return err
	}
	indices, err := s.indices(ctx, dbID)
	if err != nil {
		return err
	}
	kept := indices[:0]
	for _, i := range indices {
		if i != index {
			kept = append(kept, i)
		}
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(indexKey(dbID), encodeIndices(kept), nil); err != nil {
		return err
	}
	if err := batch.Delete(recordKey(dbID, index), nil); err != nil {
		return err
	}
	if err := s.journal(batch, JournalEntry{
		Op:       OpDelete,
		Database: dbID,
		Index:    index,
		RecordID: e.RecordID,
	}); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// journal adds entry to batch under the next sequence number. Callers hold
// s.mu.
func (s *Image) journal(batch *pebble.Batch, entry JournalEntry) error {
	id := ksuid.New()
	entry.ID = id.String()
	entry.Time = id.Time().UTC()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	s.seq++
	return batch.Set(journalKey(s.seq), data, nil)
}

// Journal returns every recorded change, oldest first.
func (s *Image) Journal(_ context.Context) ([]JournalEntry, error) {
	iter, err := s.journalIter()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []JournalEntry
	for iter.First(); iter.Valid(); iter.Next() {
		var entry JournalEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("journal entry %x: %w", iter.Key(), err)
		}
		out = append(out, entry)
	}
	return out, iter.Error()
}
