// Package statetable decodes the per-database record state table a device
// reports at the start of a sync: which records exist, at which index, and
// whether they changed since the last sync.
package statetable

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const (
	// HeaderSize is the opaque prefix in front of the state records.
	HeaderSize = 12
	// StateSize is the size of one state record.
	StateSize = 10

	flagDirty = 0x01
)

// state record layout
const (
	offIndex    = 0
	offRecordID = 2
	offFlags    = 6
	offRecType  = 7
	offUnknown2 = 8
)

// State is the bookkeeping entry for one record.
type State struct {
	Index    uint16  `json:"index"`
	RecordID uint32  `json:"record_id"`
	Dirty    bool    `json:"dirty"`
	RecType  uint8   `json:"rec_type"`
	Unknown2 [2]byte `json:"-"`
}

// Table maps device indices to record states. Indices are only valid for
// the connection that produced them; RecordID is the stable identity.
type Table struct {
	states    map[uint16]State
	lastNewID uint32
}

// New returns an empty table.
func New() *Table {
	t := &Table{}
	t.Clear()
	return t
}

// Clear empties the table and resets the record ID allocator.
func (t *Table) Clear() {
	t.states = make(map[uint16]State)
	t.lastNewID = 1
}

// Parse replaces the table contents with the states in data. A truncated
// trailing record ends the walk; whatever was decoded before it is kept.
// When an index repeats the later state wins.
func (t *Table) Parse(data []byte) {
	t.states = make(map[uint16]State)
	if len(data) <= HeaderSize {
		return
	}

	for off := HeaderSize; off+StateSize <= len(data); off += StateSize {
		rec := data[off : off+StateSize]
		s := State{
			Index:    binary.BigEndian.Uint16(rec[offIndex:]),
			RecordID: binary.BigEndian.Uint32(rec[offRecordID:]),
			Dirty:    rec[offFlags]&flagDirty != 0,
			RecType:  rec[offRecType],
		}
		copy(s.Unknown2[:], rec[offUnknown2:])
		t.states[s.Index] = s
	}
}

// Len returns the number of states.
func (t *Table) Len() int { return len(t.states) }

// Get returns the state at index.
func (t *Table) Get(index uint16) (State, bool) {
	s, ok := t.states[index]
	return s, ok
}

// Put adds or replaces a state.
func (t *Table) Put(s State) {
	t.states[s.Index] = s
}

// States returns every state ordered by index.
func (t *Table) States() []State {
	out := make([]State, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// GetIndex returns the index holding recordID. When a record ID appears
// more than once the lowest index is returned.
func (t *Table) GetIndex(recordID uint32) (uint16, bool) {
	for _, s := range t.States() {
		if s.RecordID == recordID {
			return s.Index, true
		}
	}
	return 0, false
}

// MakeNewRecordID returns a record ID that is not in the table. IDs come
// from a counter that only moves forward until Clear.
func (t *Table) MakeNewRecordID() uint32 {
	used := make(map[uint32]struct{}, len(t.states))
	for _, s := range t.states {
		used[s.RecordID] = struct{}{}
	}

	for {
		t.lastNewID++
		if t.lastNewID == 0 {
			continue
		}
		if _, taken := used[t.lastNewID]; !taken {
			return t.lastNewID
		}
	}
}

// Build encodes states in index order behind a zeroed header.
func (t *Table) Build() []byte {
	states := t.States()
	out := make([]byte, HeaderSize+len(states)*StateSize)
	for i, s := range states {
		rec := out[HeaderSize+i*StateSize:]
		binary.BigEndian.PutUint16(rec[offIndex:], s.Index)
		binary.BigEndian.PutUint32(rec[offRecordID:], s.RecordID)
		if s.Dirty {
			rec[offFlags] = flagDirty
		}
		rec[offRecType] = s.RecType
		copy(rec[offUnknown2:], s.Unknown2[:])
	}
	return out
}

// Dump writes the table in a human readable layout.
func (t *Table) Dump(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "  Index  RecordId    Dirty  RecType"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "-------  ----------  -----  -------"); err != nil {
		return err
	}
	for _, s := range t.States() {
		dirty := "no"
		if s.Dirty {
			dirty = "yes"
		}
		if _, err := fmt.Fprintf(w, "%7d  0x%08x  %5s     0x%02x   % x\n",
			s.Index, s.RecordID, dirty, s.RecType, s.Unknown2[:]); err != nil {
			return err
		}
	}
	return nil
}
