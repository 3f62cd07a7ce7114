// Package sync keeps the desktop side bookkeeping of a device sync: the
// mapping between external UIDs and device record IDs, the set of record
// IDs seen by the previous pass, and the engine that turns a device state
// table into a list of changes.
package sync

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// IDMap maps external UID strings to device record IDs and back. Both
// sides are unique and neither may be blank.
type IDMap struct {
	uids map[string]uint32
}

// Mapping is one IDMap entry.
type Mapping struct {
	UID      string `json:"uid"`
	RecordID uint32 `json:"record_id"`
}

// NewIDMap returns an empty map.
func NewIDMap() *IDMap {
	return &IDMap{uids: make(map[string]uint32)}
}

// ValidUID reports whether uid can be kept in an IDMap. A UID may not be
// empty, start with a space or tab, or hold a line break.
func ValidUID(uid string) bool {
	if uid == "" || uid[0] == ' ' || uid[0] == '\t' {
		return false
	}
	return !strings.ContainsAny(uid, "\r\n")
}

// Map links uid and rid. It reports false, and changes nothing, when either
// is blank or already mapped, or when uid is not a ValidUID.
func (m *IDMap) Map(uid string, rid uint32) bool {
	if !ValidUID(uid) || rid == 0 {
		return false
	}
	if _, ok := m.uids[uid]; ok {
		return false
	}
	if _, ok := m.GetUID(rid); ok {
		return false
	}
	m.uids[uid] = rid
	return true
}

// UIDExists reports whether uid is mapped.
func (m *IDMap) UIDExists(uid string) bool {
	_, ok := m.uids[uid]
	return ok
}

// RIDExists reports whether rid is mapped.
func (m *IDMap) RIDExists(rid uint32) bool {
	_, ok := m.GetUID(rid)
	return ok
}

// GetRID returns the record ID mapped to uid.
func (m *IDMap) GetRID(uid string) (uint32, bool) {
	rid, ok := m.uids[uid]
	return rid, ok
}

// GetUID returns the UID mapped to rid.
func (m *IDMap) GetUID(rid uint32) (string, bool) {
	for uid, r := range m.uids {
		if r == rid {
			return uid, true
		}
	}
	return "", false
}

// UnmapUID removes the mapping for uid.
func (m *IDMap) UnmapUID(uid string) {
	delete(m.uids, uid)
}

// UnmapRID removes the mapping for rid.
func (m *IDMap) UnmapRID(rid uint32) {
	if uid, ok := m.GetUID(rid); ok {
		delete(m.uids, uid)
	}
}

// Len returns the number of mappings.
func (m *IDMap) Len() int { return len(m.uids) }

// Clear removes every mapping.
func (m *IDMap) Clear() {
	m.uids = make(map[string]uint32)
}

// Mappings returns every mapping ordered by UID.
func (m *IDMap) Mappings() []Mapping {
	out := make([]Mapping, 0, len(m.uids))
	for uid, rid := range m.uids {
		out = append(out, Mapping{UID: uid, RecordID: rid})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Load replaces the map with the "<rid> <uid>" lines read from r. Lines
// with a zero record ID or an empty UID are skipped, as are lines that
// would map a side twice. Lines may end in CRLF. On a read or number error
// the map is left empty.
func (m *IDMap) Load(r io.Reader) error {
	m.Clear()

	br := bufio.NewReader(r)
	for line := 1; ; line++ {
		text, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			m.Clear()
			return fmt.Errorf("idmap line %d: %w", line, err)
		}
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
		text = strings.TrimLeft(text, " \t")
		if text != "" {
			ridText, uid, _ := strings.Cut(text, " ")
			rid, perr := strconv.ParseUint(ridText, 10, 32)
			if perr != nil {
				m.Clear()
				return fmt.Errorf("idmap line %d: %w", line, perr)
			}
			m.Map(strings.TrimLeft(uid, " \t"), uint32(rid))
		}
		if err != nil {
			return nil
		}
	}
}

// Save writes the map as "<rid> <uid>" lines ordered by UID.
func (m *IDMap) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, mp := range m.Mappings() {
		if _, err := fmt.Fprintf(bw, "%d %s\n", mp.RecordID, mp.UID); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadFile loads the map from path. A missing file leaves the map empty
// and returns an error wrapping os.ErrNotExist.
func (m *IDMap) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		m.Clear()
		return err
	}
	defer f.Close()

	return m.Load(f)
}

// SaveFile writes the map to path.
func (m *IDMap) SaveFile(path string) error {
	return writeFile(path, m.Save)
}

// writeFile replaces path with the output of fn via a temporary file.
func writeFile(path string, fn func(io.Writer) error) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
