package sync

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ssargent/bbsync/pkg/statetable"
)

// ChangeType classifies a change found by Diff.
type ChangeType int

const (
	Added ChangeType = iota
	Modified
	Deleted
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return fmt.Sprintf("ChangeType(%d)", int(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Change is one record that differs from the previous pass. Index is only
// meaningful for Added and Modified.
type Change struct {
	Type     ChangeType `json:"type"`
	RecordID uint32     `json:"record_id"`
	Index    uint16     `json:"index"`
	UID      string     `json:"uid"`
}

// State is the sync bookkeeping for one database: the record IDs seen by
// the previous pass, the UID map, and the live state table of the current
// pass.
type State struct {
	Desc   string
	DBName string

	CacheFile string
	MapFile   string

	Cache map[uint32]struct{}
	IDMap *IDMap
	Table *statetable.Table
}

// NewState returns the state for dbName, keeping its files in dir under
// names derived from desc.
func NewState(dir, desc, dbName string) *State {
	return &State{
		Desc:      desc,
		DBName:    dbName,
		CacheFile: filepath.Join(dir, "bbsync_"+desc+"_cache.txt"),
		MapFile:   filepath.Join(dir, "bbsync_"+desc+"_idmap.txt"),
		Cache:     make(map[uint32]struct{}),
		IDMap:     NewIDMap(),
		Table:     statetable.New(),
	}
}

// ReadCache replaces the cache with the whitespace separated decimal record
// IDs in r. Zero IDs are skipped. On any error the cache is left empty,
// which makes the next Diff report every record as added.
func (s *State) ReadCache(r io.Reader) error {
	s.Cache = make(map[uint32]struct{})

	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		rid, err := strconv.ParseUint(sc.Text(), 10, 32)
		if err != nil {
			s.Cache = make(map[uint32]struct{})
			return fmt.Errorf("cache %s: %w", s.Desc, err)
		}
		if rid != 0 {
			s.Cache[uint32(rid)] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		s.Cache = make(map[uint32]struct{})
		return err
	}
	return nil
}

// WriteCache writes the cache one record ID per line, ascending.
func (s *State) WriteCache(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, rid := range s.CachedIDs() {
		if _, err := fmt.Fprintf(bw, "%d\n", rid); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// CachedIDs returns the cached record IDs, ascending.
func (s *State) CachedIDs() []uint32 {
	out := make([]uint32, 0, len(s.Cache))
	for rid := range s.Cache {
		out = append(out, rid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadCache reads CacheFile. A missing file is a first sync and not an
// error.
func (s *State) LoadCache() error {
	f, err := os.Open(s.CacheFile)
	if isNotExist(err) {
		s.Cache = make(map[uint32]struct{})
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	return s.ReadCache(f)
}

// SaveCache writes CacheFile.
func (s *State) SaveCache() error {
	return writeFile(s.CacheFile, s.WriteCache)
}

// LoadMap reads MapFile. A missing file is not an error.
func (s *State) LoadMap() error {
	if err := s.IDMap.LoadFile(s.MapFile); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// SaveMap writes MapFile.
func (s *State) SaveMap() error {
	return s.IDMap.SaveFile(s.MapFile)
}

// Diff compares the live table against the cache. Records missing from the
// cache are added, cached records with the dirty flag set are modified,
// and cached records missing from the table are deleted. Added and
// modified changes come in index order, deletions in record ID order.
func (s *State) Diff() []Change {
	var changes []Change
	live := make(map[uint32]struct{}, s.Table.Len())

	for _, st := range s.Table.States() {
		live[st.RecordID] = struct{}{}
		c := Change{RecordID: st.RecordID, Index: st.Index, UID: s.Map2UID(st.RecordID)}
		if _, cached := s.Cache[st.RecordID]; !cached {
			c.Type = Added
		} else if st.Dirty {
			c.Type = Modified
		} else {
			continue
		}
		changes = append(changes, c)
	}

	for _, rid := range s.CachedIDs() {
		if _, ok := live[rid]; !ok {
			changes = append(changes, Change{Type: Deleted, RecordID: rid, UID: s.Map2UID(rid)})
		}
	}
	return changes
}

// Commit folds the changes that were applied into the cache. Added records
// join the cache and deleted records leave it. Changes that were not
// applied leave the cache as it was, so the next Diff reports them again.
func (s *State) Commit(applied []Change) {
	for _, c := range applied {
		switch c.Type {
		case Added, Modified:
			s.Cache[c.RecordID] = struct{}{}
		case Deleted:
			delete(s.Cache, c.RecordID)
		}
	}
}

// CleanupMap drops mappings whose record ID is gone from the live table.
func (s *State) CleanupMap() {
	for _, mp := range s.IDMap.Mappings() {
		if _, ok := s.Table.GetIndex(mp.RecordID); !ok {
			s.IDMap.UnmapUID(mp.UID)
		}
	}
}

// Map2UID returns the UID mapped to rid, or "<desc>-<rid>" when there is
// none. The fallback is not added to the map.
func (s *State) Map2UID(rid uint32) string {
	if uid, ok := s.IDMap.GetUID(rid); ok {
		return uid
	}
	return fmt.Sprintf("%s-%d", s.Desc, rid)
}

// GetMappedRecordID returns the record ID for uid, mapping it when needed.
// A UID starting with a decimal number is mapped to that number when it is
// free; otherwise fresh IDs are taken from the table until one maps. A uid
// that is not a ValidUID returns 0.
func (s *State) GetMappedRecordID(uid string) uint32 {
	if !ValidUID(uid) {
		return 0
	}
	if rid, ok := s.IDMap.GetRID(uid); ok {
		return rid
	}

	if rid, ok := leadingNumber(uid); ok && s.IDMap.Map(uid, rid) {
		return rid
	}

	for {
		rid := s.Table.MakeNewRecordID()
		if s.IDMap.Map(uid, rid) {
			return rid
		}
	}
}

func leadingNumber(s string) (uint32, bool) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:end], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
