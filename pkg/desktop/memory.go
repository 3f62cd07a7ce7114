package desktop

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a Store that lives in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	dbs     []DBInfo
	entries map[uint16]map[uint16]Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uint16]map[uint16]Entry)}
}

// Databases implements Store.
func (m *MemoryStore) Databases(_ context.Context) ([]DBInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]DBInfo(nil), m.dbs...), nil
}

// CreateDatabase implements Store.
func (m *MemoryStore) CreateDatabase(_ context.Context, name string) (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, db := range m.dbs {
		if db.Name == name {
			return db.Number, nil
		}
	}
	number := uint16(len(m.dbs))
	m.dbs = append(m.dbs, DBInfo{Number: number, Name: name})
	m.entries[number] = make(map[uint16]Entry)
	return number, nil
}

func (m *MemoryStore) db(dbID uint16) (map[uint16]Entry, error) {
	entries, ok := m.entries[dbID]
	if !ok {
		return nil, ErrDatabaseNotFound
	}
	return entries, nil
}

// Entries implements Store.
func (m *MemoryStore) Entries(_ context.Context, dbID uint16) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := m.db(dbID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// GetEntry implements Store.
func (m *MemoryStore) GetEntry(_ context.Context, dbID, index uint16) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := m.db(dbID)
	if err != nil {
		return Entry{}, err
	}
	e, ok := entries[index]
	if !ok {
		return Entry{}, ErrIndexNotFound
	}
	return e, nil
}

// PutEntry implements Store.
func (m *MemoryStore) PutEntry(_ context.Context, dbID uint16, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.db(dbID)
	if err != nil {
		return err
	}
	e.Body = append([]byte(nil), e.Body...)
	entries[e.Index] = e
	return nil
}

// DeleteEntry implements Store.
func (m *MemoryStore) DeleteEntry(_ context.Context, dbID, index uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.db(dbID)
	if err != nil {
		return err
	}
	if _, ok := entries[index]; !ok {
		return ErrIndexNotFound
	}
	delete(entries, index)
	return nil
}
