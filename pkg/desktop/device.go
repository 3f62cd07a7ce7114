package desktop

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ssargent/bbsync/pkg/catalog"
	"github.com/ssargent/bbsync/pkg/codec"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/statetable"
)

// Device is a simulated handheld. The Desktop methods act as the sync
// client sees them; Put and Remove act as the handheld user would, marking
// records dirty.
type Device struct {
	store Store
	conv  codec.Converter
	mu    sync.Mutex
}

// NewDevice returns a device backed by store. A nil conv selects the
// default device charset.
func NewDevice(store Store, conv codec.Converter) (*Device, error) {
	if conv == nil {
		c, err := codec.NewConverter("")
		if err != nil {
			return nil, err
		}
		conv = c
	}
	return &Device{store: store, conv: conv}, nil
}

// Converter returns the charset converter records are built with.
func (d *Device) Converter() codec.Converter { return d.conv }

// GetDBDB implements Desktop.
func (d *Device) GetDBDB(ctx context.Context) (*catalog.DatabaseDatabase, error) {
	dbs, err := d.store.Databases(ctx)
	if err != nil {
		return nil, err
	}
	dbdb := &catalog.DatabaseDatabase{}
	for _, db := range dbs {
		entries, err := d.store.Entries(ctx, db.Number)
		if err != nil {
			return nil, err
		}
		dbdb.Databases = append(dbdb.Databases, catalog.Database{
			Number:      db.Number,
			RecordCount: uint32(len(entries)),
			Name:        db.Name,
		})
	}
	return dbdb, nil
}

// GetDBID implements Desktop.
func (d *Device) GetDBID(ctx context.Context, name string) (uint16, error) {
	dbs, err := d.store.Databases(ctx)
	if err != nil {
		return 0, err
	}
	for _, db := range dbs {
		if db.Name == name {
			return db.Number, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrDatabaseNotFound, name)
}

// GetRecordStateTable implements Desktop.
func (d *Device) GetRecordStateTable(ctx context.Context, dbID uint16) ([]byte, error) {
	table, err := d.stateTable(ctx, dbID)
	if err != nil {
		return nil, err
	}
	return table.Build(), nil
}

func (d *Device) stateTable(ctx context.Context, dbID uint16) (*statetable.Table, error) {
	entries, err := d.store.Entries(ctx, dbID)
	if err != nil {
		return nil, err
	}
	table := statetable.New()
	for _, e := range entries {
		table.Put(statetable.State{
			Index:    e.Index,
			RecordID: e.RecordID,
			Dirty:    e.Dirty,
			RecType:  e.RecType,
		})
	}
	return table, nil
}

// GetRecord implements Desktop.
func (d *Device) GetRecord(ctx context.Context, dbID, index uint16, r record.Record) error {
	e, err := d.store.GetEntry(ctx, dbID, index)
	if err != nil {
		return err
	}
	r.SetIDs(e.RecType, e.RecordID)
	if err := record.Parse(r, e.Body, d.conv); err != nil {
		return fmt.Errorf("record 0x%x: %w", e.RecordID, err)
	}
	return nil
}

// AddRecord implements Desktop.
func (d *Device) AddRecord(ctx context.Context, dbID uint16, r record.Record) error {
	recType, recordID := r.IDs()
	if recordID == 0 {
		return ErrInvalidRecordID
	}
	body, err := record.Bytes(r, d.conv)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	table, err := d.stateTable(ctx, dbID)
	if err != nil {
		return err
	}
	if _, exists := table.GetIndex(recordID); exists {
		return fmt.Errorf("%w: 0x%x", ErrRecordExists, recordID)
	}
	index, err := nextIndex(table)
	if err != nil {
		return err
	}
	return d.store.PutEntry(ctx, dbID, Entry{
		Index:    index,
		RecordID: recordID,
		RecType:  recType,
		Body:     body,
	})
}

// SetRecord implements Desktop.
func (d *Device) SetRecord(ctx context.Context, dbID, index uint16, r record.Record) error {
	body, err := record.Bytes(r, d.conv)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.store.GetEntry(ctx, dbID, index)
	if err != nil {
		return err
	}
	if rt, _ := r.IDs(); rt != 0 {
		e.RecType = rt
	}
	e.Body = body
	e.Dirty = false
	return d.store.PutEntry(ctx, dbID, e)
}

// DeleteRecord implements Desktop.
func (d *Device) DeleteRecord(ctx context.Context, dbID, index uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.DeleteEntry(ctx, dbID, index)
}

// ClearDirty implements Desktop.
func (d *Device) ClearDirty(ctx context.Context, dbID, index uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, err := d.store.GetEntry(ctx, dbID, index)
	if err != nil {
		return err
	}
	if !e.Dirty {
		return nil
	}
	e.Dirty = false
	return d.store.PutEntry(ctx, dbID, e)
}

// Put stores r in its database the way an edit on the handheld would. A
// record with no record ID gets a fresh one and a new index; otherwise the
// record with that ID is replaced, or added when missing. The stored entry
// is marked dirty. Put returns the record ID.
func (d *Device) Put(ctx context.Context, r record.Record) (uint32, error) {
	body, err := record.Bytes(r, d.conv)
	if err != nil {
		return 0, err
	}
	recType, recordID := r.IDs()
	return d.PutRaw(ctx, r.DBName(), recType, recordID, body)
}

// PutRaw is Put for a record body that is already encoded.
func (d *Device) PutRaw(ctx context.Context, dbName string, recType uint8, recordID uint32, body []byte) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dbID, err := d.store.CreateDatabase(ctx, dbName)
	if err != nil {
		return 0, err
	}
	table, err := d.stateTable(ctx, dbID)
	if err != nil {
		return 0, err
	}

	if recordID == 0 {
		recordID = table.MakeNewRecordID()
	}
	index, exists := table.GetIndex(recordID)
	if !exists {
		if index, err = nextIndex(table); err != nil {
			return 0, err
		}
	}
	err = d.store.PutEntry(ctx, dbID, Entry{
		Index:    index,
		RecordID: recordID,
		RecType:  recType,
		Dirty:    true,
		Body:     append([]byte(nil), body...),
	})
	if err != nil {
		return 0, err
	}
	return recordID, nil
}

// Remove deletes the record with recordID the way the handheld user would.
func (d *Device) Remove(ctx context.Context, dbName string, recordID uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dbID, err := d.GetDBID(ctx, dbName)
	if err != nil {
		return err
	}
	table, err := d.stateTable(ctx, dbID)
	if err != nil {
		return err
	}
	index, ok := table.GetIndex(recordID)
	if !ok {
		return fmt.Errorf("%w: 0x%x", ErrRecordNotFound, recordID)
	}
	return d.store.DeleteEntry(ctx, dbID, index)
}

// Entries returns the stored entries of the named database.
func (d *Device) Entries(ctx context.Context, dbName string) ([]Entry, error) {
	dbID, err := d.GetDBID(ctx, dbName)
	if err != nil {
		return nil, err
	}
	return d.store.Entries(ctx, dbID)
}

// nextIndex returns the index after the highest one in use. Once 0xffff is
// taken the lowest free index is reused instead.
func nextIndex(table *statetable.Table) (uint16, error) {
	states := table.States()
	if len(states) == 0 {
		return 0, nil
	}
	if last := states[len(states)-1].Index; last < math.MaxUint16 {
		return last + 1, nil
	}

	used := make(map[uint16]bool, len(states))
	for _, st := range states {
		used[st.Index] = true
	}
	for i := 0; i < math.MaxUint16; i++ {
		if !used[uint16(i)] {
			return uint16(i), nil
		}
	}
	return 0, ErrDatabaseFull
}
