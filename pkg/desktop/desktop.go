// Package desktop defines the device session a sync runs against and a
// simulated device built on a pluggable entry store.
package desktop

import (
	"context"

	"github.com/ssargent/bbsync/pkg/catalog"
	"github.com/ssargent/bbsync/pkg/record"
)

// Errors
var (
	ErrDatabaseNotFound = &DeviceError{"database not found"}
	ErrIndexNotFound    = &DeviceError{"record index not found"}
	ErrRecordNotFound   = &DeviceError{"record not found"}
	ErrRecordExists     = &DeviceError{"record ID already exists"}
	ErrInvalidRecordID  = &DeviceError{"record ID must not be zero"}
	ErrDatabaseFull     = &DeviceError{"no free record index"}
)

// DeviceError represents a device session error
type DeviceError struct {
	Message string
}

func (e *DeviceError) Error() string {
	return e.Message
}

// Desktop is a database session with a device. Indices are only valid
// until the next GetRecordStateTable; record IDs are stable.
type Desktop interface {
	// GetDBDB returns the database catalog.
	GetDBDB(ctx context.Context) (*catalog.DatabaseDatabase, error)
	// GetDBID returns the number of the named database.
	GetDBID(ctx context.Context, name string) (uint16, error)
	// GetRecordStateTable returns the raw state table of a database.
	GetRecordStateTable(ctx context.Context, dbID uint16) ([]byte, error)
	// GetRecord parses the record at index into r and sets its IDs.
	GetRecord(ctx context.Context, dbID, index uint16, r record.Record) error
	// AddRecord writes r as a new record. Its record ID must be set and
	// unused.
	AddRecord(ctx context.Context, dbID uint16, r record.Record) error
	// SetRecord replaces the record at index.
	SetRecord(ctx context.Context, dbID, index uint16, r record.Record) error
	DeleteRecord(ctx context.Context, dbID, index uint16) error
	// ClearDirty marks the record at index as synced.
	ClearDirty(ctx context.Context, dbID, index uint16) error
}

// Entry is a stored record body with its bookkeeping.
type Entry struct {
	Index    uint16 `json:"index"`
	RecordID uint32 `json:"record_id"`
	RecType  uint8  `json:"rec_type"`
	Dirty    bool   `json:"dirty"`
	Body     []byte `json:"body"`
}

// DBInfo names a database.
type DBInfo struct {
	Number uint16 `json:"number"`
	Name   string `json:"name"`
}

// Store keeps the databases and entries of a simulated device.
type Store interface {
	Databases(ctx context.Context) ([]DBInfo, error)
	// CreateDatabase returns the number of the named database, creating it
	// when needed.
	CreateDatabase(ctx context.Context, name string) (uint16, error)
	// Entries returns every entry of a database ordered by index.
	Entries(ctx context.Context, dbID uint16) ([]Entry, error)
	GetEntry(ctx context.Context, dbID, index uint16) (Entry, error)
	PutEntry(ctx context.Context, dbID uint16, e Entry) error
	DeleteEntry(ctx context.Context, dbID, index uint16) error
}
