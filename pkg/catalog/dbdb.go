// Package catalog decodes the two device catalogs a desktop session starts
// with: the database database, which names every database and its number,
// and the command table, which maps command names to codes.
package catalog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Database access operations that return a database database.
const (
	OpGetDBDB    = 0x4a
	OpOldGetDBDB = 0x4c
)

// response header sizes, starting at the operation byte
const (
	dbdbHeaderSize    = 6 // op, count u16, 3 unknown
	oldDBDBHeaderSize = 3 // op, count u16
)

// field header sizes, not counting the name
const (
	dbdbFieldHeaderSize    = 16
	dbdbFieldTrailerSize   = 2
	oldDBDBFieldHeaderSize = 13
)

// ErrUnknownOperation is returned for a database database response with
// an operation byte that is neither the old nor the new format.
var ErrUnknownOperation = errors.New("unknown database database operation")

// Database is one catalog entry.
type Database struct {
	Number      uint16 `json:"number"`
	RecordCount uint32 `json:"record_count"`
	Name        string `json:"name"`
}

// DatabaseDatabase lists the databases on a device.
type DatabaseDatabase struct {
	Databases []Database `json:"databases"`
}

// Clear empties the catalog.
func (d *DatabaseDatabase) Clear() {
	d.Databases = nil
}

// Parse replaces the catalog with the entries in data, which starts at the
// operation byte of the response. Entries cut short by the end of data are
// dropped, as is everything after an entry with no name.
func (d *DatabaseDatabase) Parse(data []byte) error {
	d.Clear()
	if len(data) < 1 {
		return nil
	}

	switch data[0] {
	case OpGetDBDB:
		if len(data) <= dbdbHeaderSize {
			return nil
		}
		d.parseFields(data[dbdbHeaderSize:], false)
	case OpOldGetDBDB:
		if len(data) <= oldDBDBHeaderSize {
			return nil
		}
		d.parseFields(data[oldDBDBHeaderSize:], true)
	default:
		return fmt.Errorf("%w: 0x%02x", ErrUnknownOperation, data[0])
	}
	return nil
}

func (d *DatabaseDatabase) parseFields(data []byte, old bool) {
	header := dbdbFieldHeaderSize
	trailer := dbdbFieldTrailerSize
	if old {
		header = oldDBDBFieldHeaderSize
		trailer = 0
	}

	for off := 0; off+header <= len(data); {
		f := data[off:]
		var db Database
		var nameSize int
		db.Number = binary.BigEndian.Uint16(f[0:])
		if old {
			db.RecordCount = uint32(binary.BigEndian.Uint16(f[7:]))
			nameSize = int(binary.BigEndian.Uint16(f[11:]))
		} else {
			db.RecordCount = binary.BigEndian.Uint32(f[7:])
			nameSize = int(binary.BigEndian.Uint16(f[13:]))
		}

		end := off + header + nameSize + trailer
		if end > len(data) || nameSize == 0 {
			return
		}
		db.Name = string(f[header : header+nameSize-1])
		d.Databases = append(d.Databases, db)
		off = end
	}
}

// GetDBNumber returns the number of the named database.
func (d *DatabaseDatabase) GetDBNumber(name string) (uint16, bool) {
	for _, db := range d.Databases {
		if db.Name == name {
			return db.Number, true
		}
	}
	return 0, false
}

// GetDBName returns the name of database number.
func (d *DatabaseDatabase) GetDBName(number uint16) (string, bool) {
	for _, db := range d.Databases {
		if db.Number == number {
			return db.Name, true
		}
	}
	return "", false
}

// Build encodes the catalog as a new format response.
func (d *DatabaseDatabase) Build() []byte {
	out := make([]byte, dbdbHeaderSize)
	out[0] = OpGetDBDB
	binary.BigEndian.PutUint16(out[1:], uint16(len(d.Databases)))

	for _, db := range d.Databases {
		f := make([]byte, dbdbFieldHeaderSize, dbdbFieldHeaderSize+len(db.Name)+1+dbdbFieldTrailerSize)
		binary.BigEndian.PutUint16(f[0:], db.Number)
		binary.BigEndian.PutUint32(f[7:], db.RecordCount)
		binary.BigEndian.PutUint16(f[13:], uint16(len(db.Name)+1))
		f = append(f, db.Name...)
		f = append(f, 0, 0, 0)
		out = append(out, f...)
	}
	return out
}

// Dump writes the catalog in a human readable layout.
func (d *DatabaseDatabase) Dump(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Database database:"); err != nil {
		return err
	}
	for _, db := range d.Databases {
		if _, err := fmt.Fprintf(w, "    Database: 0x%x '%s' (records: %d)\n", db.Number, db.Name, db.RecordCount); err != nil {
			return err
		}
	}
	return nil
}
