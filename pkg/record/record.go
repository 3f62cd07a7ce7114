// Package record implements the Blackberry database record types.
//
// Every record type knows its database name, parses a body made of tagged
// fields (see package codec) into typed members, and builds the same body
// back. Fields a type does not recognize are kept in Unknowns and written
// back verbatim after the known fields.
package record

import (
	"fmt"
	"sort"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Record is implemented by every database record type.
type Record interface {
	// DBName is the device database the record lives in.
	DBName() string
	// IDs returns the record type byte and the unique record ID.
	IDs() (recType uint8, recordID uint32)
	// SetIDs stores the record type byte and unique record ID that travel
	// alongside the body in the device protocol.
	SetIDs(recType uint8, recordID uint32)

	Clear()
	ParseHeader(data []byte, off int) (int, error)
	ParseFields(data []byte, off int, conv codec.Converter) (int, error)
	Validate() error
	BuildHeader(buf *buffer.Buffer, off int) (int, error)
	BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error)

	// Description is a one line human readable summary.
	Description() string
}

// Base carries the state shared by every record type.
type Base struct {
	RecType  uint8
	RecordID uint32
	Unknowns codec.Unknowns
}

// IDs implements Record.
func (b *Base) IDs() (uint8, uint32) { return b.RecType, b.RecordID }

// SetIDs implements Record.
func (b *Base) SetIDs(recType uint8, recordID uint32) {
	b.RecType = recType
	b.RecordID = recordID
}

func (b *Base) reset(recType uint8) {
	b.RecType = recType
	b.RecordID = 0
	b.Unknowns = nil
}

// noHeader is embedded by record types with no fixed prefix.
type noHeader struct{}

func (noHeader) ParseHeader(_ []byte, off int) (int, error) { return off, nil }

func (noHeader) BuildHeader(_ *buffer.Buffer, off int) (int, error) { return off, nil }

// Parse clears r and decodes a full record body into it. IDs set on r
// before the call survive the clear.
func Parse(r Record, data []byte, conv codec.Converter) error {
	rt, id := r.IDs()
	r.Clear()
	if id != 0 {
		r.SetIDs(rt, id)
	}

	off, err := r.ParseHeader(data, 0)
	if err != nil {
		return err
	}
	_, err = r.ParseFields(data, off, conv)
	return err
}

// Build validates r and encodes its body into buf, replacing the contents.
func Build(r Record, buf *buffer.Buffer, conv codec.Converter) error {
	if err := r.Validate(); err != nil {
		return err
	}
	off, err := r.BuildHeader(buf, 0)
	if err != nil {
		return err
	}
	_, err = r.BuildFields(buf, off, conv)
	return err
}

// Bytes validates r and returns its encoded body.
func Bytes(r Record, conv codec.Converter) ([]byte, error) {
	buf := buffer.New()
	if err := Build(r, buf, conv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// registry maps database names to constructors.
var registry = map[string]func() Record{}

func register(name string, fn func() Record) {
	registry[name] = fn
}

// New returns an empty record for the named database.
func New(dbName string) (Record, error) {
	fn, ok := registry[dbName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDatabase, dbName)
	}
	return fn(), nil
}

// DBNames lists every database with a record type, sorted.
func DBNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fieldLink binds a field tag to a string or time member of T.
type fieldLink[T any] struct {
	typ   uint8
	name  string
	str   func(*T) *string
	time  func(*T) *time.Time
	iconv bool
}

// parseLinked stores f in the member linked to its tag. It reports false
// when no link matches.
func parseLinked[T any](links []fieldLink[T], r *T, f codec.Field, conv codec.Converter) bool {
	for _, l := range links {
		if l.typ != f.Type {
			continue
		}
		switch {
		case l.str != nil:
			if l.iconv {
				*l.str(r) = codec.DecodeString(conv, f.Data)
			} else {
				*l.str(r) = codec.ParseString(f.Data)
			}
			return true
		case l.time != nil && len(f.Data) == 4:
			v, _ := f.Uint32()
			*l.time(r) = codec.Min1900ToTime(v)
			return true
		}
	}
	return false
}

// buildLinked writes every linked member that has data, in table order.
func buildLinked[T any](links []fieldLink[T], r *T, b *codec.Builder) {
	for _, l := range links {
		switch {
		case l.str != nil:
			s := *l.str(r)
			if s == "" {
				continue
			}
			if l.iconv {
				b.String(l.typ, s)
			} else {
				b.PlainString(l.typ, s)
			}
		case l.time != nil:
			t := *l.time(r)
			if t.IsZero() {
				continue
			}
			b.Min1900(l.typ, t)
		}
	}
}
