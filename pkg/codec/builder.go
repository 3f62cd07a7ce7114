package codec

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
)

// Builder appends fields to a buffer. The first error sticks; later calls
// are no-ops and Finish reports it.
type Builder struct {
	buf  *buffer.Buffer
	off  int
	conv Converter
	err  error
}

// NewBuilder returns a builder that writes into buf starting at offset off.
// Anything past off is overwritten.
func NewBuilder(buf *buffer.Buffer, off int) *Builder {
	return &Builder{buf: buf, off: off}
}

// WithConverter sets the converter used by String.
func (b *Builder) WithConverter(conv Converter) *Builder {
	b.conv = conv
	return b
}

// Offset returns the current write position.
func (b *Builder) Offset() int { return b.off }

// Err returns the first error seen.
func (b *Builder) Err() error { return b.err }

// write reserves n bytes at the cursor, commits them to the buffer size and
// returns them. Committing each field keeps earlier fields when a later
// GetBuffer has to grow the buffer.
func (b *Builder) write(n int) []byte {
	end := b.off + n
	mem := b.buf.GetBuffer(end)
	if err := b.buf.ReleaseBuffer(end); err != nil {
		b.err = err
	}
	out := mem[b.off:end]
	b.off = end
	return out
}

// RawBytes writes bytes with no field header.
func (b *Builder) RawBytes(p []byte) {
	if b.err != nil {
		return
	}
	copy(b.write(len(p)), p)
}

// Raw writes a field with an opaque payload.
func (b *Builder) Raw(typ uint8, payload []byte) {
	if b.err != nil {
		return
	}
	if len(payload) > MaxFieldSize {
		b.err = fmt.Errorf("field 0x%02x: payload of %d bytes exceeds %d", typ, len(payload), MaxFieldSize)
		return
	}
	out := b.write(HeaderSize + len(payload))
	out[0] = typ
	binary.BigEndian.PutUint16(out[1:], uint16(len(payload)))
	copy(out[HeaderSize:], payload)
}

// Uint8 writes a one byte integer field.
func (b *Builder) Uint8(typ uint8, v uint8) {
	b.Raw(typ, []byte{v})
}

// Uint16 writes a big-endian two byte integer field.
func (b *Builder) Uint16(typ uint8, v uint16) {
	var p [2]byte
	binary.BigEndian.PutUint16(p[:], v)
	b.Raw(typ, p[:])
}

// Uint32 writes a big-endian four byte integer field.
func (b *Builder) Uint32(typ uint8, v uint32) {
	var p [4]byte
	binary.BigEndian.PutUint32(p[:], v)
	b.Raw(typ, p[:])
}

// Uint64 writes a big-endian eight byte integer field.
func (b *Builder) Uint64(typ uint8, v uint64) {
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], v)
	b.Raw(typ, p[:])
}

// String writes s with a single trailing NUL, converting it to the device
// charset first when the builder has a converter.
func (b *Builder) String(typ uint8, s string) {
	if b.conv != nil {
		s = b.conv.ToDevice(s)
	}
	b.PlainString(typ, s)
}

// PlainString writes s with a trailing NUL and no charset conversion.
func (b *Builder) PlainString(typ uint8, s string) {
	p := make([]byte, len(s)+1)
	copy(p, s)
	b.Raw(typ, p)
}

// Min1900 writes t as minutes since 1900. The zero time writes the unset
// sentinel.
func (b *Builder) Min1900(typ uint8, t time.Time) {
	b.Uint32(typ, TimeToMin1900(t))
}

// Unknowns re-emits preserved fields in their original order.
func (b *Builder) Unknowns(u Unknowns) {
	for _, f := range u {
		b.Raw(f.Type, f.Data)
	}
}

// Fail records err as the builder error unless one is already set.
func (b *Builder) Fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Finish commits the written size to the buffer.
func (b *Builder) Finish() error {
	if b.err != nil {
		return b.err
	}
	// owned and large enough even when nothing was written
	b.buf.GetBuffer(b.off)
	return b.buf.ReleaseBuffer(b.off)
}
