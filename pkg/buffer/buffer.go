// Package buffer provides the growable, prependable byte buffer that every
// record parser and builder works against.
//
// A Buffer is in one of two modes:
//
//	owned:    mem = [ headroom | data ............ | spare ]
//	                 ^0         ^start     ^start+size   ^len(mem)
//
//	external: ext = caller supplied slice, read only, never copied
//	          until the first mutation
//
// Mutating an external buffer promotes it to owned first. Prepending into
// existing headroom never reallocates.
package buffer

import (
	"bytes"
	"errors"
	"fmt"
)

const (
	// DefaultPrependReserve is the headroom kept in front of the data
	// whenever the buffer has to allocate.
	DefaultPrependReserve = 256

	// growthPad is added to every allocation to amortize future writes.
	growthPad = 1024
)

// ErrInvalidState reports a programmer error, such as committing a direct
// write to a buffer that still references external memory.
var ErrInvalidState = errors.New("buffer: invalid state")

// Buffer is a byte buffer with cheap prepend and copy-on-write wrapping of
// external memory. The zero value is an empty owned buffer.
type Buffer struct {
	mem   []byte
	start int
	size  int

	ext      []byte
	external bool

	reserve int
}

// New returns an empty owned buffer.
func New() *Buffer {
	return &Buffer{reserve: DefaultPrependReserve}
}

// NewSize returns an owned buffer with room for capacity bytes of data and
// prepend bytes of headroom.
func NewSize(capacity, prepend int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	if prepend < 0 {
		prepend = 0
	}
	return &Buffer{
		mem:     make([]byte, prepend+capacity),
		start:   prepend,
		reserve: prepend,
	}
}

// Wrap returns a buffer that references b without copying. The buffer treats
// b as read only; the first mutation copies it.
func Wrap(b []byte) *Buffer {
	return &Buffer{
		ext:      b,
		external: true,
		size:     len(b),
		reserve:  DefaultPrependReserve,
	}
}

// FromBytes returns an owned buffer holding a copy of b.
func FromBytes(b []byte) *Buffer {
	buf := New()
	buf.Append(b)
	return buf
}

func (b *Buffer) prependReserve() int {
	if b.reserve <= 0 {
		return DefaultPrependReserve
	}
	return b.reserve
}

// Bytes returns the logical contents. The slice aliases the buffer and is
// only valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	if b.external {
		return b.ext[:b.size:b.size]
	}
	if b.mem == nil {
		return nil
	}
	return b.mem[b.start : b.start+b.size : b.start+b.size]
}

// Size returns the number of bytes of logical data.
func (b *Buffer) Size() int { return b.size }

// Capacity returns how many bytes can be held from the data start without
// reallocating.
func (b *Buffer) Capacity() int {
	if b.external {
		return b.size
	}
	return len(b.mem) - b.start
}

// Headroom returns the number of bytes that can be prepended without
// reallocating.
func (b *Buffer) Headroom() int {
	if b.external {
		return 0
	}
	return b.start
}

// IsExternal reports whether the buffer still references caller memory.
func (b *Buffer) IsExternal() bool { return b.external }

// realloc moves the data into a fresh block with the given headroom and
// at least capacity bytes from the data start.
func (b *Buffer) realloc(headroom, capacity int) {
	if capacity < b.size {
		capacity = b.size
	}
	mem := make([]byte, headroom+capacity+growthPad)
	copy(mem[headroom:], b.Bytes())
	b.mem = mem
	b.start = headroom
	b.ext = nil
	b.external = false
}

// copyOnWrite promotes an external buffer to an owned one.
func (b *Buffer) copyOnWrite(desired int) {
	if !b.external {
		return
	}
	if desired < b.size {
		desired = b.size
	}
	b.realloc(b.prependReserve(), desired)
}

// makeSpace guarantees desired bytes of capacity from the data start.
func (b *Buffer) makeSpace(desired int) {
	if b.Capacity() >= desired && !b.external && b.mem != nil {
		return
	}
	headroom := b.start
	if b.mem == nil || b.external {
		headroom = b.prependReserve()
	}
	b.realloc(headroom, desired)
}

// GetBuffer returns a writable slice of at least minSize bytes starting at
// the data start. The logical size is unchanged until ReleaseBuffer is
// called. A minSize of zero returns the current capacity.
func (b *Buffer) GetBuffer(minSize int) []byte {
	b.copyOnWrite(minSize)
	if minSize > 0 || b.mem == nil {
		b.makeSpace(minSize)
	}
	return b.mem[b.start:]
}

// ReleaseBuffer commits the logical size after a direct write through
// GetBuffer. An actualSize of -1 trims trailing zero bytes from the
// writable region to find the size.
func (b *Buffer) ReleaseBuffer(actualSize int) error {
	if b.external {
		return fmt.Errorf("%w: release of external buffer", ErrInvalidState)
	}
	capacity := b.Capacity()
	if actualSize > capacity || actualSize < -1 {
		return fmt.Errorf("%w: release size %d outside capacity %d",
			ErrInvalidState, actualSize, capacity)
	}
	if actualSize >= 0 {
		b.size = actualSize
		return nil
	}

	region := b.mem[b.start:]
	n := len(region)
	for n > 0 && region[n-1] == 0 {
		n--
	}
	b.size = n
	return nil
}

// Append adds p to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	need := b.size + len(p)
	b.copyOnWrite(need)
	b.makeSpace(need)
	copy(b.mem[b.start+b.size:], p)
	b.size = need
}

// AppendByte adds a single byte to the end of the buffer.
func (b *Buffer) AppendByte(c byte) {
	b.Append([]byte{c})
}

// Prepend inserts p in front of the data. It uses existing headroom when
// there is enough; otherwise it reallocates with a fresh prepend reserve.
func (b *Buffer) Prepend(p []byte) {
	if len(p) == 0 {
		return
	}
	if b.external || b.mem == nil || b.start < len(p) {
		b.realloc(len(p)+b.prependReserve(), b.size)
	}
	b.start -= len(p)
	copy(b.mem[b.start:], p)
	b.size += len(p)
}

// Prechop drops the first n bytes. On an external buffer this only moves
// the view; nothing is copied. Chopping everything empties the buffer.
func (b *Buffer) Prechop(n int) {
	if n <= 0 {
		return
	}
	if n >= b.size {
		b.Clear()
		return
	}
	if b.external {
		b.ext = b.ext[n:]
		b.size -= n
		return
	}
	b.start += n
	b.size -= n
}

// Truncate shortens the logical data to n bytes.
func (b *Buffer) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < b.size {
		b.size = n
	}
}

// Clear empties the buffer and drops any external reference. Owned memory
// is kept for reuse.
func (b *Buffer) Clear() {
	if b.external {
		b.ext = nil
		b.external = false
		b.mem = nil
		b.start = 0
	} else if b.mem != nil {
		b.start = b.prependReserve()
		if b.start > len(b.mem) {
			b.start = len(b.mem)
		}
	}
	b.size = 0
}

// Zap zeroes owned memory and empties the buffer.
func (b *Buffer) Zap() {
	if !b.external {
		for i := range b.mem {
			b.mem[i] = 0
		}
	}
	b.size = 0
}

// CopyFrom replaces the contents of b with the contents of other. When b
// already owns enough capacity, it is reused in place.
func (b *Buffer) CopyFrom(other *Buffer) {
	if b == other {
		return
	}
	src := other.Bytes()
	if !b.external && b.mem != nil && b.Capacity() >= len(src) {
		copy(b.mem[b.start:], src)
		b.size = len(src)
		return
	}
	b.ext = nil
	b.external = false
	b.size = 0
	b.makeSpace(len(src))
	copy(b.mem[b.start:], src)
	b.size = len(src)
}

// Clone returns an owned copy of b.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{reserve: b.reserve}
	c.CopyFrom(b)
	return c
}

// Index returns the offset of the first occurrence of needle in the
// contents, or -1.
func (b *Buffer) Index(needle []byte) int {
	return bytes.Index(b.Bytes(), needle)
}
