package codec

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of a field header: type byte plus 16 bit size.
const HeaderSize = 3

// MaxFieldSize is the largest payload a single field can carry.
const MaxFieldSize = 0xffff

// Field is one decoded field. Data aliases the parsed input.
type Field struct {
	Type uint8
	Data []byte
}

// Size returns the payload length.
func (f Field) Size() int { return len(f.Data) }

// Next decodes the field header at data[off:]. It returns the field, the
// offset just past it, and false when the header or the payload does not
// fit inside data.
func Next(data []byte, off int) (Field, int, bool) {
	if off < 0 || off+HeaderSize > len(data) {
		return Field{}, len(data), false
	}
	size := int(binary.BigEndian.Uint16(data[off+1:]))
	end := off + HeaderSize + size
	if end > len(data) {
		return Field{}, len(data), false
	}
	return Field{Type: data[off], Data: data[off+HeaderSize : end : end]}, end, true
}

// Walk runs fn for every field in data, starting at offset off. Truncated
// fields end the walk quietly and zero size fields are skipped. The first
// error returned by fn stops the walk and is returned. The returned offset
// is where parsing stopped.
func Walk(data []byte, off int, fn func(Field) error) (int, error) {
	for off+HeaderSize < len(data) {
		f, next, ok := Next(data, off)
		if !ok {
			return len(data), nil
		}
		off = next
		if len(f.Data) == 0 {
			continue
		}
		if err := fn(f); err != nil {
			return off, err
		}
	}
	return off, nil
}

// ParseString returns the payload as a string with every trailing NUL
// removed.
func ParseString(data []byte) string {
	n := len(data)
	for n > 0 && data[n-1] == 0 {
		n--
	}
	return string(data[:n])
}

// DecodeString is ParseString followed by a charset conversion.
func DecodeString(conv Converter, data []byte) string {
	s := ParseString(data)
	if conv != nil {
		return conv.FromDevice(s)
	}
	return s
}

// Uint8 reads a one byte integer payload.
func (f Field) Uint8() (uint8, error) {
	if len(f.Data) < 1 {
		return 0, f.sizeError(1)
	}
	return f.Data[0], nil
}

// Uint16 reads a big-endian two byte integer payload.
func (f Field) Uint16() (uint16, error) {
	if len(f.Data) < 2 {
		return 0, f.sizeError(2)
	}
	return binary.BigEndian.Uint16(f.Data), nil
}

// Uint32 reads a big-endian four byte integer payload.
func (f Field) Uint32() (uint32, error) {
	if len(f.Data) < 4 {
		return 0, f.sizeError(4)
	}
	return binary.BigEndian.Uint32(f.Data), nil
}

// Uint64 reads a big-endian eight byte integer payload.
func (f Field) Uint64() (uint64, error) {
	if len(f.Data) < 8 {
		return 0, f.sizeError(8)
	}
	return binary.BigEndian.Uint64(f.Data), nil
}

func (f Field) sizeError(want int) error {
	return fmt.Errorf("field 0x%02x: size %d, need %d", f.Type, len(f.Data), want)
}
