package codec

import (
	"fmt"
	"strings"
)

// UnknownField is a field a record type does not understand, kept so it can
// be written back byte for byte.
type UnknownField struct {
	Type uint8
	Data []byte
}

// Unknowns holds unknown fields in the order they were parsed.
type Unknowns []UnknownField

// Add appends a copy of f.
func (u *Unknowns) Add(f Field) {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	*u = append(*u, UnknownField{Type: f.Type, Data: data})
}

// String renders the unknown fields for dumps.
func (u Unknowns) String() string {
	var sb strings.Builder
	for _, f := range u {
		fmt.Fprintf(&sb, "    Unknown FieldType: 0x%02x, Size: %d\n", f.Type, len(f.Data))
		for off := 0; off < len(f.Data); off += 16 {
			end := off + 16
			if end > len(f.Data) {
				end = len(f.Data)
			}
			fmt.Fprintf(&sb, "        % x\n", f.Data[off:end])
		}
	}
	return sb.String()
}
