// Package codec implements the tagged field format used by every Blackberry
// database record.
//
// # Field Format
//
// A record body is a flat sequence of fields with no terminator:
//
//	[Type(1)][Size(2)][Payload(Size)] [Type(1)][Size(2)][Payload(Size)] ...
//
// Fields:
//   - Type: one byte tag, interpreted per record kind
//   - Size: payload length in bytes (big-endian)
//   - Payload: a string (NUL terminated), an integer of 1, 2, 4 or 8 bytes
//     (big-endian), a fixed structure, or an opaque blob
//
// The stream ends where the containing buffer ends.
//
// # Parsing Rules
//
// Walk drives the field loop and enforces the length safety rules:
//   - A field whose declared size runs past the end of the window stops
//     parsing. Whatever was decoded before it is kept.
//   - A field with size zero is skipped.
//   - Walk never reads a byte outside the window it was given.
//
// What a tag means is up to the record type. Tags a record does not know
// are captured as UnknownField values and written back verbatim by
// Builder.Unknowns.
//
// # Building
//
// A Builder appends fields to a buffer.Buffer starting at a given offset
// and commits the final size with Finish:
//
//	b := codec.NewBuilder(buf, 0)
//	b.String(0x20, "Bob")
//	b.Uint32(0x4b, 42)
//	if err := b.Finish(); err != nil {
//	    return err
//	}
//
// # Timestamps
//
// Calendar style records store times as minutes since 1900-01-01 UTC in a
// 4 byte field, with 0xFFFFFFFF meaning unset. See Min1900ToTime and
// TimeToMin1900. Message style records use 8 byte milliseconds since the
// Unix epoch.
//
// # Character Sets
//
// Device strings are stored in a single byte charset. A Converter translates
// them to and from UTF-8; a nil Converter leaves strings untouched.
package codec
