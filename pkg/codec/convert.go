package codec

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is the charset used by devices that do not say otherwise.
const DefaultCharset = "windows-1252"

// Converter translates strings between the device charset and UTF-8.
type Converter interface {
	FromDevice(s string) string
	ToDevice(s string) string
}

// CharsetConverter is a Converter backed by an x/text encoding.
type CharsetConverter struct {
	name string
	enc  encoding.Encoding
}

// NewConverter returns a converter for the named charset. Names follow the
// WHATWG encoding labels, e.g. "windows-1252", "iso-8859-1", "utf-8".
// An empty name selects DefaultCharset.
func NewConverter(charset string) (*CharsetConverter, error) {
	if charset == "" {
		charset = DefaultCharset
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	name, _ := htmlindex.Name(enc)
	return &CharsetConverter{name: name, enc: enc}, nil
}

// Name returns the canonical charset name.
func (c *CharsetConverter) Name() string { return c.name }

// FromDevice converts a device string to UTF-8. Bytes that cannot be
// decoded are returned unchanged.
func (c *CharsetConverter) FromDevice(s string) string {
	out, err := c.enc.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}

// ToDevice converts a UTF-8 string to the device charset. Characters the
// charset cannot represent are replaced.
func (c *CharsetConverter) ToDevice(s string) string {
	out, err := encoding.ReplaceUnsupported(c.enc.NewEncoder()).String(s)
	if err != nil {
		return s
	}
	return out
}

var ucs2 = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// UCS2ToUTF8 decodes big-endian UCS-2 text. A trailing odd byte and
// trailing NUL characters are dropped.
func UCS2ToUTF8(b []byte) (string, error) {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	out, err := ucs2.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding UCS-2: %w", err)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

// UTF8ToUCS2 encodes s as big-endian UCS-2 with no byte order mark.
func UTF8ToUCS2(s string) ([]byte, error) {
	out, err := ucs2.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding UCS-2: %w", err)
	}
	return out, nil
}
