package record

import (
	"encoding/binary"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Bookmark field codes
const (
	bookmarkType    = 0x01
	bookmarkName    = 0x04
	bookmarkIcon    = 0x05
	bookmarkStruct1 = 0x11
	bookmarkStruct2 = 0x12
	bookmarkURL     = 0xff
)

// subfield tags inside the 0x11 struct
const (
	bookmarkSubFolder = 0x08
	bookmarkSub81     = 0x81
	bookmarkSub84     = 0x84
	bookmarkSub85     = 0x85
)

// BookmarkDBName is the browser bookmark database.
const BookmarkDBName = "Browser Bookmarks"

// BrowserIdentity is the user agent the browser presents for a bookmark.
type BrowserIdentity uint8

const (
	IdentityAuto BrowserIdentity = iota
	IdentityBlackBerry
	IdentityFireFox
	IdentityInternetExplorer
	IdentityUnknown
)

// DisplayMode is the page layout used for a bookmark.
type DisplayMode uint8

const (
	DisplayAuto DisplayMode = iota
	DisplayColumn
	DisplayPage
	DisplayUnknown
)

// JavaScriptMode controls script support for a bookmark.
type JavaScriptMode uint8

const (
	JavaScriptAuto JavaScriptMode = iota
	JavaScriptEnabled
	JavaScriptDisabled
	JavaScriptUnknown
)

// Bookmark is a browser bookmark.
//
// Most of a bookmark lives in two nested structures (fields 0x11 and 0x12).
// Their raw bytes are kept and written back unchanged as long as the
// decoded members still match them.
type Bookmark struct {
	Base
	noHeader

	Name           string          `json:"name,omitempty"`
	Icon           string          `json:"icon,omitempty"`
	URL            string          `json:"url,omitempty"`
	DisplayMode    DisplayMode     `json:"display_mode"`
	JavaScriptMode JavaScriptMode  `json:"javascript_mode"`
	Identity       BrowserIdentity `json:"browser_identity"`

	struct1 []byte
	struct2 []byte
}

var bookmarkLinks = []fieldLink[Bookmark]{
	{typ: bookmarkName, name: "Name", str: func(b *Bookmark) *string { return &b.Name }, iconv: true},
	{typ: bookmarkURL, name: "URL", str: func(b *Bookmark) *string { return &b.URL }, iconv: true},
	{typ: bookmarkIcon, name: "Icon", str: func(b *Bookmark) *string { return &b.Icon }, iconv: true},
}

func init() {
	register(BookmarkDBName, func() Record { return NewBookmark() })
}

// NewBookmark returns an empty bookmark.
func NewBookmark() *Bookmark {
	b := &Bookmark{}
	b.Clear()
	return b
}

// DBName implements Record.
func (bm *Bookmark) DBName() string { return BookmarkDBName }

// Clear implements Record.
func (bm *Bookmark) Clear() {
	*bm = Bookmark{
		DisplayMode:    DisplayUnknown,
		JavaScriptMode: JavaScriptUnknown,
		Identity:       IdentityUnknown,
	}
	bm.reset(1)
}

// ParseFields implements Record.
func (bm *Bookmark) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		return bm.parseField(f, conv)
	})
}

func (bm *Bookmark) parseField(f codec.Field, conv codec.Converter) error {
	switch f.Type {
	case bookmarkType:
		if f.Data[0] != 'D' {
			return protocolErrorf("bookmark", f.Type, "type is %q, want 'D'", f.Data[0])
		}
		return nil
	case bookmarkStruct1:
		bm.struct1 = append([]byte(nil), f.Data...)
		bm.parseStruct1(f.Data)
		return nil
	case bookmarkStruct2:
		bm.struct2 = append([]byte(nil), f.Data...)
		bm.URL = parseStruct2(f.Data)
		return nil
	}

	if parseLinked(bookmarkLinks, bm, f, conv) {
		return nil
	}
	bm.Unknowns.Add(f)
	return nil
}

// parseStruct1 decodes the nested name/icon structure. The last three
// bytes are the display, script and identity modes.
func (bm *Bookmark) parseStruct1(data []byte) {
	name, icon, display, script, identity := decodeStruct1(data)
	bm.Name = name
	bm.Icon = icon
	bm.DisplayMode = display
	bm.JavaScriptMode = script
	bm.Identity = identity
}

func decodeStruct1(data []byte) (name, icon string, display DisplayMode, script JavaScriptMode, identity BrowserIdentity) {
	display, script, identity = DisplayUnknown, JavaScriptUnknown, IdentityUnknown
	if len(data) < 3 {
		return
	}

	body := data[:len(data)-3]
	for i := 0; i < len(body); {
		tag := body[i]
		i++
		switch tag {
		case bookmarkSub81:
			i += 8
		case bookmarkSub84, bookmarkSub85:
			i += 5
		case bookmarkName, bookmarkIcon, bookmarkSubFolder:
			s, next, ok := readDefinedString(body, i)
			if !ok {
				i = len(body)
				break
			}
			i = next
			switch tag {
			case bookmarkName:
				name = s
			case bookmarkIcon:
				icon = s
			}
		}
	}

	modes := data[len(data)-3:]
	display = DisplayMode(modes[0])
	if display > DisplayUnknown {
		display = DisplayUnknown
	}
	script = JavaScriptMode(modes[1])
	if script > JavaScriptUnknown {
		script = JavaScriptUnknown
	}
	identity = BrowserIdentity(modes[2])
	if identity > IdentityUnknown {
		identity = IdentityUnknown
	}
	return
}

// readDefinedString reads [defined u8][size u16][bytes] at i. Undefined
// entries carry no size or data.
func readDefinedString(body []byte, i int) (string, int, bool) {
	if i >= len(body) {
		return "", i, false
	}
	defined := body[i]
	i++
	if defined != 1 {
		return "", i, true
	}
	if i+2 > len(body) {
		return "", i, false
	}
	size := int(binary.BigEndian.Uint16(body[i:]))
	i += 2
	if i+size > len(body) {
		return "", i, false
	}
	return codec.ParseString(body[i : i+size]), i + size, true
}

func parseStruct2(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	size := int(binary.BigEndian.Uint16(data))
	if 2+size > len(data) {
		size = len(data) - 2
	}
	return codec.ParseString(data[2 : 2+size])
}

func appendDefinedString(p []byte, tag uint8, s string) []byte {
	if s == "" {
		return append(p, tag, 0)
	}
	p = append(p, tag, 1)
	p = binary.BigEndian.AppendUint16(p, uint16(len(s)))
	return append(p, s...)
}

func (bm *Bookmark) buildStruct1() []byte {
	if bm.struct1 != nil {
		name, icon, display, script, identity := decodeStruct1(bm.struct1)
		if name == bm.Name && icon == bm.Icon && display == bm.DisplayMode &&
			script == bm.JavaScriptMode && identity == bm.Identity {
			return bm.struct1
		}
	}

	var p []byte
	p = appendDefinedString(p, bookmarkName, bm.Name)
	p = appendDefinedString(p, bookmarkIcon, bm.Icon)
	return append(p, byte(bm.DisplayMode), byte(bm.JavaScriptMode), byte(bm.Identity))
}

func (bm *Bookmark) buildStruct2() []byte {
	if bm.struct2 != nil && parseStruct2(bm.struct2) == bm.URL {
		return bm.struct2
	}
	p := binary.BigEndian.AppendUint16(nil, uint16(len(bm.URL)))
	return append(p, bm.URL...)
}

// Validate implements Record.
func (bm *Bookmark) Validate() error {
	if bm.URL == "" {
		return validationErrorf("bookmark", "url is required")
	}
	return nil
}

// BuildFields implements Record.
func (bm *Bookmark) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint8(bookmarkType, 'D')
	b.Raw(bookmarkStruct1, bm.buildStruct1())
	b.Raw(bookmarkStruct2, bm.buildStruct2())
	b.Unknowns(bm.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (bm *Bookmark) Description() string {
	if bm.Name != "" {
		return bm.Name
	}
	return bm.URL
}

// Less orders bookmarks by name.
func (bm *Bookmark) Less(o *Bookmark) bool {
	return bm.Name < o.Name
}
