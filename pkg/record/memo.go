package record

import (
	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Memo field codes
const (
	memoTitle    = 0x01
	memoBody     = 0x02
	memoType     = 0x03
	memoCategory = 0x04
)

// MemoDBName is the memo pad database.
const MemoDBName = "Memos"

// Memo is a memo pad note.
type Memo struct {
	Base
	noHeader

	Title      string       `json:"title,omitempty"`
	Body       string       `json:"body,omitempty"`
	Categories CategoryList `json:"categories,omitempty"`
}

var memoLinks = []fieldLink[Memo]{
	{typ: memoTitle, name: "Title", str: func(m *Memo) *string { return &m.Title }, iconv: true},
	{typ: memoBody, name: "Body", str: func(m *Memo) *string { return &m.Body }, iconv: true},
}

func init() {
	register(MemoDBName, func() Record { return NewMemo() })
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	m := &Memo{}
	m.Clear()
	return m
}

// DBName implements Record.
func (m *Memo) DBName() string { return MemoDBName }

// Clear implements Record.
func (m *Memo) Clear() {
	*m = Memo{}
	m.reset(0)
}

// ParseFields implements Record.
func (m *Memo) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		switch f.Type {
		case memoType:
			if f.Data[0] != 'm' {
				return protocolErrorf("memo", f.Type, "type is %q, want 'm'", f.Data[0])
			}
			return nil
		case memoCategory:
			m.Categories = ParseCategories(codec.DecodeString(conv, f.Data))
			return nil
		}
		if !parseLinked(memoLinks, m, f, conv) {
			m.Unknowns.Add(f)
		}
		return nil
	})
}

// Validate implements Record.
func (m *Memo) Validate() error {
	if m.Title == "" && m.Body == "" {
		return validationErrorf("memo", "title or body is required")
	}
	return nil
}

// BuildFields implements Record.
func (m *Memo) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint8(memoType, 'm')
	buildLinked(memoLinks, m, b)
	if len(m.Categories) > 0 {
		b.String(memoCategory, m.Categories.String())
	}
	b.Unknowns(m.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (m *Memo) Description() string { return m.Title }

// Less orders memos by title.
func (m *Memo) Less(o *Memo) bool { return m.Title < o.Title }
