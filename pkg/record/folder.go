package record

import (
	"fmt"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Folder field codes
const (
	folderNumber = 0x0a
	folderLevel  = 0x0b
	folderName   = 0x0c
	folderType   = 0x0f
)

// FolderDBName is the mail folder database.
const FolderDBName = "Folders"

// FolderType is the role of a mail folder.
type FolderType uint8

const (
	FolderSubtree FolderType = 0x00
	FolderDeleted FolderType = 0x01
	FolderInbox   FolderType = 0x02
	FolderOutbox  FolderType = 0x03
	FolderSent    FolderType = 0x04
	FolderOther   FolderType = 0x05
	FolderDraft   FolderType = 0x0a
)

var folderTypeNames = map[FolderType]string{
	FolderSubtree: "Subtree",
	FolderDeleted: "Deleted",
	FolderInbox:   "Inbox",
	FolderOutbox:  "Outbox",
	FolderSent:    "Sent",
	FolderOther:   "Other",
	FolderDraft:   "Draft",
}

func (t FolderType) String() string {
	if s, ok := folderTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (0x%02x)", uint8(t))
}

// Folder is a mail folder.
type Folder struct {
	Base
	noHeader

	Name   string     `json:"name,omitempty"`
	Number int8       `json:"number"`
	Level  uint8      `json:"level"`
	Type   FolderType `json:"type"`
}

var folderLinks = []fieldLink[Folder]{
	{typ: folderName, name: "FolderName", str: func(f *Folder) *string { return &f.Name }},
}

func init() {
	register(FolderDBName, func() Record { return NewFolder() })
}

// NewFolder returns an empty folder.
func NewFolder() *Folder {
	f := &Folder{}
	f.Clear()
	return f
}

// DBName implements Record.
func (fo *Folder) DBName() string { return FolderDBName }

// Clear implements Record.
func (fo *Folder) Clear() {
	*fo = Folder{Type: FolderSubtree}
	fo.reset(0)
}

// ParseFields implements Record.
func (fo *Folder) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		if parseLinked(folderLinks, fo, f, conv) {
			return nil
		}
		switch f.Type {
		case folderType:
			fo.Type = FolderType(f.Data[0])
		case folderNumber:
			fo.Number = int8(f.Data[0])
		case folderLevel:
			fo.Level = f.Data[0]
		default:
			fo.Unknowns.Add(f)
		}
		return nil
	})
}

// Validate implements Record.
func (fo *Folder) Validate() error {
	if fo.Name == "" {
		return validationErrorf("folder", "name is required")
	}
	return nil
}

// BuildFields implements Record.
func (fo *Folder) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint8(folderNumber, uint8(fo.Number))
	b.Uint8(folderLevel, fo.Level)
	buildLinked(folderLinks, fo, b)
	b.Uint8(folderType, uint8(fo.Type))
	b.Unknowns(fo.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (fo *Folder) Description() string {
	return fo.Name
}

// Less orders folders by number.
func (fo *Folder) Less(o *Folder) bool {
	return fo.Number < o.Number
}
