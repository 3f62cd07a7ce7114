package record

import (
	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// ContentStore field codes
const (
	csFilename       = 0x01
	csFolderFlag     = 0x05
	csFileDescriptor = 0x06
	csFileContent    = 0x07 // first occurrence is the size, then data blocks
)

const maxContentBlockSize = 0xfffe

// ContentStoreDBName is the media file database.
const ContentStoreDBName = "Content Store"

// ContentStore is a file or folder in the device media store.
type ContentStore struct {
	Base
	noHeader

	Filename       string `json:"filename,omitempty"`
	Folder         bool   `json:"folder"`
	FileContent    []byte `json:"file_content,omitempty"`
	FileDescriptor []byte `json:"file_descriptor,omitempty"`

	fileSize uint64
	sizeSeen bool
}

func init() {
	register(ContentStoreDBName, func() Record { return NewContentStore() })
}

// NewContentStore returns an empty item.
func NewContentStore() *ContentStore {
	c := &ContentStore{}
	c.Clear()
	return c
}

// DBName implements Record.
func (c *ContentStore) DBName() string { return ContentStoreDBName }

// Clear implements Record.
func (c *ContentStore) Clear() {
	*c = ContentStore{}
	c.reset(0)
}

// DeclaredSize is the file size the device announced, which may differ
// from len(FileContent) for partial transfers.
func (c *ContentStore) DeclaredSize() uint64 { return c.fileSize }

// ParseFields implements Record.
func (c *ContentStore) ParseFields(data []byte, off int, _ codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		switch f.Type {
		case csFilename:
			c.Filename = codec.ParseString(f.Data)
		case csFolderFlag:
			c.Folder = codec.ParseString(f.Data) == "folder"
		case csFileContent:
			if !c.sizeSeen {
				v, err := f.Uint64()
				if err != nil {
					return protocolErrorf("content store", f.Type, "file size: %v", err)
				}
				c.fileSize = v
				c.sizeSeen = true
				return nil
			}
			c.FileContent = append(c.FileContent, f.Data...)
		case csFileDescriptor:
			c.FileDescriptor = append([]byte(nil), f.Data...)
		default:
			c.Unknowns.Add(f)
		}
		return nil
	})
}

// Validate implements Record.
func (c *ContentStore) Validate() error {
	if c.Filename == "" {
		return validationErrorf("content store", "name is required")
	}
	if !c.Folder && len(c.FileContent) == 0 {
		return validationErrorf("content store", "item %q has no data", c.Filename)
	}
	return nil
}

// BuildFields implements Record. File content is split into blocks that fit
// a single field.
func (c *ContentStore) BuildFields(buf *buffer.Buffer, off int, _ codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off)
	b.PlainString(csFilename, c.Filename)

	if c.Folder {
		b.PlainString(csFolderFlag, "folder")
	} else {
		if len(c.FileDescriptor) > 0 {
			b.Raw(csFileDescriptor, c.FileDescriptor)
		}
		b.Uint64(csFileContent, uint64(len(c.FileContent)))
		for foff := 0; foff < len(c.FileContent); foff += maxContentBlockSize {
			end := foff + maxContentBlockSize
			if end > len(c.FileContent) {
				end = len(c.FileContent)
			}
			b.Raw(csFileContent, c.FileContent[foff:end])
		}
	}
	b.Unknowns(c.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (c *ContentStore) Description() string { return c.Filename }

// Less orders items by record ID.
func (c *ContentStore) Less(o *ContentStore) bool {
	return c.RecordID < o.RecordID
}
