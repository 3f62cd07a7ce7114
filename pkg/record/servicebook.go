package record

import (
	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Service book field codes. Name, description and unique ID each have an
// older and a newer code; the one seen on parse is written back.
const (
	sbOldName     = 0x01
	sbHiddenName  = 0x02
	sbName        = 0x03
	sbOldUniqueID = 0x06
	sbUniqueID    = 0x07
	sbContentID   = 0x08
	sbConfig      = 0x09
	sbDescription = 0x0f
	sbOldDesc     = 0x32
	sbDSID        = 0xa1
	sbBesDomain   = 0xa2
)

// Packed field layouts of the service book config block
const (
	PackedFormat02 = 0x02 // [code u8][size u8][type u8][data]
	PackedFormat10 = 0x10 // [size u8][type u8][data]

	packed02HeaderSize = 3
	packed10HeaderSize = 2
	maxPackedSize      = 0xff
)

// ServiceBookDBName is the service book database.
const ServiceBookDBName = "Service Book"

// PackedField is one entry of a service book config block.
type PackedField struct {
	Code uint8  `json:"code,omitempty"`
	Type uint8  `json:"type"`
	Data []byte `json:"data"`
}

// ServiceBookConfig is the config field of a service book entry: a format
// byte followed by small packed fields. Blocks in a format this package does
// not know are kept whole in Raw.
type ServiceBookConfig struct {
	Format uint8         `json:"format"`
	Fields []PackedField `json:"fields,omitempty"`
	Raw    []byte        `json:"raw,omitempty"`
}

func knownPackedFormat(format uint8) bool {
	return format == PackedFormat02 || format == PackedFormat10
}

func parseServiceBookConfig(data []byte) ServiceBookConfig {
	var c ServiceBookConfig
	if len(data) == 0 {
		return c
	}
	c.Format = data[0]
	rest := data[1:]
	if !knownPackedFormat(c.Format) {
		c.Raw = append([]byte(nil), rest...)
		return c
	}

	for len(rest) > 0 {
		var pf PackedField
		var hdr, size int
		if c.Format == PackedFormat02 {
			if len(rest) < packed02HeaderSize {
				break
			}
			pf.Code, size, pf.Type = rest[0], int(rest[1]), rest[2]
			hdr = packed02HeaderSize
		} else {
			if len(rest) < packed10HeaderSize {
				break
			}
			size, pf.Type = int(rest[0]), rest[1]
			hdr = packed10HeaderSize
		}
		if hdr+size > len(rest) {
			break
		}
		if size > 0 {
			pf.Data = append([]byte(nil), rest[hdr:hdr+size]...)
			c.Fields = append(c.Fields, pf)
		}
		rest = rest[hdr+size:]
	}
	return c
}

func (c ServiceBookConfig) validate() error {
	if !knownPackedFormat(c.Format) {
		return nil
	}
	for _, pf := range c.Fields {
		if len(pf.Data) > maxPackedSize {
			return validationErrorf("service book", "config field 0x%02x: %d bytes exceeds %d",
				pf.Type, len(pf.Data), maxPackedSize)
		}
	}
	return nil
}

func (c ServiceBookConfig) bytes() []byte {
	out := []byte{c.Format}
	if !knownPackedFormat(c.Format) {
		return append(out, c.Raw...)
	}
	for _, pf := range c.Fields {
		if c.Format == PackedFormat02 {
			out = append(out, pf.Code)
		}
		out = append(out, uint8(len(pf.Data)), pf.Type)
		out = append(out, pf.Data...)
	}
	return out
}

// ServiceBook is a service book entry, which configures a device service
// such as an email or browser connection.
type ServiceBook struct {
	Base
	noHeader

	Name        string            `json:"name,omitempty"`
	HiddenName  string            `json:"hidden_name,omitempty"`
	Desc        string            `json:"description,omitempty"`
	DSID        string            `json:"dsid,omitempty"`
	BesDomain   string            `json:"bes_domain,omitempty"`
	UniqueID    string            `json:"unique_id,omitempty"`
	ContentID   string            `json:"content_id,omitempty"`
	Config      ServiceBookConfig `json:"config"`
	HasConfig   bool              `json:"has_config"`

	nameType     uint8
	descType     uint8
	uniqueIDType uint8
}

var serviceBookLinks = []fieldLink[ServiceBook]{
	{typ: sbHiddenName, name: "Hidden Name", str: func(s *ServiceBook) *string { return &s.HiddenName }},
	{typ: sbDSID, name: "DSID", str: func(s *ServiceBook) *string { return &s.DSID }},
	{typ: sbBesDomain, name: "BES Domain", str: func(s *ServiceBook) *string { return &s.BesDomain }},
	{typ: sbContentID, name: "Content ID", str: func(s *ServiceBook) *string { return &s.ContentID }},
}

func init() {
	register(ServiceBookDBName, func() Record { return NewServiceBook() })
}

// NewServiceBook returns an empty service book entry.
func NewServiceBook() *ServiceBook {
	s := &ServiceBook{}
	s.Clear()
	return s
}

// DBName implements Record.
func (s *ServiceBook) DBName() string { return ServiceBookDBName }

// Clear implements Record. New entries use the older field codes.
func (s *ServiceBook) Clear() {
	*s = ServiceBook{
		nameType:     sbOldName,
		descType:     sbOldDesc,
		uniqueIDType: sbOldUniqueID,
	}
	s.reset(0)
}

// ParseFields implements Record.
func (s *ServiceBook) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		switch f.Type {
		case sbOldName, sbName:
			s.Name = codec.ParseString(f.Data)
			s.nameType = f.Type
			return nil
		case sbOldDesc, sbDescription:
			s.Desc = codec.ParseString(f.Data)
			s.descType = f.Type
			return nil
		case sbOldUniqueID, sbUniqueID:
			s.UniqueID = codec.ParseString(f.Data)
			s.uniqueIDType = f.Type
			return nil
		case sbConfig:
			s.Config = parseServiceBookConfig(f.Data)
			s.HasConfig = true
			return nil
		}
		if !parseLinked(serviceBookLinks, s, f, conv) {
			s.Unknowns.Add(f)
		}
		return nil
	})
}

// Validate implements Record.
func (s *ServiceBook) Validate() error {
	if s.Name == "" && s.UniqueID == "" {
		return validationErrorf("service book", "name or unique id is required")
	}
	if s.HasConfig {
		return s.Config.validate()
	}
	return nil
}

// BuildFields implements Record.
func (s *ServiceBook) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	if s.Name != "" {
		b.PlainString(s.nameType, s.Name)
	}
	if s.Desc != "" {
		b.PlainString(s.descType, s.Desc)
	}
	if s.UniqueID != "" {
		b.PlainString(s.uniqueIDType, s.UniqueID)
	}
	buildLinked(serviceBookLinks, s, b)
	if s.HasConfig {
		b.Raw(sbConfig, s.Config.bytes())
	}
	b.Unknowns(s.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (s *ServiceBook) Description() string {
	if s.Name != "" {
		return s.Name
	}
	return s.UniqueID
}
