package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// HandheldAgent field codes. The meaning of a code depends on the record.
const (
	hhaModel3        = 0x03
	hhaBands3        = 0x07
	hhaVersion3      = 0x08
	hhaNetwork3      = 0x0f
	hhaPIN3          = 0x10
	hhaMEID3         = 0x11
	hhaFirmware7     = 0x13
	hhaManufacturer7 = 0x14
	hhaModel7        = 0x15
	hhaPlatform7     = 0x17
)

// Well known HandheldAgent record IDs.
const (
	HandheldMEIDRecordID     uint32 = 0x3000000
	HandheldUnknown1RecordID uint32 = 0x4000000
	HandheldUnknown2RecordID uint32 = 0x5000000
	HandheldUnknown3RecordID uint32 = 0x7000000
)

// HandheldAgentDBName is the device information database.
const HandheldAgentDBName = "Handheld Agent"

// HandheldAgent is a device information record. Which fields a record
// carries depends on its record ID, so the ID must be set before parsing.
type HandheldAgent struct {
	Base
	noHeader

	MEID            string `json:"meid,omitempty"`
	Model           string `json:"model,omitempty"`
	Bands           string `json:"bands,omitempty"`
	PIN             string `json:"pin,omitempty"`
	Version         string `json:"version,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	Network         string `json:"network,omitempty"`
}

var handheldLinksMEID = []fieldLink[HandheldAgent]{
	{typ: hhaModel3, name: "Model", str: func(h *HandheldAgent) *string { return &h.Model }, iconv: true},
	{typ: hhaNetwork3, name: "Network", str: func(h *HandheldAgent) *string { return &h.Network }, iconv: true},
	{typ: hhaBands3, name: "Bands", str: func(h *HandheldAgent) *string { return &h.Bands }, iconv: true},
	{typ: hhaMEID3, name: "MEID/ESN", str: func(h *HandheldAgent) *string { return &h.MEID }, iconv: true},
	{typ: hhaPIN3, name: "PIN", str: func(h *HandheldAgent) *string { return &h.PIN }, iconv: true},
	{typ: hhaVersion3, name: "Version", str: func(h *HandheldAgent) *string { return &h.Version }, iconv: true},
}

var handheldLinksFirmware = []fieldLink[HandheldAgent]{
	{typ: hhaModel7, name: "Model", str: func(h *HandheldAgent) *string { return &h.Model }, iconv: true},
	{typ: hhaManufacturer7, name: "Manufacturer", str: func(h *HandheldAgent) *string { return &h.Manufacturer }, iconv: true},
	{typ: hhaFirmware7, name: "Firmware", str: func(h *HandheldAgent) *string { return &h.Version }, iconv: true},
	{typ: hhaPlatform7, name: "Platform", str: func(h *HandheldAgent) *string { return &h.PlatformVersion }, iconv: true},
}

func init() {
	register(HandheldAgentDBName, func() Record { return NewHandheldAgent() })
}

// NewHandheldAgent returns an empty record.
func NewHandheldAgent() *HandheldAgent {
	h := &HandheldAgent{}
	h.Clear()
	return h
}

// DBName implements Record.
func (h *HandheldAgent) DBName() string { return HandheldAgentDBName }

// Clear implements Record.
func (h *HandheldAgent) Clear() {
	*h = HandheldAgent{}
	h.reset(0)
}

func (h *HandheldAgent) links() []fieldLink[HandheldAgent] {
	switch h.RecordID {
	case HandheldMEIDRecordID:
		return handheldLinksMEID
	case HandheldUnknown3RecordID:
		return handheldLinksFirmware
	}
	return nil
}

// ParseFields implements Record.
func (h *HandheldAgent) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	if h.RecordID == 0 {
		return off, fmt.Errorf("%w: handheld agent record ID must be set before parsing", ErrInvalidState)
	}
	links := h.links()
	return codec.Walk(data, off, func(f codec.Field) error {
		if !parseLinked(links, h, f, conv) {
			h.Unknowns.Add(f)
		}
		return nil
	})
}

// Validate implements Record.
func (h *HandheldAgent) Validate() error {
	if h.RecordID == 0 {
		return validationErrorf("handheld agent", "record ID is required")
	}
	return nil
}

// BuildFields implements Record.
func (h *HandheldAgent) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	buildLinked(h.links(), h, b)
	b.Unknowns(h.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (h *HandheldAgent) Description() string {
	return fmt.Sprintf("Handheld Agent: 0x%x", h.RecordID)
}

// Less orders records by ID.
func (h *HandheldAgent) Less(o *HandheldAgent) bool {
	return h.RecordID < o.RecordID
}

// IsSpecialHandheldID reports whether id is one of the well known record IDs.
func IsSpecialHandheldID(id uint32) bool {
	switch id {
	case HandheldMEIDRecordID, HandheldUnknown1RecordID, HandheldUnknown2RecordID, HandheldUnknown3RecordID:
		return true
	}
	return false
}

func onlyDigits(s, set string) bool {
	for _, c := range s {
		if !strings.ContainsRune(set, c) {
			return false
		}
	}
	return true
}

// IsESNHex reports whether esn is an 8 digit hex ESN.
func IsESNHex(esn string) bool {
	return len(esn) == 8 && onlyDigits(esn, "0123456789ABCDEFabcdef")
}

// IsESNDec reports whether esn is an 11 digit decimal ESN.
func IsESNDec(esn string) bool {
	return len(esn) == 11 && onlyDigits(esn, "0123456789")
}

// ESNDecToHex converts an 11 digit decimal ESN (3 digit manufacturer code,
// 8 digit serial) to 8 hex digits. It returns "" when esn is malformed.
func ESNDecToHex(esn string) string {
	if !IsESNDec(esn) {
		return ""
	}
	mfr, err1 := strconv.ParseUint(esn[:3], 10, 32)
	serial, err2 := strconv.ParseUint(esn[3:], 10, 32)
	if err1 != nil || err2 != nil || mfr > 0xff || serial > 0xffffff {
		return ""
	}
	return fmt.Sprintf("%02x%06x", mfr, serial)
}

// ESNHexToDec converts an 8 hex digit ESN to its 11 digit decimal form. It
// returns "" when esn is malformed.
func ESNHexToDec(esn string) string {
	if !IsESNHex(esn) {
		return ""
	}
	mfr, err1 := strconv.ParseUint(esn[:2], 16, 32)
	serial, err2 := strconv.ParseUint(esn[2:], 16, 32)
	if err1 != nil || err2 != nil {
		return ""
	}
	return fmt.Sprintf("%03d%08d", mfr, serial)
}
