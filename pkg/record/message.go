package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Message field codes
const (
	msgTo           = 0x01 // may repeat
	msgCc           = 0x02 // may repeat
	msgBcc          = 0x03 // may repeat
	msgSender       = 0x04
	msgFrom         = 0x05
	msgReplyTo      = 0x06
	msgSubject      = 0x0b
	msgBody         = 0x0c
	msgReplyUnknown = 0x12
	msgAttachment   = 0x16
	msgRecordID     = 0x4b
)

// MessageHeaderSize is the fixed prefix of every message record.
const MessageHeaderSize = 0x74

// header layout
const (
	msgHdrPriority     = 0
	msgHdrInReplyTo    = 4
	msgHdrFlags        = 8
	msgHdrDateReceived = 12
	msgHdrTimeReceived = 14
	msgHdrDateSent     = 16
	msgHdrTimeSent     = 18
)

const (
	priorityMask = 0x003f
	priorityHigh = 0x0008
	priorityLow  = 0x0002

	sensitiveMask         = 0xff80
	sensitiveConfidential = 0x0100
	sensitivePersonal     = 0x0080
	sensitivePrivate      = 0x0040 // seen on the wire as 0x00c0

	// most flag bits are cleared when the state is set
	flagRead         = 0x0800
	flagReply        = 0x0001
	flagSaved        = 0x0002
	flagTruncated    = 0x0020
	flagSavedDeleted = 0x0080
)

// address entries start with this many opaque bytes
const addressPrefixSize = 8

// Database names of the message record kinds.
const (
	MessageDBName      = "Messages"
	PINMessageDBName   = "PIN Messages"
	SavedMessageDBName = "Saved Email Messages"
)

// Priority of a message.
type Priority uint8

const (
	LowPriority Priority = iota
	NormalPriority
	HighPriority
	UnknownPriority
)

func (p Priority) String() string {
	return [...]string{"Low", "Normal", "High", "Unknown"}[p&3]
}

// Sensitivity of a message.
type Sensitivity uint8

const (
	NormalSensitivity Sensitivity = iota
	Personal
	Private
	Confidential
	UnknownSensitivity
)

func (s Sensitivity) String() string {
	switch s {
	case NormalSensitivity:
		return "Normal"
	case Personal:
		return "Personal"
	case Private:
		return "Private"
	case Confidential:
		return "Confidential"
	}
	return "Unknown"
}

// EmailAddress is a display name and mail address pair.
type EmailAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`

	prefix [addressPrefixSize]byte
}

func (a EmailAddress) String() string {
	if a.Name == "" {
		return a.Email
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Email)
}

// EmailList is a list of addresses.
type EmailList []EmailAddress

func (l EmailList) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// MessageBase holds what e-mail, PIN and saved messages have in common:
// a fixed 0x74 byte header followed by tagged fields.
type MessageBase struct {
	Base

	From    EmailList `json:"from,omitempty"`
	To      EmailList `json:"to,omitempty"`
	Cc      EmailList `json:"cc,omitempty"`
	Bcc     EmailList `json:"bcc,omitempty"`
	Sender  EmailList `json:"sender,omitempty"`
	ReplyTo EmailList `json:"reply_to,omitempty"`

	Subject    string `json:"subject,omitempty"`
	Body       string `json:"body,omitempty"`
	Attachment []byte `json:"attachment,omitempty"`

	MessageRecordID uint32    `json:"message_record_id,omitempty"`
	InReplyTo       uint32    `json:"in_reply_to,omitempty"`
	DateSent        time.Time `json:"date_sent"`
	DateReceived    time.Time `json:"date_received"`

	Truncated    bool        `json:"truncated"`
	Read         bool        `json:"read"`
	Reply        bool        `json:"reply"`
	Saved        bool        `json:"saved"`
	SavedDeleted bool        `json:"saved_deleted"`
	Priority     Priority    `json:"priority"`
	Sensitivity  Sensitivity `json:"sensitivity"`

	header       []byte
	replyUnknown []byte
}

func (m *MessageBase) clear(recType uint8) {
	*m = MessageBase{
		Priority:    NormalPriority,
		Sensitivity: NormalSensitivity,
	}
	m.reset(recType)
}

func (m *MessageBase) addressList(typ uint8) *EmailList {
	switch typ {
	case msgTo:
		return &m.To
	case msgCc:
		return &m.Cc
	case msgBcc:
		return &m.Bcc
	case msgSender:
		return &m.Sender
	case msgFrom:
		return &m.From
	case msgReplyTo:
		return &m.ReplyTo
	}
	return nil
}

// ParseHeader implements Record.
func (m *MessageBase) ParseHeader(data []byte, off int) (int, error) {
	if len(data)-off < MessageHeaderSize {
		return off, &ProtocolError{
			Record: "message",
			Msg:    fmt.Sprintf("header needs %d bytes, have %d", MessageHeaderSize, len(data)-off),
		}
	}

	h := data[off : off+MessageHeaderSize]
	m.header = append([]byte(nil), h...)
	m.Priority, m.Sensitivity = decodePriority(binary.BigEndian.Uint16(h[msgHdrPriority:]))
	m.InReplyTo = binary.BigEndian.Uint32(h[msgHdrInReplyTo:])

	flags := binary.BigEndian.Uint32(h[msgHdrFlags:])
	m.Read = flags&flagRead == 0
	m.Reply = flags&flagReply != 0
	m.Truncated = flags&flagTruncated == 0
	m.Saved = flags&flagSaved == 0
	m.SavedDeleted = flags&flagSavedDeleted == 0

	m.DateReceived = packedToTime(binary.BigEndian.Uint16(h[msgHdrDateReceived:]), binary.BigEndian.Uint16(h[msgHdrTimeReceived:]))
	m.DateSent = packedToTime(binary.BigEndian.Uint16(h[msgHdrDateSent:]), binary.BigEndian.Uint16(h[msgHdrTimeSent:]))

	return off + MessageHeaderSize, nil
}

func decodePriority(word uint16) (Priority, Sensitivity) {
	p := NormalPriority
	if word&priorityMask != 0 {
		switch {
		case word&priorityHigh != 0:
			p = HighPriority
		case word&priorityLow != 0:
			p = LowPriority
		default:
			p = UnknownPriority
		}
	}

	s := NormalSensitivity
	if word&sensitiveMask != 0 {
		switch {
		case word&sensitiveConfidential == sensitiveConfidential:
			s = Confidential
		case word&sensitivePrivate == sensitivePrivate:
			s = Private
		case word&sensitivePersonal == sensitivePersonal:
			s = Personal
		default:
			s = UnknownSensitivity
		}
	}
	return p, s
}

func encodePriority(old uint16, p Priority, s Sensitivity) uint16 {
	op, os := decodePriority(old)
	word := old

	if op != p {
		word &^= priorityMask
		switch p {
		case HighPriority:
			word |= priorityHigh
		case LowPriority:
			word |= priorityLow
		case UnknownPriority:
			word |= 0x0001
		}
	}
	if os != s {
		word &^= sensitiveMask | sensitivePrivate
		switch s {
		case Confidential:
			word |= sensitiveConfidential
		case Private:
			word |= sensitivePrivate | sensitivePersonal
		case Personal:
			word |= sensitivePersonal
		case UnknownSensitivity:
			word |= 0x8000
		}
	}
	return word
}

// setFlag sets bit when on, clears it otherwise.
func setFlag(flags uint32, bit uint32, on bool) uint32 {
	if on {
		return flags | bit
	}
	return flags &^ bit
}

// packedToTime decodes a FAT style date and time word pair as UTC.
func packedToTime(date, tod uint16) time.Time {
	if date == 0 && tod == 0 {
		return time.Time{}
	}
	return time.Date(
		int(date>>9)+1980, time.Month((date>>5)&0x0f), int(date&0x1f),
		int(tod>>11), int((tod>>5)&0x3f), int(tod&0x1f)*2,
		0, time.UTC)
}

func timeToPacked(t time.Time) (date, tod uint16) {
	if t.IsZero() {
		return 0, 0
	}
	t = t.UTC()
	date = uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tod = uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tod
}

// BuildHeader implements Record. Header bytes with no known meaning are
// written back as parsed.
func (m *MessageBase) BuildHeader(buf *buffer.Buffer, off int) (int, error) {
	h := make([]byte, MessageHeaderSize)
	copy(h, m.header)

	binary.BigEndian.PutUint16(h[msgHdrPriority:],
		encodePriority(binary.BigEndian.Uint16(h[msgHdrPriority:]), m.Priority, m.Sensitivity))
	binary.BigEndian.PutUint32(h[msgHdrInReplyTo:], m.InReplyTo)

	flags := binary.BigEndian.Uint32(h[msgHdrFlags:])
	flags = setFlag(flags, flagRead, !m.Read)
	flags = setFlag(flags, flagReply, m.Reply)
	flags = setFlag(flags, flagTruncated, !m.Truncated)
	flags = setFlag(flags, flagSaved, !m.Saved)
	flags = setFlag(flags, flagSavedDeleted, !m.SavedDeleted)
	binary.BigEndian.PutUint32(h[msgHdrFlags:], flags)

	for _, d := range []struct {
		t         time.Time
		date, tod int
	}{
		{m.DateReceived, msgHdrDateReceived, msgHdrTimeReceived},
		{m.DateSent, msgHdrDateSent, msgHdrTimeSent},
	} {
		// keep the raw words when they still decode to the same time
		old := packedToTime(binary.BigEndian.Uint16(h[d.date:]), binary.BigEndian.Uint16(h[d.tod:]))
		if old.Equal(d.t) {
			continue
		}
		date, tod := timeToPacked(d.t)
		binary.BigEndian.PutUint16(h[d.date:], date)
		binary.BigEndian.PutUint16(h[d.tod:], tod)
	}

	dst := buf.GetBuffer(off + MessageHeaderSize)
	copy(dst[off:], h)
	if err := buf.ReleaseBuffer(off + MessageHeaderSize); err != nil {
		return off, err
	}
	return off + MessageHeaderSize, nil
}

// ParseFields implements Record.
func (m *MessageBase) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		m.parseField(f, conv)
		return nil
	})
}

func (m *MessageBase) parseField(f codec.Field, conv codec.Converter) {
	if list := m.addressList(f.Type); list != nil {
		if len(f.Data) >= addressPrefixSize {
			if a, ok := parseEmailAddress(f.Data, conv); ok {
				*list = append(*list, a)
			}
			return
		}
	}

	switch f.Type {
	case msgSubject:
		m.Subject = codec.DecodeString(conv, f.Data)
		return
	case msgBody:
		m.Body = codec.DecodeString(conv, f.Data)
		return
	case msgAttachment:
		m.Attachment = append([]byte(nil), f.Data...)
		return
	case msgRecordID:
		if v, err := f.Uint32(); err == nil {
			m.MessageRecordID = v
			return
		}
	case msgReplyUnknown:
		m.replyUnknown = append([]byte(nil), f.Data...)
		return
	}
	m.Unknowns.Add(f)
}

// parseEmailAddress decodes the prefix followed by "name\0email\0". Entries
// with neither part are dropped.
func parseEmailAddress(data []byte, conv codec.Converter) (EmailAddress, bool) {
	var a EmailAddress
	copy(a.prefix[:], data)

	dual := data[addressPrefixSize:]
	name := dual
	var email []byte
	if i := bytes.IndexByte(dual, 0); i >= 0 {
		name = dual[:i]
		email = dual[i+1:]
		if j := bytes.IndexByte(email, 0); j >= 0 {
			email = email[:j]
		}
	}
	if len(name) == 0 && len(email) == 0 {
		return a, false
	}

	a.Name = string(name)
	a.Email = string(email)
	if conv != nil {
		a.Name = conv.FromDevice(a.Name)
		a.Email = conv.FromDevice(a.Email)
	}
	return a, true
}

func (a EmailAddress) bytes(conv codec.Converter) []byte {
	name, email := a.Name, a.Email
	if conv != nil {
		name = conv.ToDevice(name)
		email = conv.ToDevice(email)
	}
	p := make([]byte, 0, addressPrefixSize+len(name)+len(email)+2)
	p = append(p, a.prefix[:]...)
	p = append(p, name...)
	p = append(p, 0)
	p = append(p, email...)
	return append(p, 0)
}

// Validate implements Record.
func (m *MessageBase) Validate() error {
	if len(m.From) == 0 && len(m.To) == 0 {
		return validationErrorf("message", "from or to address is required")
	}
	return nil
}

// BuildFields implements Record.
func (m *MessageBase) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)

	for _, typ := range []uint8{msgTo, msgCc, msgBcc, msgSender, msgFrom, msgReplyTo} {
		for _, a := range *m.addressList(typ) {
			b.Raw(typ, a.bytes(conv))
		}
	}
	if m.Subject != "" {
		b.String(msgSubject, m.Subject)
	}
	if m.Body != "" {
		b.String(msgBody, m.Body)
	}
	if len(m.Attachment) > 0 {
		b.Raw(msgAttachment, m.Attachment)
	}
	if m.replyUnknown != nil {
		b.Raw(msgReplyUnknown, m.replyUnknown)
	}
	if m.MessageRecordID != 0 {
		b.Uint32(msgRecordID, m.MessageRecordID)
	}
	b.Unknowns(m.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// SimpleFromAddress returns the first sender address with spaces removed,
// or "unknown".
func (m *MessageBase) SimpleFromAddress() string {
	if len(m.From) == 0 {
		return "unknown"
	}
	return strings.ReplaceAll(m.From[0].Email, " ", "")
}

// Description implements Record.
func (m *MessageBase) Description() string {
	return fmt.Sprintf("%s: %s", m.SimpleFromAddress(), m.Subject)
}

// latest is the later of the sent and received dates.
func (m *MessageBase) latest() time.Time {
	if m.DateReceived.After(m.DateSent) {
		return m.DateReceived
	}
	return m.DateSent
}

// Less orders messages by their latest date, then subject.
func (m *MessageBase) Less(o *MessageBase) bool {
	a, b := m.latest(), o.latest()
	if !a.Equal(b) {
		return a.Before(b)
	}
	return m.Subject < o.Subject
}

// Message is an e-mail in the inbox or sent folders.
type Message struct{ MessageBase }

// PINMessage is a device to device PIN message.
type PINMessage struct{ MessageBase }

// SavedMessage is an e-mail moved to the saved folder.
type SavedMessage struct{ MessageBase }

func init() {
	register(MessageDBName, func() Record { return NewMessage() })
	register(PINMessageDBName, func() Record { return NewPINMessage() })
	register(SavedMessageDBName, func() Record { return NewSavedMessage() })
}

// NewMessage returns an empty e-mail message.
func NewMessage() *Message {
	m := &Message{}
	m.Clear()
	return m
}

// DBName implements Record.
func (m *Message) DBName() string { return MessageDBName }

// Clear implements Record.
func (m *Message) Clear() { m.clear(0) }

// NewPINMessage returns an empty PIN message.
func NewPINMessage() *PINMessage {
	m := &PINMessage{}
	m.Clear()
	return m
}

// DBName implements Record.
func (m *PINMessage) DBName() string { return PINMessageDBName }

// Clear implements Record.
func (m *PINMessage) Clear() { m.clear(0) }

// NewSavedMessage returns an empty saved message.
func NewSavedMessage() *SavedMessage {
	m := &SavedMessage{}
	m.Clear()
	return m
}

// DBName implements Record.
func (m *SavedMessage) DBName() string { return SavedMessageDBName }

// Clear implements Record.
func (m *SavedMessage) Clear() { m.clear(3) }
