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

// Sms field codes
const (
	smsMetadata = 0x01
	smsAddress  = 0x02
	smsBody     = 0x04
)

// metadata layout
const (
	smsMetaRecv         = 0
	smsMetaFlags        = 1
	smsMetaNew          = 2
	smsMetaStatus       = 5
	smsMetaErrorID      = 9
	smsMetaTimestamp    = 13
	smsMetaSCTimestamp  = 21
	smsMetaDCS          = 29
	smsMetadataSize     = 30
	smsAddressHeaderLen = 4
)

const (
	smsFlagOpened          = 0x01
	smsFlagDeleted         = 0x08
	smsFlagSaved           = 0x10
	smsFlagNewConversation = 0x20

	smsStatusReceived = 0x000007ff
	smsStatusDraft    = 0x7fffffff
)

// SmsDBName is the SMS database.
const SmsDBName = "SMS Messages"

// SmsStatus is the direction or state of a text message.
type SmsStatus uint8

const (
	SmsUnknown SmsStatus = iota
	SmsReceived
	SmsSent
	SmsDraft
)

func (s SmsStatus) String() string {
	switch s {
	case SmsReceived:
		return "Received"
	case SmsSent:
		return "Sent"
	case SmsDraft:
		return "Draft"
	}
	return "Unknown"
}

// DataCoding is the character encoding of an SMS body.
type DataCoding uint8

const (
	SevenBit DataCoding = iota
	EightBit
	UCS2
)

// Sms is a text message.
type Sms struct {
	Base
	noHeader

	Status          SmsStatus  `json:"status"`
	IsNew           bool       `json:"is_new"`
	NewConversation bool       `json:"new_conversation"`
	Saved           bool       `json:"saved"`
	Deleted         bool       `json:"deleted"`
	Opened          bool       `json:"opened"`
	Timestamp       time.Time  `json:"timestamp"`
	ServiceCenter   time.Time  `json:"service_center_timestamp"`
	Coding          DataCoding `json:"data_coding"`
	ErrorID         uint32     `json:"error_id,omitempty"`
	Addresses       []string   `json:"addresses,omitempty"`
	Body            string     `json:"body,omitempty"`

	// raw metadata, unknown bytes survive a rebuild
	meta []byte
}

func init() {
	register(SmsDBName, func() Record { return NewSms() })
}

// NewSms returns an empty text message.
func NewSms() *Sms {
	s := &Sms{}
	s.Clear()
	return s
}

// DBName implements Record.
func (s *Sms) DBName() string { return SmsDBName }

// Clear implements Record.
func (s *Sms) Clear() {
	*s = Sms{}
	s.reset(5)
}

// ParseFields implements Record.
func (s *Sms) ParseFields(data []byte, off int, _ codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		s.parseField(f)
		return nil
	})
}

func (s *Sms) parseField(f codec.Field) {
	switch f.Type {
	case smsMetadata:
		if len(f.Data) >= smsMetadataSize {
			s.parseMetadata(f.Data)
			return
		}
	case smsAddress:
		if len(f.Data) > smsAddressHeaderLen {
			addr := f.Data[smsAddressHeaderLen:]
			if i := bytes.IndexByte(addr, 0); i >= 0 {
				addr = addr[:i]
			}
			s.Addresses = append(s.Addresses, string(addr))
			return
		}
	case smsBody:
		s.Body = string(f.Data)
		if s.Coding == UCS2 {
			if body, err := codec.UCS2ToUTF8(f.Data); err == nil {
				s.Body = body
			}
		}
		return
	}
	s.Unknowns.Add(f)
}

func (s *Sms) parseMetadata(m []byte) {
	s.meta = append([]byte(nil), m...)

	flags := m[smsMetaFlags]
	s.NewConversation = flags&smsFlagNewConversation != 0
	s.Saved = flags&smsFlagSaved != 0
	s.Deleted = flags&smsFlagDeleted != 0
	s.Opened = flags&smsFlagOpened != 0
	s.IsNew = m[smsMetaNew] != 0

	switch binary.BigEndian.Uint32(m[smsMetaStatus:]) {
	case smsStatusReceived:
		s.Status = SmsReceived
	case smsStatusDraft:
		s.Status = SmsDraft
	default:
		s.Status = SmsSent
	}

	s.ErrorID = binary.BigEndian.Uint32(m[smsMetaErrorID:])
	s.Timestamp = codec.MillisToTime(binary.BigEndian.Uint64(m[smsMetaTimestamp:]))
	s.ServiceCenter = codec.MillisToTime(binary.BigEndian.Uint64(m[smsMetaSCTimestamp:]))

	switch m[smsMetaDCS] {
	case 0x01:
		s.Coding = EightBit
	case 0x02:
		s.Coding = UCS2
	default:
		s.Coding = SevenBit
	}
}

func (s *Sms) buildMetadata() []byte {
	m := make([]byte, smsMetadataSize)
	copy(m, s.meta)

	m[smsMetaRecv] = 0
	if s.Status == SmsReceived {
		m[smsMetaRecv] = 1
	}

	flags := m[smsMetaFlags] &^ (smsFlagNewConversation | smsFlagSaved | smsFlagDeleted | smsFlagOpened)
	for _, f := range []struct {
		set  bool
		mask byte
	}{
		{s.NewConversation, smsFlagNewConversation},
		{s.Saved, smsFlagSaved},
		{s.Deleted, smsFlagDeleted},
		{s.Opened, smsFlagOpened},
	} {
		if f.set {
			flags |= f.mask
		}
	}
	m[smsMetaFlags] = flags

	m[smsMetaNew] = 0
	if s.IsNew {
		m[smsMetaNew] = 1
	}

	status := binary.BigEndian.Uint32(m[smsMetaStatus:])
	switch s.Status {
	case SmsReceived:
		status = smsStatusReceived
	case SmsDraft:
		status = smsStatusDraft
	default:
		if status == smsStatusReceived || status == smsStatusDraft {
			status = 0
		}
	}
	binary.BigEndian.PutUint32(m[smsMetaStatus:], status)
	binary.BigEndian.PutUint32(m[smsMetaErrorID:], s.ErrorID)
	binary.BigEndian.PutUint64(m[smsMetaTimestamp:], codec.TimeToMillis(s.Timestamp))
	binary.BigEndian.PutUint64(m[smsMetaSCTimestamp:], codec.TimeToMillis(s.ServiceCenter))
	m[smsMetaDCS] = byte(s.Coding)
	return m
}

// Validate implements Record.
func (s *Sms) Validate() error {
	if s.Status == SmsUnknown {
		return validationErrorf("sms", "message status is required")
	}
	if s.Coding > UCS2 {
		return validationErrorf("sms", "data coding %d out of range", s.Coding)
	}
	return nil
}

// BuildFields implements Record.
func (s *Sms) BuildFields(buf *buffer.Buffer, off int, _ codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off)
	b.Raw(smsMetadata, s.buildMetadata())

	for _, addr := range s.Addresses {
		p := make([]byte, smsAddressHeaderLen, smsAddressHeaderLen+len(addr)+1)
		p = append(p, addr...)
		b.Raw(smsAddress, append(p, 0))
	}

	body := []byte(s.Body)
	if s.Coding == UCS2 {
		enc, err := codec.UTF8ToUCS2(s.Body)
		if err != nil {
			return off, fmt.Errorf("sms body: %w", err)
		}
		body = enc
	}
	if len(body) > 0 {
		b.Raw(smsBody, body)
	}
	b.Unknowns(s.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (s *Sms) Description() string {
	return fmt.Sprintf("%s %s", s.Status, strings.Join(s.Addresses, ", "))
}

// Less orders messages by time.
func (s *Sms) Less(o *Sms) bool {
	return s.Timestamp.Before(o.Timestamp)
}
