package record

import (
	"fmt"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// CallLog field codes
const (
	callLogType        = 0x01
	callLogDirection   = 0x02
	callLogDuration    = 0x03
	callLogTimestamp   = 0x04
	callLogStatus      = 0x06
	callLogPhoneType   = 0x0b
	callLogPhoneNumber = 0x0c
	callLogPhoneInfo   = 0x0d
	callLogContactName = 0x1f
)

// CallLogDBName is the phone call log database.
const CallLogDBName = "Phone Call Logs"

// CallDirection says who placed the call.
type CallDirection uint8

const (
	DirectionReceived CallDirection = iota
	DirectionSent
	DirectionMissedVoicemail
	DirectionMissed
)

// CallStatus is the raw call status byte.
type CallStatus uint8

const (
	StatusOK       CallStatus = 0x00
	StatusBusy     CallStatus = 0x01
	StatusNetError CallStatus = 0x09
)

func (s CallStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusBusy:
		return "Busy"
	case StatusNetError:
		return "NetError"
	}
	return "Unknown"
}

// PhoneType is the kind of number that was called.
type PhoneType uint8

const (
	PhoneTypeUndefined PhoneType = iota
	PhoneTypeOffice
	PhoneTypeHome
	PhoneTypeMobile
	PhoneTypeUnknown
)

// PhoneInfo is the raw caller ID state byte.
type PhoneInfo uint8

const (
	PhoneInfoKnown   PhoneInfo = 0x03
	PhoneInfoUnknown PhoneInfo = 0x80
	PhoneInfoPrivate PhoneInfo = 0x40
)

func (p PhoneInfo) String() string {
	switch p {
	case PhoneInfoKnown:
		return "Known"
	case PhoneInfoUnknown:
		return "Unknown"
	case PhoneInfoPrivate:
		return "Private"
	}
	return "Undefined"
}

// CallLog is one entry of the phone call history.
type CallLog struct {
	Base
	noHeader

	PhoneNumber string        `json:"phone_number,omitempty"`
	ContactName string        `json:"contact_name,omitempty"`
	Duration    uint32        `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
	Direction   CallDirection `json:"direction"`
	Status      CallStatus    `json:"status"`
	PhoneType   PhoneType     `json:"phone_type"`
	PhoneInfo   PhoneInfo     `json:"phone_info"`
}

var callLogLinks = []fieldLink[CallLog]{
	{typ: callLogPhoneNumber, name: "PhoneNumber", str: func(c *CallLog) *string { return &c.PhoneNumber }, iconv: true},
	{typ: callLogContactName, name: "ContactName", str: func(c *CallLog) *string { return &c.ContactName }, iconv: true},
}

func init() {
	register(CallLogDBName, func() Record { return NewCallLog() })
}

// NewCallLog returns an empty call log entry.
func NewCallLog() *CallLog {
	c := &CallLog{}
	c.Clear()
	return c
}

// DBName implements Record.
func (c *CallLog) DBName() string { return CallLogDBName }

// Clear implements Record.
func (c *CallLog) Clear() {
	*c = CallLog{}
	c.reset(0)
}

// ParseFields implements Record.
func (c *CallLog) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		return c.parseField(f, conv)
	})
}

func (c *CallLog) parseField(f codec.Field, conv codec.Converter) error {
	if parseLinked(callLogLinks, c, f, conv) {
		return nil
	}

	switch f.Type {
	case callLogType:
		if f.Data[0] != 'p' {
			return protocolErrorf("call log", f.Type, "type is %q, want 'p'", f.Data[0])
		}
		return nil
	case callLogDirection:
		if f.Data[0] > uint8(DirectionMissed) {
			return protocolErrorf("call log", f.Type, "direction %d out of range", f.Data[0])
		}
		c.Direction = CallDirection(f.Data[0])
		return nil
	case callLogStatus:
		c.Status = CallStatus(f.Data[0])
		return nil
	case callLogPhoneType:
		c.PhoneType = PhoneType(f.Data[0])
		if c.PhoneType > PhoneTypeUnknown {
			c.PhoneType = PhoneTypeUnknown
		}
		return nil
	case callLogPhoneInfo:
		c.PhoneInfo = PhoneInfo(f.Data[0])
		return nil
	case callLogDuration:
		if v, err := f.Uint32(); err == nil {
			c.Duration = v
			return nil
		}
	case callLogTimestamp:
		if v, err := f.Uint64(); err == nil {
			c.Timestamp = codec.MillisToTime(v)
			return nil
		}
	}

	c.Unknowns.Add(f)
	return nil
}

// Validate implements Record.
func (c *CallLog) Validate() error {
	if c.Direction > DirectionMissed {
		return validationErrorf("call log", "direction %d out of range", c.Direction)
	}
	return nil
}

// BuildFields implements Record.
func (c *CallLog) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint8(callLogType, 'p')
	b.Uint8(callLogDirection, uint8(c.Direction))
	b.Uint32(callLogDuration, c.Duration)
	b.Uint64(callLogTimestamp, codec.TimeToMillis(c.Timestamp))
	b.Uint8(callLogStatus, uint8(c.Status))
	b.Uint8(callLogPhoneType, uint8(c.PhoneType))
	b.String(callLogPhoneNumber, c.PhoneNumber)
	b.Uint8(callLogPhoneInfo, uint8(c.PhoneInfo))
	if c.ContactName != "" {
		b.String(callLogContactName, c.ContactName)
	}
	b.Unknowns(c.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (c *CallLog) Description() string {
	who := c.ContactName
	if who == "" {
		who = c.PhoneNumber
	}
	return fmt.Sprintf("%s (%ds, %s)", who, c.Duration, c.Status)
}

// Less orders call log entries by time.
func (c *CallLog) Less(o *CallLog) bool {
	return c.Timestamp.Before(o.Timestamp)
}
