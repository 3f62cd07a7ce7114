package record

import (
	"encoding/binary"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Calendar field codes
const (
	calApptType         = 0x01
	calSubject          = 0x02
	calNotes            = 0x03
	calLocation         = 0x04
	calNotificationTime = 0x05
	calStartTime        = 0x06
	calEndTime          = 0x07
	calRecurrenceData   = 0x0c
	calFreeBusy         = 0x1c
	calTimeZoneCode     = 0x1e // only seen on recurring entries
	calClass            = 0x28
	calAllDayEvent      = 0xff
)

// Calendar database names
const (
	CalendarDBName    = "Calendar"
	CalendarAllDBName = "Calendar - All"
)

// FreeBusy is how an appointment shows in free/busy lookups.
type FreeBusy uint8

const (
	Free FreeBusy = iota
	Tentative
	Busy
	OutOfOffice
)

// ClassFlag is the visibility of an appointment.
type ClassFlag uint8

const (
	ClassPublic ClassFlag = iota
	ClassConfidential
	ClassPrivate
)

// Calendar is an appointment.
type Calendar struct {
	Base
	noHeader
	Recurrence

	AllDayEvent      bool      `json:"all_day_event"`
	Subject          string    `json:"subject,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	Location         string    `json:"location,omitempty"`
	NotificationTime time.Time `json:"notification_time"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	FreeBusy         FreeBusy  `json:"free_busy"`
	Class            ClassFlag `json:"class"`

	TimeZoneCode  uint16 `json:"time_zone_code,omitempty"`
	TimeZoneValid bool   `json:"time_zone_valid"`
}

var calendarLinks = []fieldLink[Calendar]{
	{typ: calSubject, name: "Subject", str: func(c *Calendar) *string { return &c.Subject }, iconv: true},
	{typ: calNotes, name: "Notes", str: func(c *Calendar) *string { return &c.Notes }, iconv: true},
	{typ: calLocation, name: "Location", str: func(c *Calendar) *string { return &c.Location }, iconv: true},
	{typ: calNotificationTime, name: "Notification Time", time: func(c *Calendar) *time.Time { return &c.NotificationTime }},
	{typ: calStartTime, name: "Start Time", time: func(c *Calendar) *time.Time { return &c.StartTime }},
	{typ: calEndTime, name: "End Time", time: func(c *Calendar) *time.Time { return &c.EndTime }},
}

func init() {
	register(CalendarDBName, func() Record { return NewCalendar() })
	register(CalendarAllDBName, func() Record { return NewCalendarAll() })
}

// NewCalendar returns an empty appointment.
func NewCalendar() *Calendar {
	c := &Calendar{}
	c.Clear()
	return c
}

// DBName implements Record.
func (c *Calendar) DBName() string { return CalendarDBName }

// Clear implements Record.
func (c *Calendar) Clear() {
	*c = Calendar{}
	c.clearRecurrence()
	c.reset(5)
}

// ParseFields implements Record.
func (c *Calendar) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		return c.parseField(f, conv)
	})
}

func (c *Calendar) parseField(f codec.Field, conv codec.Converter) error {
	if parseLinked(calendarLinks, c, f, conv) {
		return nil
	}

	switch f.Type {
	case calApptType:
		switch f.Data[0] {
		case 'a':
			c.Recurring = false
		case '*':
			c.Recurring = true
		default:
			return protocolErrorf("calendar", f.Type, "unknown appointment type %q", f.Data[0])
		}
		return nil
	case calAllDayEvent:
		c.AllDayEvent = f.Data[0] == 1
		return nil
	case calRecurrenceData:
		return c.parseRecurrence("calendar", f.Type, f.Data)
	case calTimeZoneCode:
		if len(f.Data) != 2 {
			return protocolErrorf("calendar", f.Type, "time zone code has %d bytes, want 2", len(f.Data))
		}
		v, _ := f.Uint16()
		c.TimeZoneCode = v
		c.TimeZoneValid = true
		return nil
	case calFreeBusy:
		if FreeBusy(f.Data[0]) > OutOfOffice {
			return protocolErrorf("calendar", f.Type, "free/busy flag %d out of range", f.Data[0])
		}
		c.FreeBusy = FreeBusy(f.Data[0])
		return nil
	case calClass:
		if ClassFlag(f.Data[0]) > ClassPrivate {
			return protocolErrorf("calendar", f.Type, "class flag %d out of range", f.Data[0])
		}
		c.Class = ClassFlag(f.Data[0])
		return nil
	}

	c.Unknowns.Add(f)
	return nil
}

// Validate implements Record.
func (c *Calendar) Validate() error {
	if c.StartTime.IsZero() {
		return validationErrorf("calendar", "start time is required")
	}
	if !c.EndTime.IsZero() && c.EndTime.Before(c.StartTime) {
		return validationErrorf("calendar", "end time is before start time")
	}
	return c.validateRecurrence("calendar")
}

// BuildFields implements Record.
func (c *Calendar) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)

	apptType := uint8('a')
	if c.Recurring {
		apptType = '*'
	}
	b.Uint8(calApptType, apptType)
	if c.AllDayEvent {
		b.Uint8(calAllDayEvent, 1)
	}

	buildLinked(calendarLinks, c, b)

	if c.Recurring {
		b.Raw(calRecurrenceData, c.recurrenceData(c.StartTime))
	}
	if c.TimeZoneValid {
		b.Uint16(calTimeZoneCode, c.TimeZoneCode)
	}
	b.Uint8(calFreeBusy, uint8(c.FreeBusy))
	b.Uint8(calClass, uint8(c.Class))
	b.Unknowns(c.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (c *Calendar) Description() string { return c.Subject }

// Less orders appointments by start time, then subject.
func (c *Calendar) Less(o *Calendar) bool {
	if !c.StartTime.Equal(o.StartTime) {
		return c.StartTime.Before(o.StartTime)
	}
	return c.Subject < o.Subject
}

// CalendarAll is an appointment from the combined calendar database, which
// holds the entries of every mail account. The body is a calendar body
// preceded by a header naming the account: [size u16][account].
type CalendarAll struct {
	Calendar

	MailAccount string `json:"mail_account,omitempty"`
}

const calAllHeaderSize = 2

// NewCalendarAll returns an empty combined calendar appointment.
func NewCalendarAll() *CalendarAll {
	c := &CalendarAll{}
	c.Clear()
	return c
}

// DBName implements Record.
func (c *CalendarAll) DBName() string { return CalendarAllDBName }

// Clear implements Record.
func (c *CalendarAll) Clear() {
	c.Calendar.Clear()
	c.MailAccount = ""
}

// ParseHeader implements Record. A header cut short ends the body.
func (c *CalendarAll) ParseHeader(data []byte, off int) (int, error) {
	if len(data)-off < calAllHeaderSize {
		return len(data), nil
	}
	n := int(binary.BigEndian.Uint16(data[off:]))
	start := off + calAllHeaderSize
	if n > len(data)-start {
		return len(data), nil
	}
	c.MailAccount = string(data[start : start+n])
	return start + n, nil
}

// Validate implements Record.
func (c *CalendarAll) Validate() error {
	if len(c.MailAccount) > 0xffff {
		return validationErrorf("calendar", "mail account of %d bytes is too long", len(c.MailAccount))
	}
	return c.Calendar.Validate()
}

// BuildHeader implements Record.
func (c *CalendarAll) BuildHeader(buf *buffer.Buffer, off int) (int, error) {
	var size [calAllHeaderSize]byte
	binary.BigEndian.PutUint16(size[:], uint16(len(c.MailAccount)))

	b := codec.NewBuilder(buf, off)
	b.RawBytes(size[:])
	b.RawBytes([]byte(c.MailAccount))
	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}
