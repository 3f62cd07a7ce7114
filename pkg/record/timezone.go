package record

import (
	"fmt"
	"strings"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// TimeZone field codes
const (
	tzIndex      = 0x01
	tzName       = 0x02
	tzOffset     = 0x03
	tzDST        = 0x04
	tzStartMonth = 0x06
	tzEndMonth   = 0x0b
	tzType       = 0x64
)

// TimeZoneDBName is the time zone database.
const TimeZoneDBName = "Time Zones"

// TimeZone is an entry of the device time zone table.
type TimeZone struct {
	Base
	noHeader

	Name  string `json:"name,omitempty"`
	Index int32  `json:"index"`

	// UTCOffset is in minutes, negative west of UTC.
	UTCOffset int32 `json:"utc_offset"`

	UseDST     bool   `json:"use_dst"`
	DSTOffset  uint32 `json:"dst_offset"`
	StartMonth uint32 `json:"start_month"`
	EndMonth   uint32 `json:"end_month"`
	Type       uint8  `json:"type"`
}

var timeZoneLinks = []fieldLink[TimeZone]{
	{typ: tzName, name: "Name", str: func(z *TimeZone) *string { return &z.Name }, iconv: true},
}

func init() {
	register(TimeZoneDBName, func() Record { return NewTimeZone() })
}

// NewTimeZone returns an empty time zone.
func NewTimeZone() *TimeZone {
	z := &TimeZone{}
	z.Clear()
	return z
}

// NewTimeZoneHM returns a time zone hours and minutes off UTC. The sign of
// minutes is ignored: NewTimeZoneHM(-3, 30) is 3.5 hours west.
func NewTimeZoneHM(hours, minutes int) *TimeZone {
	if minutes < 0 {
		minutes = -minutes
	}
	if hours < 0 {
		minutes = -minutes
	}
	z := NewTimeZone()
	z.UTCOffset = int32(hours*60 + minutes)
	return z
}

// DBName implements Record.
func (z *TimeZone) DBName() string { return TimeZoneDBName }

// Clear implements Record.
func (z *TimeZone) Clear() {
	*z = TimeZone{
		StartMonth: ^uint32(0),
		EndMonth:   ^uint32(0),
		Type:       1,
	}
	z.reset(2)
}

// ParseFields implements Record.
func (z *TimeZone) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		return z.parseField(f, conv)
	})
}

func (z *TimeZone) parseField(f codec.Field, conv codec.Converter) error {
	if f.Type == tzType {
		if f.Data[0] != 1 {
			return protocolErrorf("time zone", f.Type, "zone type %d is not valid", f.Data[0])
		}
		z.Type = f.Data[0]
		return nil
	}

	if parseLinked(timeZoneLinks, z, f, conv) {
		return nil
	}

	switch f.Type {
	case tzIndex:
		if v, err := f.Uint32(); err == nil {
			z.Index = int32(v)
			return nil
		}
	case tzOffset:
		if v, err := f.Uint16(); err == nil {
			z.UTCOffset = int32(int16(v))
			return nil
		}
	case tzDST:
		if v, err := f.Uint32(); err == nil {
			z.DSTOffset = v
			z.UseDST = v != 0
			return nil
		}
	case tzStartMonth:
		if v, err := f.Uint32(); err == nil {
			z.StartMonth = v
			return nil
		}
	case tzEndMonth:
		if v, err := f.Uint32(); err == nil {
			z.EndMonth = v
			return nil
		}
	}

	z.Unknowns.Add(f)
	return nil
}

// Validate implements Record.
func (z *TimeZone) Validate() error {
	if z.Name == "" {
		return validationErrorf("time zone", "name is required")
	}
	if z.UTCOffset < -24*60 || z.UTCOffset > 24*60 {
		return validationErrorf("time zone", "utc offset %d out of range", z.UTCOffset)
	}
	return nil
}

// BuildFields implements Record.
func (z *TimeZone) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint32(tzIndex, uint32(z.Index))
	buildLinked(timeZoneLinks, z, b)
	b.Uint16(tzOffset, uint16(int16(z.UTCOffset)))
	if z.UseDST {
		b.Uint32(tzDST, z.DSTOffset)
		b.Uint32(tzStartMonth, z.StartMonth)
		b.Uint32(tzEndMonth, z.EndMonth)
	}
	b.Uint8(tzType, 1)
	b.Unknowns(z.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// IsWest reports whether the zone is west of UTC.
func (z *TimeZone) IsWest() bool { return z.UTCOffset < 0 }

// Split returns the offset as hours, negative west of UTC, and
// non-negative minutes.
func (z *TimeZone) Split() (hours, minutes int) {
	hours = int(z.UTCOffset) / 60
	minutes = int(z.UTCOffset) % 60
	if minutes < 0 {
		minutes = -minutes
	}
	return hours, minutes
}

// SplitAbsolute returns the absolute hours and minutes of the offset and
// whether it is west of UTC.
func (z *TimeZone) SplitAbsolute() (west bool, hours, minutes uint) {
	h, m := z.Split()
	if h < 0 {
		h = -h
	}
	return z.IsWest(), uint(h), uint(m)
}

// Tz returns a POSIX TZ string for the zone using prefix for the zone
// abbreviations, e.g. "E" gives "EST5:00:00EDT4:00:00,M3.2.0,M11.1.0".
// The device does not record which Sunday DST changes on; the second
// Sunday of the start month and the first of the end month are assumed.
func (z *TimeZone) Tz(prefix string) string {
	var sb strings.Builder
	h, m := z.Split()
	fmt.Fprintf(&sb, "%sST%d:%02d:00", prefix, -h, m)

	if z.UseDST {
		dst := TimeZone{UTCOffset: z.UTCOffset + int32(z.DSTOffset)}
		h, m = dst.Split()
		fmt.Fprintf(&sb, "%sDT%d:%02d:00", prefix, -h, m)
		fmt.Fprintf(&sb, ",M%d.2.0,M%d.1.0", z.StartMonth+1, z.EndMonth+1)
	}
	return sb.String()
}

// Description implements Record.
func (z *TimeZone) Description() string {
	west, h, m := z.SplitAbsolute()
	sign := "+"
	if west {
		sign = "-"
	}
	return fmt.Sprintf("%s (%s%d.%02d)", z.Name, sign, h, m)
}

// Less orders time zones by name.
func (z *TimeZone) Less(o *TimeZone) bool {
	return z.Name < o.Name
}
