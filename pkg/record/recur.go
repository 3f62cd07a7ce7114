package record

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/ssargent/bbsync/pkg/codec"
)

// RecurrenceDataSize is the size of the recurrence rule payload shared by
// calendar and task records.
const RecurrenceDataSize = 19

// recurrence payload layout
const (
	recurType     = 0
	recurInterval = 3
	recurStart    = 5
	recurEnd      = 9
	recurExtra    = 13
)

// RecurringType is the kind of repeat rule.
type RecurringType uint8

const (
	RecurDay         RecurringType = 0x01 // every day
	RecurMonthByDate RecurringType = 0x03 // every month on DayOfMonth
	RecurMonthByDay  RecurringType = 0x04 // every month on DayOfWeek of WeekOfMonth
	RecurYearByDate  RecurringType = 0x05 // every year on DayOfMonth of MonthOfYear
	RecurYearByDay   RecurringType = 0x06 // every year on DayOfWeek of WeekOfMonth of MonthOfYear
	RecurWeek        RecurringType = 0x0c // every week on WeekDays
)

// Week day bits for Recurrence.WeekDays.
const (
	WeekDaySun uint8 = 1 << iota
	WeekDayMon
	WeekDayTue
	WeekDayWed
	WeekDayThu
	WeekDayFri
	WeekDaySat
)

var dayNames = [...]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// Recurrence is a repeat rule. Interval stretches any rule, e.g. an
// interval of 2 on a weekly rule repeats every other week.
type Recurrence struct {
	Recurring        bool          `json:"recurring"`
	Type             RecurringType `json:"recurring_type,omitempty"`
	Interval         uint16        `json:"interval,omitempty"`
	RecurringEndTime time.Time     `json:"recurring_end_time"`
	Perpetual        bool          `json:"perpetual"`

	DayOfWeek   uint16 `json:"day_of_week,omitempty"`   // 0-6
	WeekOfMonth uint16 `json:"week_of_month,omitempty"` // 1-5
	DayOfMonth  uint16 `json:"day_of_month,omitempty"`  // 1-31
	MonthOfYear uint16 `json:"month_of_year,omitempty"` // 1-12
	WeekDays    uint8  `json:"week_days,omitempty"`
}

func (r *Recurrence) clearRecurrence() {
	*r = Recurrence{Type: RecurWeek, Interval: 1}
}

// parseRecurrence decodes a recurrence payload. rec and typ only label
// errors.
func (r *Recurrence) parseRecurrence(rec string, typ uint8, data []byte) error {
	if len(data) < RecurrenceDataSize {
		return protocolErrorf(rec, typ, "recurrence data needs %d bytes, have %d", RecurrenceDataSize, len(data))
	}

	r.Interval = binary.BigEndian.Uint16(data[recurInterval:])
	if r.Interval < 1 {
		r.Interval = 1
	}

	end := binary.BigEndian.Uint32(data[recurEnd:])
	r.Perpetual = end == codec.Min1900Unset
	if !r.Perpetual {
		r.RecurringEndTime = codec.Min1900ToTime(end)
	}

	x := data[recurExtra:]
	switch RecurringType(data[recurType]) {
	case RecurDay:
	case RecurMonthByDate:
		r.DayOfMonth = uint16(x[0])
	case RecurMonthByDay:
		r.DayOfWeek = uint16(x[0])
		r.WeekOfMonth = uint16(x[1])
	case RecurYearByDate:
		r.DayOfMonth = uint16(x[0])
		r.MonthOfYear = uint16(x[2])
	case RecurYearByDay:
		r.DayOfWeek = uint16(x[0])
		r.WeekOfMonth = uint16(x[1])
		r.MonthOfYear = uint16(x[2])
	case RecurWeek:
		r.WeekDays = x[0]
	default:
		return protocolErrorf(rec, typ, "unknown recurrence type 0x%02x", data[recurType])
	}
	r.Type = RecurringType(data[recurType])
	r.Recurring = true
	return nil
}

func (r *Recurrence) validateRecurrence(rec string) error {
	if !r.Recurring {
		return nil
	}
	if r.Interval < 1 {
		return validationErrorf(rec, "recurrence interval must be at least 1")
	}
	if !r.Perpetual && r.RecurringEndTime.IsZero() {
		return validationErrorf(rec, "recurrence needs an end time unless perpetual")
	}

	switch r.Type {
	case RecurDay:
	case RecurMonthByDate, RecurYearByDate:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return validationErrorf(rec, "day of month %d out of range", r.DayOfMonth)
		}
	case RecurMonthByDay, RecurYearByDay:
		if r.DayOfWeek > 6 || r.WeekOfMonth < 1 || r.WeekOfMonth > 5 {
			return validationErrorf(rec, "day %d of week %d out of range", r.DayOfWeek, r.WeekOfMonth)
		}
	case RecurWeek:
		if r.WeekDays == 0 || r.WeekDays&0x80 != 0 {
			return validationErrorf(rec, "week days 0x%02x not valid", r.WeekDays)
		}
	default:
		return validationErrorf(rec, "unknown recurrence type 0x%02x", uint8(r.Type))
	}

	if r.Type == RecurYearByDate || r.Type == RecurYearByDay {
		if r.MonthOfYear < 1 || r.MonthOfYear > 12 {
			return validationErrorf(rec, "month %d out of range", r.MonthOfYear)
		}
	}
	return nil
}

// recurrenceData encodes the rule for a record starting at start.
func (r *Recurrence) recurrenceData(start time.Time) []byte {
	p := make([]byte, RecurrenceDataSize)
	p[recurType] = byte(r.Type)
	binary.BigEndian.PutUint16(p[recurInterval:], r.Interval)
	binary.BigEndian.PutUint32(p[recurStart:], codec.TimeToMin1900(start))
	if r.Perpetual {
		binary.BigEndian.PutUint32(p[recurEnd:], codec.Min1900Unset)
	} else {
		binary.BigEndian.PutUint32(p[recurEnd:], codec.TimeToMin1900(r.RecurringEndTime))
	}

	x := p[recurExtra:]
	switch r.Type {
	case RecurMonthByDate:
		x[0] = byte(r.DayOfMonth)
	case RecurMonthByDay:
		x[0] = byte(r.DayOfWeek)
		x[1] = byte(r.WeekOfMonth)
	case RecurYearByDate:
		x[0] = byte(r.DayOfMonth)
		x[2] = byte(r.MonthOfYear)
	case RecurYearByDay:
		x[0] = byte(r.DayOfWeek)
		x[1] = byte(r.WeekOfMonth)
		x[2] = byte(r.MonthOfYear)
	case RecurWeek:
		x[0] = r.WeekDays
	}
	return p
}

func ordinal(n uint16) string {
	switch {
	case n == 1 || n == 21 || n == 31:
		return fmt.Sprintf("%dst", n)
	case n == 2 || n == 22:
		return fmt.Sprintf("%dnd", n)
	case n == 3 || n == 23:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}

func dayName(d uint16) string {
	if int(d) < len(dayNames) {
		return dayNames[d]
	}
	return "?"
}

func monthName(m uint16) string {
	if m < 1 || m > 12 {
		return "?"
	}
	return time.Month(m).String()[:3]
}

// RecurrenceString describes the rule in words, or "" when not recurring.
func (r *Recurrence) RecurrenceString() string {
	if !r.Recurring {
		return ""
	}

	var s string
	switch r.Type {
	case RecurDay:
		s = "every day"
	case RecurMonthByDate:
		s = "every month on the " + ordinal(r.DayOfMonth)
	case RecurMonthByDay:
		s = fmt.Sprintf("every month on %s of week %d", dayName(r.DayOfWeek), r.WeekOfMonth)
	case RecurYearByDate:
		s = fmt.Sprintf("every year on %s %d", monthName(r.MonthOfYear), r.DayOfMonth)
	case RecurYearByDay:
		s = fmt.Sprintf("every year in %s on %s of week %d", monthName(r.MonthOfYear), dayName(r.DayOfWeek), r.WeekOfMonth)
	case RecurWeek:
		var days []string
		for i, name := range dayNames {
			if r.WeekDays&(1<<i) != 0 {
				days = append(days, name)
			}
		}
		s = "every week on " + strings.Join(days, " ")
	default:
		s = "unknown recurrence"
	}

	if r.Interval > 1 {
		s += fmt.Sprintf(", interval %d", r.Interval)
	}
	if r.Perpetual {
		return s + ", ends never"
	}
	return s + ", ends " + r.RecurringEndTime.Format(time.RFC3339)
}
