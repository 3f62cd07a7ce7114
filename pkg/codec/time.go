package codec

import "time"

// Min1900Unset is the wire value for a timestamp that was never set.
const Min1900Unset uint32 = 0xFFFFFFFF

// min1900Offset is the number of minutes between 1900-01-01 and the Unix
// epoch: 70 years with 17 leap days.
const min1900Offset = (70*365 + 17) * 24 * 60

// Min1900ToTime converts minutes since 1900 to a UTC time. The unset
// sentinel converts to the zero time.
func Min1900ToTime(m uint32) time.Time {
	if m == Min1900Unset {
		return time.Time{}
	}
	minutes := int64(int32(m)) - min1900Offset
	return time.Unix(minutes*60, 0).UTC()
}

// TimeToMin1900 converts t to minutes since 1900, truncating seconds. The
// zero time converts to the unset sentinel.
func TimeToMin1900(t time.Time) uint32 {
	if t.IsZero() {
		return Min1900Unset
	}
	minutes := t.Unix()/60 + min1900Offset
	return uint32(int32(minutes))
}

// MillisToTime converts milliseconds since the Unix epoch to a UTC time.
// Zero converts to the zero time.
func MillisToTime(ms uint64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

// TimeToMillis converts t to milliseconds since the Unix epoch. The zero
// time converts to zero.
func TimeToMillis(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.UnixMilli())
}
