package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallLog_Parse(t *testing.T) {
	data := cat(
		field(callLogType, 'p'),
		field(callLogDirection, byte(DirectionMissed)),
		field(callLogDuration, 0, 0, 0, 42),
		field(callLogTimestamp, 0, 0, 0x01, 0x2e, 0x50, 0x5c, 0x98, 0x00),
		field(callLogStatus, byte(StatusBusy)),
		field(callLogPhoneType, 9),
		strField(callLogPhoneNumber, "5551234"),
		field(callLogPhoneInfo, byte(PhoneInfoPrivate)),
		strField(callLogContactName, "Bob"),
	)

	c := NewCallLog()
	require.NoError(t, Parse(c, data, nil))
	assert.Equal(t, DirectionMissed, c.Direction)
	assert.Equal(t, uint32(42), c.Duration)
	assert.Equal(t, int64(0x012e505c9800), c.Timestamp.UnixMilli())
	assert.Equal(t, StatusBusy, c.Status)
	assert.Equal(t, PhoneTypeUnknown, c.PhoneType)
	assert.Equal(t, "5551234", c.PhoneNumber)
	assert.Equal(t, PhoneInfoPrivate, c.PhoneInfo)
	assert.Equal(t, "Bob", c.ContactName)
	assert.Equal(t, "Bob (42s, Busy)", c.Description())
}

func TestCallLog_RoundTrip(t *testing.T) {
	c := NewCallLog()
	c.Direction = DirectionSent
	c.Duration = 300
	c.Timestamp = time.Date(2010, 3, 4, 5, 6, 7, 0, time.UTC)
	c.Status = StatusNetError
	c.PhoneType = PhoneTypeMobile
	c.PhoneNumber = "+15550100"
	c.PhoneInfo = PhoneInfoKnown

	parsed := NewCallLog()
	data := rebuild(t, c, parsed)
	assert.Equal(t, field(callLogType, 'p'), data[:4])
	assert.Empty(t, parsed.ContactName)
	assert.True(t, c.Timestamp.Equal(parsed.Timestamp))
	parsed.Timestamp = c.Timestamp
	assert.Equal(t, c, parsed)
}

func TestCallLog_ShortNumericFieldsKept(t *testing.T) {
	c := NewCallLog()
	require.NoError(t, Parse(c, field(callLogDuration, 1, 2), nil))
	assert.Zero(t, c.Duration)
	require.Len(t, c.Unknowns, 1)
}

func TestCallLog_EnumStrings(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "Unknown", CallStatus(7).String())
	assert.Equal(t, "Known", PhoneInfoKnown.String())
	assert.Equal(t, "Undefined", PhoneInfo(0).String())
}

func TestCallLog_Less(t *testing.T) {
	a := &CallLog{Timestamp: time.Unix(100, 0)}
	b := &CallLog{Timestamp: time.Unix(200, 0)}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
