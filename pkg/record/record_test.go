package record

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// field encodes one wire field.
func field(typ uint8, payload ...byte) []byte {
	p := []byte{typ, 0, 0}
	binary.BigEndian.PutUint16(p[1:], uint16(len(payload)))
	return append(p, payload...)
}

// strField encodes a NUL terminated string field.
func strField(typ uint8, s string) []byte {
	return field(typ, append([]byte(s), 0)...)
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// rebuild builds r and parses the result into into.
func rebuild(t *testing.T, r, into Record) []byte {
	t.Helper()
	data, err := Bytes(r, nil)
	require.NoError(t, err)
	require.NoError(t, Parse(into, data, nil))
	return data
}

func TestRegistry(t *testing.T) {
	names := DBNames()
	for _, want := range []string{
		ContactDBName, CallLogDBName, BookmarkDBName, FolderDBName,
		TimeZoneDBName, SmsDBName, MessageDBName, PINMessageDBName,
		SavedMessageDBName, HandheldAgentDBName, ContentStoreDBName,
		CalendarDBName, CalendarAllDBName, TaskDBName, MemoDBName,
		ServiceBookDBName,
	} {
		assert.Contains(t, names, want)

		r, err := New(want)
		require.NoError(t, err)
		assert.Equal(t, want, r.DBName())
	}

	_, err := New("No Such Database")
	assert.True(t, errors.Is(err, ErrUnknownDatabase))
}

func TestDefaultRecTypes(t *testing.T) {
	tests := []struct {
		db   string
		want uint8
	}{
		{ContactDBName, 0},
		{BookmarkDBName, 1},
		{TimeZoneDBName, 2},
		{TaskDBName, 2},
		{SavedMessageDBName, 3},
		{CalendarDBName, 5},
		{CalendarAllDBName, 5},
		{ServiceBookDBName, 0},
		{SmsDBName, 5},
	}
	for _, tt := range tests {
		t.Run(tt.db, func(t *testing.T) {
			r, err := New(tt.db)
			require.NoError(t, err)
			rt, id := r.IDs()
			assert.Equal(t, tt.want, rt)
			assert.Zero(t, id)
		})
	}
}

func TestParse_KeepsIDs(t *testing.T) {
	c := NewContact()
	c.SetIDs(0, 0x1234)
	c.FirstName = "stale"

	require.NoError(t, Parse(c, strField(contactCompany, "Acme"), nil))

	rt, id := c.IDs()
	assert.Equal(t, uint8(0), rt)
	assert.Equal(t, uint32(0x1234), id)
	assert.Empty(t, c.FirstName)
	assert.Equal(t, "Acme", c.Company)
}

func TestBuild_ValidationWritesNothing(t *testing.T) {
	buf := buffer.FromBytes([]byte("previous"))
	err := Build(NewContact(), buf, nil)

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, []byte("previous"), buf.Bytes())
}

func TestUnknownFieldsRoundTrip(t *testing.T) {
	data := cat(
		strField(contactCompany, "Acme"),
		field(0x99, 0xde, 0xad, 0xbe, 0xef),
		field(0x98, 0x01),
	)

	c := NewContact()
	require.NoError(t, Parse(c, data, nil))
	require.Len(t, c.Unknowns, 2)
	assert.Equal(t, uint8(0x99), c.Unknowns[0].Type)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, c.Unknowns[0].Data)

	out, err := Bytes(c, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestParse_Truncated(t *testing.T) {
	data := cat(strField(contactCompany, "Acme"), strField(contactNotes, "a long note"))
	c := NewContact()
	require.NoError(t, Parse(c, data[:len(data)-4], nil))
	assert.Equal(t, "Acme", c.Company)
	assert.Empty(t, c.Notes)
	assert.Empty(t, c.Unknowns)
}

// sampleRecords returns a populated, buildable record for every database.
func sampleRecords() map[string]Record {
	when := time.Date(2011, 3, 4, 5, 6, 0, 0, time.UTC)

	contact := NewContact()
	contact.FirstName = "Bob"
	contact.LastName = "Frey"
	contact.Company = "Acme"
	contact.Email = "bob@example.com"
	contact.WorkAddress.City = "Waterloo"
	contact.Categories = CategoryList{"Work", "Golf"}
	contact.GroupLinks = []GroupLink{{Link: 7, Unknown: 1}}

	callLog := NewCallLog()
	callLog.PhoneNumber = "5550100"
	callLog.ContactName = "Bob"
	callLog.Duration = 42
	callLog.Timestamp = when

	bookmark := NewBookmark()
	bookmark.Name = "Example"
	bookmark.URL = "http://example.com/"

	folder := NewFolder()
	folder.Name = "Inbox"
	folder.Number = 2

	tz := NewTimeZoneHM(-5, 0)
	tz.Name = "Eastern"

	sms := NewSms()
	sms.Status = SmsSent
	sms.Timestamp = when
	sms.Addresses = []string{"+15550100"}
	sms.Body = "running late"

	newMessage := func(m *MessageBase) {
		m.From = EmailList{{Name: "Alice", Email: "alice@example.com"}}
		m.To = EmailList{{Email: "bob@example.com"}}
		m.Subject = "Hi"
		m.Body = "Hello there"
		m.DateSent = when
	}
	message, pin, saved := NewMessage(), NewPINMessage(), NewSavedMessage()
	newMessage(&message.MessageBase)
	newMessage(&pin.MessageBase)
	newMessage(&saved.MessageBase)

	handheld := NewHandheldAgent()
	handheld.SetIDs(0, 0x1234)
	handheld.Model = "8700"
	handheld.Network = "GSM"

	content := NewContentStore()
	content.Filename = "/store/notes.txt"
	content.FileContent = []byte("some file contents")

	calendar := NewCalendar()
	calendar.Subject = "Standup"
	calendar.Location = "Room 4"
	calendar.StartTime = when
	calendar.Recurring = true
	calendar.Type = RecurDay
	calendar.Interval = 1
	calendar.Perpetual = true

	calendarAll := NewCalendarAll()
	calendarAll.MailAccount = "work@example.com"
	calendarAll.Subject = "Review"
	calendarAll.StartTime = when

	task := NewTask()
	task.Summary = "Taxes"
	task.Notes = "before April"
	task.DueTime = when
	task.DueDate = true

	memo := NewMemo()
	memo.Title = "groceries"
	memo.Body = "milk"

	sb := NewServiceBook()
	sb.Name = "Desktop"
	sb.UniqueID = "S1"
	sb.HasConfig = true
	sb.Config = ServiceBookConfig{Format: PackedFormat02, Fields: []PackedField{{Code: 1, Type: 2, Data: []byte("cfg")}}}

	return map[string]Record{
		ContactDBName:       contact,
		CallLogDBName:       callLog,
		BookmarkDBName:      bookmark,
		FolderDBName:        folder,
		TimeZoneDBName:      tz,
		SmsDBName:           sms,
		MessageDBName:       message,
		PINMessageDBName:    pin,
		SavedMessageDBName:  saved,
		HandheldAgentDBName: handheld,
		ContentStoreDBName:  content,
		CalendarDBName:      calendar,
		CalendarAllDBName:   calendarAll,
		TaskDBName:          task,
		MemoDBName:          memo,
		ServiceBookDBName:   sb,
	}
}

func isMessageDB(db string) bool {
	return db == MessageDBName || db == PINMessageDBName || db == SavedMessageDBName
}

func TestParse_EveryPrefix(t *testing.T) {
	samples := sampleRecords()
	for _, db := range DBNames() {
		t.Run(db, func(t *testing.T) {
			rec, ok := samples[db]
			require.True(t, ok, "no sample for %s", db)
			data, err := Bytes(rec, nil)
			require.NoError(t, err)

			for k := 0; k < len(data); k++ {
				// a full slice expression makes any read past k panic
				prefix := data[:k:k]
				into, err := New(db)
				require.NoError(t, err)

				err = Parse(into, prefix, nil)
				if isMessageDB(db) && k < MessageHeaderSize {
					require.Error(t, err, "k=%d", k)
					assert.True(t, IsProtocolError(err), "k=%d: %v", k, err)
					continue
				}
				require.NoError(t, err, "k=%d", k)
			}

			full, err := New(db)
			require.NoError(t, err)
			require.NoError(t, Parse(full, data, nil))
		})
	}
}

func TestBytes_LargeBodies(t *testing.T) {
	for _, n := range []int{100, 1200, 1400, 4000, 60000} {
		notes := strings.Repeat("n", n)

		c := NewContact()
		c.FirstName = "Bob"
		c.LastName = "Frey"
		c.Company = "Acme"
		c.Notes = notes

		parsed := NewContact()
		data := rebuild(t, c, parsed)
		assert.Greater(t, len(data), n)
		assert.Equal(t, strField(contactName, "Bob"), data[:7], "n=%d", n)
		assert.Equal(t, "Bob", parsed.FirstName, "n=%d", n)
		assert.Equal(t, "Frey", parsed.LastName, "n=%d", n)
		assert.Equal(t, "Acme", parsed.Company, "n=%d", n)
		assert.Equal(t, notes, parsed.Notes, "n=%d", n)

		m := NewMemo()
		m.Title = "long"
		m.Body = notes
		parsedMemo := NewMemo()
		rebuild(t, m, parsedMemo)
		assert.Equal(t, notes, parsedMemo.Body, "n=%d", n)
	}
}

func TestParse_ZeroSizeFieldIgnored(t *testing.T) {
	data := cat(field(contactName), strField(contactCompany, "Acme"))
	c := NewContact()
	require.NoError(t, Parse(c, data, nil))
	assert.Empty(t, c.FirstName)
	assert.Equal(t, "Acme", c.Company)
}

func TestProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		data []byte
	}{
		{"call log type", NewCallLog(), field(callLogType, 'x')},
		{"call log direction", NewCallLog(), field(callLogDirection, 4)},
		{"bookmark type", NewBookmark(), field(bookmarkType, 'x')},
		{"time zone type", NewTimeZone(), field(tzType, 2)},
		{"calendar appointment type", NewCalendar(), field(calApptType, 'x')},
		{"calendar free busy", NewCalendar(), field(calFreeBusy, 9)},
		{"calendar class", NewCalendar(), field(calClass, 3)},
		{"calendar short recurrence", NewCalendar(), field(calRecurrenceData, 1, 2, 3)},
		{"task type", NewTask(), field(taskType, 'x')},
		{"task priority", NewTask(), field(taskPriority, 3)},
		{"task status", NewTask(), field(taskStatus, 5)},
		{"task alarm", NewTask(), field(taskAlarmType, 3)},
		{"memo type", NewMemo(), field(memoType, 'x')},
		{"message header", NewMessage(), []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse(tt.rec, tt.data, nil)
			require.Error(t, err)
			assert.True(t, IsProtocolError(err), "got %v", err)
		})
	}
}

func TestConverterApplied(t *testing.T) {
	conv, err := codec.NewConverter("")
	require.NoError(t, err)

	c := NewContact()
	c.Company = "Café"
	data, err := Bytes(c, conv)
	require.NoError(t, err)
	assert.Equal(t, strField(contactCompany, "Caf\xe9"), data)

	parsed := NewContact()
	require.NoError(t, Parse(parsed, data, conv))
	assert.Equal(t, "Café", parsed.Company)
}

func TestRecordsMarshalJSON(t *testing.T) {
	c := NewContact()
	c.FirstName = "Bob"
	c.Categories = CategoryList{"Work"}

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"first_name":"Bob"`)
	assert.Contains(t, string(out), `"categories":["Work"]`)
}
