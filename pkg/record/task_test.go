package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_RoundTrip(t *testing.T) {
	task := NewTask()
	task.Summary = "File taxes"
	task.Notes = "before the deadline"
	task.Categories = CategoryList{"Personal"}
	task.StartTime = time.Date(2011, 1, 1, 8, 0, 0, 0, time.UTC)
	task.DueTime = time.Date(2011, 4, 15, 17, 0, 0, 0, time.UTC)
	task.DueDate = true
	task.AlarmTime = time.Date(2011, 4, 14, 9, 0, 0, 0, time.UTC)
	task.Alarm = AlarmByDate
	task.Priority = TaskHigh
	task.Status = TaskInProgress
	task.TimeZoneValid = true
	task.TimeZoneCode = 0x14

	task.Recurring = true
	task.Type = RecurYearByDate
	task.DayOfMonth = 15
	task.MonthOfYear = 4
	task.Perpetual = true

	parsed := NewTask()
	data := rebuild(t, task, parsed)
	assert.Equal(t, field(taskType, 't'), data[:4])
	assert.Equal(t, task, parsed)
	assert.Equal(t, "every year on Apr 15, ends never", parsed.RecurrenceString())
	assert.Equal(t, "In Progress", parsed.Status.String())
}

func TestTask_TimeZoneCodeIsFourBytes(t *testing.T) {
	task := NewTask()
	require.NoError(t, Parse(task, field(taskTimeZoneCode, 0, 0, 0, 0x14), nil))
	assert.True(t, task.TimeZoneValid)
	assert.Equal(t, uint16(0x14), task.TimeZoneCode)

	err := Parse(task, field(taskTimeZoneCode, 0, 0x14), nil)
	assert.True(t, IsProtocolError(err))
}

func TestTask_Validate(t *testing.T) {
	task := NewTask()
	assert.True(t, IsValidationError(task.Validate()))

	task.Summary = "Water plants"
	assert.NoError(t, task.Validate())

	task.Recurring = true
	task.Type = RecurDay
	task.Perpetual = true
	assert.True(t, IsValidationError(task.Validate()))

	task.StartTime = time.Date(2011, 1, 1, 8, 0, 0, 0, time.UTC)
	assert.NoError(t, task.Validate())
}

func TestTask_Less(t *testing.T) {
	a := &Task{DueTime: time.Unix(100, 0)}
	b := &Task{DueTime: time.Unix(200, 0)}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestTaskStatus_String(t *testing.T) {
	assert.Equal(t, "Deferred", TaskDeferred.String())
	assert.Equal(t, "Unknown", TaskStatus(9).String())
}
