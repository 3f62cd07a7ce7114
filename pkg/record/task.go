package record

import (
	"time"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Task field codes
const (
	taskType           = 0x01
	taskTitle          = 0x02
	taskNotes          = 0x03
	taskStartTime      = 0x05
	taskDueTime        = 0x06
	taskDueFlag        = 0x08
	taskStatus         = 0x09
	taskPriority       = 0x0a
	taskRecurrenceData = 0x0c
	taskAlarmType      = 0x0e
	taskAlarmTime      = 0x0f
	taskTimeZoneCode   = 0x10
	taskCategories     = 0x11
)

// TaskDBName is the task database.
const TaskDBName = "Tasks"

// TaskPriority is the importance of a task.
type TaskPriority uint8

const (
	TaskHigh TaskPriority = iota
	TaskNormal
	TaskLow
)

// TaskStatus is the progress of a task.
type TaskStatus uint8

const (
	TaskNotStarted TaskStatus = iota
	TaskInProgress
	TaskCompleted
	TaskWaiting
	TaskDeferred
)

func (s TaskStatus) String() string {
	names := [...]string{"Not Started", "In Progress", "Completed", "Waiting", "Deferred"}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// AlarmType says how a task reminder is scheduled.
type AlarmType uint8

const (
	AlarmNone AlarmType = iota
	AlarmByDate
	AlarmRelative
)

// Task is a to-do item.
type Task struct {
	Base
	noHeader
	Recurrence

	Summary    string       `json:"summary,omitempty"`
	Notes      string       `json:"notes,omitempty"`
	Categories CategoryList `json:"categories,omitempty"`
	StartTime  time.Time    `json:"start_time"`
	DueTime    time.Time    `json:"due_time"`
	AlarmTime  time.Time    `json:"alarm_time"`
	DueDate    bool         `json:"due_date"`
	Priority   TaskPriority `json:"priority"`
	Status     TaskStatus   `json:"status"`
	Alarm      AlarmType    `json:"alarm_type"`

	TimeZoneCode  uint16 `json:"time_zone_code,omitempty"`
	TimeZoneValid bool   `json:"time_zone_valid"`
}

var taskLinks = []fieldLink[Task]{
	{typ: taskTitle, name: "Summary", str: func(t *Task) *string { return &t.Summary }, iconv: true},
	{typ: taskNotes, name: "Notes", str: func(t *Task) *string { return &t.Notes }, iconv: true},
	{typ: taskStartTime, name: "Start Time", time: func(t *Task) *time.Time { return &t.StartTime }},
	{typ: taskDueTime, name: "Due Time", time: func(t *Task) *time.Time { return &t.DueTime }},
	{typ: taskAlarmTime, name: "Alarm Time", time: func(t *Task) *time.Time { return &t.AlarmTime }},
}

func init() {
	register(TaskDBName, func() Record { return NewTask() })
}

// NewTask returns an empty task.
func NewTask() *Task {
	t := &Task{}
	t.Clear()
	return t
}

// DBName implements Record.
func (t *Task) DBName() string { return TaskDBName }

// Clear implements Record.
func (t *Task) Clear() {
	*t = Task{}
	t.clearRecurrence()
	t.reset(2)
}

// ParseFields implements Record.
func (t *Task) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	return codec.Walk(data, off, func(f codec.Field) error {
		return t.parseField(f, conv)
	})
}

func (t *Task) parseField(f codec.Field, conv codec.Converter) error {
	if f.Type == taskType {
		if f.Data[0] != 't' {
			return protocolErrorf("task", f.Type, "type is %q, want 't'", f.Data[0])
		}
		return nil
	}

	if parseLinked(taskLinks, t, f, conv) {
		return nil
	}

	switch f.Type {
	case taskCategories:
		t.Categories = ParseCategories(codec.DecodeString(conv, f.Data))
		return nil
	case taskPriority:
		if TaskPriority(f.Data[0]) > TaskLow {
			return protocolErrorf("task", f.Type, "priority %d out of range", f.Data[0])
		}
		t.Priority = TaskPriority(f.Data[0])
		return nil
	case taskStatus:
		if TaskStatus(f.Data[0]) > TaskDeferred {
			return protocolErrorf("task", f.Type, "status %d out of range", f.Data[0])
		}
		t.Status = TaskStatus(f.Data[0])
		return nil
	case taskTimeZoneCode:
		if len(f.Data) != 4 {
			return protocolErrorf("task", f.Type, "time zone code has %d bytes, want 4", len(f.Data))
		}
		v, _ := f.Uint32()
		t.TimeZoneCode = uint16(v)
		t.TimeZoneValid = true
		return nil
	case taskRecurrenceData:
		return t.parseRecurrence("task", f.Type, f.Data)
	case taskDueFlag:
		t.DueDate = f.Data[0] != 0
		return nil
	case taskAlarmType:
		if AlarmType(f.Data[0]) > AlarmRelative {
			return protocolErrorf("task", f.Type, "alarm type %d out of range", f.Data[0])
		}
		t.Alarm = AlarmType(f.Data[0])
		return nil
	}

	t.Unknowns.Add(f)
	return nil
}

// Validate implements Record.
func (t *Task) Validate() error {
	if t.Summary == "" {
		return validationErrorf("task", "summary is required")
	}
	if t.Recurring && t.StartTime.IsZero() {
		return validationErrorf("task", "recurring task needs a start time")
	}
	return t.validateRecurrence("task")
}

// BuildFields implements Record.
func (t *Task) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)
	b.Uint8(taskType, 't')
	buildLinked(taskLinks, t, b)
	if len(t.Categories) > 0 {
		b.String(taskCategories, t.Categories.String())
	}

	if t.DueDate {
		b.Uint8(taskDueFlag, 1)
	}
	b.Uint8(taskStatus, uint8(t.Status))
	b.Uint8(taskPriority, uint8(t.Priority))
	b.Uint8(taskAlarmType, uint8(t.Alarm))

	if t.Recurring {
		b.Raw(taskRecurrenceData, t.recurrenceData(t.StartTime))
	}
	if t.TimeZoneValid {
		b.Uint32(taskTimeZoneCode, uint32(t.TimeZoneCode))
	}
	b.Unknowns(t.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// Description implements Record.
func (t *Task) Description() string { return t.Summary }

// Less orders tasks by due time, then summary.
func (t *Task) Less(o *Task) bool {
	if !t.DueTime.Equal(o.DueTime) {
		return t.DueTime.Before(o.DueTime)
	}
	return t.Summary < o.Summary
}
