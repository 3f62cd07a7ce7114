package record

import (
	"errors"
	"fmt"

	"github.com/ssargent/bbsync/pkg/buffer"
)

// Errors
var (
	ErrUnknownDatabase = &RecordError{"unknown database"}
	ErrNotBuildable    = &RecordError{"record type cannot be built"}

	// ErrInvalidState marks programmer errors such as building into a
	// buffer that still wraps external memory.
	ErrInvalidState = buffer.ErrInvalidState
)

// RecordError is a plain record package error.
type RecordError struct {
	Message string
}

func (e *RecordError) Error() string {
	return e.Message
}

// ProtocolError reports a known field whose contents break a structural
// assumption of the wire format. It is fatal for the record being parsed.
type ProtocolError struct {
	Record string
	Field  uint8
	Msg    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: field 0x%02x: %s", e.Record, e.Field, e.Msg)
}

// ValidationError reports a record that is missing data it needs before it
// can be built. Nothing is written when it is returned.
type ValidationError struct {
	Record string
	Msg    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Record, e.Msg)
}

func protocolErrorf(rec string, typ uint8, format string, args ...interface{}) error {
	return &ProtocolError{Record: rec, Field: typ, Msg: fmt.Sprintf(format, args...)}
}

func validationErrorf(rec string, format string, args ...interface{}) error {
	return &ValidationError{Record: rec, Msg: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err is or wraps a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
