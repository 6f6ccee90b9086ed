package bankfile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnrecognizedFormat means no decoder's sniff predicate accepted the input.
	ErrUnrecognizedFormat = errors.New("unrecognized bank file format")
	// ErrNoRecords means the input had no well-formed line at all.
	ErrNoRecords = errors.New("no well-formed records")
)

// MalformedLineError reports a fixed-width line of the wrong length.
type MalformedLineError struct {
	Line   int
	Length int
	Want   int
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: malformed, length %d, want %d", e.Line, e.Length, e.Want)
}

// FieldError reports a field that could not be parsed.
type FieldError struct {
	Line  int
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: field %s: invalid value %q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("field %s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// CountMismatchError reports a trailer whose record count disagrees with
// the lines actually present.
type CountMismatchError struct {
	Line     int
	Declared int
	Counted  int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("line %d: trailer declares %d records, file has %d", e.Line, e.Declared, e.Counted)
}

// withLine stamps a physical line number on a FieldError.
func withLine(err error, line int) error {
	var fe *FieldError
	if errors.As(err, &fe) && fe.Line == 0 {
		fe.Line = line
	}
	return err
}
