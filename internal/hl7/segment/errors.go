package segment

import (
	"errors"
	"fmt"
)

var (
	// ErrSegmentTagMismatch is returned when a line is decoded with the wrong schema.
	ErrSegmentTagMismatch = errors.New("segment tag mismatch")
	// ErrUnsupportedSegment is returned for tags with no registered schema.
	ErrUnsupportedSegment = errors.New("unsupported segment")
	// ErrMissingRequiredField is returned when a required slot has no value.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrUnknownField is returned by Build for names the schema does not declare.
	ErrUnknownField = errors.New("unknown field")
)

// FieldError describes a failure tied to one field of a segment.
type FieldError struct {
	Segment string
	Field   string
	Index   int
	Err     error
}

func (e *FieldError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("%s[%d] %s: %v", e.Segment, e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Segment, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
