package message

import (
	"errors"
	"strings"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
)

var (
	// ErrEmptyRepeatingSegment is returned when a schedule helper runs on a
	// message without TQ1 segments.
	ErrEmptyRepeatingSegment = errors.New("no TQ1 schedules present")
	// ErrNotMultiSchedule is returned when joining instructions of fewer
	// than two schedules.
	ErrNotMultiSchedule = errors.New("message is not multi-schedule")
)

// IsMultiSchedule reports whether the message carries more than one TQ1.
func (m *Message) IsMultiSchedule() (bool, error) {
	if len(m.TQ1) == 0 {
		return false, ErrEmptyRepeatingSegment
	}
	return len(m.TQ1) > 1, nil
}

// JoinScheduleInstructions joins the text instruction of every schedule with
// delimiter, in order.
func (m *Message) JoinScheduleInstructions(delimiter string) (string, error) {
	multi, err := m.IsMultiSchedule()
	if err != nil {
		return "", err
	}
	if !multi {
		return "", ErrNotMultiSchedule
	}

	parts := make([]string, len(m.TQ1))
	for i, q := range m.TQ1 {
		parts[i] = q.TextInstruction
	}
	return strings.Join(parts, delimiter), nil
}

// SingleScheduleInstructions returns the first schedule's text instruction.
// When that is blank the dose segment's administration instructions are
// used instead, which makes RXE-7 the fallback source for TQ1-11.
func (m *Message) SingleScheduleInstructions() (string, error) {
	if len(m.TQ1) == 0 {
		return "", ErrEmptyRepeatingSegment
	}
	if text := m.TQ1[0].TextInstruction; !codec.IsBlank(text) {
		return text, nil
	}
	if m.RXE == nil {
		return "", ErrMissingSegment
	}
	return m.RXE.AdministrationInstructions, nil
}
