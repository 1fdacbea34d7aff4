package message

import (
	"fmt"
	"time"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
)

// The setters below modify m in place.

// SetScheduleWindow sets the start and end timestamps of the first schedule.
// A zero time leaves the corresponding field unchanged.
func (m *Message) SetScheduleWindow(start, end time.Time) error {
	if len(m.TQ1) == 0 {
		return ErrEmptyRepeatingSegment
	}
	if !start.IsZero() {
		m.TQ1[0].StartDateTime = codec.FormatDateTime(start)
	}
	if !end.IsZero() {
		m.TQ1[0].EndDateTime = codec.FormatDateTime(end)
	}
	return nil
}

// SetAdminTime sets the explicit administration time of the first schedule.
// An empty value leaves it unchanged.
func (m *Message) SetAdminTime(explicit string) error {
	if len(m.TQ1) == 0 {
		return ErrEmptyRepeatingSegment
	}
	if explicit != "" {
		m.TQ1[0].ExplicitTime = explicit
	}
	return nil
}

// AppendDrugNameSuffix appends a space and three random characters to the
// dose segment's drug name so repeated test orders stay distinguishable.
func (m *Message) AppendDrugNameSuffix(ids provider.IDGenerator) error {
	if m.RXE == nil {
		return fmt.Errorf("RXE: %w", ErrMissingSegment)
	}
	m.RXE.GiveCode.Text += " " + ids.Alphanumeric(3)
	return nil
}

// ScrambleOrderNumber replaces the filler order number with five random digits.
func (m *Message) ScrambleOrderNumber(ids provider.IDGenerator) error {
	if m.ORC == nil {
		return fmt.Errorf("ORC: %w", ErrMissingSegment)
	}
	m.ORC.FillerOrderNumber = ids.Numeric(5)
	return nil
}
