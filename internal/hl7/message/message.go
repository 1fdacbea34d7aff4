// Package message holds the HL7 pharmacy message document: one slot per
// singleton segment plus the repeating TQ1 schedules, printed in a fixed
// canonical order.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
	"github.com/drfirst/go-rxhl7/internal/hl7/segment"
)

var (
	// ErrEmptyMessage is returned when decoding text with no segment lines.
	ErrEmptyMessage = errors.New("message has no segments")
	// ErrMissingSegment is returned by helpers whose target segment is absent.
	ErrMissingSegment = errors.New("segment not present")
)

// Message is a decoded pharmacy message. A nil slot means the segment is
// absent. Messages are not safe for concurrent mutation.
type Message struct {
	MSH *segment.MSH   `json:"msh,omitempty"`
	PID *segment.PID   `json:"pid,omitempty"`
	PV1 *segment.PV1   `json:"pv1,omitempty"`
	ORC *segment.ORC   `json:"orc,omitempty"`
	RXO *segment.RXO   `json:"rxo,omitempty"`
	RXE *segment.RXE   `json:"rxe,omitempty"`
	TQ1 []*segment.TQ1 `json:"tq1,omitempty"`
	RXR *segment.RXR   `json:"rxr,omitempty"`
	RXD *segment.RXD   `json:"rxd,omitempty"`
	ZPI *segment.ZPI   `json:"zpi,omitempty"`
	ZQM *segment.ZQM   `json:"zqm,omitempty"`
	ZRX *segment.ZRX   `json:"zrx,omitempty"`
}

// Decode parses message text. A repeated singleton segment replaces the
// earlier one; TQ1 lines accumulate in order. No partial message is
// returned on failure.
func Decode(text string) (*Message, error) {
	lines := codec.SplitLines(text)
	if len(lines) == 0 {
		return nil, ErrEmptyMessage
	}

	m := &Message{}
	for i, line := range lines {
		seg, err := segment.Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		m.put(seg)
	}
	return m, nil
}

// Encode prints the present segments in canonical order joined by LF, with
// no trailing terminator.
func (m *Message) Encode() string {
	segs := m.Segments()
	lines := make([]string, len(segs))
	for i, s := range segs {
		lines[i] = s.Encode()
	}
	return strings.Join(lines, codec.SegmentTerminator)
}

// Segments returns the present segments in canonical order.
func (m *Message) Segments() []segment.Segment {
	var out []segment.Segment
	add := func(s segment.Segment, present bool) {
		if present {
			out = append(out, s)
		}
	}
	add(m.MSH, m.MSH != nil)
	add(m.PID, m.PID != nil)
	add(m.PV1, m.PV1 != nil)
	add(m.ORC, m.ORC != nil)
	add(m.RXO, m.RXO != nil)
	add(m.RXE, m.RXE != nil)
	for _, q := range m.TQ1 {
		add(q, q != nil)
	}
	add(m.RXR, m.RXR != nil)
	add(m.RXD, m.RXD != nil)
	add(m.ZPI, m.ZPI != nil)
	add(m.ZQM, m.ZQM != nil)
	add(m.ZRX, m.ZRX != nil)
	return out
}

// Get returns the segment stored for tag. For TQ1 it returns the first
// schedule.
func (m *Message) Get(tag string) (segment.Segment, bool) {
	for _, s := range m.Segments() {
		if s.Tag() == tag {
			return s, true
		}
	}
	return nil, false
}

// Schedules returns a copy of the TQ1 list.
func (m *Message) Schedules() []*segment.TQ1 {
	if len(m.TQ1) == 0 {
		return nil
	}
	out := make([]*segment.TQ1, len(m.TQ1))
	for i, q := range m.TQ1 {
		out[i] = segment.Clone(q)
	}
	return out
}

// With returns a copy of m with the slot for seg's type replaced by a copy
// of seg. A TQ1 replaces the whole schedule list with that one entry.
func (m *Message) With(seg segment.Segment) *Message {
	c := m.Clone()
	if q, ok := seg.(*segment.TQ1); ok {
		c.TQ1 = []*segment.TQ1{segment.Clone(q)}
		return c
	}
	c.put(seg)
	return c
}

// WithSchedules returns a copy of m whose TQ1 list is a copy of schedules.
func (m *Message) WithSchedules(schedules []*segment.TQ1) *Message {
	c := m.Clone()
	c.TQ1 = (&Message{TQ1: schedules}).Schedules()
	return c
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	return &Message{
		MSH: segment.Clone(m.MSH),
		PID: segment.Clone(m.PID),
		PV1: segment.Clone(m.PV1),
		ORC: segment.Clone(m.ORC),
		RXO: segment.Clone(m.RXO),
		RXE: segment.Clone(m.RXE),
		TQ1: m.Schedules(),
		RXR: segment.Clone(m.RXR),
		RXD: segment.Clone(m.RXD),
		ZPI: segment.Clone(m.ZPI),
		ZQM: segment.Clone(m.ZQM),
		ZRX: segment.Clone(m.ZRX),
	}
}

func (m *Message) put(seg segment.Segment) {
	switch s := seg.(type) {
	case *segment.MSH:
		m.MSH = segment.Clone(s)
	case *segment.PID:
		m.PID = segment.Clone(s)
	case *segment.PV1:
		m.PV1 = segment.Clone(s)
	case *segment.ORC:
		m.ORC = segment.Clone(s)
	case *segment.RXO:
		m.RXO = segment.Clone(s)
	case *segment.RXE:
		m.RXE = segment.Clone(s)
	case *segment.TQ1:
		m.TQ1 = append(m.TQ1, segment.Clone(s))
	case *segment.RXR:
		m.RXR = segment.Clone(s)
	case *segment.RXD:
		m.RXD = segment.Clone(s)
	case *segment.ZPI:
		m.ZPI = segment.Clone(s)
	case *segment.ZQM:
		m.ZQM = segment.Clone(s)
	case *segment.ZRX:
		m.ZRX = segment.Clone(s)
	}
}

// PeekControlID returns MSH-10 of text without decoding the rest of the
// message. It returns "" when the first line is not an MSH segment.
func PeekControlID(text string) string {
	lines := codec.SplitLines(text)
	if len(lines) == 0 {
		return ""
	}
	fields := codec.SplitFields(lines[0])
	if fields[0] != segment.TagMSH {
		return ""
	}
	id, _ := codec.FieldAt(fields, 9)
	return id
}
