package segment

import (
	"fmt"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
)

// Segment tags.
const (
	TagMSH = "MSH"
	TagPID = "PID"
	TagPV1 = "PV1"
	TagORC = "ORC"
	TagRXO = "RXO"
	TagRXE = "RXE"
	TagTQ1 = "TQ1"
	TagRXR = "RXR"
	TagRXD = "RXD"
	TagZPI = "ZPI"
	TagZQM = "ZQM"
	TagZRX = "ZRX"
)

// Order is the canonical print order of segments within a message.
var Order = []string{
	TagMSH, TagPID, TagPV1, TagORC, TagRXO, TagRXE,
	TagTQ1, TagRXR, TagRXD, TagZPI, TagZQM, TagZRX,
}

// Segment is implemented by every typed segment.
type Segment interface {
	Tag() string
	Encode() string
}

type entry struct {
	decode func(raw string) (Segment, error)
	build  func(src provider.Source, values Values) (Segment, error)
	names  func() []string
}

var registry = map[string]entry{
	TagMSH: register(mshSchema),
	TagPID: register(pidSchema),
	TagPV1: register(pv1Schema),
	TagORC: register(orcSchema),
	TagRXO: register(rxoSchema),
	TagRXE: register(rxeSchema),
	TagTQ1: register(tq1Schema),
	TagRXR: register(rxrSchema),
	TagRXD: register(rxdSchema),
	TagZPI: register(zpiSchema),
	TagZQM: register(zqmSchema),
	TagZRX: register(zrxSchema),
}

func register[T any, P interface {
	*T
	Segment
}](s *Schema[T]) entry {
	return entry{
		decode: func(raw string) (Segment, error) {
			seg, err := s.Decode(raw)
			if err != nil {
				return nil, err
			}
			return P(seg), nil
		},
		build: func(src provider.Source, values Values) (Segment, error) {
			seg, err := s.Build(src, values)
			if err != nil {
				return nil, err
			}
			return P(seg), nil
		},
		names: s.Names,
	}
}

// Supported reports whether tag has a registered schema.
func Supported(tag string) bool {
	_, ok := registry[tag]
	return ok
}

// TagOf returns the tag of a raw segment line.
func TagOf(raw string) string {
	tag, _ := codec.FieldAt(codec.SplitFields(raw), 0)
	return tag
}

// Decode parses a raw segment line using the schema registered for its tag.
func Decode(raw string) (Segment, error) {
	return DecodeAs(TagOf(raw), raw)
}

// DecodeAs parses raw with the schema registered for tag. A line whose own
// tag differs fails with ErrSegmentTagMismatch.
func DecodeAs(tag, raw string) (Segment, error) {
	e, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSegment, tag)
	}
	return e.decode(raw)
}

// Build constructs the segment registered for tag from named values.
func Build(tag string, src provider.Source, values Values) (Segment, error) {
	e, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSegment, tag)
	}
	return e.build(src, values)
}

// FieldNames lists the settable field names of the segment registered for tag.
func FieldNames(tag string) ([]string, error) {
	e, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSegment, tag)
	}
	return e.names(), nil
}

// Clone returns a copy of seg. Segments hold only strings and value types,
// so a shallow copy does not alias the original.
func Clone[T any](seg *T) *T {
	if seg == nil {
		return nil
	}
	c := *seg
	return &c
}
