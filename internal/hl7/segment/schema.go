// Package segment declares the HL7 segments understood by the converter.
//
// Every segment type is described by a Schema: its tag, its printed field
// count and an ordered list of positional slots. Decoding, encoding and
// programmatic construction are all driven from that single table, so a
// segment's wire layout lives in exactly one place.
package segment

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/drfirst/go-rxhl7/internal/hl7/codec"
	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
)

// Values carries named field values for Build. Presence of a key means the
// field was supplied, even when its value is blank.
type Values map[string]string

type slotKind int

const (
	slotText slotKind = iota
	slotComposite
	slotFixed
	slotComponent
	slotLiteral
)

// Field is one positional slot of a Schema. Index is the split position with
// the tag at 0.
type Field[T any] struct {
	Name     string
	Index    int
	Required bool
	// Default fills the slot in Build when no value is supplied. It is never
	// consulted while decoding.
	Default func(provider.Source) string

	kind      slotKind
	arity     int
	position  int
	literal   string
	text      func(*T) *string
	composite func(*T) Composite
}

// Text declares a plain string slot.
func Text[T any](index int, name string, ref func(*T) *string) Field[T] {
	return Field[T]{Name: name, Index: index, kind: slotText, text: ref}
}

// Coded declares a composite slot encoded with trailing blanks trimmed.
func Coded[T any](index int, name string, ref func(*T) Composite) Field[T] {
	return Field[T]{Name: name, Index: index, kind: slotComposite, composite: ref}
}

// Fixed declares a composite slot always printed with arity components.
func Fixed[T any](index int, name string, arity int, ref func(*T) Composite) Field[T] {
	return Field[T]{Name: name, Index: index, kind: slotFixed, arity: arity, composite: ref}
}

// Component declares a string slot stored at one component position of a
// fixed-arity field, such as "^text".
func Component[T any](index int, name string, position, arity int, ref func(*T) *string) Field[T] {
	return Field[T]{Name: name, Index: index, kind: slotComponent, position: position, arity: arity, text: ref}
}

// Literal declares a slot that always prints value and is ignored on decode.
func Literal[T any](index int, value string) Field[T] {
	return Field[T]{Index: index, kind: slotLiteral, literal: value}
}

// Require marks the slot as required.
func (f Field[T]) Require() Field[T] {
	f.Required = true
	return f
}

// WithDefault sets the construction-time default producer.
func (f Field[T]) WithDefault(fn func(provider.Source) string) Field[T] {
	f.Default = fn
	return f
}

func (f Field[T]) render(seg *T) string {
	switch f.kind {
	case slotLiteral:
		return f.literal
	case slotComposite:
		return codec.EncodeComposite(f.composite(seg).Components()...)
	case slotFixed:
		return codec.EncodeFixed(f.arity, f.composite(seg).Components()...)
	case slotComponent:
		parts := make([]string, f.arity)
		parts[f.position] = *f.text(seg)
		return codec.EncodeFixed(f.arity, parts...)
	default:
		return *f.text(seg)
	}
}

func (f Field[T]) assign(seg *T, raw string) {
	switch f.kind {
	case slotLiteral:
	case slotComposite, slotFixed:
		f.composite(seg).SetComponents(codec.DecodeComposite(raw))
	case slotComponent:
		*f.text(seg) = codec.ComponentAt(codec.DecodeComposite(raw), f.position)
	default:
		*f.text(seg) = raw
	}
}

// set stores a Build value. Component slots take the value as the component
// itself rather than as a wire field.
func (f Field[T]) set(seg *T, v string) {
	if f.kind == slotComponent {
		*f.text(seg) = v
		return
	}
	f.assign(seg, v)
}

// Schema describes the layout of one segment type.
type Schema[T any] struct {
	Tag    string
	Width  int
	Fields []Field[T]
}

// Encode prints seg with exactly Width fields.
func (s *Schema[T]) Encode(seg *T) string {
	out := make([]string, s.Width)
	out[0] = s.Tag
	for _, f := range s.Fields {
		out[f.Index] = f.render(seg)
	}
	return strings.Join(out, codec.FieldSeparator)
}

// Decode parses one segment line. Optional fields missing from the line
// decode to their zero value.
func (s *Schema[T]) Decode(raw string) (*T, error) {
	fields := codec.SplitFields(raw)
	if tag, _ := codec.FieldAt(fields, 0); tag != s.Tag {
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrSegmentTagMismatch, s.Tag, tag)
	}

	seg := new(T)
	for _, f := range s.Fields {
		if f.kind == slotLiteral {
			continue
		}
		v, ok := codec.FieldAt(fields, f.Index)
		if !ok {
			if f.Required {
				return nil, s.missing(f)
			}
			continue
		}
		f.assign(seg, v)
	}
	return seg, nil
}

// Build constructs a segment from named values, applying default producers
// to optional fields that were not supplied. A nil source uses the system
// clock and random identifiers.
func (s *Schema[T]) Build(src provider.Source, values Values) (*T, error) {
	if src == nil {
		src = provider.System()
	}
	for _, name := range slices.Sorted(maps.Keys(values)) {
		if !s.declares(name) {
			return nil, &FieldError{Segment: s.Tag, Field: name, Err: ErrUnknownField}
		}
	}

	seg := new(T)
	for _, f := range s.Fields {
		if f.kind == slotLiteral {
			continue
		}
		v, ok := values[f.Name]
		if !ok {
			if f.Required {
				return nil, s.missing(f)
			}
			if f.Default == nil {
				continue
			}
			v = f.Default(src)
		}
		f.set(seg, v)
	}
	return seg, nil
}

// Names lists the settable field names in print order.
func (s *Schema[T]) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.kind != slotLiteral {
			names = append(names, f.Name)
		}
	}
	return names
}

func (s *Schema[T]) declares(name string) bool {
	for _, f := range s.Fields {
		if f.kind != slotLiteral && f.Name == name {
			return true
		}
	}
	return false
}

func (s *Schema[T]) missing(f Field[T]) error {
	return &FieldError{Segment: s.Tag, Field: f.Name, Index: f.Index, Err: ErrMissingRequiredField}
}

func now(src provider.Source) string {
	return codec.FormatDateTime(src.Now())
}

func digits(n int) func(provider.Source) string {
	return func(src provider.Source) string { return src.Numeric(n) }
}

func constant(v string) func(provider.Source) string {
	return func(provider.Source) string { return v }
}
