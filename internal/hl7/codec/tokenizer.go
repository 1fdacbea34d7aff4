// Package codec provides the low-level HL7 v2 text handling shared by every
// segment: line and field splitting, composite field encoding and the
// timestamp layouts used on the wire.
package codec

import "strings"

// Wire delimiters.
const (
	FieldSeparator     = "|"
	ComponentSeparator = "^"
	SegmentTerminator  = "\n"
)

// EncodingCharacters is the literal value of MSH-2.
const EncodingCharacters = `^~\&`

// SplitLines splits message text into segment lines. CRLF, LF and a bare CR
// are all accepted as terminators. Trailing empty lines are dropped.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// SplitFields splits a segment line on the field separator, keeping empty
// fields including trailing ones.
func SplitFields(line string) []string {
	return strings.Split(line, FieldSeparator)
}

// SplitComponents splits a single field on the component separator.
func SplitComponents(field string) []string {
	return strings.Split(field, ComponentSeparator)
}

// FieldAt returns fields[index] and whether it exists. An out of range index
// is reported as absent, which is how optional trailing fields are told apart
// from fields that are present but blank.
func FieldAt(fields []string, index int) (string, bool) {
	if index < 0 || index >= len(fields) {
		return "", false
	}
	return fields[index], true
}
