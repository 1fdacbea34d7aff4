package codec

import (
	"fmt"
	"time"
)

// Timestamp layouts used on the wire.
const (
	DateTimeLayout = "20060102150405"
	DateLayout     = "20060102"
	TimeLayout     = "1504"
)

// FormatDateTime renders t as an HL7 TS value (yyyyMMddHHmmss).
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// FormatTime renders t as an HHmm value.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseDateTime parses an HL7 TS value. Date-only values are accepted.
func ParseDateTime(value string) (time.Time, error) {
	switch len(value) {
	case len(DateTimeLayout):
		return time.Parse(DateTimeLayout, value)
	case len(DateLayout):
		return time.Parse(DateLayout, value)
	default:
		return time.Time{}, fmt.Errorf("invalid HL7 timestamp %q", value)
	}
}
