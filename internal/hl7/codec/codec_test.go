package codec

import (
	"testing"
	"time"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"lf", "MSH|a\nPID|b", 2},
		{"crlf", "MSH|a\r\nPID|b\r\n", 2},
		{"cr", "MSH|a\rPID|b\rORC|c", 3},
		{"trailing blank lines", "MSH|a\n\n\n", 1},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitLines(tt.text); len(got) != tt.want {
				t.Errorf("SplitLines(%q) = %q, want %d lines", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitFieldsKeepsTrailingEmpties(t *testing.T) {
	fields := SplitFields("RXR|27^by mouth|||||")
	if len(fields) != 7 {
		t.Fatalf("expected 7 fields, got %d: %q", len(fields), fields)
	}
	if fields[1] != "27^by mouth" {
		t.Errorf("expected route field, got %q", fields[1])
	}
}

func TestFieldAt(t *testing.T) {
	fields := SplitFields("TQ1|1||QHS")

	if v, ok := FieldAt(fields, 2); !ok || v != "" {
		t.Errorf("expected present blank field, got %q %v", v, ok)
	}
	if v, ok := FieldAt(fields, 3); !ok || v != "QHS" {
		t.Errorf("expected QHS, got %q %v", v, ok)
	}
	if _, ok := FieldAt(fields, 4); ok {
		t.Error("expected index past the end to be absent")
	}
	if _, ok := FieldAt(fields, -1); ok {
		t.Error("expected negative index to be absent")
	}
}

func TestEncodeComposite(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{""}, ""},
		{[]string{"", "", ""}, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "", ""}, "a^b"},
		{[]string{"a", "b", "", "c"}, "a^b^^c"},
		{[]string{"", "a", "b"}, "^a^b"},
		{[]string{"a", "", "b"}, "a^^b"},
		{[]string{"a", " ", "\t"}, "a"},
	}
	for _, tt := range tests {
		if got := EncodeComposite(tt.in...); got != tt.want {
			t.Errorf("EncodeComposite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeFixed(t *testing.T) {
	if got := EncodeFixed(6, "Cooper", "Bradley"); got != "Cooper^Bradley^^^^" {
		t.Errorf("unexpected padded name %q", got)
	}
	if got := EncodeFixed(3, "69618001001", "Mirtazapine"); got != "69618001001^Mirtazapine^" {
		t.Errorf("unexpected padded code %q", got)
	}
	if got := EncodeFixed(2, "a", "b", "c"); got != "a^b" {
		t.Errorf("expected extra components to be dropped, got %q", got)
	}
}

func TestDecodeCompositeRoundTrip(t *testing.T) {
	in := "1^QHS&1200,1300^1^20240601111958^20240607111958^0"
	parts := DecodeComposite(in)
	if len(parts) != 6 {
		t.Fatalf("expected 6 components, got %d", len(parts))
	}
	if got := EncodeComposite(parts...); got != in {
		t.Errorf("round trip mismatch: %q", got)
	}
	if got := ComponentAt(parts, 9); got != "" {
		t.Errorf("expected blank for missing component, got %q", got)
	}
}

func TestIsBlank(t *testing.T) {
	if !IsBlank() || !IsBlank("", " ") {
		t.Error("expected blank components to be blank")
	}
	if IsBlank("", "x") {
		t.Error("expected non-blank component to be detected")
	}
}

func TestDateTime(t *testing.T) {
	at := time.Date(2024, 6, 7, 11, 10, 40, 0, time.UTC)
	if got := FormatDateTime(at); got != "20240607111040" {
		t.Errorf("FormatDateTime = %q", got)
	}
	if got := FormatTime(at); got != "1110" {
		t.Errorf("FormatTime = %q", got)
	}

	parsed, err := ParseDateTime("20240607111040")
	if err != nil {
		t.Fatalf("ParseDateTime failed: %v", err)
	}
	if !parsed.Equal(at) {
		t.Errorf("parsed %v, want %v", parsed, at)
	}
	if _, err := ParseDateTime("19360531"); err != nil {
		t.Errorf("expected date-only value to parse: %v", err)
	}
	if _, err := ParseDateTime("2024"); err == nil {
		t.Error("expected error for short timestamp")
	}
}
