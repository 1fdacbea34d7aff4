package provider

import (
	"testing"
	"time"
	"unicode"
)

func TestSystemNumeric(t *testing.T) {
	id := System().Numeric(11)
	if len(id) != 11 {
		t.Fatalf("expected 11 characters, got %q", id)
	}
	for _, r := range id {
		if !unicode.IsDigit(r) {
			t.Fatalf("expected only digits, got %q", id)
		}
	}
}

func TestSystemAlphanumeric(t *testing.T) {
	id := System().Alphanumeric(3)
	if len(id) != 3 {
		t.Fatalf("expected 3 characters, got %q", id)
	}
	for _, r := range id {
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) {
			t.Fatalf("unexpected character in %q", id)
		}
	}
}

func TestFixed(t *testing.T) {
	at := time.Date(2024, 6, 7, 11, 10, 40, 0, time.UTC)
	f := Fixed{At: at, Digits: "12"}

	if !f.Now().Equal(at) {
		t.Errorf("Now = %v, want %v", f.Now(), at)
	}
	if got := f.Numeric(5); got != "12121" {
		t.Errorf("Numeric(5) = %q", got)
	}
	if got := f.Alphanumeric(3); got != "XXX" {
		t.Errorf("Alphanumeric(3) = %q", got)
	}
	if got := (Fixed{}).Numeric(0); got != "" {
		t.Errorf("Numeric(0) = %q", got)
	}
}
