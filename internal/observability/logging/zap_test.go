package logging

import "testing"

func TestNew(t *testing.T) {
	logger, err := New("debug", false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Error("expected debug level to be enabled")
	}

	if _, err := New("", true); err != nil {
		t.Errorf("expected empty level to default: %v", err)
	}
	if _, err := New("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}
