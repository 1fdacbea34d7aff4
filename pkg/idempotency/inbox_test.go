package idempotency

import (
	"errors"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	body := []byte("MSH|^~\\&|PC||PCC|FAC|20240607111040||RDS^O13^RDS_O13|4154958|P|2.5")

	k1 := GenerateKey("4154958", "ORDER_DISPENSE", body)
	if len(k1) != 64 {
		t.Fatalf("key length = %d, want 64", len(k1))
	}
	if k2 := GenerateKey("4154958", "ORDER_DISPENSE", body); k1 != k2 {
		t.Error("key is not deterministic")
	}

	tests := []struct {
		name      string
		controlID string
		event     string
		body      []byte
	}{
		{"different event", "4154958", "ORDER_DC", body},
		{"different control id", "4154959", "ORDER_DISPENSE", body},
		{"different body", "4154958", "ORDER_DISPENSE", append([]byte{}, body[:len(body)-1]...)},
		{"shifted boundary", "4154958O", "RDER_DISPENSE", body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if GenerateKey(tt.controlID, tt.event, tt.body) == k1 {
				t.Error("keys collide")
			}
		})
	}
}

func TestNewInboxDefaults(t *testing.T) {
	in := NewInbox(nil, DefaultInboxConfig(), nil)
	if in.config.IsTerminal == nil {
		t.Fatal("IsTerminal not defaulted")
	}
	if in.config.IsTerminal(errors.New("validation failed")) {
		t.Error("default IsTerminal should retry every error")
	}

	sentinel := errors.New("rejected")
	cfg := DefaultInboxConfig()
	cfg.IsTerminal = func(err error) bool { return errors.Is(err, sentinel) }
	in = NewInbox(nil, cfg, nil)
	if !in.config.IsTerminal(sentinel) {
		t.Error("custom IsTerminal ignored")
	}
}
