package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
	"github.com/drfirst/go-rxhl7/internal/infrastructure/postgres"
	"github.com/drfirst/go-rxhl7/internal/observability/metrics"
)

const newOrder = `MSH|^~\&|||AB|LOCATION1|20240531000000||RDS^O13^RDS_O13|4154345958|P|2.5||||||ASCII|||
PID|1|775908|02RES||Cooper_dc0f^QTF_Bradley_2692^^^^||19360531000000|M|||||||||||||||||||||||||||||||
ORC|NW||5288240975||||1^QHS&1200,1300^1^20240601111958^20240607111958^0||20240604100958|||1234567890^QTF_MedProFirstName^QTF_MedProLastName||||||||||||||||||
RXO|Mirtazapine 7.5MG TAB|||||||||||||||||||||||||||
RXE||69618001001^Mirtazapine 7.5MG TAB^||||TABS|^instructions||||||||58902||||||||||||F33.9^Depression^ICD10|||||||||||||||||
TQ1|1|1^TAB|QHS|1200-1300|||20240607111958||P||Take 1 tablet my mouth every day for Depression|A||
RXR|27^by mouth|||||`

// memStore is an in-memory Store.
type memStore struct {
	events  map[string][]*Event
	outbox  []*postgres.OutboxEntry
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{events: make(map[string][]*Event)}
}

func (m *memStore) Save(_ context.Context, rec *Record, outbox ...*postgres.OutboxEntry) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	changes := rec.Changes()
	base := rec.Version() - len(changes)
	for i, e := range changes {
		e.Version = base + i + 1
		m.events[rec.ID()] = append(m.events[rec.ID()], e)
	}
	m.outbox = append(m.outbox, outbox...)
	rec.ClearChanges()
	return nil
}

func (m *memStore) Load(_ context.Context, id string) (*Record, error) {
	return rebuild(id, m.events[id])
}

func (m *memStore) GetEvents(_ context.Context, id string) ([]*Event, error) {
	return m.events[id], nil
}

func newTestService(store Store) *Service {
	clock := provider.Fixed{At: time.Date(2024, 6, 7, 11, 10, 40, 0, time.UTC)}
	conv := convert.NewConverter(clock, zap.NewNop())
	return NewService(store, conv, metrics.New(prometheus.NewRegistry()), "hl7.orders.outbound", zap.NewNop())
}

func TestConvertDispense(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	res, err := svc.Convert(context.Background(), Request{ID: "c-1", Raw: newOrder, Event: convert.EventDispense, CorrelationID: "req-1"})
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if res.ControlID != "4154345958" {
		t.Errorf("ControlID = %q", res.ControlID)
	}
	if !res.SynthesizedDispense {
		t.Error("expected synthesized dispense")
	}
	if !strings.Contains(res.Output, "RDS^O13^RDS_O13") || !strings.HasPrefix(strings.Split(res.Output, "\n")[2], "ORC|RE|") {
		t.Errorf("unexpected output:\n%s", res.Output)
	}
	if !strings.Contains(res.Output, "\nRXD|1|69618001001^Mirtazapine 7.5MG TAB|20240607111040|") {
		t.Errorf("missing synthesized RXD:\n%s", res.Output)
	}

	events := store.events["c-1"]
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].EventType != EventConversionReceived || events[1].EventType != EventMessageConverted {
		t.Errorf("event types = %s, %s", events[0].EventType, events[1].EventType)
	}
	if events[0].CorrelationID != "req-1" || events[0].ControlID != "4154345958" {
		t.Errorf("received event = %+v", events[0])
	}
	if events[1].Version != 2 {
		t.Errorf("converted version = %d", events[1].Version)
	}

	if len(store.outbox) != 1 {
		t.Fatalf("got %d outbox entries, want 1", len(store.outbox))
	}
	entry := store.outbox[0]
	if entry.KafkaTopic != "hl7.orders.outbound" || entry.KafkaKey != "4154345958" {
		t.Errorf("entry routing = %s/%s", entry.KafkaTopic, entry.KafkaKey)
	}
	if entry.Headers[HeaderEvent] != "ORDER_DISPENSE" || entry.Headers[HeaderConversionID] != "c-1" {
		t.Errorf("headers = %v", entry.Headers)
	}

	var payload OutboundPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Message != res.Output || payload.Event != convert.EventDispense {
		t.Errorf("payload = %+v", payload)
	}
}

func TestConvertGeneratesID(t *testing.T) {
	svc := newTestService(newMemStore())
	res, err := svc.Convert(context.Background(), Request{Raw: newOrder, Event: convert.EventDiscontinue})
	if err != nil {
		t.Fatal(err)
	}
	if res.ConversionID == "" {
		t.Error("expected generated conversion id")
	}
	if res.SynthesizedDispense {
		t.Error("discontinue must not synthesize a dispense")
	}
}

func TestConvertRejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		event  convert.Event
		target error
		reason string
	}{
		{"empty message", "", convert.EventDispense, message.ErrEmptyMessage, "empty_message"},
		{"unsupported segment", "XYZ|1", convert.EventDispense, nil, "unsupported_segment"},
		{"unknown event", newOrder, convert.ParseEvent("bogus"), convert.ErrUnknownEvent, "unknown_event"},
		{"not implemented", newOrder, convert.EventHold, convert.ErrNotImplemented, "not_implemented"},
		{"missing ORC", strings.Split(newOrder, "\n")[0], convert.EventUpdate, convert.ErrMissingSourceSegment, "missing_source_segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store)

			res, err := svc.Convert(context.Background(), Request{ID: "c-x", Raw: tt.raw, Event: tt.event})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if got := Reason(err); got != tt.reason {
				t.Errorf("Reason = %q, want %q", got, tt.reason)
			}
			if !IsRejection(err) {
				t.Error("expected rejection")
			}
			if res == nil || res.ConversionID != "c-x" {
				t.Fatalf("result = %+v", res)
			}

			rec, err := store.Load(context.Background(), "c-x")
			if err != nil {
				t.Fatal(err)
			}
			if rec.Status() != StatusFailed || rec.FailReason() != tt.reason {
				t.Errorf("record = %s/%s", rec.Status(), rec.FailReason())
			}
			if len(store.outbox) != 0 {
				t.Error("rejected conversion must not enqueue outbox entries")
			}
		})
	}
}

func TestConvertSaveError(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("connection refused")
	svc := newTestService(store)

	res, err := svc.Convert(context.Background(), Request{Raw: newOrder, Event: convert.EventDispense})
	if err == nil || res != nil {
		t.Fatalf("expected save error, got %v, %v", res, err)
	}
	if IsRejection(err) {
		t.Error("storage failures are not rejections")
	}
}

func TestMarkPublished(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Convert(ctx, Request{ID: "c-2", Raw: newOrder, Event: convert.EventUpdate}); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkPublished(ctx, "c-2", "hl7.orders.outbound"); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkPublished(ctx, "c-2", "hl7.orders.outbound"); err != nil {
		t.Fatalf("second MarkPublished: %v", err)
	}

	rec, err := svc.Get(ctx, "c-2")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status() != StatusPublished || rec.Topic() != "hl7.orders.outbound" {
		t.Errorf("record = %s/%s", rec.Status(), rec.Topic())
	}
	events, err := svc.Events(ctx, "c-2")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(newMemStore())
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v", err)
	}
	if _, err := svc.Events(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Events err = %v", err)
	}
}

func TestReasonInternal(t *testing.T) {
	if got := Reason(nil); got != "converted" {
		t.Errorf("Reason(nil) = %q", got)
	}
	if got := Reason(fmt.Errorf("wrapped: %w", errors.New("boom"))); got != "internal" {
		t.Errorf("Reason = %q", got)
	}
	if IsRejection(nil) {
		t.Error("nil is not a rejection")
	}
}

func TestHashBody(t *testing.T) {
	if HashBody("a") == HashBody("b") {
		t.Error("distinct bodies hash equal")
	}
	if len(HashBody("")) != 64 {
		t.Errorf("hash length = %d", len(HashBody("")))
	}
}
