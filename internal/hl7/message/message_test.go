package message

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
	"github.com/drfirst/go-rxhl7/internal/hl7/segment"
)

const dispenseMessage = `MSH|^~\&|PC||PCC|QTFCMORMEFAC25|20240607111040||RDS^O13^RDS_O13|4154958|P|2.5||||||ASCII|||
PID|1|775908|02RES||Cooper_dc0f^QTF_Bradley_2692^^^^||19360531000000|M|||||||||||||||||||||||||||||||
ORC|RE||5288240975||||1^QHS&1200,1300^1^20240601111958^20240607111958^0||20240604100958|||1234567890^QTF_MedProFirstName^QTF_MedProLastName||||||||||||||||||
RXO|Mirtazapine 7.5MG TAB|||||||||||||||||||||||||||
RXE||69618001001^Mirtazapine 7.5MG TAB^||||TABS|^Default RXE.7 instructions. Msg fails without this.||||||||58902||||||||||||F33.9^Depression^ICD10|||||||||||||||||
TQ1|1|1^TAB|QHS|1200-1300|||20240607111958||P||Take 1 tablet my mouth every day for Depression|A||
RXR|27^by mouth|||||
RXD|1|69618001001^Mirtazapine 7.5MG TAB|20240607111040||||||||||||||||||||||||||||||`

func mustDecode(t *testing.T, text string) *Message {
	t.Helper()
	m, err := Decode(text)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := mustDecode(t, dispenseMessage)
	if got := m.Encode(); got != dispenseMessage {
		t.Errorf("round trip mismatch:\n got: %s\nwant: %s", got, dispenseMessage)
	}
}

func TestDecodeToleratesLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(dispenseMessage, "\n", "\r\n") + "\r\n"
	cr := strings.ReplaceAll(dispenseMessage, "\n", "\r")

	for name, text := range map[string]string{"crlf": crlf, "cr": cr} {
		if got := mustDecode(t, text).Encode(); got != dispenseMessage {
			t.Errorf("%s: unexpected output %q", name, got)
		}
	}
}

func TestEncodeUsesCanonicalOrder(t *testing.T) {
	text := "RXR|27^by mouth|||||\nTQ1|2\nORC|NW\nTQ1|1\nMSH|^~\\&|A||B|C||||"
	m := mustDecode(t, text)

	var tags []string
	for _, line := range strings.Split(m.Encode(), "\n") {
		tags = append(tags, line[:3])
	}
	want := []string{"MSH", "ORC", "TQ1", "TQ1", "RXR"}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("unexpected order %v", tags)
	}
	if m.TQ1[0].SetID != "2" || m.TQ1[1].SetID != "1" {
		t.Errorf("schedules must keep input order, got %q %q", m.TQ1[0].SetID, m.TQ1[1].SetID)
	}
}

func TestDecodeLastWriteWins(t *testing.T) {
	text := "MSH|^~\\&|FIRST||B|C|||ADT\nMSH|^~\\&|SECOND||B|C|||RDE"
	m := mustDecode(t, text)
	if m.MSH.SendingApplication != "SECOND" || m.MSH.MessageType != "RDE" {
		t.Errorf("expected second header to win, got %+v", m.MSH)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode("MSH|^~\\&|A||B|C|||X\nOBX|1"); !errors.Is(err, segment.ErrUnsupportedSegment) {
		t.Errorf("expected ErrUnsupportedSegment, got %v", err)
	}
	if _, err := Decode("MSH|^~\\&|A"); !errors.Is(err, segment.ErrMissingRequiredField) {
		t.Errorf("expected ErrMissingRequiredField, got %v", err)
	}
	if _, err := Decode("\n\n"); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestGet(t *testing.T) {
	m := mustDecode(t, dispenseMessage)

	seg, ok := m.Get(segment.TagRXR)
	if !ok || seg.(*segment.RXR).Route.Text != "by mouth" {
		t.Errorf("unexpected RXR %v %v", seg, ok)
	}
	if _, ok := m.Get(segment.TagZPI); ok {
		t.Error("expected ZPI to be absent")
	}
	if len(m.Schedules()) != 1 {
		t.Errorf("expected one schedule, got %d", len(m.Schedules()))
	}
}

func TestWithDoesNotAlias(t *testing.T) {
	m := mustDecode(t, dispenseMessage)
	orc := &segment.ORC{OrderControl: "DC"}

	next := m.With(orc)
	orc.OrderControl = "XX"
	next.RXE.GiveCode.Text = "changed"

	if next.ORC.OrderControl != "DC" {
		t.Errorf("With must copy its argument, got %q", next.ORC.OrderControl)
	}
	if m.ORC.OrderControl != "RE" || m.RXE.GiveCode.Text != "Mirtazapine 7.5MG TAB" {
		t.Error("With must not modify or share the source message")
	}

	withSchedule := m.With(&segment.TQ1{SetID: "9"})
	if len(withSchedule.TQ1) != 1 || withSchedule.TQ1[0].SetID != "9" {
		t.Errorf("expected TQ1 list replaced, got %+v", withSchedule.TQ1)
	}
}

func TestWithSchedules(t *testing.T) {
	m := mustDecode(t, dispenseMessage)
	schedules := []*segment.TQ1{{SetID: "1", TextInstruction: "X"}, {SetID: "2", TextInstruction: "Y"}}

	next := m.WithSchedules(schedules)
	schedules[0].TextInstruction = "mutated"

	if next.TQ1[0].TextInstruction != "X" {
		t.Error("WithSchedules must copy the schedules")
	}
	if len(m.TQ1) != 1 {
		t.Error("source schedules must be untouched")
	}
}

func TestScheduleHelpers(t *testing.T) {
	single := mustDecode(t, dispenseMessage)

	multi, err := single.IsMultiSchedule()
	if err != nil || multi {
		t.Errorf("expected single schedule, got %v %v", multi, err)
	}
	if _, err := single.JoinScheduleInstructions(", "); !errors.Is(err, ErrNotMultiSchedule) {
		t.Errorf("expected ErrNotMultiSchedule, got %v", err)
	}
	text, err := single.SingleScheduleInstructions()
	if err != nil || text != "Take 1 tablet my mouth every day for Depression" {
		t.Errorf("unexpected single instructions %q %v", text, err)
	}

	two := single.WithSchedules([]*segment.TQ1{{SetID: "1", TextInstruction: "X"}, {SetID: "2", TextInstruction: "Y"}})
	joined, err := two.JoinScheduleInstructions(", ")
	if err != nil || joined != "X, Y" {
		t.Errorf("expected %q, got %q %v", "X, Y", joined, err)
	}

	none := single.WithSchedules(nil)
	if _, err := none.IsMultiSchedule(); !errors.Is(err, ErrEmptyRepeatingSegment) {
		t.Errorf("expected ErrEmptyRepeatingSegment, got %v", err)
	}
	if _, err := none.SingleScheduleInstructions(); !errors.Is(err, ErrEmptyRepeatingSegment) {
		t.Errorf("expected ErrEmptyRepeatingSegment, got %v", err)
	}
}

func TestSingleScheduleFallsBackToDoseInstructions(t *testing.T) {
	m := mustDecode(t, dispenseMessage)
	m.TQ1[0].TextInstruction = "  "

	text, err := m.SingleScheduleInstructions()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != segment.DefaultAdminInstructions {
		t.Errorf("expected RXE-7 fallback, got %q", text)
	}

	m.RXE = nil
	if _, err := m.SingleScheduleInstructions(); !errors.Is(err, ErrMissingSegment) {
		t.Errorf("expected ErrMissingSegment, got %v", err)
	}
}

func TestEditHelpers(t *testing.T) {
	m := mustDecode(t, dispenseMessage)
	ids := provider.Fixed{Digits: "7", Letters: "Qz"}

	start := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	if err := m.SetScheduleWindow(start, time.Time{}); err != nil {
		t.Fatalf("SetScheduleWindow failed: %v", err)
	}
	if m.TQ1[0].StartDateTime != "20240701080000" || m.TQ1[0].EndDateTime != "" {
		t.Errorf("unexpected window %q %q", m.TQ1[0].StartDateTime, m.TQ1[0].EndDateTime)
	}
	if err := m.SetAdminTime("0800"); err != nil || m.TQ1[0].ExplicitTime != "0800" {
		t.Errorf("unexpected admin time %q %v", m.TQ1[0].ExplicitTime, err)
	}
	if err := m.AppendDrugNameSuffix(ids); err != nil || m.RXE.GiveCode.Text != "Mirtazapine 7.5MG TAB QzQ" {
		t.Errorf("unexpected drug name %q %v", m.RXE.GiveCode.Text, err)
	}
	if err := m.ScrambleOrderNumber(ids); err != nil || m.ORC.FillerOrderNumber != "77777" {
		t.Errorf("unexpected order number %q %v", m.ORC.FillerOrderNumber, err)
	}

	empty := &Message{}
	if err := empty.SetAdminTime("0800"); !errors.Is(err, ErrEmptyRepeatingSegment) {
		t.Errorf("expected ErrEmptyRepeatingSegment, got %v", err)
	}
	if err := empty.ScrambleOrderNumber(ids); !errors.Is(err, ErrMissingSegment) {
		t.Errorf("expected ErrMissingSegment, got %v", err)
	}
}

func TestCopiers(t *testing.T) {
	m := mustDecode(t, dispenseMessage)

	for _, c := range []Copier{CloneCopier{}, JSONCopier{}} {
		cp, err := c.Copy(m)
		if err != nil {
			t.Fatalf("%T: copy failed: %v", c, err)
		}
		if !reflect.DeepEqual(cp, m) {
			t.Errorf("%T: copy not value-equal", c)
		}
		cp.TQ1[0].SetID = "99"
		cp.MSH.MessageType = "X"
		if m.TQ1[0].SetID != "1" || m.MSH.MessageType != "RDS^O13^RDS_O13" {
			t.Errorf("%T: copy aliases the source", c)
		}
	}
}

func TestPeekControlID(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"dispense", dispenseMessage, "4154958"},
		{"crlf", strings.ReplaceAll(dispenseMessage, "\n", "\r\n"), "4154958"},
		{"empty", "", ""},
		{"no header", "PID|1|775908", ""},
		{"short header", `MSH|^~\&|PC`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekControlID(tt.text); got != tt.want {
				t.Errorf("PeekControlID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeDecodeRoundTripFromStruct(t *testing.T) {
	src := &Message{
		MSH: &segment.MSH{
			SendingApplication:   "PC",
			ReceivingApplication: "PCC",
			ReceivingFacility:    "QTFCMORMEFAC25",
			DateTimeOfMessage:    "20240607111040",
			MessageType:          "RDE^O11^RDE_O11",
			MessageControlID:     "4154958",
			VersionID:            "2.5",
		},
		PID: &segment.PID{
			PatientID:         "775908",
			PatientName:       segment.PersonName{FamilyName: "Cooper", GivenName: "Bradley"},
			DateTimeOfBirth:   "19360531000000",
			AdministrativeSex: "M",
		},
		PV1: &segment.PV1{
			AssignedPatientLocation: segment.Location{PointOfCare: "3W", Room: "301", Bed: "A"},
			AdmitDateTime:           "20240601000000",
		},
		ORC: &segment.ORC{
			OrderControl:      "NW",
			FillerOrderNumber: "5288240975",
			QuantityTiming:    segment.TimingQuantity{Quantity: "1", Interval: "QHS", StartDateTime: "20240601111958"},
			OrderingProvider:  segment.ProviderName{IDNumber: "1234567890", FamilyName: "Last", GivenName: "First"},
		},
		RXE: &segment.RXE{
			GiveCode:                   segment.CodedElement{Identifier: "69618001001", Text: "Mirtazapine 7.5MG TAB"},
			GiveUnits:                  "TABS",
			AdministrationInstructions: "Take one daily",
			PrescriptionNumber:         "58902",
			GiveIndication:             segment.CodedElement{Identifier: "F33.9", Text: "Depression", CodingSystem: "ICD10"},
		},
		TQ1: []*segment.TQ1{
			{SetID: "1", Quantity: "1^TAB", RepeatPattern: "QHS", TextInstruction: "X"},
			{SetID: "2", Quantity: "1^TAB", RepeatPattern: "QAM", TextInstruction: "Y"},
		},
		RXR: &segment.RXR{Route: segment.CodedElement{Identifier: "27", Text: "by mouth"}},
		RXD: &segment.RXD{
			DispenseSubIDCounter: "1",
			DispenseGiveCode:     segment.CodedElement{Identifier: "69618001001", Text: "Mirtazapine 7.5MG TAB"},
			DateTimeDispensed:    "20240607111040",
		},
	}

	got, err := Decode(src.Encode())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Errorf("round trip changed the message:\n got: %s\nwant: %s", got.Encode(), src.Encode())
	}
}
