package segment

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/drfirst/go-rxhl7/internal/hl7/provider"
)

const (
	mshLine = `MSH|^~\&|PC||PCC|QTFCMORMEFAC25|20240607111040||RDS^O13^RDS_O13|4154958|P|2.5||||||ASCII|||`
	pidLine = "PID|1|775908|02RES||Cooper_dc0f^QTF_Bradley_2692^^^^||19360531000000|M|||||||||||||||||||||||||||||||"
	orcLine = "ORC|RE||5288240975||||1^QHS&1200,1300^1^20240601111958^20240607111958^0||20240604100958|||1234567890^QTF_MedProFirstName^QTF_MedProLastName||||||||||||||||||"
	rxoLine = "RXO|Mirtazapine 7.5MG TAB|||||||||||||||||||||||||||"
	rxeLine = "RXE||69618001001^Mirtazapine 7.5MG TAB^||||TABS|^Default RXE.7 instructions. Msg fails without this.||||||||58902||||||||||||F33.9^Depression^ICD10|||||||||||||||||"
	tq1Line = "TQ1|1|1^TAB|QHS|1200-1300|||20240607111958||P||Take 1 tablet my mouth every day for Depression|A||"
	rxrLine = "RXR|27^by mouth|||||"
	rxdLine = "RXD|1|69618001001^Mirtazapine 7.5MG TAB|20240607111040||||||||||||||||||||||||||||||"
)

var fixedSource = provider.Fixed{At: time.Date(2024, 6, 7, 11, 10, 40, 0, time.UTC), Digits: "4"}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	for _, line := range []string{mshLine, pidLine, orcLine, rxoLine, rxeLine, tq1Line, rxrLine, rxdLine} {
		seg, err := Decode(line)
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", line[:3], err)
		}
		if got := seg.Encode(); got != line {
			t.Errorf("%s round trip mismatch:\n got: %s\nwant: %s", seg.Tag(), got, line)
		}
	}
}

func TestDecodeTypedFields(t *testing.T) {
	seg, err := Decode(orcLine)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	orc, ok := seg.(*ORC)
	if !ok {
		t.Fatalf("expected *ORC, got %T", seg)
	}
	if orc.OrderControl != "RE" {
		t.Errorf("expected order control RE, got %q", orc.OrderControl)
	}
	if orc.QuantityTiming.Interval != "QHS&1200,1300" {
		t.Errorf("unexpected interval %q", orc.QuantityTiming.Interval)
	}
	if orc.OrderingProvider.GivenName != "QTF_MedProLastName" {
		t.Errorf("unexpected provider %+v", orc.OrderingProvider)
	}

	rxe, err := rxeSchema.Decode(rxeLine)
	if err != nil {
		t.Fatalf("Decode RXE failed: %v", err)
	}
	if rxe.AdministrationInstructions != DefaultAdminInstructions {
		t.Errorf("unexpected instructions %q", rxe.AdministrationInstructions)
	}
	if rxe.GiveCode.Identifier != "69618001001" || rxe.GiveCode.Text != "Mirtazapine 7.5MG TAB" {
		t.Errorf("unexpected give code %+v", rxe.GiveCode)
	}
	if rxe.PrescriptionNumber != "58902" {
		t.Errorf("unexpected prescription number %q", rxe.PrescriptionNumber)
	}
}

func TestDecodeAbsentOptionalFieldsAreEmpty(t *testing.T) {
	rxe, err := rxeSchema.Decode("RXE||123^Drug")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if rxe.PrescriptionNumber != "" || rxe.AdministrationInstructions != "" {
		t.Errorf("decode must not apply defaults: %+v", rxe)
	}
}

func TestDecodeTagMismatch(t *testing.T) {
	_, err := DecodeAs(TagPID, mshLine)
	if !errors.Is(err, ErrSegmentTagMismatch) {
		t.Fatalf("expected ErrSegmentTagMismatch, got %v", err)
	}
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode("OBX|1|ST|")
	if !errors.Is(err, ErrUnsupportedSegment) {
		t.Fatalf("expected ErrUnsupportedSegment, got %v", err)
	}
}

func TestDecodeMissingRequiredField(t *testing.T) {
	_, err := Decode("TQ1")
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("expected ErrMissingRequiredField, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "SetID" || fe.Index != 1 {
		t.Errorf("unexpected field error %#v", err)
	}

	if _, err := Decode("TQ1|"); err != nil {
		t.Errorf("present but blank required field should decode: %v", err)
	}
}

func TestBuildAppliesDefaults(t *testing.T) {
	msh, err := mshSchema.Build(fixedSource, Values{
		"SendingApplication":   "PC",
		"ReceivingApplication": "PCC",
		"ReceivingFacility":    "QTFCMORMEFAC25",
		"MessageType":          "RDS^O13^RDS_O13",
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want := `MSH|^~\&|PC||PCC|QTFCMORMEFAC25|20240607111040||RDS^O13^RDS_O13|4444444|P|2.5||||||ASCII|||`
	if got := msh.Encode(); got != want {
		t.Errorf("unexpected header:\n got: %s\nwant: %s", got, want)
	}

	seg, err := Build(TagRXE, fixedSource, nil)
	if err != nil {
		t.Fatalf("Build RXE failed: %v", err)
	}
	rxe := seg.(*RXE)
	if rxe.GiveCode.Identifier != "44444444444" || rxe.GiveCode.Text != DefaultGiveCodeText {
		t.Errorf("unexpected default give code %+v", rxe.GiveCode)
	}
	if rxe.PrescriptionNumber != "44444" {
		t.Errorf("unexpected default prescription number %q", rxe.PrescriptionNumber)
	}
	if !strings.Contains(rxe.Encode(), "|^"+DefaultAdminInstructions+"|") {
		t.Errorf("expected default instructions in %s", rxe.Encode())
	}
}

func TestBuildSetsComponentSlotVerbatim(t *testing.T) {
	rxe, err := rxeSchema.Build(fixedSource, Values{"AdministrationInstructions": "Take one daily"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if rxe.AdministrationInstructions != "Take one daily" {
		t.Errorf("AdministrationInstructions = %q, want %q", rxe.AdministrationInstructions, "Take one daily")
	}
	if got := rxe.Encode(); !strings.Contains(got, "|^Take one daily|") {
		t.Errorf("expected instructions at RXE-7 in %s", got)
	}

	decoded, err := rxeSchema.Decode(rxe.Encode())
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.AdministrationInstructions != "Take one daily" {
		t.Errorf("round trip lost instructions: %q", decoded.AdministrationInstructions)
	}
}

func TestBuildSuppliedBlankSkipsDefault(t *testing.T) {
	seg, err := Build(TagPID, fixedSource, Values{"PatientID": ""})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if pid := seg.(*PID); pid.PatientID != "" {
		t.Errorf("expected supplied blank to win over default, got %q", pid.PatientID)
	}
}

func TestBuildMissingRequiredField(t *testing.T) {
	_, err := mshSchema.Build(fixedSource, Values{"SendingApplication": "PC", "ReceivingFacility": "X"})
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if !errors.Is(err, ErrMissingRequiredField) || fe.Field != "MessageType" || fe.Index != 8 {
		t.Errorf("unexpected error %v", err)
	}

	if _, err := BuildRXD(fixedSource, Values{"DispenseSubIDCounter": "1"}); !errors.Is(err, ErrMissingRequiredField) {
		t.Errorf("expected missing dispense give code, got %v", err)
	}
}

func TestBuildUnknownField(t *testing.T) {
	_, err := Build(TagRXR, fixedSource, Values{"Route": "PO", "Bogus": "x"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestBuildRXDMatchesWireLayout(t *testing.T) {
	rxd, err := BuildRXD(fixedSource, Values{
		"DispenseSubIDCounter": "1",
		"DispenseGiveCode":     "69618001001^Mirtazapine 7.5MG TAB",
	})
	if err != nil {
		t.Fatalf("BuildRXD failed: %v", err)
	}
	if got := rxd.Encode(); got != rxdLine {
		t.Errorf("unexpected RXD:\n got: %s\nwant: %s", got, rxdLine)
	}
}

func TestFixedArityFields(t *testing.T) {
	pv1 := &PV1{AssignedPatientLocation: Location{Room: "101", Bed: "A", Facility: "NORTH"}, AdmitDateTime: "20240601"}
	line := pv1.Encode()
	if !strings.HasPrefix(line, "PV1|1|I|^101^A^NORTH^^^|") {
		t.Errorf("unexpected PV1 prefix: %s", line)
	}
	if n := strings.Count(line, "|"); n != 52 {
		t.Errorf("expected 52 separators, got %d", n)
	}

	decoded, err := pv1Schema.Decode(line)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if *decoded != *pv1 {
		t.Errorf("round trip mismatch: %+v != %+v", decoded, pv1)
	}
}

func TestExtensionSegmentsRoundTrip(t *testing.T) {
	segs := []Segment{
		&ZPI{TimesPerDay: "2", OrderRequestID: CodedElement{Identifier: "77", Text: "req"}, IsPRN: "N", StartDate: "20240601", RxNumber: "12345"},
		&ZQM{BarCode: "0369", BrandNameEquivalent: "Y"},
		&ZRX{DispenseCode: "D", RetailPharmacyOriginalDate: "20240101"},
	}
	for _, seg := range segs {
		decoded, err := Decode(seg.Encode())
		if err != nil {
			t.Fatalf("Decode(%s) failed: %v", seg.Tag(), err)
		}
		if decoded.Encode() != seg.Encode() {
			t.Errorf("%s round trip mismatch: %s", seg.Tag(), decoded.Encode())
		}
	}
}

func TestFieldNames(t *testing.T) {
	names, err := FieldNames(TagRXR)
	if err != nil || len(names) != 1 || names[0] != "Route" {
		t.Errorf("unexpected RXR names %v %v", names, err)
	}
	if _, err := FieldNames("XYZ"); !errors.Is(err, ErrUnsupportedSegment) {
		t.Errorf("expected unsupported, got %v", err)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	orig := &RXE{GiveCode: CodedElement{Identifier: "1", Text: "a"}}
	c := Clone(orig)
	c.GiveCode.Text = "b"
	if orig.GiveCode.Text != "a" {
		t.Error("clone aliased the original")
	}
	if Clone[RXE](nil) != nil {
		t.Error("expected nil clone of nil")
	}
}

func TestCodedElementIsEmpty(t *testing.T) {
	if !(CodedElement{}).IsEmpty() {
		t.Error("expected empty element")
	}
	if (CodedElement{Text: "x"}).IsEmpty() {
		t.Error("expected non-empty element")
	}
	if got := (CodedElement{Identifier: "27", Text: "by mouth"}).Encode(); got != "27^by mouth" {
		t.Errorf("unexpected encoding %q", got)
	}
}
