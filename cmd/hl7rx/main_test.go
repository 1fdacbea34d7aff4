package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drfirst/go-rxhl7/internal/hl7/convert"
	"github.com/drfirst/go-rxhl7/internal/hl7/message"
)

const order = `MSH|^~\&|||AB|LOCATION1|20240531000000||RDS^O13^RDS_O13|4154345958|P|2.5||||||ASCII|||
PID|1|775908|02RES||Cooper_dc0f^QTF_Bradley_2692^^^^||19360531000000|M|||||||||||||||||||||||||||||||
ORC|NW||5288240975||||1^QHS&1200,1300^1^20240601111958^20240607111958^0||20240604100958|||1234567890^QTF_MedProFirstName^QTF_MedProLastName||||||||||||||||||
RXO|Mirtazapine 7.5MG TAB|||||||||||||||||||||||||||
RXE||69618001001^Mirtazapine 7.5MG TAB^||||TABS|^instructions||||||||58902||||||||||||F33.9^Depression^ICD10|||||||||||||||||
TQ1|1|1^TAB|QHS|1200-1300|||20240607111958||P||Take 1 tablet my mouth every day for Depression|A||
RXR|27^by mouth|||||`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseFromStdin(t *testing.T) {
	out, err := run(t, order, "parse")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	var got parseOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.ControlID != "4154345958" || strings.Join(got.Segments, ",") != "MSH,PID,ORC,RXO,RXE,TQ1,RXR" {
		t.Errorf("parse output = %+v", got)
	}
}

func TestParseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "order.hl7")
	if err := os.WriteFile(path, []byte(order+"\r\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "parse", path); err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if _, err := run(t, "", "parse", filepath.Join(t.TempDir(), "missing.hl7")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	msg, err := message.Decode(order)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}

	out, err := run(t, string(body), "encode")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSuffix(out, "\n") != msg.Encode() {
		t.Errorf("encode output:\n%s", out)
	}
}

func TestConvert(t *testing.T) {
	out, err := run(t, order, "convert", "--event", "dispense")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(lines[0], "RDS^O13^RDS_O13") {
		t.Errorf("MSH = %s", lines[0])
	}
	if !strings.HasPrefix(lines[2], "ORC|RE|") {
		t.Errorf("ORC = %s", lines[2])
	}
	if !strings.HasPrefix(lines[len(lines)-1], "RXD|1|69618001001^Mirtazapine 7.5MG TAB|") {
		t.Errorf("expected a dispense segment, got %s", lines[len(lines)-1])
	}
}

func TestConvertRejectsUnknownEvent(t *testing.T) {
	_, err := run(t, order, "convert", "--event", "ORDER_TELEPORT")
	if !errors.Is(err, convert.ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
	if _, err := run(t, order, "convert"); err == nil {
		t.Error("expected error without --event")
	}
}

func TestInstructions(t *testing.T) {
	out, err := run(t, order, "instructions")
	if err != nil {
		t.Fatalf("instructions: %v", err)
	}
	if strings.TrimSpace(out) != "Take 1 tablet my mouth every day for Depression" {
		t.Errorf("single = %q", out)
	}

	multi := strings.Replace(order, "\nRXR|", "\nTQ1|2|1^TAB|QAM|0800|||20240607111958||P||With breakfast|A||\nRXR|", 1)
	out, err = run(t, multi, "instructions", "--delimiter", " / ")
	if err != nil {
		t.Fatalf("instructions: %v", err)
	}
	if strings.TrimSpace(out) != "Take 1 tablet my mouth every day for Depression / With breakfast" {
		t.Errorf("multi = %q", out)
	}
}

func TestEvents(t *testing.T) {
	out, err := run(t, "", "events")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(strings.Fields(out)); got != len(convert.Events()) {
		t.Errorf("listed %d events, want %d", got, len(convert.Events()))
	}
}

func TestTrimTrailingNewlines(t *testing.T) {
	if got := trimTrailingNewlines([]byte("MSH|1\r\n\n")); got != "MSH|1" {
		t.Errorf("got %q", got)
	}
}
