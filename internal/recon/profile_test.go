package recon

import (
	"testing"
	"time"
)

func TestCorrelationIDMMDLNormalizesTransmittalNumber(t *testing.T) {
	p := MMDLProfile("")
	sub := &Submission{TransmittalNumber: "  md-26-0001  "}
	if got := p.CorrelationID(sub); got != "MD-26-0001" {
		t.Fatalf("expected MD-26-0001, got %q", got)
	}
}

func TestCorrelationIDAppianJoinsStatePackageProgram(t *testing.T) {
	p := AppianProfile("")
	sub := &Submission{
		StateCode: "MD",
		PackageID: "md-26-0001c",
		Payload:   &SubmissionPayload{CHP: &ProgramSection{}},
	}
	if got := p.CorrelationID(sub); got != "MD-md-26-0001c-CHP" {
		t.Fatalf("expected MD-md-26-0001c-CHP, got %q", got)
	}

	// No program section: the segment is omitted entirely.
	bare := &Submission{StateCode: "MD", PackageID: "md-26-0001c"}
	if got := p.CorrelationID(bare); got != "MD-md-26-0001c" {
		t.Fatalf("expected MD-md-26-0001c, got %q", got)
	}
}

func TestDatesMatchLocaleVsEpoch(t *testing.T) {
	morning := When{Time: time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)}
	evening := When{Time: time.Date(2026, 1, 15, 22, 0, 0, 0, time.UTC)}

	appian := AppianProfile("")
	if !appian.DatesMatch(morning, evening) {
		t.Fatal("locale-date comparison must match same calendar day")
	}

	mmdl := MMDLProfile("")
	if mmdl.DatesMatch(morning, evening) {
		t.Fatal("epoch comparison must not match different instants")
	}
	if !mmdl.DatesMatch(morning, morning) {
		t.Fatal("epoch comparison must match identical instants")
	}

	if appian.DatesMatch(When{}, evening) || appian.DatesMatch(morning, When{}) {
		t.Fatal("zero dates never match")
	}
}
