package recon

import (
	"testing"

	"seatool_alerts/internal/telemetry"
)

func TestIsIgnoredStateEmptyConfigDisablesFiltering(t *testing.T) {
	if IsIgnoredState(nil, "TN-26-0001", "", true) {
		t.Fatal("empty config must never suppress")
	}
}

func TestIsIgnoredStatePrefixMatch(t *testing.T) {
	tel := telemetry.NewRecorder()

	if !IsIgnoredState(tel, "TN-26-0001", "VA, TN ,GU", true) {
		t.Fatal("expected TN to be ignored")
	}
	if len(tel.Events[telemetry.StreamAlerts]) != 1 {
		t.Fatalf("expected one audit event, got %d", len(tel.Events[telemetry.StreamAlerts]))
	}

	if IsIgnoredState(tel, "MD-26-0001", "VA,TN,GU", true) {
		t.Fatal("MD is not configured")
	}
	if IsIgnoredState(tel, "T", "TN", true) {
		t.Fatal("one-character record id cannot match")
	}
}

func TestIsIgnoredStateCaseHandlingPerPipeline(t *testing.T) {
	// Appian uppercases the record prefix before matching.
	if !IsIgnoredState(nil, "tn-26-0001", "TN", true) {
		t.Fatal("expected lowercase record to match with uppercasing on")
	}
	// MMDL matches raw case, so the same record slips through.
	if IsIgnoredState(nil, "tn-26-0001", "TN", false) {
		t.Fatal("expected lowercase record to miss with uppercasing off")
	}
}
