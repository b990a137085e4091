package recon

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"seatool_alerts/internal/email"
	"seatool_alerts/internal/secrets"
	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/logger"
)

type fakeVault struct {
	values map[string][]byte
}

func newFakeVault() *fakeVault {
	return &fakeVault{values: make(map[string][]byte)}
}

func (v *fakeVault) put(t *testing.T, scope secrets.Scope, value any) {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatal(err)
	}
	v.values[scope.Path()] = data
}

func (v *fakeVault) Exists(_ context.Context, scope secrets.Scope) (bool, error) {
	_, ok := v.values[scope.Path()]
	return ok, nil
}

func (v *fakeVault) GetJSON(_ context.Context, scope secrets.Scope, out any) error {
	data, ok := v.values[scope.Path()]
	if !ok {
		return apperr.NotFound("secret " + scope.Path() + " not found")
	}
	return json.Unmarshal(data, out)
}

type fakeSender struct {
	sent []email.Message
}

func (s *fakeSender) Send(_ context.Context, msg email.Message) error {
	s.sent = append(s.sent, msg)
	return nil
}

type fixture struct {
	pipeline *Pipeline
	docs     *store.MemoryStore
	vault    *fakeVault
	sender   *fakeSender
	tel      *telemetry.Recorder
	clock    FixedClock
	scope    secrets.Scope
}

func newFixture(t *testing.T, profile *Profile) *fixture {
	t.Helper()
	f := &fixture{
		docs:   store.NewMemoryStore(),
		vault:  newFakeVault(),
		sender: &fakeSender{},
		tel:    telemetry.NewRecorder(),
		clock:  testClock(),
	}
	f.scope = secrets.Scope{Project: "seatool-alerts", Stage: "test", Purpose: profile.SecretPurpose}
	f.pipeline = NewPipeline(profile, f.docs, f.vault, f.sender, f.tel, f.clock,
		Options{SecretProject: "seatool-alerts", SecretStage: "test"},
		logger.New("test"))
	return f
}

func (f *fixture) seedSource(t *testing.T, table string, sub Submission) store.Key {
	t.Helper()
	key := sub.Key()
	if err := f.docs.Put(context.Background(), table, key, sub); err != nil {
		t.Fatal(err)
	}
	return key
}

func (f *fixture) seedTarget(t *testing.T, table, correlationID string, rec TargetRecord) {
	t.Helper()
	if err := f.docs.Put(context.Background(), table, store.KeyOf(correlationID), rec); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) loadStatus(t *testing.T, table string, key store.Key) RunStatus {
	t.Helper()
	raw, found, err := f.docs.Get(context.Background(), table, key)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("status row %v missing", key)
	}
	var status RunStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatal(err)
	}
	return status
}

func signedSubmission(clock FixedClock, ago time.Duration) Submission {
	signed := When{Time: clock.Instant.Add(-ago)}
	start := When{Time: clock.Instant.Add(-ago - 24*time.Hour)}
	return Submission{
		ID:                "sub-1",
		StateCode:         "MD",
		TransmittalNumber: "MD-26-0001",
		PackageID:         "md-26-0001c",
		SubmissionType:    "Official",
		ClockStartDate:    &start,
		Payload:           &SubmissionPayload{SignatureDate: &signed, MAC: &ProgramSection{}},
		Statuses:          []StatusEntry{{LifecycleCode: 1, FormStatus: 4}},
	}
}

func TestInitRequiresStatusTable(t *testing.T) {
	profile := AppianProfile("")
	profile.StatusTable = ""
	f := newFixture(t, profile)

	err := f.pipeline.Init(context.Background(), RunInit{RunID: "appian:X"})
	if !apperr.IsKind(err, apperr.KindConfiguration) {
		t.Fatalf("expected Configuration error, got %v", err)
	}
}

func TestInitDoesNotResetExistingRun(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)

	key := store.KeyOf("sub-1")
	existing := RunStatus{ID: "appian:X", Pipeline: profile.Name, Iterations: 3}
	if err := f.docs.Put(context.Background(), profile.StatusTable, key, existing); err != nil {
		t.Fatal(err)
	}

	in := RunInit{RunID: "appian:X", SourceKey: key, CorrelationID: "X"}
	if err := f.pipeline.Init(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	status := f.loadStatus(t, profile.StatusTable, key)
	if status.Iterations != 3 {
		t.Fatalf("existing run was reset: iterations %d", status.Iterations)
	}
}

func TestInitCreatesZeroIterationRow(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)

	key := store.KeyOf("sub-1")
	in := RunInit{RunID: "appian:X", SourceKey: key, CorrelationID: "X"}
	if err := f.pipeline.Init(context.Background(), in); err != nil {
		t.Fatal(err)
	}

	status := f.loadStatus(t, profile.StatusTable, key)
	if status.Iterations != 0 || status.ID != "appian:X" || status.Pipeline != "appian" {
		t.Fatalf("unexpected status row: %+v", status)
	}
}

func TestFetchSourceMissingRecordStillForwards(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)

	out := f.pipeline.FetchSource(context.Background(), RunInit{
		RunID:     "appian:X",
		SourceKey: store.KeyOf("gone"),
	})

	if out.StageError == "" {
		t.Fatal("expected stage error on payload")
	}
	if len(f.tel.Errors) != 1 || !apperr.IsKind(f.tel.Errors[0], apperr.KindNotFound) {
		t.Fatalf("expected tracked NotFound, got %v", f.tel.Errors)
	}
	if out.Submitted {
		t.Fatal("missing record cannot be submitted")
	}
	if out.Status != StatusSentinel {
		t.Fatalf("expected sentinel status, got %d", out.Status)
	}
}

func TestFetchSourceDerivesSignatureFacts(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)
	key := f.seedSource(t, profile.SourceTable, sub)

	out := f.pipeline.FetchSource(context.Background(), RunInit{RunID: "appian:X", SourceKey: key})

	if !out.Signed || out.SecSinceSigned != 72*3600 {
		t.Fatalf("unexpected signature facts: signed=%t secs=%d", out.Signed, out.SecSinceSigned)
	}
	if out.ProgramType != ProgramMAC {
		t.Fatalf("expected MAC, got %q", out.ProgramType)
	}
	if !out.Submitted {
		t.Fatal("record with a status entry is submitted")
	}
	if out.StageError != "" {
		t.Fatalf("unexpected stage error %q", out.StageError)
	}
}

func TestCompareMatchOnlyWhenBothDatesPresent(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)
	key := f.seedSource(t, profile.SourceTable, sub)

	fetched := f.pipeline.FetchSource(context.Background(), RunInit{
		RunID: "appian:X", SourceKey: key, CorrelationID: "MD-md-26-0001c-MAC",
	})

	// No target yet: no match.
	checked := f.pipeline.CheckTarget(context.Background(), fetched)
	if checked.TargetExists {
		t.Fatal("target should not exist yet")
	}
	if f.pipeline.Compare(checked).Match {
		t.Fatal("no target cannot match")
	}

	// Target with the same calendar day matches under locale comparison.
	sameDay := When{Time: sub.Payload.SignatureDate.Time.Add(4 * time.Hour)}
	f.seedTarget(t, profile.TargetTable, "MD-md-26-0001c-MAC", TargetRecord{
		ID:             "MD-md-26-0001c-MAC",
		SubmissionDate: &sameDay,
	})
	checked = f.pipeline.CheckTarget(context.Background(), fetched)
	if !checked.TargetExists {
		t.Fatal("target should exist")
	}
	if !f.pipeline.Compare(checked).Match {
		t.Fatal("same-day dates must match for the locale-date pipeline")
	}
}

func TestCheckTargetMalformedRecordSetsStageError(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)
	key := f.seedSource(t, profile.SourceTable, sub)

	fetched := f.pipeline.FetchSource(context.Background(), RunInit{
		RunID: "appian:X", SourceKey: key, CorrelationID: "MD-md-26-0001c-MAC",
	})

	// A target row that does not decode into a record.
	if err := f.docs.Put(context.Background(), profile.TargetTable,
		store.KeyOf("MD-md-26-0001c-MAC"), map[string]any{"id": 42}); err != nil {
		t.Fatal(err)
	}

	checked := f.pipeline.CheckTarget(context.Background(), fetched)
	if checked.TargetExists {
		t.Fatal("undecodable target must not count as existing")
	}
	if checked.StageError == "" {
		t.Fatal("undecodable target must be recorded on the payload")
	}
	if len(f.tel.Errors) != 1 {
		t.Fatalf("expected one tracked error, got %v", f.tel.Errors)
	}
}

func TestSendAlertSkipsMatchedRecord(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)

	in := Compared{
		TargetChecked: TargetChecked{TargetExists: true},
		Match:         true,
	}
	f.pipeline.SendAlert(context.Background(), in)

	if len(f.sender.sent) != 0 {
		t.Fatal("matched record must not alert")
	}
	if len(f.tel.Events[telemetry.StreamAlerts]) != 0 {
		t.Fatalf("unexpected audit events: %v", f.tel.Events[telemetry.StreamAlerts])
	}
}

func TestSendAlertSimulatesWhenSecretAbsent(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)

	in := Compared{TargetChecked: TargetChecked{
		SourceFetched: SourceFetched{
			RunInit:    RunInit{RunID: "appian:X", CorrelationID: "MD-md-26-0001c-MAC"},
			Submission: &sub,
		},
	}}
	f.pipeline.SendAlert(context.Background(), in)

	if len(f.sender.sent) != 0 {
		t.Fatal("no secret means no real dispatch")
	}
	events := f.tel.Events[telemetry.StreamAlerts]
	var sawNotFound, sawTest bool
	for _, e := range events {
		if strings.HasPrefix(e, "NOTFOUND -") {
			sawNotFound = true
		}
		if strings.HasPrefix(e, "TEST -") {
			sawTest = true
		}
	}
	if !sawNotFound || !sawTest {
		t.Fatalf("expected NOTFOUND and TEST audit lines, got %v", events)
	}
}

func TestSendAlertUrgentDispatchWithCcEscalation(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 6*24*time.Hour) // past the 5-day urgency line

	f.vault.put(t, f.scope, EscalationConfig{
		SourceEmail: "alerts@example.gov",
		NonCHP: Recipients{
			ToAddresses: []string{"desk@example.gov"},
			CcAddresses: []CcEntry{
				{Email: "lead@example.gov", AlertIfGreaterThanSeconds: UrgentAfterSeconds},
				{Email: "never@example.gov", AlertIfGreaterThanSeconds: 30 * 24 * 3600},
			},
		},
	})

	in := Compared{TargetChecked: TargetChecked{
		SourceFetched: SourceFetched{
			RunInit:        RunInit{RunID: "appian:X", CorrelationID: "MD-md-26-0001c-MAC"},
			Submission:     &sub,
			ProgramType:    ProgramMAC,
			Signed:         true,
			SecSinceSigned: 6 * 24 * 3600,
		},
	}}
	f.pipeline.SendAlert(context.Background(), in)

	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.sender.sent))
	}
	msg := f.sender.sent[0]
	if !strings.HasPrefix(msg.Subject, "URGENT Action required - ") {
		t.Fatalf("expected urgent subject, got %q", msg.Subject)
	}
	if len(msg.To) != 1 || msg.To[0] != "desk@example.gov" {
		t.Fatalf("unexpected To: %v", msg.To)
	}
	if len(msg.Cc) != 1 || msg.Cc[0] != "lead@example.gov" {
		t.Fatalf("expected boundary-inclusive cc only, got %v", msg.Cc)
	}
	if f.tel.Metrics["appian.alerts_sent"] != 1 {
		t.Fatalf("expected alerts_sent metric, got %v", f.tel.Metrics)
	}
}

func TestSendAlertTierRecipientsForMMDL(t *testing.T) {
	profile := MMDLProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 120*time.Hour)

	f.vault.put(t, f.scope, LegacyEscalationConfig{
		SourceEmail: "alerts@example.gov",
		EmailRecipients: map[string][]string{
			TierInitial:        {"initial@example.gov"},
			TierSecondFollowUp: {"second@example.gov"},
		},
	})

	in := Compared{TargetChecked: TargetChecked{
		SourceFetched: SourceFetched{
			RunInit:        RunInit{RunID: "mmdl:MD-26-0001", CorrelationID: "MD-26-0001"},
			Submission:     &sub,
			Signed:         true,
			SecSinceSigned: 120 * 3600, // past the second-follow-up line
		},
	}}
	f.pipeline.SendAlert(context.Background(), in)

	if len(f.sender.sent) != 1 {
		t.Fatalf("expected one alert, got %d", len(f.sender.sent))
	}
	msg := f.sender.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "second@example.gov" {
		t.Fatalf("expected second follow-up tier, got %v", msg.To)
	}
	if msg.From != "alerts@example.gov" {
		t.Fatalf("expected configured source email, got %q", msg.From)
	}
}

func TestSendAlertSuppressedForIgnoredState(t *testing.T) {
	profile := AppianProfile("MD")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)

	f.vault.put(t, f.scope, EscalationConfig{
		SourceEmail: "alerts@example.gov",
		NonCHP:      Recipients{ToAddresses: []string{"desk@example.gov"}},
	})

	in := Compared{TargetChecked: TargetChecked{
		SourceFetched: SourceFetched{
			RunInit:    RunInit{RunID: "appian:X", CorrelationID: "MD-md-26-0001c-MAC"},
			Submission: &sub,
		},
	}}
	f.pipeline.SendAlert(context.Background(), in)

	if len(f.sender.sent) != 0 {
		t.Fatal("ignored-state alert must be suppressed")
	}
	var sawIgnored bool
	for _, e := range f.tel.Events[telemetry.StreamAlerts] {
		if strings.HasPrefix(e, "IGNORED -") {
			sawIgnored = true
		}
	}
	if !sawIgnored {
		t.Fatalf("expected IGNORED audit line, got %v", f.tel.Events[telemetry.StreamAlerts])
	}
}

func TestUpdateStatusOverwriteConverges(t *testing.T) {
	profile := AppianProfile("")
	f := newFixture(t, profile)
	sub := signedSubmission(f.clock, 72*time.Hour)
	key := sub.Key()

	in := Compared{TargetChecked: TargetChecked{
		SourceFetched: SourceFetched{
			RunInit: RunInit{
				RunID:         "appian:X",
				SourceKey:     key,
				CorrelationID: "MD-md-26-0001c-MAC",
				Iterations:    0,
			},
			Submission: &sub,
		},
	}}

	// A retried stage invocation carries the same payload; the persisted
	// count must converge, not double-increment.
	first, err := f.pipeline.UpdateStatus(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.pipeline.UpdateStatus(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if first.Iterations != 1 || second.Iterations != 1 {
		t.Fatalf("expected converging count 1, got %d then %d", first.Iterations, second.Iterations)
	}

	status := f.loadStatus(t, profile.StatusTable, key)
	if status.Iterations != 1 {
		t.Fatalf("persisted iterations %d, want 1", status.Iterations)
	}
	if status.TransmittalNumber != "MD-26-0001" {
		t.Fatalf("expected transmittal number on row, got %q", status.TransmittalNumber)
	}

	// The next pass carries the advanced count and lands on 2.
	in.Iterations = second.Iterations
	third, err := f.pipeline.UpdateStatus(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if third.Iterations != 2 {
		t.Fatalf("expected 2, got %d", third.Iterations)
	}
}
