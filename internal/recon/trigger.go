package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/logger"
)

// ReconEnabledValue is the exact global-enable flag value that allows runs
// to start. Anything else short-circuits the gate.
const ReconEnabledValue = "ON"

// officialSubmissionType is the only submission type eligible for
// reconciliation, matched case-insensitively.
const officialSubmissionType = "official"

// RunStarter requests run creation from the external orchestrator,
// idempotently keyed by run id. started is false when a run for the id
// already exists; that is success, not an error — duplicate change
// notifications for the same record must not spawn concurrent runs.
type RunStarter interface {
	StartRun(ctx context.Context, runID string, input RunInit) (started bool, err error)
}

// TriggerGate decides, from a change notification, whether a reconciliation
// run should be started at all.
type TriggerGate struct {
	profile *Profile
	docs    store.Store
	starter RunStarter
	tel     telemetry.Emitter
	clock   Clock
	enabled string
	log     *logger.Logger
}

// NewTriggerGate wires a trigger gate for the given profile.
func NewTriggerGate(
	profile *Profile,
	docs store.Store,
	starter RunStarter,
	tel telemetry.Emitter,
	clock Clock,
	enabledFlag string,
	log *logger.Logger,
) *TriggerGate {
	return &TriggerGate{
		profile: profile,
		docs:    docs,
		starter: starter,
		tel:     tel,
		clock:   clock,
		enabled: enabledFlag,
		log:     log,
	}
}

// HandleChange evaluates one change notification. It starts a run only when
// the submission is an official revision of the correct stage and young
// enough to pursue. A notification for a nonexistent record is a consistency
// bug upstream and fails with a NotFound error that must not be retried.
func (g *TriggerGate) HandleChange(ctx context.Context, key store.Key) error {
	if g.enabled != ReconEnabledValue {
		g.log.Info("reconciliation disabled, change ignored",
			"pipeline", g.profile.Name, "pk", key.PK, "sk", key.SK)
		return nil
	}

	raw, found, err := g.docs.Get(ctx, g.profile.SourceTable, key)
	if err != nil {
		return err
	}
	if !found {
		nf := apperr.NotFound(
			fmt.Sprintf("change notification for missing record %s/%s", key.PK, key.SK),
		).WithOp("recon.HandleChange")
		g.tel.TrackError(nf)
		return nf
	}

	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		malformed := apperr.Wrap(apperr.KindMalformedRecord, "changed record is not decodable", err).WithOp("recon.HandleChange")
		g.tel.TrackError(malformed)
		return malformed
	}

	if !strings.EqualFold(sub.SubmissionType, officialSubmissionType) {
		g.log.Debug("change skipped: not an official submission",
			"pipeline", g.profile.Name, "record", sub.RecordID())
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(sub.PackageID), RevisionSuffix) {
		g.log.Debug("change skipped: wrong revision stage",
			"pipeline", g.profile.Name, "record", sub.RecordID())
		return nil
	}

	if sub.ClockStartDate == nil || sub.ClockStartDate.IsZero() {
		g.log.Debug("change skipped: no clock start date",
			"pipeline", g.profile.Name, "record", sub.RecordID())
		return nil
	}
	age := SecondsSince(g.clock, sub.ClockStartDate.Time)
	if age >= g.profile.MaxAgeSeconds {
		g.log.Info("change skipped: record too old to pursue",
			"pipeline", g.profile.Name, "record", sub.RecordID(), "ageSeconds", age)
		return nil
	}

	correlationID := g.profile.CorrelationID(&sub)
	runID := g.profile.Name + ":" + correlationID
	input := RunInit{
		RunID:         runID,
		SourceKey:     key,
		CorrelationID: correlationID,
	}

	started, err := g.starter.StartRun(ctx, runID, input)
	if err != nil {
		return err
	}
	if !started {
		g.log.Info("run already in flight", "runId", runID)
		return nil
	}

	g.tel.LogEvent(telemetry.StreamWorkflow, "run started for "+runID)
	return nil
}
