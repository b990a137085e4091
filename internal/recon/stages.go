package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"seatool_alerts/internal/email"
	"seatool_alerts/internal/secrets"
	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/logger"
)

// Options carries the cross-cutting settings a pipeline needs beyond its
// profile; populated once at wiring time, never read from the environment
// mid-stage.
type Options struct {
	SecretProject  string
	SecretStage    string
	AlertSubdomain string
}

// Pipeline executes the reconciliation stages for one profile. Every stage
// is independently invocable and idempotent: it takes the typed payload of
// its predecessor, calls its collaborators, and returns the extended payload.
// Stage-local failures are tracked via telemetry and the payload still moves
// downstream; the external orchestrator's retry policy — not in-stage
// retries — is the recovery mechanism.
type Pipeline struct {
	profile *Profile
	docs    store.Store
	vault   secrets.Store
	mailer  email.Sender
	tel     telemetry.Emitter
	clock   Clock
	opts    Options
	log     *logger.Logger
}

// NewPipeline wires a pipeline for the given profile.
func NewPipeline(
	profile *Profile,
	docs store.Store,
	vault secrets.Store,
	mailer email.Sender,
	tel telemetry.Emitter,
	clock Clock,
	opts Options,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		profile: profile,
		docs:    docs,
		vault:   vault,
		mailer:  mailer,
		tel:     tel,
		clock:   clock,
		opts:    opts,
		log:     log,
	}
}

// Profile exposes the pipeline's profile for task routing.
func (p *Pipeline) Profile() *Profile { return p.profile }

// Init creates the run's status row with a zero iteration count. A missing
// status table name is a deployment defect and fails immediately, before any
// collaborator call. An existing row is left untouched so retried init
// invocations cannot reset a run already in progress.
func (p *Pipeline) Init(ctx context.Context, in RunInit) error {
	if p.profile.StatusTable == "" {
		return apperr.Configuration("status table is not configured").WithOp("recon.Init")
	}

	key := statusKey(in)
	if _, found, err := p.docs.Get(ctx, p.profile.StatusTable, key); err != nil {
		return err
	} else if found {
		p.log.StageEvent("init", in.RunID, "existing", true)
		return nil
	}

	status := RunStatus{
		PK:            in.SourceKey.PK,
		SK:            in.SourceKey.SK,
		ID:            in.RunID,
		Pipeline:      p.profile.Name,
		CorrelationID: in.CorrelationID,
		Iterations:    0,
	}
	if err := p.docs.Put(ctx, p.profile.StatusTable, key, status); err != nil {
		return err
	}
	p.log.StageEvent("init", in.RunID)
	return nil
}

// FetchSource loads the source record and derives program type, signature
// info, and elapsed time. Errors (including an absent record) are tracked
// and recorded on the payload, which is always forwarded so the report stage
// can later surface the failure state.
func (p *Pipeline) FetchSource(ctx context.Context, in RunInit) SourceFetched {
	out := SourceFetched{
		RunInit:    in,
		Status:     StatusSentinel,
		LastStatus: StatusSentinel,
	}

	raw, found, err := p.docs.Get(ctx, p.profile.SourceTable, in.SourceKey)
	if err != nil {
		p.tel.TrackError(err)
		out.StageError = err.Error()
		return out
	}
	if !found {
		nf := apperr.NotFound(
			fmt.Sprintf("source record %s/%s not found", in.SourceKey.PK, in.SourceKey.SK),
		).WithOp("recon.FetchSource")
		p.tel.TrackError(nf)
		out.StageError = nf.Error()
		return out
	}

	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		malformed := apperr.Wrap(apperr.KindMalformedRecord, "source record is not decodable", err).WithOp("recon.FetchSource")
		p.tel.TrackError(malformed)
		out.StageError = malformed.Error()
		return out
	}
	out.Submission = &sub
	out.ProgramType = GetProgType(&sub)

	sig, err := GetSigInfo(p.clock, &sub)
	if err != nil {
		// FutureDate: terminal data-quality error for this record, but the
		// payload keeps whatever was computed before the failure.
		p.tel.TrackError(err)
		out.StageError = err.Error()
	}
	out.Signed = sig.Signed
	out.SecSinceSigned = sig.SecSinceSigned
	out.Status = sig.Status
	out.LastStatus = sig.LastStatus
	if sig.Signed {
		signed := sig.SignedDate
		out.SignedDate = &signed
	}
	out.Submitted = sig.Status != StatusSentinel

	p.log.StageEvent("fetch_source", in.RunID,
		"programType", out.ProgramType,
		"signed", out.Signed,
	)
	return out
}

// CheckTarget looks up the SEATool counterpart by correlation id. Absence is
// logged, not an error: a missing counterpart is the condition the alert
// stage exists for.
func (p *Pipeline) CheckTarget(ctx context.Context, in SourceFetched) TargetChecked {
	out := TargetChecked{SourceFetched: in}

	raw, found, err := p.docs.Get(ctx, p.profile.TargetTable, store.KeyOf(in.CorrelationID))
	if err != nil {
		p.tel.TrackError(err)
		out.StageError = firstNonEmpty(out.StageError, err.Error())
		return out
	}
	if !found {
		p.log.StageEvent("check_target", in.RunID, "targetExists", false)
		return out
	}

	var target TargetRecord
	if err := json.Unmarshal(raw, &target); err != nil {
		merr := apperr.Wrap(apperr.KindMalformedRecord, "target record is not decodable", err).WithOp("recon.CheckTarget")
		p.tel.TrackError(merr)
		out.StageError = firstNonEmpty(out.StageError, merr.Error())
		return out
	}
	out.TargetExists = true
	out.Target = &target
	p.log.StageEvent("check_target", in.RunID, "targetExists", true)
	return out
}

// Compare sets the match verdict: true iff both a normalized source
// submission/signature date and a normalized target submission date are
// present and equal under the profile's comparison mode. Any degenerate
// input degrades to match=false rather than an error.
func (p *Pipeline) Compare(in TargetChecked) Compared {
	out := Compared{TargetChecked: in}

	if !in.TargetExists || in.Target == nil || in.Target.SubmissionDate == nil {
		return out
	}

	sourceDate := sourceSubmissionDate(in)
	if sourceDate.IsZero() {
		return out
	}

	out.Match = p.profile.DatesMatch(sourceDate, *in.Target.SubmissionDate)
	return out
}

// sourceSubmissionDate picks the source-side date for comparison: the
// signature date when signed, otherwise the clock start date.
func sourceSubmissionDate(in TargetChecked) When {
	if in.SignedDate != nil && !in.SignedDate.IsZero() {
		return *in.SignedDate
	}
	if in.Submission != nil && in.Submission.ClockStartDate != nil {
		return *in.Submission.ClockStartDate
	}
	return When{}
}

// SendAlert dispatches the reconciliation alert when the record is missing
// or mismatched in SEATool. Every path writes an audit line via telemetry
// describing whether a real send occurred or was suppressed; a missing alert
// secret degrades to a simulated send marked "TEST" and never dispatches.
func (p *Pipeline) SendAlert(ctx context.Context, in Compared) {
	if in.TargetExists && in.Match {
		return
	}

	recordID := in.CorrelationID
	if in.Submission != nil {
		recordID = in.Submission.RecordID()
	}

	if !in.TargetExists {
		p.tel.LogEvent(telemetry.StreamAlerts,
			fmt.Sprintf("NOTFOUND - no SEATool record for %s", in.CorrelationID))
	}

	scope := secrets.Scope{
		Project: p.opts.SecretProject,
		Stage:   p.opts.SecretStage,
		Purpose: p.profile.SecretPurpose,
	}
	exists, err := p.vault.Exists(ctx, scope)
	if err != nil {
		p.tel.TrackError(err)
		return
	}
	if !exists {
		p.tel.LogEvent(telemetry.StreamAlerts,
			fmt.Sprintf("TEST - alert secret %s absent, simulated alert for %s", scope.Path(), recordID))
		return
	}

	isCHP := in.ProgramType == ProgramCHP
	urgent := IsUrgent(in.SecSinceSigned, p.profile.UrgentAfterSeconds)

	var (
		from string
		to   []string
		cc   []string
	)
	switch p.profile.EscalationModel {
	case EscalateByTier:
		var cfg LegacyEscalationConfig
		if err := p.vault.GetJSON(ctx, scope, &cfg); err != nil {
			p.tel.TrackError(err)
			return
		}
		resolution := ResolveRecipients(in.SecSinceSigned, cfg)
		from = cfg.SourceEmail
		to = resolution.Recipients
	default:
		var cfg EscalationConfig
		if err := p.vault.GetJSON(ctx, scope, &cfg); err != nil {
			p.tel.TrackError(err)
			return
		}
		routed := FilterCc(in.SecSinceSigned, isCHP, cfg)
		from = cfg.SourceEmail
		to = routed.To
		cc = routed.Cc
	}

	if len(to) == 0 {
		p.tel.LogEvent(telemetry.StreamAlerts,
			fmt.Sprintf("no recipients configured for %s, alert for %s suppressed", p.profile.Name, recordID))
		return
	}

	if IsIgnoredState(p.tel, recordID, p.profile.IgnoredStatesCsv, p.profile.UppercaseIgnoredPrefix) {
		p.tel.LogEvent(telemetry.StreamAlerts,
			fmt.Sprintf("IGNORED - alert for %s suppressed (test state)", recordID))
		return
	}

	content := BuildEmailContent(ContentParams{
		ID:        recordID,
		IsUrgent:  urgent,
		Subdomain: p.opts.AlertSubdomain,
		Category:  in.ProgramType,
	})

	subject := fmt.Sprintf(email.SubjectAlertFmt, recordID)
	if urgent {
		subject = fmt.Sprintf(email.SubjectUrgentAlertFmt, recordID)
	}

	html, err := email.RenderLayout(subject, content.HTML)
	if err != nil {
		p.tel.TrackError(err)
		html = content.HTML
	}

	msg := email.Message{
		From:     from,
		To:       to,
		Cc:       cc,
		Subject:  subject,
		HTMLBody: html,
		TextBody: content.Text,
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		p.tel.TrackError(apperr.TransientIO("alert dispatch failed", err).WithOp("recon.SendAlert"))
		return
	}

	p.tel.LogEvent(telemetry.StreamAlerts,
		fmt.Sprintf("SENT - alert for %s to %s (urgent=%t)", recordID, strings.Join(to, ","), urgent))
	p.tel.EmitMetric(p.profile.Name, "alerts_sent", 1)
}

// UpdateStatus persists the run snapshot with the iteration count advanced
// by exactly one over the incoming payload. The write is a full overwrite of
// the status row, so re-invoking the stage with the same payload converges
// on the same persisted count instead of incrementing twice. It always runs,
// even after upstream stage errors: the iteration count is the authoritative
// progress signal for the orchestrator's retry/give-up policy.
func (p *Pipeline) UpdateStatus(ctx context.Context, in Compared) (Iterated, error) {
	out := Iterated{Compared: in, Iterations: in.Iterations + 1}

	status := RunStatus{
		PK:            in.SourceKey.PK,
		SK:            in.SourceKey.SK,
		ID:            in.RunID,
		Pipeline:      p.profile.Name,
		CorrelationID: in.CorrelationID,
		Iterations:    out.Iterations,
		ProgramType:   in.ProgramType,
		SignedDate:    in.SignedDate,
		SecSinceSigned: in.SecSinceSigned,
		Submitted:     in.Submitted,
		SeatoolExist:  in.TargetExists,
		Match:         in.Match,
		LastError:     in.StageError,
	}
	if in.Submission != nil {
		status.TransmittalNumber = in.Submission.TransmittalNumber
		status.ClockStartDate = in.Submission.ClockStartDate
		status.AlertsIgnored = IsIgnoredState(nil, in.Submission.RecordID(),
			p.profile.IgnoredStatesCsv, p.profile.UppercaseIgnoredPrefix)
	}

	if err := p.docs.Put(ctx, p.profile.StatusTable, statusKey(in.RunInit), status); err != nil {
		p.tel.TrackError(err)
		return out, err
	}

	p.log.StageEvent("update_status", in.RunID, "iterations", out.Iterations, "match", in.Match)
	p.tel.EmitMetric(p.profile.Name, "iterations", float64(out.Iterations))
	return out, nil
}

func statusKey(in RunInit) store.Key {
	if in.SourceKey.PK != "" {
		return in.SourceKey
	}
	return store.KeyOf(in.RunID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
