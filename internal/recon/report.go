package recon

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"seatool_alerts/internal/email"
	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/apperr"
)

// reportHeaders are the human-readable CSV column labels, in order.
var reportHeaders = []string{
	"Transmittal Number",
	"ID",
	"Program Type",
	"Clock Start Date",
	"Seatool Record Exist",
	"Submitted Status",
	"Signed Date",
	"Alerts Ignored",
}

const missingCell = "N/A"

// ReportRequest parameterizes one manually triggered status report.
type ReportRequest struct {
	Recipient string
	// Days limits the report to status rows whose clock start falls inside
	// the trailing window. Required for the MMDL pipeline, optional for
	// Appian.
	Days *int
}

// SendReport scans every reconciliation status row for the pipeline, joins
// in fresh SEATool existence per row, and emails the result as a CSV
// attachment. A missing recipient — and, for the tier-model pipeline, a
// missing day count — is a configuration error surfaced before any
// collaborator call.
func (p *Pipeline) SendReport(ctx context.Context, req ReportRequest) error {
	if req.Recipient == "" {
		return apperr.Configuration("report recipient is required").WithOp("recon.SendReport")
	}
	if p.profile.EscalationModel == EscalateByTier && req.Days == nil {
		return apperr.Configuration("report day count is required").WithOp("recon.SendReport")
	}

	rows, err := p.collectReportRows(ctx, req.Days)
	if err != nil {
		return err
	}

	data, err := renderReportCSV(rows)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf(email.SubjectStatusReportFmt, p.profile.Label)
	body := fmt.Sprintf("<p>Attached is the %s reconciliation status report (%d records).</p>",
		p.profile.Label, len(rows))
	html, err := email.RenderLayout(subject, body)
	if err != nil {
		return err
	}

	msg := email.Message{
		To:       []string{req.Recipient},
		Subject:  subject,
		HTMLBody: html,
		Attachments: []email.Attachment{{
			Content:  data,
			FileName: fmt.Sprintf("%s-status-report.csv", p.profile.Name),
			MIMEType: "text/csv",
		}},
	}
	if err := p.mailer.Send(ctx, msg); err != nil {
		return apperr.TransientIO("report dispatch failed", err).WithOp("recon.SendReport")
	}

	p.tel.LogEvent(telemetry.StreamWorkflow,
		fmt.Sprintf("status report for %s sent to %s (%d rows)", p.profile.Name, req.Recipient, len(rows)))
	p.tel.EmitMetric(p.profile.Name, "report_rows", float64(len(rows)))
	return nil
}

// collectReportRows loads the status rows inside the optional trailing
// window and refreshes each row's SEATool existence flag.
func (p *Pipeline) collectReportRows(ctx context.Context, days *int) ([]RunStatus, error) {
	items, err := p.docs.Scan(ctx, p.profile.StatusTable, store.Filter{"pipeline": p.profile.Name})
	if err != nil {
		return nil, err
	}

	var cutoff time.Time
	if days != nil {
		cutoff = p.clock.Now().AddDate(0, 0, -*days)
	}

	var rows []RunStatus
	for _, item := range items {
		var status RunStatus
		if err := json.Unmarshal(item, &status); err != nil {
			p.tel.TrackError(apperr.Wrap(apperr.KindMalformedRecord, "status row is not decodable", err).WithOp("recon.SendReport"))
			continue
		}

		if days != nil {
			if status.ClockStartDate == nil || status.ClockStartDate.Time.Before(cutoff) {
				continue
			}
		}

		// Join fresh target existence rather than trusting the snapshot;
		// the record may have landed in SEATool since the last pass.
		if status.CorrelationID != "" {
			_, found, err := p.docs.Get(ctx, p.profile.TargetTable, store.KeyOf(status.CorrelationID))
			if err != nil {
				p.tel.TrackError(err)
			} else {
				status.SeatoolExist = found
			}
		}

		rows = append(rows, status)
	}
	return rows, nil
}

func renderReportCSV(rows []RunStatus) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(reportHeaders); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			cellOrNA(row.TransmittalNumber),
			cellOrNA(row.ID),
			cellOrNA(row.ProgramType),
			dateCell(row.ClockStartDate),
			strconv.FormatBool(row.SeatoolExist),
			strconv.FormatBool(row.Submitted),
			dateCell(row.SignedDate),
			strconv.FormatBool(row.AlertsIgnored),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cellOrNA(value string) string {
	if value == "" {
		return missingCell
	}
	return value
}

func dateCell(when *When) string {
	if when == nil || when.IsZero() {
		return missingCell
	}
	return when.LocaleDate()
}
