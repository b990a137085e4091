package email

const (
	// SubjectAlertFmt carries the record id, e.g. "Action required - MD-21-0042".
	SubjectAlertFmt = "Action required - %s"
	// SubjectUrgentAlertFmt is used once a record crosses the urgency threshold.
	SubjectUrgentAlertFmt = "URGENT Action required - %s"
	// SubjectStatusReportFmt carries the pipeline label, e.g. "Appian".
	SubjectStatusReportFmt = "%s - SEATool status report"
)
