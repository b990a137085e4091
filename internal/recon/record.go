package recon

import "seatool_alerts/internal/store"

// Program category labels. Exactly one of the three program sections is
// expected on a well-formed submission.
const (
	ProgramMAC = "MAC"
	ProgramCHP = "CHP"
	ProgramHHS = "HHS"
)

// StatusSentinel is recorded when a submission carries no usable status
// entry. It is deliberately outside the real status code range.
const StatusSentinel = 99

// ProgramSection is one of the mutually exclusive program sub-documents on a
// submission payload.
type ProgramSection struct {
	TransmittalNumber string `json:"transmittalNumber,omitempty"`
}

// StatusEntry is one submission life-cycle status row.
type StatusEntry struct {
	// LifecycleCode orders the entries; higher is more recent.
	LifecycleCode int `json:"lifecycleStatusCode"`
	// FormStatus is the submission-status code at that point.
	FormStatus int `json:"formStatus"`
}

// SubmissionPayload is the nested raw payload ingested from the source
// system. Absent fields are normal for legitimately out-of-scope records, so
// everything here is optional.
type SubmissionPayload struct {
	SignatureDate *When           `json:"signatureDate,omitempty"`
	MAC           *ProgramSection `json:"mac179,omitempty"`
	CHP           *ProgramSection `json:"chipSpa,omitempty"`
	HHS           *ProgramSection `json:"healthHomes,omitempty"`
}

// Submission is a raw source record (Appian or MMDL variant). Immutable once
// ingested except for full overwrite on upstream re-ingestion.
type Submission struct {
	PK                string             `json:"PK,omitempty"`
	SK                string             `json:"SK,omitempty"`
	ID                string             `json:"id,omitempty"`
	StateCode         string             `json:"stateCode,omitempty"`
	TransmittalNumber string             `json:"transmittalNumber,omitempty"`
	PackageID         string             `json:"packageId,omitempty"`
	SubmissionType    string             `json:"submissionType,omitempty"`
	ClockStartDate    *When              `json:"clockStartDate,omitempty"`
	Payload           *SubmissionPayload `json:"payload,omitempty"`
	Statuses          []StatusEntry      `json:"statuses,omitempty"`
}

// Key returns the store key for the submission: (PK, SK) when present,
// otherwise the single id.
func (s *Submission) Key() store.Key {
	if s.PK != "" {
		return store.Key{PK: s.PK, SK: s.SK}
	}
	return store.KeyOf(s.ID)
}

// RecordID returns the human-facing identifier used in alerts and logs.
func (s *Submission) RecordID() string {
	if s.TransmittalNumber != "" {
		return s.TransmittalNumber
	}
	if s.ID != "" {
		return s.ID
	}
	return s.PK
}

// TargetRecord is the SEATool counterpart entity looked up by correlation id.
type TargetRecord struct {
	ID             string `json:"id"`
	SubmissionDate *When  `json:"submissionDate,omitempty"`
	ActionType     string `json:"actionType,omitempty"`
	State          string `json:"state,omitempty"`
}

// RunStatus is the per-run reconciliation record. Created by the init stage,
// accreted by every subsequent stage, persisted as a full overwrite so
// re-invoked stages converge on the same result.
type RunStatus struct {
	PK                string `json:"PK,omitempty"`
	SK                string `json:"SK,omitempty"`
	ID                string `json:"id,omitempty"`
	Pipeline          string `json:"pipeline,omitempty"`
	CorrelationID     string `json:"correlationId,omitempty"`
	TransmittalNumber string `json:"transmittalNumber,omitempty"`
	Iterations        int    `json:"iterations"`
	ProgramType       string `json:"programType,omitempty"`
	ClockStartDate    *When  `json:"clockStartDate,omitempty"`
	SignedDate        *When  `json:"signedDate,omitempty"`
	SecSinceSigned    int64  `json:"secSinceSigned,omitempty"`
	Submitted         bool   `json:"submitted"`
	SeatoolExist      bool   `json:"seatoolExist"`
	Match             bool   `json:"match"`
	AlertsIgnored     bool   `json:"alertsIgnored"`
	LastError         string `json:"lastError,omitempty"`
}

// CcEntry is one escalation CC address with its elapsed-time gate.
type CcEntry struct {
	Email                      string `json:"email"`
	AlertIfGreaterThanSeconds  int64  `json:"alertIfGreaterThanSeconds"`
}

// Recipients is the recipient set for one program category.
type Recipients struct {
	ToAddresses []string  `json:"ToAddresses"`
	CcAddresses []CcEntry `json:"CcAddresses"`
}

// EscalationConfig is the secret-sourced alert routing configuration used by
// the Appian pipeline.
type EscalationConfig struct {
	SourceEmail string     `json:"sourceEmail"`
	CHP         Recipients `json:"CHP"`
	NonCHP      Recipients `json:"nonCHP"`
}

// LegacyEscalationConfig is the MMDL-era secret shape: flat recipient lists
// keyed by escalation tier.
type LegacyEscalationConfig struct {
	SourceEmail     string              `json:"sourceEmail"`
	EmailRecipients map[string][]string `json:"emailRecipients"`
}
