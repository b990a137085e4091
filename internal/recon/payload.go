package recon

import "seatool_alerts/internal/store"

// The run payload is typed per stage transition: each stage's output struct
// is a strict superset of its input, so a stage can only read fields its
// declared predecessor guarantees. The payload is the sole carrier of
// partial progress between stage invocations.

// RunInit is the payload produced by the trigger gate and consumed by the
// init and fetchSource stages.
type RunInit struct {
	RunID     string    `json:"runId"`
	SourceKey store.Key `json:"sourceKey"`
	// CorrelationID joins the submission to its SEATool counterpart.
	CorrelationID string `json:"correlationId"`
	// Iterations is the number of completed pipeline passes before this
	// one. The update-status stage persists Iterations+1, so a re-invoked
	// stage converges on the same count instead of double-incrementing.
	Iterations int `json:"iterations"`
}

// SourceFetched extends RunInit with everything derived from the source
// record. StageError carries a tracked fetch/classification failure; the
// payload still travels downstream so the report reflects the failure state.
type SourceFetched struct {
	RunInit

	Submission     *Submission `json:"submission,omitempty"`
	ProgramType    string      `json:"programType,omitempty"`
	Signed         bool        `json:"signed"`
	SignedDate     *When       `json:"signedDate,omitempty"`
	SecSinceSigned int64       `json:"secSinceSigned,omitempty"`
	Status         int         `json:"status,omitempty"`
	LastStatus     int         `json:"lastStatus,omitempty"`
	Submitted      bool        `json:"submitted"`
	StageError     string      `json:"stageError,omitempty"`
}

// TargetChecked extends SourceFetched with the SEATool lookup outcome.
type TargetChecked struct {
	SourceFetched

	TargetExists bool          `json:"targetExists"`
	Target       *TargetRecord `json:"target,omitempty"`
}

// Compared extends TargetChecked with the reconciliation verdict.
type Compared struct {
	TargetChecked

	Match bool `json:"match"`
}

// Iterated extends Compared with the persisted iteration count; it is the
// terminal payload of one pipeline pass and the input to the next.
type Iterated struct {
	Compared

	Iterations int `json:"iterations"`
}
