// Package orchestrator drives the reconciliation stage pipeline over asynq.
// Each stage is an independently invocable task; the typed run payload is
// the sole carrier of progress between invocations, and asynq's retry policy
// is the recovery mechanism for transient stage failures.
package orchestrator

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"seatool_alerts/internal/recon"
)

// Stage task types, one per pipeline stage, in canonical order.
const (
	TaskRunInit      = "recon.run.init"
	TaskFetchSource  = "recon.run.fetch_source"
	TaskCheckTarget  = "recon.run.check_target"
	TaskCompare      = "recon.run.compare"
	TaskSendAlert    = "recon.run.send_alert"
	TaskUpdateStatus = "recon.run.update_status"
	TaskSendReport   = "recon.report.send"
)

// Envelope wraps a stage payload with its pipeline routing key.
type Envelope struct {
	Pipeline string          `json:"pipeline"`
	Payload  json.RawMessage `json:"payload"`
}

// NewStageTask builds a stage task carrying the payload for the pipeline.
func NewStageTask(taskType, pipeline string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env, err := json.Marshal(Envelope{Pipeline: pipeline, Payload: data})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, env), nil
}

// ParseEnvelope decodes the routing envelope from a task.
func ParseEnvelope(task *asynq.Task) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(task.Payload(), &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// ReportPayload parameterizes a manually triggered report task.
type ReportPayload struct {
	Recipient string `json:"recipient"`
	Days      *int   `json:"days,omitempty"`
}

// NewReportTask builds a report task for the pipeline.
func NewReportTask(pipeline string, payload ReportPayload) (*asynq.Task, error) {
	return NewStageTask(TaskSendReport, pipeline, payload)
}

// ToReportRequest converts the wire payload to the core request type.
func (p ReportPayload) ToReportRequest() recon.ReportRequest {
	return recon.ReportRequest{Recipient: p.Recipient, Days: p.Days}
}
