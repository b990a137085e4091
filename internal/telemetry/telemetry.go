// Package telemetry provides the error/metric emission collaborator used by
// the reconciliation stages. Emission is fire-and-forget: no method returns
// an error, because a telemetry failure must never alter pipeline behavior.
package telemetry

import (
	"log/slog"

	"seatool_alerts/platform/logger"
)

// Stream identifies the log stream an event belongs to.
type Stream string

const (
	// StreamAlerts carries alert dispatch/suppression audit lines.
	StreamAlerts Stream = "alerts"
	// StreamErrors carries tracked stage errors.
	StreamErrors Stream = "errors"
	// StreamWorkflow carries run lifecycle events.
	StreamWorkflow Stream = "workflow"
)

// Emitter is the telemetry contract consumed by the pipeline stages.
type Emitter interface {
	// TrackError records an error. It never fails upward.
	TrackError(err error)
	// LogEvent writes a message to the named stream.
	LogEvent(stream Stream, message string)
	// EmitMetric records a numeric measurement under a namespace.
	EmitMetric(namespace, name string, value float64)
}

// LogEmitter implements Emitter on top of the structured logger.
type LogEmitter struct {
	log *logger.Logger
}

// NewLogEmitter creates a telemetry emitter backed by the given logger.
func NewLogEmitter(log *logger.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) TrackError(err error) {
	if err == nil {
		return
	}
	e.log.Error("tracked_error",
		slog.String("stream", string(StreamErrors)),
		slog.String("error", err.Error()),
	)
}

func (e *LogEmitter) LogEvent(stream Stream, message string) {
	e.log.Info("telemetry_event",
		slog.String("stream", string(stream)),
		slog.String("message", message),
	)
}

func (e *LogEmitter) EmitMetric(namespace, name string, value float64) {
	e.log.Info("metric",
		slog.String("namespace", namespace),
		slog.String("metric", name),
		slog.Float64("value", value),
	)
}

// Recorder is an Emitter that captures emissions for assertions in tests.
type Recorder struct {
	Errors  []error
	Events  map[Stream][]string
	Metrics map[string]float64
}

// NewRecorder creates an empty telemetry recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Events:  make(map[Stream][]string),
		Metrics: make(map[string]float64),
	}
}

func (r *Recorder) TrackError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

func (r *Recorder) LogEvent(stream Stream, message string) {
	r.Events[stream] = append(r.Events[stream], message)
}

func (r *Recorder) EmitMetric(namespace, name string, value float64) {
	r.Metrics[namespace+"."+name] = value
}
