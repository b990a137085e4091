// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"seatool_alerts/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// RecordChanged is published when a source-system submission record is
// created or modified and may need reconciliation against SEATool.
type RecordChanged struct {
	BaseEvent
	Pipeline string `json:"pipeline"`
	PK       string `json:"pk"`
	SK       string `json:"sk"`
}

func (e RecordChanged) EventName() string { return "recon.record.changed" }

// ReportRequested is published when an operator asks for a status report.
type ReportRequested struct {
	BaseEvent
	Pipeline  string `json:"pipeline"`
	Recipient string `json:"recipient"`
	Days      *int   `json:"days,omitempty"`
}

func (e ReportRequested) EventName() string { return "recon.report.requested" }
