package handler

import (
	"context"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/orchestrator"
)

// BusEnqueuer publishes report requests on the event bus; the orchestrator
// client consumes them as a ReportRequested subscriber. Publishing is
// synchronous so an enqueue failure surfaces to the API caller.
type BusEnqueuer struct {
	bus events.Bus
}

func NewBusEnqueuer(bus events.Bus) *BusEnqueuer {
	return &BusEnqueuer{bus: bus}
}

func (b *BusEnqueuer) EnqueueReport(ctx context.Context, pipeline string, payload orchestrator.ReportPayload) error {
	return b.bus.PublishSync(ctx, events.ReportRequested{
		BaseEvent: events.NewBaseEvent(),
		Pipeline:  pipeline,
		Recipient: payload.Recipient,
		Days:      payload.Days,
	})
}
