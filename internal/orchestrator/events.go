package orchestrator

import (
	"context"

	"seatool_alerts/internal/events"
)

// ReportSink consumes report requests taken off the event bus. *Client
// satisfies it.
type ReportSink interface {
	EnqueueReport(ctx context.Context, pipeline string, payload ReportPayload) error
}

// SubscribeReportRequests registers the sink as the consumer of
// ReportRequested events.
func SubscribeReportRequests(bus events.Bus, sink ReportSink) {
	bus.Subscribe(events.ReportRequested{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		req, ok := event.(events.ReportRequested)
		if !ok {
			return nil
		}
		return sink.EnqueueReport(ctx, req.Pipeline, ReportPayload{
			Recipient: req.Recipient,
			Days:      req.Days,
		})
	}))
}
