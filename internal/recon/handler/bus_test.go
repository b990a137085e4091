package handler

import (
	"context"
	"errors"
	"testing"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/orchestrator"
	"seatool_alerts/platform/logger"
)

type sinkCall struct {
	pipeline string
	payload  orchestrator.ReportPayload
}

type fakeSink struct {
	calls []sinkCall
	err   error
}

func (s *fakeSink) EnqueueReport(_ context.Context, pipeline string, payload orchestrator.ReportPayload) error {
	s.calls = append(s.calls, sinkCall{pipeline: pipeline, payload: payload})
	return s.err
}

func TestBusEnqueuerDeliversReportRequests(t *testing.T) {
	bus := events.NewInMemoryBus(logger.New("test"))
	sink := &fakeSink{}
	orchestrator.SubscribeReportRequests(bus, sink)

	days := 30
	err := NewBusEnqueuer(bus).EnqueueReport(context.Background(), "appian", orchestrator.ReportPayload{
		Recipient: "ops@example.gov",
		Days:      &days,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(sink.calls) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(sink.calls))
	}
	call := sink.calls[0]
	if call.pipeline != "appian" {
		t.Fatalf("expected pipeline appian, got %q", call.pipeline)
	}
	if call.payload.Recipient != "ops@example.gov" {
		t.Fatalf("expected recipient carried through, got %q", call.payload.Recipient)
	}
	if call.payload.Days == nil || *call.payload.Days != 30 {
		t.Fatalf("expected day window carried through, got %v", call.payload.Days)
	}
}

func TestBusEnqueuerSurfacesSinkError(t *testing.T) {
	bus := events.NewInMemoryBus(logger.New("test"))
	sink := &fakeSink{err: errors.New("queue unavailable")}
	orchestrator.SubscribeReportRequests(bus, sink)

	err := NewBusEnqueuer(bus).EnqueueReport(context.Background(), "mmdl", orchestrator.ReportPayload{
		Recipient: "ops@example.gov",
	})
	if err == nil {
		t.Fatal("expected enqueue failure to surface to the publisher")
	}
}
