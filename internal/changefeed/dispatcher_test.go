package changefeed

import (
	"context"
	"testing"
	"time"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/recon"
	"seatool_alerts/internal/store"
	"seatool_alerts/internal/telemetry"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/logger"
)

type fakeFeed struct {
	dispatched []int64
	failed     map[int64]string
	requeued   map[int64]string
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		failed:   make(map[int64]string),
		requeued: make(map[int64]string),
	}
}

func (f *fakeFeed) ClaimPending(_ context.Context, _ int) ([]Change, error) {
	return nil, nil
}

func (f *fakeFeed) MarkPending(_ context.Context, id int64, lastError *string) error {
	msg := ""
	if lastError != nil {
		msg = *lastError
	}
	f.requeued[id] = msg
	return nil
}

func (f *fakeFeed) MarkDispatched(_ context.Context, id int64) error {
	f.dispatched = append(f.dispatched, id)
	return nil
}

func (f *fakeFeed) MarkFailed(_ context.Context, id int64, lastError string) error {
	f.failed[id] = lastError
	return nil
}

type fakeStarter struct {
	runs []recon.RunInit
}

func (s *fakeStarter) StartRun(_ context.Context, _ string, input recon.RunInit) (bool, error) {
	s.runs = append(s.runs, input)
	return true, nil
}

func TestDispatchRoutesByErrorKind(t *testing.T) {
	bus := events.NewInMemoryBus(logger.New("test"))
	bus.Subscribe(events.RecordChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		changed, ok := event.(events.RecordChanged)
		if !ok {
			return apperr.Internal("unexpected event type")
		}
		switch changed.PK {
		case "missing":
			return apperr.NotFound("change notification for missing record")
		case "flaky":
			return apperr.TransientIO("store unavailable", nil)
		default:
			return nil
		}
	}))

	feed := newFakeFeed()
	d := &Dispatcher{
		repo:      feed,
		pipelines: map[string]struct{}{"appian": {}},
		bus:       bus,
		log:       logger.New("test"),
	}

	ctx := context.Background()
	d.dispatch(ctx, Change{ID: 1, Pipeline: "appian", PK: "ok"})
	d.dispatch(ctx, Change{ID: 2, Pipeline: "appian", PK: "missing"})
	d.dispatch(ctx, Change{ID: 3, Pipeline: "appian", PK: "flaky"})
	d.dispatch(ctx, Change{ID: 4, Pipeline: "unknown", PK: "ok"})

	if len(feed.dispatched) != 1 || feed.dispatched[0] != 1 {
		t.Fatalf("expected change 1 dispatched, got %v", feed.dispatched)
	}
	if _, ok := feed.failed[2]; !ok {
		t.Fatal("missing record must park the change as failed")
	}
	if _, ok := feed.requeued[3]; !ok {
		t.Fatal("transient failure must return the change to pending")
	}
	if msg := feed.failed[4]; msg != "unknown pipeline unknown" {
		t.Fatalf("unknown pipeline must be parked, got %q", msg)
	}
	if _, ok := feed.requeued[2]; ok {
		t.Fatal("parked change must not also be requeued")
	}
}

func TestSubscribedGateHandlesOwnPipelineOnly(t *testing.T) {
	profile := recon.AppianProfile("")
	clock := recon.FixedClock{Instant: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	docs := store.NewMemoryStore()
	starter := &fakeStarter{}
	gate := recon.NewTriggerGate(
		profile, docs, starter, telemetry.NewRecorder(), clock,
		recon.ReconEnabledValue, logger.New("test"))

	bus := events.NewInMemoryBus(logger.New("test"))
	SubscribeGates(bus, map[string]*recon.TriggerGate{profile.Name: gate})

	start := recon.When{Time: clock.Instant.Add(-30 * 24 * time.Hour)}
	sub := recon.Submission{
		ID:                "sub-1",
		StateCode:         "MD",
		TransmittalNumber: "MD-26-0001",
		PackageID:         "md-26-0001c",
		SubmissionType:    "Official",
		ClockStartDate:    &start,
		Payload:           &recon.SubmissionPayload{MAC: &recon.ProgramSection{}},
	}
	key := sub.Key()
	ctx := context.Background()
	if err := docs.Put(ctx, profile.SourceTable, key, sub); err != nil {
		t.Fatal(err)
	}

	other := events.RecordChanged{
		BaseEvent: events.NewBaseEvent(),
		Pipeline:  "mmdl",
		PK:        key.PK,
		SK:        key.SK,
	}
	if err := bus.PublishSync(ctx, other); err != nil {
		t.Fatal(err)
	}
	if len(starter.runs) != 0 {
		t.Fatal("gate must skip events for other pipelines")
	}

	own := events.RecordChanged{
		BaseEvent: events.NewBaseEvent(),
		Pipeline:  profile.Name,
		PK:        key.PK,
		SK:        key.SK,
	}
	if err := bus.PublishSync(ctx, own); err != nil {
		t.Fatal(err)
	}
	if len(starter.runs) != 1 {
		t.Fatalf("expected one run started, got %d", len(starter.runs))
	}

	gone := events.RecordChanged{
		BaseEvent: events.NewBaseEvent(),
		Pipeline:  profile.Name,
		PK:        "gone",
	}
	err := bus.PublishSync(ctx, gone)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound through the bus, got %v", err)
	}
}
