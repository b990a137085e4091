package changefeed

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/recon"
	"seatool_alerts/platform/apperr"
	"seatool_alerts/platform/config"
	"seatool_alerts/platform/logger"
)

// feed is the slice of Repository the dispatcher drives.
type feed interface {
	ClaimPending(ctx context.Context, limit int) ([]Change, error)
	MarkPending(ctx context.Context, id int64, lastError *string) error
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
}

// Dispatcher polls the change feed and publishes each claimed change as a
// RecordChanged event; the pipeline trigger gates consume them as bus
// subscribers. A change whose handling fails transiently goes back to
// pending; a change that can never succeed is parked as failed so it cannot
// poison the feed.
type Dispatcher struct {
	repo      feed
	pipelines map[string]struct{}
	bus       events.Bus
	interval  time.Duration
	batch     int
	log       *logger.Logger
}

// NewDispatcher wires the poller and subscribes each pipeline's trigger gate
// to the bus.
func NewDispatcher(
	cfg config.DispatcherConfig,
	pool *pgxpool.Pool,
	gates map[string]*recon.TriggerGate,
	bus events.Bus,
	log *logger.Logger,
) *Dispatcher {
	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = 2 * time.Second
	}
	batch := cfg.GetDispatchBatchSize()
	if batch < 1 {
		batch = 50
	}

	SubscribeGates(bus, gates)
	pipelines := make(map[string]struct{}, len(gates))
	for name := range gates {
		pipelines[name] = struct{}{}
	}

	return &Dispatcher{
		repo:      New(pool),
		pipelines: pipelines,
		bus:       bus,
		interval:  interval,
		batch:     batch,
		log:       log,
	}
}

// Run polls until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		changes, err := d.repo.ClaimPending(ctx, d.batch)
		if err != nil {
			d.log.Warn("change feed claim failed", "error", err)
			continue
		}

		for _, ch := range changes {
			d.dispatch(ctx, ch)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ch Change) {
	if _, ok := d.pipelines[ch.Pipeline]; !ok {
		d.log.Error("change for unknown pipeline parked",
			"pipeline", ch.Pipeline, "pk", ch.PK, "sk", ch.SK)
		_ = d.repo.MarkFailed(ctx, ch.ID, "unknown pipeline "+ch.Pipeline)
		return
	}

	err := d.bus.PublishSync(ctx, events.RecordChanged{
		BaseEvent: events.NewBaseEvent(),
		Pipeline:  ch.Pipeline,
		PK:        ch.PK,
		SK:        ch.SK,
	})
	switch {
	case err == nil:
		_ = d.repo.MarkDispatched(ctx, ch.ID)
	case apperr.IsKind(err, apperr.KindNotFound), apperr.IsKind(err, apperr.KindMalformedRecord):
		// Retrying cannot repair a missing or undecodable record.
		d.log.Error("change parked", "pipeline", ch.Pipeline, "pk", ch.PK, "error", err)
		_ = d.repo.MarkFailed(ctx, ch.ID, err.Error())
	default:
		msg := err.Error()
		d.log.Warn("change returned to pending", "pipeline", ch.Pipeline, "pk", ch.PK, "error", err)
		_ = d.repo.MarkPending(ctx, ch.ID, &msg)
	}
}
