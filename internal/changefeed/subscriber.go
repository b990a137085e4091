package changefeed

import (
	"context"

	"seatool_alerts/internal/events"
	"seatool_alerts/internal/recon"
	"seatool_alerts/internal/store"
)

// gateHandler adapts one pipeline's trigger gate to a RecordChanged
// subscriber. Events for other pipelines are skipped.
type gateHandler struct {
	pipeline string
	gate     *recon.TriggerGate
}

func (h gateHandler) Handle(ctx context.Context, event events.Event) error {
	changed, ok := event.(events.RecordChanged)
	if !ok || changed.Pipeline != h.pipeline {
		return nil
	}
	return h.gate.HandleChange(ctx, store.Key{PK: changed.PK, SK: changed.SK})
}

// SubscribeGates registers each pipeline's trigger gate as a RecordChanged
// subscriber on the bus.
func SubscribeGates(bus events.Bus, gates map[string]*recon.TriggerGate) {
	for name, gate := range gates {
		bus.Subscribe(events.RecordChanged{}.EventName(), gateHandler{pipeline: name, gate: gate})
	}
}
