package commands

import (
	"context"
	"encoding/json"

	"github.com/openfroyo/tokenbridge/pkg/engine"
	"github.com/openfroyo/tokenbridge/pkg/stores"
	"github.com/openfroyo/tokenbridge/pkg/telemetry"
)

// eventBridge forwards engine run events to the telemetry publisher.
type eventBridge struct {
	publisher *telemetry.EventPublisher
}

func (b eventBridge) Publish(ctx context.Context, e *engine.Event) error {
	return b.publisher.Publish(ctx, telemetry.Event{
		Timestamp:  e.Timestamp,
		Type:       string(e.Type),
		Source:     "engine",
		RunID:      e.RunID,
		ResourceID: e.ResourceID,
		Message:    e.Message,
		Level:      e.Level,
		Data:       e.Details,
	})
}

// storeEvents appends every delivered event to the ledger's event log.
func storeEvents(store *stores.SQLiteStore) telemetry.EventSubscriber {
	return func(ctx context.Context, ev telemetry.Event) error {
		record := &stores.Event{
			RunID:     ev.RunID,
			Type:      ev.Type,
			Level:     stores.EventLevel(ev.Level),
			Message:   ev.Message,
			Timestamp: ev.Timestamp,
		}
		if ev.ResourceID != "" {
			resource := ev.ResourceID
			record.ResourceID = &resource
		}
		if len(ev.Data) > 0 {
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return err
			}
			details := string(data)
			record.Details = &details
		}
		return store.AppendEvent(ctx, record)
	}
}
