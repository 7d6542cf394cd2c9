package core

import (
	"strconv"

	"marketchain/core/events"
	"marketchain/native/marketplace"
	"marketchain/observability"
)

func (sp *StateProcessor) recordEventMetrics(evt events.Event) {
	observability.Events().Record(evt.EventType())
	payload := evt.Event()
	if payload == nil {
		return
	}
	switch payload.Type {
	case marketplace.EventTypeListed:
		sp.metrics.RecordListed()
	case marketplace.EventTypeCancelled:
		sp.metrics.RecordCancelled()
	case marketplace.EventTypePurchased:
		sp.metrics.RecordSettlement(
			parseAmount(payload.Attributes["price"]),
			parseAmount(payload.Attributes["fee"]),
			parseAmount(payload.Attributes["reward"]),
		)
	}
}

func parseAmount(raw string) uint64 {
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
