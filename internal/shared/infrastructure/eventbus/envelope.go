package eventbus

import (
	"encoding/json"

	"github.com/chiefhq/chief/internal/shared/domain"
)

// Envelope serializes a domain event into the wire format consumers decode:
// a ConsumedEvent header built from the event's accessors, with the typed
// event marshaled as the payload.
func Envelope(event domain.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata:      EventMetadata{SessionID: event.Metadata().SessionID},
	})
}
