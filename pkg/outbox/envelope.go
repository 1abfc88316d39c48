package outbox

import (
	"time"

	"github.com/google/uuid"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
)

// Envelope is one domain event queued during a transaction and delivered to
// in-process subscribers only after the transaction commits.
type Envelope struct {
	Type       enums.DomainEventType
	EventID    string
	OccurredAt time.Time
	Payload    any
}

// NewEnvelope stamps identity and time onto a payload.
func NewEnvelope(eventType enums.DomainEventType, payload any) Envelope {
	return Envelope{
		Type:       eventType,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}
