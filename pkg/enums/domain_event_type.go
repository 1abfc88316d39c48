package enums

// DomainEventType tags events flowing through the in-process outbox bus.
type DomainEventType string

const (
	EventScheduleEnrolled  DomainEventType = "schedule_enrolled"
	EventScheduleCanceled  DomainEventType = "schedule_canceled"
	EventScheduleCompleted DomainEventType = "schedule_completed"
)
