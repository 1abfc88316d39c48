package audit

import (
	"context"

	"github.com/haneul-labs/crm-delivery/internal/email/schedules"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/outbox"
)

// Subscriber writes an audit log line for every committed schedule
// transition. It only ever observes events whose transaction committed.
type Subscriber struct {
	logg *logger.Logger
}

func NewSubscriber(logg *logger.Logger) *Subscriber {
	return &Subscriber{logg: logg}
}

// Register attaches the subscriber to the bus. Call before Bus.Start.
func (s *Subscriber) Register(bus *outbox.Bus) error {
	if err := bus.Subscribe(enums.EventScheduleEnrolled, s.onEnrolled); err != nil {
		return err
	}
	if err := bus.Subscribe(enums.EventScheduleCanceled, s.onCanceled); err != nil {
		return err
	}
	return bus.Subscribe(enums.EventScheduleCompleted, s.onCompleted)
}

func (s *Subscriber) onEnrolled(ctx context.Context, env outbox.Envelope) error {
	payload, ok := env.Payload.(schedules.ScheduleEnrolled)
	if !ok {
		return nil
	}
	fields := map[string]any{
		"event_id":     payload.EventID,
		"template_id":  payload.TemplateID,
		"recipients":   payload.Recipients,
		"scheduled_at": payload.ScheduledAt,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "audit: schedule enrolled")
	return nil
}

func (s *Subscriber) onCanceled(ctx context.Context, env outbox.Envelope) error {
	payload, ok := env.Payload.(schedules.ScheduleCanceled)
	if !ok {
		return nil
	}
	s.logg.Info(s.logg.WithEventID(ctx, payload.EventID), "audit: schedule canceled")
	return nil
}

func (s *Subscriber) onCompleted(ctx context.Context, env outbox.Envelope) error {
	payload, ok := env.Payload.(schedules.ScheduleCompleted)
	if !ok {
		return nil
	}
	fields := map[string]any{
		"event_id": payload.EventID,
		"sent":     payload.Sent,
		"skipped":  payload.Skipped,
	}
	s.logg.Info(s.logg.WithFields(ctx, fields), "audit: schedule completed")
	return nil
}
