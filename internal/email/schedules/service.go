package schedules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haneul-labs/crm-delivery/internal/email/history"
	"github.com/haneul-labs/crm-delivery/internal/email/mailer"
	"github.com/haneul-labs/crm-delivery/internal/email/templates"
	"github.com/haneul-labs/crm-delivery/internal/email/variables"
	"github.com/haneul-labs/crm-delivery/internal/users"
	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
	"github.com/haneul-labs/crm-delivery/pkg/errors"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/outbox"
	"github.com/haneul-labs/crm-delivery/pkg/scheduler"
	"gorm.io/gorm"
)

// emailAttributeKey is the one attribute every recipient document must carry.
const emailAttributeKey = "email"

// ScheduleParams describes one send-later request.
type ScheduleParams struct {
	TemplateID      int64
	TemplateVersion *float32
	UserIDs         []int64
	ExpiredTime     time.Time
}

// FireResult reports the outcome of handling one fired schedule.
type FireResult struct {
	// RaceNoOp is set when the event was already terminal; the fire signal
	// was recorded as not consumed and nothing was sent.
	RaceNoOp bool
	Sent     int
	Skipped  int
}

// CancelResult reports the outcome of a cancellation request.
type CancelResult struct {
	// RaceNoOp is set when the event reached a terminal state first;
	// cancel-after-fire is benign.
	RaceNoOp bool
}

// ScheduledTaskView is one pending schedule as seen by browse callers.
type ScheduledTaskView struct {
	EventID     string
	TemplateID  int64
	UserIDs     []int64
	ExpiredTime string
	ScheduledAt string
}

// Service coordinates the scheduled-notification lifecycle: enrollment,
// firing, cancellation and rescheduling.
type Service struct {
	publisher *outbox.Publisher
	repo      Repository
	templates templates.Repository
	history   history.Repository
	users     users.Repository
	gateway   scheduler.Gateway
	mail      mailer.Mailer
	sender    string
	logg      *logger.Logger
	now       func() time.Time
}

type ServiceParams struct {
	Publisher *outbox.Publisher
	Repo      Repository
	Templates templates.Repository
	History   history.Repository
	Users     users.Repository
	Gateway   scheduler.Gateway
	Mail      mailer.Mailer
	Sender    string
	Logger    *logger.Logger
}

func NewService(params ServiceParams) *Service {
	return &Service{
		publisher: params.Publisher,
		repo:      params.Repo,
		templates: params.Templates,
		history:   params.History,
		users:     params.Users,
		gateway:   params.Gateway,
		mail:      params.Mail,
		sender:    params.Sender,
		logg:      params.Logger,
		now:       time.Now,
	}
}

// Schedule persists a pending event and registers the external one-shot
// schedule in the same transaction. Either both exist afterwards or neither.
func (s *Service) Schedule(ctx context.Context, params ScheduleParams) (string, error) {
	if params.TemplateID <= 0 {
		return "", errors.New(errors.CodeValidation, "template id is required")
	}
	if len(params.UserIDs) == 0 {
		return "", errors.New(errors.CodeValidation, "at least one recipient is required")
	}
	if !params.ExpiredTime.After(s.now()) {
		return "", errors.New(errors.CodeValidation, "expired time must be in the future")
	}

	eventID := uuid.NewString()
	expiredAt := params.ExpiredTime.UTC().Format(time.RFC3339)
	payload := scheduler.NewNotificationEmailTimeoutPayload(
		params.TemplateID, params.TemplateVersion, params.UserIDs, eventID, expiredAt)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, err, "encoding schedule payload")
	}

	err = s.publisher.WithTx(ctx, func(tx *gorm.DB, q *outbox.Queue) error {
		event := &models.ScheduledEvent{
			EventID:      eventID,
			EventClass:   enums.EventClassNotificationEmailTimeout,
			EventPayload: string(encoded),
			ScheduleKind: enums.ScheduleKindRedis,
			ScheduledAt:  expiredAt,
		}
		if createErr := s.repo.WithTx(tx).Create(ctx, event); createErr != nil {
			return createErr
		}
		if gwErr := s.gateway.CreateSchedule(ctx, eventID, params.ExpiredTime, encoded); gwErr != nil {
			return gwErr
		}
		q.Defer(outbox.NewEnvelope(enums.EventScheduleEnrolled, ScheduleEnrolled{
			EventID:     eventID,
			TemplateID:  params.TemplateID,
			Recipients:  len(params.UserIDs),
			ScheduledAt: params.ExpiredTime.UTC(),
		}))
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithEventID(ctx, eventID), "notification schedule enrolled")
	}
	return eventID, nil
}

// Fire handles one fired schedule. The row claim serializes it against
// cancellation and against redelivery; losing the race records the signal as
// not consumed and is not an error.
func (s *Service) Fire(ctx context.Context, payload *scheduler.NotificationEmailTimeoutPayload) (FireResult, error) {
	if payload == nil || payload.EventID == "" {
		return FireResult{}, errors.New(errors.CodeFormat, "fire payload missing event id")
	}
	ctx = s.logContext(ctx, payload.EventID)

	var result FireResult
	err := s.publisher.WithTx(ctx, func(tx *gorm.DB, q *outbox.Queue) error {
		repo := s.repo.WithTx(tx)

		claimed, claimErr := repo.ClaimForCompletion(ctx, payload.EventID)
		if claimErr != nil {
			return claimErr
		}
		if claimed == nil {
			if markErr := repo.MarkNotConsumed(ctx, payload.EventID); markErr != nil {
				return markErr
			}
			result = FireResult{RaceNoOp: true}
			if s.logg != nil {
				s.logg.Info(ctx, "fire signal for terminal event recorded as not consumed")
			}
			return nil
		}

		sent, skipped, sendErr := s.deliverAll(ctx, tx, payload)
		if sendErr != nil {
			return sendErr
		}

		if completeErr := repo.Complete(ctx, payload.EventID); completeErr != nil {
			return completeErr
		}
		q.Defer(outbox.NewEnvelope(enums.EventScheduleCompleted, ScheduleCompleted{
			EventID: payload.EventID,
			Sent:    sent,
			Skipped: skipped,
		}))
		result = FireResult{Sent: sent, Skipped: skipped}
		return nil
	})
	if err != nil {
		return FireResult{}, err
	}
	return result, nil
}

// deliverAll sends to each recipient, skipping those already recorded from a
// previous handling attempt. History rows ride the claim transaction so
// completion and its audit trail commit atomically; the (event_id, user_id)
// unique index guards against concurrent consumers.
func (s *Service) deliverAll(ctx context.Context, tx *gorm.DB, payload *scheduler.NotificationEmailTimeoutPayload) (int, int, error) {
	props, err := s.templates.FindProperties(ctx, payload.TemplateID, payload.TemplateVersion)
	if err != nil {
		return 0, 0, err
	}
	recipients, err := s.users.FindAllByIDIn(ctx, payload.UserIDs)
	if err != nil {
		return 0, 0, err
	}

	historyRepo := s.history.WithTx(tx)
	vars := variables.New(props.Variables...)
	sent, skipped := 0, 0
	for _, recipient := range recipients {
		exists, existsErr := historyRepo.Exists(ctx, payload.EventID, recipient.ID)
		if existsErr != nil {
			return sent, skipped, existsErr
		}
		if exists {
			skipped++
			continue
		}

		doc, parseErr := variables.ParseDocument(recipient.Attributes)
		if parseErr != nil {
			return sent, skipped, parseErr
		}
		address, ok := doc.Get(emailAttributeKey)
		if !ok || address == "" {
			if _, recErr := historyRepo.RecordSend(ctx, &models.EmailSendHistory{
				EventID:    payload.EventID,
				UserID:     recipient.ID,
				UserEmail:  "",
				SendStatus: enums.SendStatusFailed,
			}); recErr != nil {
				return sent, skipped, recErr
			}
			skipped++
			continue
		}

		resolved := variables.ResolveAll(vars, doc)
		subject := render(props.Subject, resolved)
		body := render(props.Body, resolved)

		messageID, sendErr := s.mail.Send(ctx, mailer.Message{
			Sender:    s.sender,
			Recipient: address,
			Subject:   subject,
			Body:      body,
		})
		if sendErr != nil {
			return sent, skipped, errors.Wrap(errors.CodeDependency, sendErr,
				fmt.Sprintf("sending to user %d", recipient.ID))
		}

		if _, recErr := historyRepo.RecordSend(ctx, &models.EmailSendHistory{
			EventID:        payload.EventID,
			UserID:         recipient.ID,
			UserEmail:      address,
			EmailMessageID: messageID,
			EmailBody:      body,
			SendStatus:     enums.SendStatusSent,
		}); recErr != nil {
			return sent, skipped, recErr
		}
		sent++
	}
	return sent, skipped, nil
}

// Cancel deletes the external schedule, then claims the row and marks it
// canceled. Losing the claim race to the fire path is a benign no-op.
func (s *Service) Cancel(ctx context.Context, eventID string) (CancelResult, error) {
	if eventID == "" {
		return CancelResult{}, errors.New(errors.CodeValidation, "event id is required")
	}
	ctx = s.logContext(ctx, eventID)

	// idempotent; the schedule may have already fired and self-deleted
	if err := s.gateway.DeleteSchedule(ctx, eventID); err != nil {
		return CancelResult{}, err
	}

	var result CancelResult
	err := s.publisher.WithTx(ctx, func(tx *gorm.DB, q *outbox.Queue) error {
		repo := s.repo.WithTx(tx)

		row, findErr := repo.FindByEventID(ctx, eventID)
		if findErr != nil {
			return findErr
		}
		if row == nil {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("scheduled event %s not found", eventID))
		}

		claimed, claimErr := repo.ClaimForCompletion(ctx, eventID)
		if claimErr != nil {
			return claimErr
		}
		if claimed == nil {
			result = CancelResult{RaceNoOp: true}
			if s.logg != nil {
				s.logg.Info(ctx, "cancel arrived after terminal state; treated as no-op")
			}
			return nil
		}

		if cancelErr := repo.Cancel(ctx, eventID); cancelErr != nil {
			return cancelErr
		}
		q.Defer(outbox.NewEnvelope(enums.EventScheduleCanceled, ScheduleCanceled{EventID: eventID}))
		return nil
	})
	if err != nil {
		return CancelResult{}, err
	}
	return result, nil
}

// Reschedule moves a still-pending schedule to a new fire time.
func (s *Service) Reschedule(ctx context.Context, eventID string, newTime time.Time) error {
	if eventID == "" {
		return errors.New(errors.CodeValidation, "event id is required")
	}
	if !newTime.After(s.now()) {
		return errors.New(errors.CodeValidation, "new fire time must be in the future")
	}
	ctx = s.logContext(ctx, eventID)

	return s.publisher.WithTx(ctx, func(tx *gorm.DB, q *outbox.Queue) error {
		repo := s.repo.WithTx(tx)

		row, findErr := repo.FindByEventID(ctx, eventID)
		if findErr != nil {
			return findErr
		}
		if row == nil {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("scheduled event %s not found", eventID))
		}

		claimed, claimErr := repo.ClaimForCompletion(ctx, eventID)
		if claimErr != nil {
			return claimErr
		}
		if claimed == nil {
			return errors.New(errors.CodeConflict, fmt.Sprintf("scheduled event %s already terminal", eventID))
		}

		var payload scheduler.NotificationEmailTimeoutPayload
		if decodeErr := json.Unmarshal([]byte(row.EventPayload), &payload); decodeErr != nil {
			return errors.Wrap(errors.CodeFormat, decodeErr, "decoding stored payload")
		}
		expiredAt := newTime.UTC().Format(time.RFC3339)
		payload.ExpiredTime = expiredAt
		encoded, encodeErr := json.Marshal(payload)
		if encodeErr != nil {
			return errors.Wrap(errors.CodeInternal, encodeErr, "encoding rescheduled payload")
		}

		if updateErr := repo.UpdateSchedule(ctx, eventID, string(encoded), expiredAt); updateErr != nil {
			return updateErr
		}
		if delErr := s.gateway.DeleteSchedule(ctx, eventID); delErr != nil {
			return delErr
		}
		if createErr := s.gateway.CreateSchedule(ctx, eventID, newTime, encoded); createErr != nil {
			return createErr
		}
		return nil
	})
}

// BrowseScheduledTasks lists pending schedules with their decoded payloads.
func (s *Service) BrowseScheduledTasks(ctx context.Context) ([]ScheduledTaskView, error) {
	pending, err := s.repo.FindAllPending(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]ScheduledTaskView, 0, len(pending))
	for _, event := range pending {
		var payload scheduler.NotificationEmailTimeoutPayload
		if decodeErr := json.Unmarshal([]byte(event.EventPayload), &payload); decodeErr != nil {
			if s.logg != nil {
				s.logg.Warn(s.logContext(ctx, event.EventID), "skipping pending event with undecodable payload")
			}
			continue
		}
		views = append(views, ScheduledTaskView{
			EventID:     event.EventID,
			TemplateID:  payload.TemplateID,
			UserIDs:     payload.UserIDs,
			ExpiredTime: payload.ExpiredTime,
			ScheduledAt: event.ScheduledAt,
		})
	}
	return views, nil
}

func (s *Service) logContext(ctx context.Context, eventID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithEventID(ctx, eventID)
}

// render substitutes {{key}} placeholders with resolved values.
func render(text string, resolved map[string]string) string {
	out := text
	for key, value := range resolved {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
