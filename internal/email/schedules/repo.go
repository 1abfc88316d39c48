package schedules

import (
	"context"
	"errors"

	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence helpers for scheduled events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.ScheduledEvent) error
	FindByEventID(ctx context.Context, eventID string) (*models.ScheduledEvent, error)
	FindAllPending(ctx context.Context) ([]models.ScheduledEvent, error)
	FindAllByEventIDIn(ctx context.Context, eventIDs []string) ([]models.ScheduledEvent, error)
	ClaimForCompletion(ctx context.Context, eventID string) (*models.ScheduledEvent, error)
	Complete(ctx context.Context, eventID string) error
	Cancel(ctx context.Context, eventID string) error
	MarkNotConsumed(ctx context.Context, eventID string) error
	UpdateSchedule(ctx context.Context, eventID, payload, scheduledAt string) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a scheduled-event repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, event *models.ScheduledEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repositoryImpl) FindByEventID(ctx context.Context, eventID string) (*models.ScheduledEvent, error) {
	var event models.ScheduledEvent
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repositoryImpl) FindAllPending(ctx context.Context) ([]models.ScheduledEvent, error) {
	var events []models.ScheduledEvent
	err := r.db.WithContext(ctx).
		Where("completed = ?", false).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

func (r *repositoryImpl) FindAllByEventIDIn(ctx context.Context, eventIDs []string) ([]models.ScheduledEvent, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var events []models.ScheduledEvent
	err := r.db.WithContext(ctx).
		Where("event_id IN ?", eventIDs).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}

// ClaimForCompletion takes the row-exclusive claim used to serialize the fire
// path against the cancel path. Returns nil when the event is already
// terminal (or unknown); callers treat that as losing the race.
func (r *repositoryImpl) ClaimForCompletion(ctx context.Context, eventID string) (*models.ScheduledEvent, error) {
	query := r.db.WithContext(ctx).Where("event_id = ? AND completed = ?", eventID, false)
	// sqlite (tests) has no FOR UPDATE; its single-writer model serializes anyway
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var event models.ScheduledEvent
	err := query.First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// Complete persists the normal terminal transition. Call only after
// ClaimForCompletion succeeded in the same transaction.
func (r *repositoryImpl) Complete(ctx context.Context, eventID string) error {
	return r.transition(ctx, eventID, map[string]any{"completed": true})
}

// Cancel persists the canceled terminal transition.
func (r *repositoryImpl) Cancel(ctx context.Context, eventID string) error {
	return r.transition(ctx, eventID, map[string]any{
		"completed":       true,
		"is_not_consumed": true,
		"canceled":        true,
	})
}

// MarkNotConsumed records a fire signal that arrived after the event was
// already terminal. Plain monotonic update, no claim required.
func (r *repositoryImpl) MarkNotConsumed(ctx context.Context, eventID string) error {
	return r.transition(ctx, eventID, map[string]any{"is_not_consumed": true})
}

// UpdateSchedule rewrites the payload and fire time of a still-pending event.
func (r *repositoryImpl) UpdateSchedule(ctx context.Context, eventID, payload, scheduledAt string) error {
	return r.transition(ctx, eventID, map[string]any{
		"event_payload": payload,
		"scheduled_at":  scheduledAt,
	})
}

func (r *repositoryImpl) transition(ctx context.Context, eventID string, columns map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.ScheduledEvent{}).
		Where("event_id = ?", eventID).
		Updates(columns).Error
}
