package history

import (
	"context"

	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository records per-recipient send outcomes. The (event_id, user_id)
// unique index backs redelivery dedup.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	RecordSend(ctx context.Context, entry *models.EmailSendHistory) (bool, error)
	Exists(ctx context.Context, eventID string, userID int64) (bool, error)
	ListByEventID(ctx context.Context, eventID string) ([]models.EmailSendHistory, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// RecordSend inserts one history row. Returns false without error when the
// recipient was already recorded for this event.
func (r *repositoryImpl) RecordSend(ctx context.Context, entry *models.EmailSendHistory) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) Exists(ctx context.Context, eventID string, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EmailSendHistory{}).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *repositoryImpl) ListByEventID(ctx context.Context, eventID string) ([]models.EmailSendHistory, error) {
	var entries []models.EmailSendHistory
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("user_id ASC").
		Find(&entries).Error
	return entries, err
}
