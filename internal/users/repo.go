package users

import (
	"context"

	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	"gorm.io/gorm"
)

// Repository looks up notification recipients.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAllByIDIn(ctx context.Context, ids []int64) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
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

func (r *repositoryImpl) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repositoryImpl) FindAllByIDIn(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []models.User
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&found).Error
	return found, err
}
