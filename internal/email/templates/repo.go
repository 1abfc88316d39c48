package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/haneul-labs/crm-delivery/pkg/db/models"
	apperrors "github.com/haneul-labs/crm-delivery/pkg/errors"
	"gorm.io/gorm"
)

// Properties is the renderable slice of a template revision.
type Properties struct {
	TemplateID int64
	Version    float32
	Subject    string
	Body       string
	Variables  []string
}

// Repository resolves template properties for the fire path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProperties(ctx context.Context, templateID int64, version *float32) (*Properties, error)
	Create(ctx context.Context, template *models.EmailTemplate) error
	CreateVersion(ctx context.Context, version *models.EmailTemplateVersion) error
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

func (r *repositoryImpl) Create(ctx context.Context, template *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(template).Error
}

func (r *repositoryImpl) CreateVersion(ctx context.Context, version *models.EmailTemplateVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// FindProperties loads a pinned version when one is given, else the head
// template. A missing template is not retryable; the schedule referenced a
// template that no longer exists.
func (r *repositoryImpl) FindProperties(ctx context.Context, templateID int64, version *float32) (*Properties, error) {
	if version == nil {
		return r.findHead(ctx, templateID)
	}
	return r.findVersion(ctx, templateID, *version)
}

func (r *repositoryImpl) findHead(ctx context.Context, templateID int64) (*Properties, error) {
	var template models.EmailTemplate
	err := r.db.WithContext(ctx).Where("id = ?", templateID).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeFormat, fmt.Sprintf("template %d not found", templateID))
	}
	if err != nil {
		return nil, err
	}
	return &Properties{
		TemplateID: template.ID,
		Version:    template.Version,
		Subject:    template.Subject,
		Body:       template.Body,
		Variables:  decodeVariables(template.Variables),
	}, nil
}

func (r *repositoryImpl) findVersion(ctx context.Context, templateID int64, version float32) (*Properties, error) {
	var revision models.EmailTemplateVersion
	err := r.db.WithContext(ctx).
		Where("template_id = ? AND version = ?", templateID, version).
		First(&revision).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.New(apperrors.CodeFormat, fmt.Sprintf("template %d version %g not found", templateID, version))
	}
	if err != nil {
		return nil, err
	}
	return &Properties{
		TemplateID: revision.TemplateID,
		Version:    revision.Version,
		Subject:    revision.Subject,
		Body:       revision.Body,
		Variables:  decodeVariables(revision.Variables),
	}, nil
}
