package models

import "time"

// EmailTemplate is the head revision of a notification template. Variables
// holds the declared placeholder list serialized as a JSON array; order is the
// rendering order and duplicates are allowed.
type EmailTemplate struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Subject   string    `gorm:"column:subject;type:text;not null"`
	Body      string    `gorm:"column:body;type:text;not null"`
	Variables string    `gorm:"column:variables;type:text"`
	Version   float32   `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (EmailTemplate) TableName() string {
	return "email_templates"
}

// EmailTemplateVersion is an immutable historical revision of a template,
// looked up when a schedule pinned a specific version at enrollment time.
type EmailTemplateVersion struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TemplateID int64     `gorm:"column:template_id;not null;uniqueIndex:ux_email_template_versions_template_version"`
	Subject    string    `gorm:"column:subject;type:text;not null"`
	Body       string    `gorm:"column:body;type:text;not null"`
	Variables  string    `gorm:"column:variables;type:text"`
	Version    float32   `gorm:"column:version;not null;uniqueIndex:ux_email_template_versions_template_version"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (EmailTemplateVersion) TableName() string {
	return "email_template_versions"
}
