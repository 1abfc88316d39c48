package models

import "time"

// User is a notification recipient. Attributes is an opaque JSON document;
// variable resolution navigates it without assuming a schema beyond the
// required top-level email key.
type User struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Attributes string    `gorm:"column:attributes;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
