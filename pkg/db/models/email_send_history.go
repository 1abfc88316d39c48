package models

import (
	"time"

	"github.com/haneul-labs/crm-delivery/pkg/enums"
)

// EmailSendHistory records one attempted delivery per recipient per scheduled
// event. The (event_id, user_id) unique index is what makes a redelivered fire
// message safe: recipients already present are skipped instead of re-mailed.
type EmailSendHistory struct {
	ID             int64            `gorm:"column:id;primaryKey;autoIncrement"`
	EventID        string           `gorm:"column:event_id;type:text;not null;uniqueIndex:ux_email_send_histories_event_user"`
	UserID         int64            `gorm:"column:user_id;not null;uniqueIndex:ux_email_send_histories_event_user"`
	UserEmail      string           `gorm:"column:user_email;type:text;not null"`
	EmailMessageID string           `gorm:"column:email_message_id;type:text"`
	EmailBody      string           `gorm:"column:email_body;type:text"`
	SendStatus     enums.SendStatus `gorm:"column:send_status;type:text;not null"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (EmailSendHistory) TableName() string {
	return "email_send_histories"
}
