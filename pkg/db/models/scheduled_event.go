package models

import (
	"time"

	"github.com/haneul-labs/crm-delivery/pkg/enums"
)

// ScheduledEvent is the durable record of one deferred task and its terminal
// outcome. Rows are never deleted; they double as an audit trail.
type ScheduledEvent struct {
	ID            int64              `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string             `gorm:"column:event_id;type:text;not null;uniqueIndex:ux_scheduled_events_event_id"`
	EventClass    enums.EventClass   `gorm:"column:event_class;type:text;not null"`
	EventPayload  string             `gorm:"column:event_payload;type:text;not null"`
	ScheduleKind  enums.ScheduleKind `gorm:"column:schedule_kind;type:text;not null;default:REDIS"`
	Completed     bool               `gorm:"column:completed;not null;default:false"`
	IsNotConsumed bool               `gorm:"column:is_not_consumed;not null;default:false"`
	Canceled      bool               `gorm:"column:canceled;not null;default:false"`
	ScheduledAt   string             `gorm:"column:scheduled_at;type:text"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table the monitor and the fire path share.
func (ScheduledEvent) TableName() string {
	return "scheduled_events"
}

// Complete marks the normal terminal outcome. Completed is monotonic; callers
// must hold the row claim before flipping it.
func (e *ScheduledEvent) Complete() *ScheduledEvent {
	e.Completed = true
	return e
}

// MarkNotConsumed records that a fire signal arrived after the event was
// already terminal.
func (e *ScheduledEvent) MarkNotConsumed() *ScheduledEvent {
	e.IsNotConsumed = true
	return e
}

// Cancel marks an explicit cancellation. A canceled event is also completed
// and not-consumed so a late fire signal short-circuits.
func (e *ScheduledEvent) Cancel() *ScheduledEvent {
	e.Completed = true
	e.IsNotConsumed = true
	e.Canceled = true
	return e
}

// Terminal reports whether any terminal outcome has been reached.
func (e *ScheduledEvent) Terminal() bool {
	return e.Completed
}
