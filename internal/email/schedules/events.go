package schedules

import "time"

// ScheduleEnrolled is published on the outbox bus after a schedule commits.
type ScheduleEnrolled struct {
	EventID     string
	TemplateID  int64
	Recipients  int
	ScheduledAt time.Time
}

// ScheduleCanceled is published after a cancellation commits.
type ScheduleCanceled struct {
	EventID string
}

// ScheduleCompleted is published after the fire path commits.
type ScheduleCompleted struct {
	EventID string
	Sent    int
	Skipped int
}
