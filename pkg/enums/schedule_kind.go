package enums

// ScheduleKind names the external scheduler backing a scheduled event.
type ScheduleKind string

const (
	ScheduleKindRedis ScheduleKind = "REDIS"
)
