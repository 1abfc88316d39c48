package enums

import "fmt"

// EventClass discriminates the deferred-task type stored on a scheduled event.
type EventClass string

const (
	EventClassNotificationEmailTimeout EventClass = "NotificationEmailSendTimeOutEvent"
)

var validEventClasses = []EventClass{
	EventClassNotificationEmailTimeout,
}

// IsValid reports whether the value is a known deferred-task class.
func (e EventClass) IsValid() bool {
	for _, candidate := range validEventClasses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventClass converts raw input into EventClass.
func ParseEventClass(value string) (EventClass, error) {
	for _, candidate := range validEventClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event class %q", value)
}
