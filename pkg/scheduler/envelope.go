package scheduler

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// TaskTypeNotificationEmailTimeout is the payload discriminator for
// notification email timeouts.
const TaskTypeNotificationEmailTimeout = "notification-email-timeout"

// TaskEnvelope is the broker message emitted for one fired schedule.
type TaskEnvelope struct {
	ScheduleName string          `json:"scheduleName"`
	ScheduleTime time.Time       `json:"scheduleTime"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NotificationEmailTimeoutPayload is the schedule payload for a deferred
// notification email. ExpiredTime stays textual; it is echoed back to the
// orchestrator untouched.
type NotificationEmailTimeoutPayload struct {
	Type            string   `json:"@type"`
	TemplateID      int64    `json:"templateId"`
	TemplateVersion *float32 `json:"templateVersion"`
	UserIDs         []int64  `json:"userIds"`
	EventID         string   `json:"eventId"`
	ExpiredTime     string   `json:"expiredTime"`
}

// NewNotificationEmailTimeoutPayload stamps the discriminator.
func NewNotificationEmailTimeoutPayload(templateID int64, templateVersion *float32, userIDs []int64, eventID, expiredTime string) NotificationEmailTimeoutPayload {
	return NotificationEmailTimeoutPayload{
		Type:            TaskTypeNotificationEmailTimeout,
		TemplateID:      templateID,
		TemplateVersion: templateVersion,
		UserIDs:         userIDs,
		EventID:         eventID,
		ExpiredTime:     expiredTime,
	}
}

type decoderFunc func(payload json.RawMessage) (interface{}, error)

// DecoderRegistry maps payload discriminators to typed decoders.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[string]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[string]decoderFunc)}
}

// NewDefaultRegistry returns a registry with every known payload type wired.
func NewDefaultRegistry() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(TaskTypeNotificationEmailTimeout, func(payload json.RawMessage) (interface{}, error) {
		var decoded NotificationEmailTimeoutPayload
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return &decoded, nil
	})
	return reg
}

func (r *DecoderRegistry) Register(taskType string, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[taskType] = decoder
}

// Decode resolves the discriminator and returns the typed payload.
func (r *DecoderRegistry) Decode(payload json.RawMessage) (string, interface{}, error) {
	var head struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", nil, fmt.Errorf("decode payload discriminator: %w", err)
	}
	if head.Type == "" {
		return "", nil, fmt.Errorf("payload missing @type discriminator")
	}

	r.mtx.RLock()
	decoder, ok := r.registry[head.Type]
	r.mtx.RUnlock()
	if !ok {
		return head.Type, nil, fmt.Errorf("decoder not registered for %q", head.Type)
	}

	decoded, err := decoder(payload)
	if err != nil {
		return head.Type, nil, fmt.Errorf("decode %q payload: %w", head.Type, err)
	}
	return head.Type, decoded, nil
}
