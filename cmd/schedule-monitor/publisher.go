package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/haneul-labs/crm-delivery/pkg/pubsub"
)

// taskPublisher bridges the monitor's publish contract onto the scheduled-task
// topic. Publishing waits for the broker's server id so a sweep failure can
// requeue the schedule.
type taskPublisher struct {
	topic *gcppubsub.Publisher
}

func newTaskPublisher(client *pubsub.Client) *taskPublisher {
	return &taskPublisher{topic: client.ScheduledTaskPublisher()}
}

func (p *taskPublisher) Publish(ctx context.Context, data []byte) error {
	if p == nil || p.topic == nil {
		return errors.New("scheduled task topic not configured")
	}
	result := p.topic.Publish(ctx, &gcppubsub.Message{Data: data})
	_, err := result.Get(ctx)
	return err
}
