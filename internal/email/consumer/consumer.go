package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/haneul-labs/crm-delivery/internal/email/schedules"
	"github.com/haneul-labs/crm-delivery/pkg/errors"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/metrics"
	"github.com/haneul-labs/crm-delivery/pkg/scheduler"
)

// orchestrator is the slice of the schedule service the consumer drives.
type orchestrator interface {
	Fire(ctx context.Context, payload *scheduler.NotificationEmailTimeoutPayload) (schedules.FireResult, error)
}

// Consumer routes fired-schedule messages to the orchestrator. A message is
// acknowledged only after handling succeeds or the failure is known to be
// permanent; everything else is returned to the broker for redelivery.
type Consumer struct {
	orchestrator orchestrator
	subscription *pubsub.Subscriber
	registry     *scheduler.DecoderRegistry
	dispatches   *metrics.DispatchMetrics
	logg         *logger.Logger
}

func New(orch orchestrator, subscription *pubsub.Subscriber, registry *scheduler.DecoderRegistry, dispatches *metrics.DispatchMetrics, logg *logger.Logger) (*Consumer, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("scheduled task subscription required")
	}
	if registry == nil {
		registry = scheduler.NewDefaultRegistry()
	}
	return &Consumer{
		orchestrator: orch,
		subscription: subscription,
		registry:     registry,
		dispatches:   dispatches,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.Process(ctx, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// Process handles one raw broker message and reports whether to acknowledge.
func (c *Consumer) Process(ctx context.Context, data []byte) bool {
	start := time.Now()

	var envelope scheduler.TaskEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		// unreadable message; redelivery cannot fix it
		c.logError(ctx, "failed to decode task envelope", err)
		c.observe("unknown", true, start)
		return true
	}

	logCtx := ctx
	if c.logg != nil {
		logCtx = c.logg.WithScheduleName(ctx, envelope.ScheduleName)
	}

	taskType, decoded, err := c.registry.Decode(envelope.Payload)
	if err != nil {
		c.logError(logCtx, "failed to decode task payload", err)
		c.observe(taskType, true, start)
		return true
	}

	payload, ok := decoded.(*scheduler.NotificationEmailTimeoutPayload)
	if !ok {
		c.logError(logCtx, "unexpected payload type", fmt.Errorf("task type %q", taskType))
		c.observe(taskType, true, start)
		return true
	}

	result, err := c.orchestrator.Fire(logCtx, payload)
	if err != nil {
		if errors.Retryable(err) {
			c.logError(logCtx, "fire handling failed; returning for redelivery", err)
			c.observe(taskType, false, start)
			return false
		}
		c.logError(logCtx, "fire handling failed permanently", err)
		c.observe(taskType, true, start)
		return true
	}

	if c.logg != nil {
		fields := map[string]any{
			"race_no_op": result.RaceNoOp,
			"sent":       result.Sent,
			"skipped":    result.Skipped,
		}
		c.logg.Info(c.logg.WithFields(logCtx, fields), "scheduled task handled")
	}
	c.observe(taskType, true, start)
	return true
}

func (c *Consumer) observe(taskType string, acked bool, start time.Time) {
	c.dispatches.ObserveDuration(taskType, time.Since(start))
	if acked {
		c.dispatches.IncAcked(taskType)
		return
	}
	c.dispatches.IncNacked(taskType)
}

func (c *Consumer) logError(ctx context.Context, msg string, err error) {
	if c.logg != nil {
		c.logg.Error(ctx, msg, err)
	}
}
