package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"github.com/haneul-labs/crm-delivery/pkg/metrics"
	"go.uber.org/multierr"
)

const sweeperName = "redis"

// TaskPublisher hands a fired schedule envelope to the broker.
type TaskPublisher interface {
	Publish(ctx context.Context, data []byte) error
}

// dueSource is the slice of the gateway the monitor drives.
type dueSource interface {
	PopDue(ctx context.Context, now time.Time, limit int) ([]DueSchedule, error)
	Requeue(ctx context.Context, name string, fireAt time.Time) error
	Discard(ctx context.Context, name string) error
}

// Monitor periodically claims due schedules and publishes their envelopes.
// A publish failure requeues the schedule; the next sweep retries it.
type Monitor struct {
	source    dueSource
	publisher TaskPublisher
	lock      Lock
	cfg       config.SchedulerConfig
	logg      *logger.Logger
	sweeps    *metrics.SweepMetrics
	now       func() time.Time
}

func NewMonitor(source dueSource, publisher TaskPublisher, lock Lock, cfg config.SchedulerConfig, logg *logger.Logger, sweeps *metrics.SweepMetrics) *Monitor {
	return &Monitor{
		source:    source,
		publisher: publisher,
		lock:      lock,
		cfg:       cfg,
		logg:      logg,
		sweeps:    sweeps,
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	interval := m.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil && m.logg != nil {
				m.logg.Error(ctx, "schedule sweep failed", err)
			}
		}
	}
}

// Sweep claims one batch of due schedules and publishes them. Returns the
// aggregate of per-schedule failures; partial progress is kept.
func (m *Monitor) Sweep(ctx context.Context) error {
	if m.lock != nil {
		acquired, err := m.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		if !acquired {
			return nil
		}
		defer func() {
			if relErr := m.lock.Release(ctx); relErr != nil && m.logg != nil {
				m.logg.Warn(ctx, "releasing sweep lock: "+relErr.Error())
			}
		}()
	}

	start := m.now()
	due, err := m.source.PopDue(ctx, start, m.cfg.SweepBatchSize)
	if err != nil {
		m.sweeps.IncFailure(sweeperName)
		return err
	}

	var errs error
	for _, item := range due {
		envelope := TaskEnvelope{
			ScheduleName: item.Name,
			ScheduleTime: item.FireAt,
			Payload:      json.RawMessage(item.Payload),
			CreatedAt:    m.now().UTC(),
		}
		data, marshalErr := json.Marshal(envelope)
		if marshalErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("marshal envelope %s: %w", item.Name, marshalErr))
			m.sweeps.IncFailure(sweeperName)
			continue
		}

		if pubErr := m.publisher.Publish(ctx, data); pubErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish %s: %w", item.Name, pubErr))
			if rqErr := m.source.Requeue(ctx, item.Name, item.FireAt); rqErr != nil {
				errs = multierr.Append(errs, fmt.Errorf("requeue %s: %w", item.Name, rqErr))
			}
			m.sweeps.IncFailure(sweeperName)
			continue
		}

		if discErr := m.source.Discard(ctx, item.Name); discErr != nil && m.logg != nil {
			m.logg.Warn(m.logg.WithScheduleName(ctx, item.Name), "discarding published payload: "+discErr.Error())
		}
		m.sweeps.IncPublished(sweeperName)
	}

	m.sweeps.ObserveDuration(sweeperName, time.Since(start))
	return errs
}
