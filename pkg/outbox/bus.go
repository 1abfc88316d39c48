package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/enums"
	"github.com/haneul-labs/crm-delivery/pkg/logger"
)

// Handler consumes one committed domain event. Handler errors are logged and
// never retried; subscribers needing durability must keep their own state.
type Handler func(ctx context.Context, env Envelope) error

// Bus fans committed envelopes out to in-process subscribers through a
// bounded worker pool.
type Bus struct {
	cfg  config.OutboxConfig
	logg *logger.Logger

	mtx  sync.RWMutex
	subs map[enums.DomainEventType][]Handler

	queue   chan Envelope
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewBus builds an idle bus. Subscribe before calling Start.
func NewBus(cfg config.OutboxConfig, logg *logger.Logger) *Bus {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &Bus{
		cfg:   cfg,
		logg:  logg,
		subs:  make(map[enums.DomainEventType][]Handler),
		queue: make(chan Envelope, cfg.QueueSize),
	}
}

// Subscribe registers a handler for the given event type. Registration after
// Start returns an error so dispatch never races the subscriber map.
func (b *Bus) Subscribe(eventType enums.DomainEventType, handler Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.started {
		return errors.New("bus already started")
	}
	b.subs[eventType] = append(b.subs[eventType], handler)
	return nil
}

// Start launches the worker pool. ctx bounds handler execution.
func (b *Bus) Start(ctx context.Context) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.started {
		return errors.New("bus already started")
	}
	b.started = true

	for i := 0; i < b.cfg.Workers; i++ {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			for env := range b.queue {
				b.dispatch(ctx, env)
			}
		}()
	}
	return nil
}

// Publish enqueues a committed envelope for delivery. Blocks when the queue
// is full.
func (b *Bus) Publish(env Envelope) error {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	if !b.started {
		return errors.New("bus not started")
	}
	if b.closed {
		return errors.New("bus draining")
	}
	b.queue <- env
	return nil
}

// Drain stops intake and waits for in-flight handlers up to timeout.
func (b *Bus) Drain(timeout time.Duration) error {
	b.mtx.Lock()
	if !b.started || b.closed {
		b.mtx.Unlock()
		return nil
	}
	b.closed = true
	close(b.queue)
	b.mtx.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("bus drain timed out")
	}
}

func (b *Bus) dispatch(ctx context.Context, env Envelope) {
	b.mtx.RLock()
	handlers := b.subs[env.Type]
	b.mtx.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil && b.logg != nil {
			fields := map[string]any{
				"event_id":   env.EventID,
				"event_type": string(env.Type),
			}
			b.logg.Error(b.logg.WithFields(ctx, fields), "domain event handler failed", err)
		}
	}
}
