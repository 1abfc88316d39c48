package outbox

import (
	"context"
	"errors"
	"sync"

	"github.com/haneul-labs/crm-delivery/pkg/logger"
	"gorm.io/gorm"
)

// Queue collects envelopes deferred during one transaction. Nothing leaves the
// queue unless the surrounding transaction commits.
type Queue struct {
	mtx   sync.Mutex
	items []Envelope
}

// Defer stages an envelope for post-commit delivery.
func (q *Queue) Defer(env Envelope) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.items = append(q.items, env)
}

func (q *Queue) drain() []Envelope {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	items := q.items
	q.items = nil
	return items
}

// TxRunner is the transactional surface the publisher wraps.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Publisher couples a database transaction with a deferred event queue.
// Envelopes deferred inside fn are published to the bus in registration order,
// and only when the transaction commits. A rollback discards them.
type Publisher struct {
	db   TxRunner
	bus  *Bus
	logg *logger.Logger
}

// NewPublisher wires the publisher to its transaction runner and bus.
func NewPublisher(db TxRunner, bus *Bus, logg *logger.Logger) *Publisher {
	return &Publisher{db: db, bus: bus, logg: logg}
}

// WithTx runs fn inside a transaction with a fresh deferred queue.
func (p *Publisher) WithTx(ctx context.Context, fn func(tx *gorm.DB, q *Queue) error) error {
	if p.db == nil {
		return errors.New("tx runner is required")
	}

	queue := &Queue{}
	err := p.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(tx, queue)
	})
	if err != nil {
		return err
	}

	for _, env := range queue.drain() {
		if pubErr := p.bus.Publish(env); pubErr != nil && p.logg != nil {
			p.logg.Error(p.logg.WithEventID(ctx, env.EventID), "publishing committed event", pubErr)
		}
	}
	return nil
}
