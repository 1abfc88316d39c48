package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/haneul-labs/crm-delivery/pkg/config"
	"github.com/haneul-labs/crm-delivery/pkg/errors"
	redispkg "github.com/haneul-labs/crm-delivery/pkg/redis"
)

// Gateway is the external one-shot scheduler contract. CreateSchedule rejects
// duplicate names; DeleteSchedule treats a missing schedule as success.
type Gateway interface {
	CreateSchedule(ctx context.Context, name string, fireAt time.Time, payload []byte) error
	DeleteSchedule(ctx context.Context, name string) error
}

// redisStore defines the Redis operations the gateway depends on.
type redisStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...any) error
	Eval(ctx context.Context, script string, keys []string, args ...any) (any, error)
}

// DueSchedule is one schedule popped by the monitor sweep.
type DueSchedule struct {
	Name    string
	FireAt  time.Time
	Payload []byte
}

// popDueScript removes and returns due members atomically so concurrent
// sweepers never double-fire a schedule.
const popDueScript = `
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'WITHSCORES', 'LIMIT', 0, ARGV[2])
local popped = {}
for i = 1, #due, 2 do
    redis.call('ZREM', KEYS[1], due[i])
    popped[#popped + 1] = due[i]
    popped[#popped + 1] = due[i + 1]
end
return popped
`

// RedisGateway stores one-shot schedules in a sorted set scored by fire time,
// with the payload in a side key per schedule name.
type RedisGateway struct {
	client redisStore
	cfg    config.SchedulerConfig
}

func NewRedisGateway(client redisStore, cfg config.SchedulerConfig) *RedisGateway {
	return &RedisGateway{client: client, cfg: cfg}
}

func (g *RedisGateway) dueKey() string {
	return redispkg.Key(g.cfg.KeyPrefix, "due")
}

func (g *RedisGateway) payloadKey(name string) string {
	return redispkg.Key(g.cfg.KeyPrefix, "payload", name)
}

// CreateSchedule registers a one-shot schedule. A second create under the
// same name is a conflict.
func (g *RedisGateway) CreateSchedule(ctx context.Context, name string, fireAt time.Time, payload []byte) error {
	if name == "" {
		return errors.New(errors.CodeValidation, "schedule name is required")
	}

	ok, err := g.client.SetNX(ctx, g.payloadKey(name), payload, 0)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "storing schedule payload")
	}
	if !ok {
		return errors.New(errors.CodeConflict, fmt.Sprintf("schedule %q already exists", name))
	}

	if err := g.client.ZAdd(ctx, g.dueKey(), float64(fireAt.Unix()), name); err != nil {
		_ = g.client.Del(ctx, g.payloadKey(name))
		return errors.Wrap(errors.CodeDependency, err, "registering schedule fire time")
	}
	return nil
}

// DeleteSchedule removes the schedule and its payload. Missing schedules are
// not an error.
func (g *RedisGateway) DeleteSchedule(ctx context.Context, name string) error {
	if name == "" {
		return errors.New(errors.CodeValidation, "schedule name is required")
	}
	if err := g.client.ZRem(ctx, g.dueKey(), name); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "removing schedule from due set")
	}
	if err := g.client.Del(ctx, g.payloadKey(name)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "removing schedule payload")
	}
	return nil
}

// PopDue atomically claims schedules due at or before now. Claimed names whose
// payload was concurrently deleted (a racing cancel) are dropped.
func (g *RedisGateway) PopDue(ctx context.Context, now time.Time, limit int) ([]DueSchedule, error) {
	raw, err := g.client.Eval(ctx, popDueScript, []string{g.dueKey()},
		strconv.FormatInt(now.Unix(), 10), strconv.Itoa(limit))
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "popping due schedules")
	}

	flat, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New(errors.CodeDependency, "unexpected pop script reply")
	}

	due := make([]DueSchedule, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		name := fmt.Sprint(flat[i])
		score, parseErr := strconv.ParseFloat(fmt.Sprint(flat[i+1]), 64)
		if parseErr != nil {
			continue
		}

		payload, getErr := g.client.Get(ctx, g.payloadKey(name))
		if getErr != nil {
			if redispkg.IsNil(getErr) {
				continue
			}
			return due, errors.Wrap(errors.CodeDependency, getErr, "loading schedule payload")
		}
		due = append(due, DueSchedule{
			Name:    name,
			FireAt:  time.Unix(int64(score), 0).UTC(),
			Payload: []byte(payload),
		})
	}
	return due, nil
}

// Requeue puts a popped schedule back so a later sweep retries it. The
// payload key is still present, so ZAdd is enough.
func (g *RedisGateway) Requeue(ctx context.Context, name string, fireAt time.Time) error {
	if err := g.client.ZAdd(ctx, g.dueKey(), float64(fireAt.Unix()), name); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "requeueing schedule")
	}
	return nil
}

// Discard drops the payload of a schedule that was handed to the broker.
func (g *RedisGateway) Discard(ctx context.Context, name string) error {
	if err := g.client.Del(ctx, g.payloadKey(name)); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "discarding schedule payload")
	}
	return nil
}

var _ Gateway = (*RedisGateway)(nil)
var _ redisStore = (*redispkg.Client)(nil)
