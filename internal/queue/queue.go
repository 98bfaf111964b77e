// Package queue implements the durable job queue on Redis.
//
// Each outstanding item is a hash keyed by the job's custom ID. An item
// lives in exactly one of four places while it is outstanding:
//
//	ready      list, waiting for a worker
//	delayed    sorted set scored by the time the item becomes ready again
//	active     sorted set scored by the lease deadline of the current attempt
//	exhausted  sorted set of items whose attempts are used up but whose
//	           failure is not recorded yet
//
// Delivery is at-least-once: an item whose lease expires without an Ack
// or Retry is put back on the ready list by Reap. Items are deleted when
// they are acknowledged or retired after exhaustion, so retired items are
// not queryable here; the transaction log is the audit trail.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/jobtracker/internal/config"
	"github.com/joshu-sajeev/jobtracker/internal/queue/backoff"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrDuplicate is returned by Enqueue while an item with the same key
	// is outstanding. Duplicate enqueues are rejected, not merged.
	ErrDuplicate = errors.New("queue: item already outstanding")
	// ErrLeaseLost is returned when the delivery's lease expired and the
	// item was reaped, redelivered or retired in the meantime.
	ErrLeaseLost = errors.New("queue: lease lost")
	// ErrExhausted is returned by Retry when the failed attempt was the
	// last one allowed; the item is parked until Retire is called.
	ErrExhausted = errors.New("queue: attempts exhausted")
)

// Delivery is one leased attempt of a queue item.
type Delivery struct {
	Key         string
	Attempt     int
	MaxAttempts int
	Token       string
}

// Final reports whether this is the last attempt the item is allowed.
func (d Delivery) Final() bool {
	return d.Attempt >= d.MaxAttempts
}

// Stats is a point-in-time count of outstanding items.
type Stats struct {
	Ready     int64 `json:"ready"`
	Delayed   int64 `json:"delayed"`
	Active    int64 `json:"active"`
	Exhausted int64 `json:"exhausted"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithLeaseTimeout sets how long a dequeued item stays leased before it is
// considered abandoned. It must exceed the longest expected attempt.
func WithLeaseTimeout(d time.Duration) Option {
	return func(q *Queue) { q.leaseTimeout = d }
}

// WithMaxAttempts sets the default attempt ceiling for new items.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) { q.maxAttempts = n }
}

// WithBackoff sets the redelivery delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(q *Queue) { q.backoff = s }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock replaces time.Now; tests use it to move leases and delays.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a named Redis-backed work queue.
type Queue struct {
	client       redis.Cmdable
	name         string
	leaseTimeout time.Duration
	maxAttempts  int
	backoff      backoff.Strategy
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a queue. The caller owns the Redis client lifecycle.
func New(client redis.Cmdable, name string, opts ...Option) *Queue {
	q := &Queue{
		client:       client,
		name:         name,
		leaseTimeout: time.Minute,
		maxAttempts:  config.DefaultMaxAttempts,
		backoff:      &backoff.Exponential{Base: config.DefaultBackoffBase, Max: config.DefaultBackoffMax},
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// EnqueueOption overrides per-item settings.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	maxAttempts int
}

// MaxAttempts overrides the queue's default attempt ceiling for one item.
func MaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxAttempts = n }
}

// Enqueue admits an item for key. While an item with the same key is
// outstanding the call fails with ErrDuplicate.
func (q *Queue) Enqueue(ctx context.Context, key string, opts ...EnqueueOption) error {
	o := enqueueOptions{maxAttempts: q.maxAttempts}
	for _, fn := range opts {
		fn(&o)
	}
	if key == "" {
		return fmt.Errorf("queue: enqueue: empty key")
	}
	if o.maxAttempts < 1 {
		return fmt.Errorf("queue: enqueue %s: max attempts must be at least 1", key)
	}

	added, err := enqueueScript.Run(ctx, q.client,
		[]string{q.itemKey(key), q.readyKey()},
		key, o.maxAttempts, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("queue: enqueue %s: %w", key, err)
	}
	if added == 0 {
		return fmt.Errorf("queue: enqueue %s: %w", key, ErrDuplicate)
	}

	q.logger.Debug("item enqueued", slog.String("key", key), slog.Int("max_attempts", o.maxAttempts))
	return nil
}

// Dequeue leases the next ready item, promoting delayed items whose
// backoff elapsed first. It returns nil, nil when nothing is ready.
func (q *Queue) Dequeue(ctx context.Context) (*Delivery, error) {
	token := uuid.NewString()

	res, err := dequeueScript.Run(ctx, q.client,
		[]string{q.readyKey(), q.delayedKey(), q.activeKey()},
		q.now().UnixMilli(), q.leaseTimeout.Milliseconds(), token, q.itemPrefix(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("queue: dequeue: unexpected reply of length %d", len(res))
	}

	key, _ := res[0].(string)
	attempts, _ := res[1].(int64)
	maxAttempts, _ := res[2].(int64)

	return &Delivery{
		Key:         key,
		Attempt:     int(attempts),
		MaxAttempts: int(maxAttempts),
		Token:       token,
	}, nil
}

// Ack retires the item of d. It is used on success, on terminal failure
// and when an item is dropped.
func (q *Queue) Ack(ctx context.Context, d Delivery) error {
	ok, err := ackScript.Run(ctx, q.client,
		[]string{q.itemKey(d.Key), q.activeKey()},
		d.Key, d.Token,
	).Int()
	if err != nil {
		return fmt.Errorf("queue: ack %s: %w", d.Key, err)
	}
	if ok == 0 {
		return fmt.Errorf("queue: ack %s: %w", d.Key, ErrLeaseLost)
	}
	return nil
}

// Retry schedules redelivery of d after the backoff for d.Attempt and
// returns that delay. If d was the item's last allowed attempt the item is
// parked as exhausted and ErrExhausted is returned; the caller records the
// failure and then calls Retire.
func (q *Queue) Retry(ctx context.Context, d Delivery) (time.Duration, error) {
	delay := q.backoff.Delay(d.Attempt)
	due := q.now().Add(delay).UnixMilli()

	res, err := retryScript.Run(ctx, q.client,
		[]string{q.itemKey(d.Key), q.activeKey(), q.delayedKey(), q.exhaustedKey()},
		d.Key, d.Token, due, q.now().UnixMilli(),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("queue: retry %s: %w", d.Key, err)
	}

	switch res {
	case -1:
		return 0, fmt.Errorf("queue: retry %s: %w", d.Key, ErrLeaseLost)
	case 0:
		return 0, fmt.Errorf("queue: retry %s: %w", d.Key, ErrExhausted)
	}

	q.logger.Debug("item scheduled for redelivery",
		slog.String("key", d.Key),
		slog.Int("attempt", d.Attempt),
		slog.Duration("delay", delay),
	)
	return delay, nil
}

// ReapResult describes one Reap pass.
type ReapResult struct {
	// Requeued counts items put back on the ready list.
	Requeued int
	// Exhausted lists every key parked as exhausted: final attempts that
	// were abandoned or whose failure could not be recorded. They are not
	// delivered again and stay listed until Retire is called.
	Exhausted []string
}

// Reap returns items with an expired lease to the ready list and parks
// expired final attempts as exhausted.
func (q *Queue) Reap(ctx context.Context) (ReapResult, error) {
	res, err := reapScript.Run(ctx, q.client,
		[]string{q.activeKey(), q.readyKey(), q.exhaustedKey()},
		q.now().UnixMilli(), q.itemPrefix(),
	).Slice()
	if err != nil {
		return ReapResult{}, fmt.Errorf("queue: reap: %w", err)
	}

	var out ReapResult
	if len(res) == 0 {
		return out, nil
	}
	n, _ := res[0].(int64)
	out.Requeued = int(n)
	for _, v := range res[1:] {
		if key, ok := v.(string); ok {
			out.Exhausted = append(out.Exhausted, key)
		}
	}

	if out.Requeued > 0 || len(out.Exhausted) > 0 {
		q.logger.Warn("reaped expired leases",
			slog.Int("requeued", out.Requeued),
			slog.Any("exhausted", out.Exhausted),
		)
	}
	return out, nil
}

// Stats returns the number of ready, delayed, leased and parked exhausted
// items.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.readyKey())
	delayed := pipe.ZCard(ctx, q.delayedKey())
	active := pipe.ZCard(ctx, q.activeKey())
	exhausted := pipe.ZCard(ctx, q.exhaustedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue: stats: %w", err)
	}
	return Stats{
		Ready:     ready.Val(),
		Delayed:   delayed.Val(),
		Active:    active.Val(),
		Exhausted: exhausted.Val(),
	}, nil
}

// Retire removes an exhausted item once its failure has been recorded.
// Retiring a key that is not parked as exhausted is a no-op.
func (q *Queue) Retire(ctx context.Context, key string) error {
	n, err := retireScript.Run(ctx, q.client,
		[]string{q.itemKey(key), q.exhaustedKey()},
		key,
	).Int()
	if err != nil {
		return fmt.Errorf("queue: retire %s: %w", key, err)
	}
	if n == 1 {
		q.logger.Debug("exhausted item retired", slog.String("key", key))
	}
	return nil
}

// Ping verifies the Redis connection is alive.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) itemPrefix() string        { return "jobtracker:" + q.name + ":item:" }
func (q *Queue) itemKey(key string) string { return q.itemPrefix() + key }
func (q *Queue) readyKey() string          { return "jobtracker:" + q.name + ":ready" }
func (q *Queue) delayedKey() string        { return "jobtracker:" + q.name + ":delayed" }
func (q *Queue) exhaustedKey() string      { return "jobtracker:" + q.name + ":exhausted" }
func (q *Queue) activeKey() string         { return "jobtracker:" + q.name + ":active" }
