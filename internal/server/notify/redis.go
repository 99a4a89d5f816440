package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultVisibilityTimeout is how long a dequeued job may stay unreleased
// before PromoteDue hands it out again. It must exceed the dispatcher's job
// timeout.
const DefaultVisibilityTimeout = 2 * time.Minute

// redisClient is the subset of *redis.Client used by RedisQueue.
type redisClient interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value any) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZAddNX(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZScore(ctx context.Context, key, member string) *redis.FloatCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
}

// RedisQueue is a Backend on Redis with at-least-once delivery.
//
//	<name>:pending     ready jobs (LPUSH, BLMOVE to processing)
//	<name>:processing  dequeued jobs not yet released
//	<name>:leases      processing entries scored by lease deadline
//	<name>:delayed     scheduled retries scored by due time
//	<name>:failed      jobs that exhausted their attempts
//
// Scores are unix milliseconds. Completed jobs are not kept.
type RedisQueue struct {
	client     redisClient
	pending    string
	processing string
	leases     string
	delayed    string
	failed     string

	visibility time.Duration
	now        func() time.Time
}

// NewRedisQueue returns a queue stored under keys prefixed with name.
func NewRedisQueue(client redisClient, name string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		pending:    name + ":pending",
		processing: name + ":processing",
		leases:     name + ":leases",
		delayed:    name + ":delayed",
		failed:     name + ":failed",
		visibility: DefaultVisibilityTimeout,
		now:        time.Now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.pending, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Dequeue moves the oldest ready job to the processing list and leases it.
// The job stays there until Ack, Retry or Fail releases it.
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	payload, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis blmove: %w", err)
	}

	// An unleased entry is picked up by PromoteDue.
	lease := redis.Z{Score: q.score(q.now().Add(q.visibility)), Member: payload}
	if err := q.client.ZAdd(ctx, q.leases, lease).Err(); err != nil {
		return nil, fmt.Errorf("redis zadd: %w", err)
	}

	job, err := decodeJob(payload)
	if err != nil {
		if rerr := q.release(ctx, payload); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	job.receipt = payload
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	return q.release(ctx, job.receipt)
}

func (q *RedisQueue) Retry(ctx context.Context, job Job, at time.Time) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	z := redis.Z{Score: q.score(at), Member: payload}
	if err := q.client.ZAdd(ctx, q.delayed, z).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return q.release(ctx, job.receipt)
}

func (q *RedisQueue) Fail(ctx context.Context, job Job, reason string) error {
	payload, err := encodeFailed(FailedJob{Job: job, Reason: reason, FailedAt: q.now().UTC()})
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.failed, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return q.release(ctx, job.receipt)
}

// release drops a dequeued payload from the processing list and its lease.
func (q *RedisQueue) release(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}
	if err := q.client.LRem(ctx, q.processing, 1, receipt).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	if err := q.client.ZRem(ctx, q.leases, receipt).Err(); err != nil {
		return fmt.Errorf("redis zrem: %w", err)
	}
	return nil
}

// PromoteDue moves due members of the delayed set and expired leases back to
// the pending list. A member is only pushed by the caller whose ZREM removed
// it, so concurrent promoters never duplicate a job.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zrangebyscore: %w", err)
	}

	moved := 0
	for _, member := range due {
		removed, err := q.client.ZRem(ctx, q.delayed, member).Result()
		if err != nil {
			return moved, fmt.Errorf("redis zrem: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.pending, member).Err(); err != nil {
			return moved, fmt.Errorf("redis lpush: %w", err)
		}
		moved++
	}

	n, err := q.requeueStale(ctx, now)
	return moved + n, err
}

// requeueStale redelivers processing entries whose lease ran out, e.g. after
// a worker crashed mid-job. Entries without a lease get one first.
func (q *RedisQueue) requeueStale(ctx context.Context, now time.Time) (int, error) {
	inflight, err := q.client.LRange(ctx, q.processing, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis lrange: %w", err)
	}

	moved := 0
	for _, member := range inflight {
		deadline, err := q.client.ZScore(ctx, q.leases, member).Result()
		if errors.Is(err, redis.Nil) {
			lease := redis.Z{Score: q.score(now.Add(q.visibility)), Member: member}
			if err := q.client.ZAddNX(ctx, q.leases, lease).Err(); err != nil {
				return moved, fmt.Errorf("redis zadd: %w", err)
			}
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("redis zscore: %w", err)
		}
		if deadline > q.score(now) {
			continue
		}

		removed, err := q.client.ZRem(ctx, q.leases, member).Result()
		if err != nil {
			return moved, fmt.Errorf("redis zrem: %w", err)
		}
		if removed == 0 {
			continue
		}
		// Push before removing: a crash in between redelivers twice rather
		// than never.
		if err := q.client.LPush(ctx, q.pending, member).Err(); err != nil {
			return moved, fmt.Errorf("redis lpush: %w", err)
		}
		if err := q.client.LRem(ctx, q.processing, 1, member).Err(); err != nil {
			return moved, fmt.Errorf("redis lrem: %w", err)
		}
		moved++
	}
	return moved, nil
}

func (q *RedisQueue) score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
