package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const promoteBatch = 100

// KEYS: delayed zset, wait list. ARGV: now ms, batch size, job key prefix.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('LPUSH', KEYS[2], id)
	redis.call('HSET', ARGV[3] .. id, 'state', 'waiting')
end
return #ids
`)

// Two-pass stall check. A job is requeued only if it had no lock on the
// previous pass and still has none, so a worker that just moved a job into
// active has a full reap interval to take the lock.
// KEYS: active list, wait list, stalled set. ARGV: lock key prefix, job key prefix.
var reapScript = redis.NewScript(`
local moved = 0
local suspects = redis.call('SMEMBERS', KEYS[3])
redis.call('DEL', KEYS[3])
for _, id in ipairs(suspects) do
	if redis.call('EXISTS', ARGV[1] .. id) == 0 then
		if redis.call('LREM', KEYS[1], 1, id) > 0 then
			redis.call('RPUSH', KEYS[2], id)
			redis.call('HSET', ARGV[2] .. id, 'state', 'waiting')
			moved = moved + 1
		end
	end
end
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
	if redis.call('EXISTS', ARGV[1] .. id) == 0 then
		redis.call('SADD', KEYS[3], id)
	end
end
return moved
`)

func (q *RedisQueue) maintain(ctx context.Context, queue string) {
	defer q.wg.Done()
	promote := time.NewTicker(q.opts.PollInterval)
	defer promote.Stop()
	reap := time.NewTicker(q.opts.LockDuration)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-promote.C:
			if _, err := q.PromoteDelayed(ctx, queue); err != nil && ctx.Err() == nil {
				q.logger.Errorf("queue %s: %v", queue, err)
			}
		case <-reap.C:
			n, err := q.ReapStalled(ctx, queue)
			if err != nil && ctx.Err() == nil {
				q.logger.Errorf("queue %s: %v", queue, err)
			}
			if n > 0 {
				q.logger.Warnf("queue %s: moved %d stalled job(s) back to wait", queue, n)
			}
		}
	}
}

// PromoteDelayed moves delayed jobs whose backoff elapsed back to wait.
func (q *RedisQueue) PromoteDelayed(ctx context.Context, queue string) (int64, error) {
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.key(queue, "delayed"), q.key(queue, "wait")},
		time.Now().UnixMilli(), promoteBatch, q.key(queue, "job:"),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to promote delayed jobs: %w", err)
	}
	return n, nil
}

// ReapStalled requeues active jobs that were unlocked on the previous call
// and are still unlocked, and marks the currently unlocked ones.
func (q *RedisQueue) ReapStalled(ctx context.Context, queue string) (int64, error) {
	n, err := reapScript.Run(ctx, q.client,
		[]string{q.key(queue, "active"), q.key(queue, "wait"), q.key(queue, "stalled")},
		q.key(queue, "lock:"), q.key(queue, "job:"),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to reap stalled jobs: %w", err)
	}
	return n, nil
}
