package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const maxFailedKept = 1000

type Options struct {
	Attempts        int
	Backoff         time.Duration
	PollInterval    time.Duration
	LockDuration    time.Duration
	RetainCompleted time.Duration
	FetchTimeout    time.Duration
	// Gate is checked before fetching a job; false pauses the worker for GateWait.
	Gate     func() (bool, float64)
	GateWait time.Duration
}

func (o *Options) withDefaults() {
	if o.Attempts < 1 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.LockDuration <= 0 {
		o.LockDuration = 30 * time.Second
	}
	if o.RetainCompleted <= 0 {
		o.RetainCompleted = 24 * time.Hour
	}
	if o.FetchTimeout < time.Second {
		o.FetchTimeout = time.Second
	}
	if o.GateWait <= 0 {
		o.GateWait = 10 * time.Second
	}
}

// RedisQueue is a durable job queue. Each named queue has a wait list,
// an active list, a delayed zset for backoff and one hash per job.
type RedisQueue struct {
	client *redis.Client
	prefix string
	opts   Options
	logger logger.Logger

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

func NewRedisQueue(client *redis.Client, prefix string, opts Options, log logger.Logger) *RedisQueue {
	opts.withDefaults()
	return &RedisQueue{
		client: client,
		prefix: prefix,
		opts:   opts,
		logger: log,
	}
}

func (q *RedisQueue) key(queue, part string) string {
	return q.prefix + ":" + queue + ":" + part
}

func (q *RedisQueue) jobKey(queue, id string) string {
	return q.key(queue, "job:"+id)
}

func (q *RedisQueue) lockKey(queue, id string) string {
	return q.key(queue, "lock:"+id)
}

// Enqueue stores a new job and makes it available to workers. Names are not
// unique, every call creates a new job.
func (q *RedisQueue) Enqueue(ctx context.Context, queue, name string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}
	id := uuid.NewString()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(queue, id), map[string]interface{}{
			"name":         name,
			"payload":      string(data),
			"attempts":     0,
			"max_attempts": q.opts.Attempts,
			"state":        StateWaiting,
			"enqueued_on":  time.Now().UnixMilli(),
		})
		pipe.LPush(ctx, q.key(queue, "wait"), id)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s on %s: %w", name, queue, err)
	}
	return id, nil
}

// Process starts concurrency workers for queue plus its maintenance loop.
// It returns immediately; Close stops everything.
func (q *RedisQueue) Process(ctx context.Context, queue string, concurrency int, p Processor) error {
	if p.Handle == nil {
		return errors.New("queue processor needs a handler")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	q.mu.Lock()
	q.cancels = append(q.cancels, cancel)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.maintain(ctx, queue)
	for range concurrency {
		q.wg.Add(1)
		go q.work(ctx, queue, p)
	}
	q.logger.Infof("queue %s: started %d workers", queue, concurrency)
	return nil
}

// Close stops all workers and waits for running handlers to return.
func (q *RedisQueue) Close() {
	q.mu.Lock()
	for _, cancel := range q.cancels {
		cancel()
	}
	q.cancels = nil
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *RedisQueue) work(ctx context.Context, queue string, p Processor) {
	defer q.wg.Done()
	for ctx.Err() == nil {
		if q.opts.Gate != nil {
			if ok, usage := q.opts.Gate(); !ok {
				q.logger.Infof("queue %s: CPU usage is high (%.2f%%), waiting", queue, usage)
				sleep(ctx, q.opts.GateWait)
				continue
			}
		}
		id, err := q.client.BRPopLPush(ctx, q.key(queue, "wait"), q.key(queue, "active"), q.opts.FetchTimeout).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.logger.Errorf("queue %s: fetch error: %v", queue, err)
			sleep(ctx, q.opts.PollInterval)
			continue
		}
		q.handle(ctx, queue, id, p)
	}
}

func (q *RedisQueue) handle(ctx context.Context, queue, id string, p Processor) {
	// bookkeeping must survive worker shutdown
	bg := context.WithoutCancel(ctx)
	lockKey := q.lockKey(queue, id)
	if err := q.client.Set(bg, lockKey, 1, q.opts.LockDuration).Err(); err != nil {
		q.logger.Warnf("queue %s: failed to lock job %s: %v", queue, id, err)
	}

	job, err := q.claim(bg, queue, id)
	if err != nil {
		q.logger.Errorf("queue %s: dropping job %s: %v", queue, id, err)
		q.client.LRem(bg, q.key(queue, "active"), 1, id)
		q.client.Del(bg, lockKey)
		return
	}

	stopRenew := q.keepLock(ctx, lockKey)
	result, herr := runHandler(ctx, p.Handle, job)
	stopRenew()

	if herr != nil && ctx.Err() != nil {
		// interrupted by Close: hand the job back without spending the attempt
		q.logger.Infof("queue %s: worker stopping, returning job %s (%s) to wait", queue, job.ID, job.Name)
		if err := q.release(bg, job); err != nil {
			q.logger.Errorf("queue %s: failed to release job %s: %v", queue, id, err)
		}
		return
	}

	if herr == nil {
		if err := q.complete(bg, job, result); err != nil {
			q.logger.Errorf("queue %s: failed to mark job %s completed: %v", queue, id, err)
		}
		if p.OnCompleted != nil {
			p.OnCompleted(bg, job, result)
		}
		return
	}

	if WillRetry(job, herr) {
		delay := Backoff(q.opts.Backoff, job.Attempt)
		q.logger.Warnf("queue %s: job %s (%s) attempt %d/%d failed, retrying in %s: %v",
			queue, job.ID, job.Name, job.Attempt, job.MaxAttempts, delay, herr)
		if err := q.delay(bg, job, delay, herr); err != nil {
			q.logger.Errorf("queue %s: failed to schedule retry of job %s: %v", queue, id, err)
		}
		return
	}

	q.logger.Errorf("queue %s: job %s (%s) failed after %d attempt(s): %v", queue, job.ID, job.Name, job.Attempt, herr)
	if err := q.fail(bg, job, herr); err != nil {
		q.logger.Errorf("queue %s: failed to mark job %s failed: %v", queue, id, err)
	}
	if p.OnFailed != nil {
		p.OnFailed(bg, job, herr)
	}
}

func (q *RedisQueue) claim(ctx context.Context, queue, id string) (*Job, error) {
	key := q.jobKey(queue, id)
	attempt, err := q.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count attempt: %w", err)
	}
	if err := q.client.HSet(ctx, key, "state", StateActive, "processed_on", time.Now().UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("failed to mark job active: %w", err)
	}
	info, err := q.GetJob(ctx, queue, id)
	if err != nil {
		return nil, err
	}
	info.Job.Attempt = int(attempt)
	return info.Job, nil
}

// GetJob reads the stored state of a job.
func (q *RedisQueue) GetJob(ctx context.Context, queue, id string) (*JobInfo, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(queue, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 || fields["payload"] == "" {
		return nil, ErrJobNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	maxAttempts, _ := strconv.Atoi(fields["max_attempts"])
	if maxAttempts < 1 {
		maxAttempts = q.opts.Attempts
	}
	enqueued, _ := strconv.ParseInt(fields["enqueued_on"], 10, 64)
	return &JobInfo{
		Job: &Job{
			ID:          id,
			Queue:       queue,
			Name:        fields["name"],
			Payload:     json.RawMessage(fields["payload"]),
			Attempt:     attempts,
			MaxAttempts: maxAttempts,
			EnqueuedAt:  time.UnixMilli(enqueued),
		},
		State:     fields["state"],
		LastError: fields["error"],
	}, nil
}

func (q *RedisQueue) complete(ctx context.Context, job *Job, result json.RawMessage) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := q.jobKey(job.Queue, job.ID)
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, job.ID)
		pipe.HSet(ctx, key, "state", StateCompleted, "result", string(result), "finished_on", time.Now().UnixMilli())
		pipe.Expire(ctx, key, q.opts.RetainCompleted)
		pipe.Del(ctx, q.lockKey(job.Queue, job.ID))
		return nil
	})
	return err
}

func (q *RedisQueue) delay(ctx context.Context, job *Job, d time.Duration, cause error) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, job.ID)
		pipe.HSet(ctx, q.jobKey(job.Queue, job.ID), "state", StateDelayed, "error", cause.Error())
		pipe.ZAdd(ctx, q.key(job.Queue, "delayed"), &redis.Z{
			Score:  float64(time.Now().Add(d).UnixMilli()),
			Member: job.ID,
		})
		pipe.Del(ctx, q.lockKey(job.Queue, job.ID))
		return nil
	})
	return err
}

// release puts an interrupted job at the head of wait and refunds its attempt.
func (q *RedisQueue) release(ctx context.Context, job *Job) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := q.jobKey(job.Queue, job.ID)
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, job.ID)
		pipe.HIncrBy(ctx, key, "attempts", -1)
		pipe.HSet(ctx, key, "state", StateWaiting)
		pipe.RPush(ctx, q.key(job.Queue, "wait"), job.ID)
		pipe.Del(ctx, q.lockKey(job.Queue, job.ID))
		return nil
	})
	return err
}

func (q *RedisQueue) fail(ctx context.Context, job *Job, cause error) error {
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := q.jobKey(job.Queue, job.ID)
		failed := q.key(job.Queue, "failed")
		pipe.LRem(ctx, q.key(job.Queue, "active"), 1, job.ID)
		pipe.HSet(ctx, key, "state", StateFailed, "error", cause.Error(), "finished_on", time.Now().UnixMilli())
		pipe.Expire(ctx, key, q.opts.RetainCompleted)
		pipe.LPush(ctx, failed, job.ID)
		pipe.LTrim(ctx, failed, 0, maxFailedKept-1)
		pipe.Del(ctx, q.lockKey(job.Queue, job.ID))
		return nil
	})
	return err
}

func (q *RedisQueue) keepLock(ctx context.Context, lockKey string) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(q.opts.LockDuration / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := q.client.Expire(context.WithoutCancel(ctx), lockKey, q.opts.LockDuration).Err(); err != nil {
					q.logger.Warnf("failed to extend lock %s: %v", lockKey, err)
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// Counts returns the current size of each list of queue.
func (q *RedisQueue) Counts(ctx context.Context, queue string) (Counts, error) {
	pipe := q.client.Pipeline()
	wait := pipe.LLen(ctx, q.key(queue, "wait"))
	active := pipe.LLen(ctx, q.key(queue, "active"))
	delayed := pipe.ZCard(ctx, q.key(queue, "delayed"))
	failed := pipe.LLen(ctx, q.key(queue, "failed"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Counts{}, fmt.Errorf("failed to count queue %s: %w", queue, err)
	}
	return Counts{
		Waiting: wait.Val(),
		Active:  active.Val(),
		Delayed: delayed.Val(),
		Failed:  failed.Val(),
	}, nil
}

func runHandler(ctx context.Context, h Handler, job *Job) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
