package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/go-redis/redis/v8"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	q := NewRedisQueue(client, "test", Options{
		Attempts:     3,
		Backoff:      20 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		LockDuration: 2 * time.Second,
		FetchTimeout: time.Second,
	}, logger.NewNopLogger())
	t.Cleanup(q.Close)
	return q, mr
}

type payload struct {
	Value string `json:"value"`
}

func TestEnqueueStoresJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Extract, "clip.mp4__audioExtraction", payload{Value: "a"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// same name again is a separate job
	id2, err := q.Enqueue(ctx, Extract, "clip.mp4__audioExtraction", payload{Value: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == id2 {
		t.Fatal("duplicate names must produce distinct jobs")
	}

	counts, err := q.Counts(ctx, Extract)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Waiting != 2 {
		t.Fatalf("waiting = %d, want 2", counts.Waiting)
	}

	info, err := q.GetJob(ctx, Extract, id)
	if err != nil {
		t.Fatal(err)
	}
	var p payload
	if err := info.Job.Decode(&p); err != nil || p.Value != "a" {
		t.Fatalf("payload = %+v, %v", p, err)
	}
	if info.State != StateWaiting || info.Job.MaxAttempts != 3 || info.Job.Attempt != 0 {
		t.Fatalf("unexpected job info: %+v %+v", info, info.Job)
	}

	if _, err := q.GetJob(ctx, Extract, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestProcessCompletesJob(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	done := make(chan json.RawMessage, 1)
	err := q.Process(ctx, Transcribe, 2, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			var p payload
			if err := job.Decode(&p); err != nil {
				return nil, err
			}
			return json.Marshal(payload{Value: p.Value + "!"})
		},
		OnCompleted: func(ctx context.Context, job *Job, result json.RawMessage) {
			done <- result
		},
		OnFailed: func(ctx context.Context, job *Job, err error) {
			t.Errorf("unexpected failure: %v", err)
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	id, err := q.Enqueue(ctx, Transcribe, "x", payload{Value: "hi"})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case res := <-done:
		if string(res) != `{"value":"hi!"}` {
			t.Fatalf("result = %s", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}

	info, err := q.GetJob(ctx, Transcribe, id)
	if err != nil {
		t.Fatal(err)
	}
	if info.State != StateCompleted || info.Job.Attempt != 1 {
		t.Fatalf("state=%s attempt=%d", info.State, info.Job.Attempt)
	}
}

func TestProcessRetriesWithBackoff(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var calls int32
	done := make(chan *Job, 1)
	err := q.Process(ctx, Split, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, fmt.Errorf("transient %d", job.Attempt)
			}
			return json.RawMessage(`{}`), nil
		},
		OnCompleted: func(ctx context.Context, job *Job, result json.RawMessage) { done <- job },
		OnFailed: func(ctx context.Context, job *Job, err error) {
			t.Errorf("unexpected failure: %v", err)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ctx, Split, "x", payload{}); err != nil {
		t.Fatal(err)
	}

	select {
	case job := <-done:
		if job.Attempt != 3 {
			t.Fatalf("completed on attempt %d, want 3", job.Attempt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never completed")
	}
}

func TestProcessFailsAfterAttempts(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var calls int32
	failed := make(chan error, 1)
	err := q.Process(ctx, Extract, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			atomic.AddInt32(&calls, 1)
			return nil, errors.New("ffmpeg exploded")
		},
		OnFailed: func(ctx context.Context, job *Job, err error) { failed <- err },
	})
	if err != nil {
		t.Fatal(err)
	}
	id, err := q.Enqueue(ctx, Extract, "x", payload{})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-failed:
		if err.Error() != "ffmpeg exploded" {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never failed")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("handler ran %d times, want 3", n)
	}
	info, err := q.GetJob(ctx, Extract, id)
	if err != nil {
		t.Fatal(err)
	}
	if info.State != StateFailed || info.LastError != "ffmpeg exploded" {
		t.Fatalf("info = %+v", info)
	}
	counts, _ := q.Counts(ctx, Extract)
	if counts.Failed != 1 || counts.Active != 0 || counts.Delayed != 0 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestProcessSkipsRetryForPermanentErrors(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var calls int32
	failed := make(chan *Job, 1)
	err := q.Process(ctx, Extract, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			atomic.AddInt32(&calls, 1)
			return nil, fmt.Errorf("filepath missing: %w", ErrSkipRetry)
		},
		OnFailed: func(ctx context.Context, job *Job, err error) { failed <- job },
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Enqueue(ctx, Extract, "x", payload{}); err != nil {
		t.Fatal(err)
	}

	select {
	case job := <-failed:
		if job.Attempt != 1 {
			t.Fatalf("failed on attempt %d, want 1", job.Attempt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never failed")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("handler ran %d times", n)
	}
}

func TestProcessRecoversHandlerPanic(t *testing.T) {
	q, _ := newTestQueue(t)
	q.opts.Attempts = 1
	ctx := context.Background()

	failed := make(chan error, 1)
	_ = q.Process(ctx, Split, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			panic("nil segment")
		},
		OnFailed: func(ctx context.Context, job *Job, err error) { failed <- err },
	})
	if _, err := q.Enqueue(ctx, Split, "x", payload{}); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-failed:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("panic was not converted to a failure")
	}
}

func TestReapStalledRequeuesUnlockedJobs(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Split, "x", payload{})
	if err != nil {
		t.Fatal(err)
	}
	// simulate a worker that fetched the job and died
	if _, err := q.client.RPopLPush(ctx, q.key(Split, "wait"), q.key(Split, "active")).Result(); err != nil {
		t.Fatal(err)
	}
	locked, err := q.Enqueue(ctx, Split, "y", payload{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.client.RPopLPush(ctx, q.key(Split, "wait"), q.key(Split, "active")).Result(); err != nil {
		t.Fatal(err)
	}
	mr.Set(q.lockKey(Split, locked), "1")

	// first pass only marks the unlocked job
	n, err := q.ReapStalled(ctx, Split)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("first pass reaped %d, want 0", n)
	}
	n, err = q.ReapStalled(ctx, Split)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("reaped %d, want 1", n)
	}
	waiting, _ := q.client.LRange(ctx, q.key(Split, "wait"), 0, -1).Result()
	if len(waiting) != 1 || waiting[0] != id {
		t.Fatalf("wait = %v, want [%s]", waiting, id)
	}
}

func TestReapStalledSparesJobLockedAfterFetch(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, Split, "x", payload{})
	if err != nil {
		t.Fatal(err)
	}
	// fetched but the worker has not taken the lock yet
	if _, err := q.client.RPopLPush(ctx, q.key(Split, "wait"), q.key(Split, "active")).Result(); err != nil {
		t.Fatal(err)
	}
	if n, err := q.ReapStalled(ctx, Split); err != nil || n != 0 {
		t.Fatalf("reaped %d, err %v", n, err)
	}
	mr.Set(q.lockKey(Split, id), "1")

	if n, err := q.ReapStalled(ctx, Split); err != nil || n != 0 {
		t.Fatalf("locked job reaped: %d, err %v", n, err)
	}
	active, _ := q.client.LRange(ctx, q.key(Split, "active"), 0, -1).Result()
	if len(active) != 1 || active[0] != id {
		t.Fatalf("active = %v, want [%s]", active, id)
	}
}

func TestCloseReturnsInterruptedJobWithoutSpendingAttempt(t *testing.T) {
	q, _ := newTestQueue(t)
	q.opts.Attempts = 1
	ctx := context.Background()

	started := make(chan struct{})
	var failures int32
	_ = q.Process(ctx, Split, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
		OnFailed: func(ctx context.Context, job *Job, err error) { atomic.AddInt32(&failures, 1) },
	})
	id, err := q.Enqueue(ctx, Split, "x", payload{})
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never started")
	}
	q.Close()

	if n := atomic.LoadInt32(&failures); n != 0 {
		t.Fatalf("OnFailed ran %d times", n)
	}
	info, err := q.GetJob(ctx, Split, id)
	if err != nil {
		t.Fatal(err)
	}
	if info.State != StateWaiting || info.Job.Attempt != 0 {
		t.Fatalf("info = %+v attempt=%d", info, info.Job.Attempt)
	}
	counts, _ := q.Counts(ctx, Split)
	if counts.Waiting != 1 || counts.Active != 0 || counts.Delayed != 0 || counts.Failed != 0 {
		t.Fatalf("counts = %+v", counts)
	}

	// the next worker gets the full attempt budget
	done := make(chan *Job, 1)
	_ = q.Process(ctx, Split, 1, Processor{
		Handle: func(ctx context.Context, job *Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
		OnCompleted: func(ctx context.Context, job *Job, _ json.RawMessage) { done <- job },
	})
	select {
	case job := <-done:
		if job.Attempt != 1 {
			t.Fatalf("attempt = %d, want 1", job.Attempt)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("released job was not picked up again")
	}
}

func TestWillRunAgain(t *testing.T) {
	last := &Job{Attempt: 3, MaxAttempts: 3}
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if !WillRunAgain(cancelled, last, context.Canceled) {
		t.Fatal("interrupted job should run again")
	}
	if WillRunAgain(context.Background(), last, errors.New("x")) {
		t.Fatal("last attempt should not run again")
	}
	if WillRunAgain(cancelled, last, nil) {
		t.Fatal("success never runs again")
	}
}

func TestPromoteDelayedOnlyMovesDueJobs(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	now := time.Now()
	q.client.ZAdd(ctx, q.key(Split, "delayed"),
		&redis.Z{Score: float64(now.Add(-time.Second).UnixMilli()), Member: "due"},
		&redis.Z{Score: float64(now.Add(time.Hour).UnixMilli()), Member: "later"},
	)

	n, err := q.PromoteDelayed(ctx, Split)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("promoted %d, want 1", n)
	}
	counts, _ := q.Counts(ctx, Split)
	if counts.Waiting != 1 || counts.Delayed != 1 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := Backoff(time.Second, i+1); got != w {
			t.Errorf("attempt %d: got %s want %s", i+1, got, w)
		}
	}
}

func TestWillRetry(t *testing.T) {
	job := &Job{Attempt: 1, MaxAttempts: 3}
	if !WillRetry(job, errors.New("x")) {
		t.Error("first failure should retry")
	}
	if WillRetry(job, fmt.Errorf("wrapped: %w", ErrSkipRetry)) {
		t.Error("skip-retry error should not retry")
	}
	if WillRetry(&Job{Attempt: 3, MaxAttempts: 3}, errors.New("x")) {
		t.Error("last attempt should not retry")
	}
	if WillRetry(job, nil) {
		t.Error("success is not a retry")
	}
}
