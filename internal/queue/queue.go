package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Queue names shared by the producer and the worker processes.
const (
	Extract    = "extract"
	Transcribe = "transcribe"
	Split      = "split"
)

const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateDelayed   = "delayed"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// ErrSkipRetry marks a handler error that no retry can fix.
var ErrSkipRetry = errors.New("skip retry")

var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID          string
	Queue       string
	Name        string
	Payload     json.RawMessage
	Attempt     int
	MaxAttempts int
	EnqueuedAt  time.Time
}

func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

type Handler func(ctx context.Context, job *Job) (json.RawMessage, error)

// Processor handles jobs of one queue. OnCompleted runs after the job is
// marked done, OnFailed after the last attempt failed.
type Processor struct {
	Handle      Handler
	OnCompleted func(ctx context.Context, job *Job, result json.RawMessage)
	OnFailed    func(ctx context.Context, job *Job, err error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, queue, name string, payload interface{}) (string, error)
}

type Counts struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

type JobInfo struct {
	Job       *Job
	State     string
	LastError string
}

// WillRunAgain reports whether job runs again after a failed attempt. When
// ctx is done the worker is stopping and the queue hands the job back
// without counting the attempt; otherwise WillRetry decides.
func WillRunAgain(ctx context.Context, job *Job, err error) bool {
	if err != nil && ctx.Err() != nil {
		return true
	}
	return WillRetry(job, err)
}

// WillRetry reports whether a failed attempt of job will be scheduled again.
func WillRetry(job *Job, err error) bool {
	if err == nil || job == nil {
		return false
	}
	if errors.Is(err, ErrSkipRetry) {
		return false
	}
	return job.Attempt < job.MaxAttempts
}

// Backoff returns the delay before the attempt that follows attempt n.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}
