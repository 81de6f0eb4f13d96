package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/media"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/internal/transcribe"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
)

type MediaEngine interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
	CutSegment(ctx context.Context, input, output string, start float64, duration int, codec media.Codec) error
	ClipCodec() media.Codec
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcribe.RawSegment, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev models.TaskEvent) error
}

type Deps struct {
	Queue       queue.Enqueuer
	Store       tasks.Repository
	Engine      MediaEngine
	Transcriber Transcriber
	Uploader    tasks.AWSRepository
	Events      EventPublisher
}

type Options struct {
	// UploadDir holds one directory per task with the source video and intermediates.
	UploadDir         string
	FFmpegTimeout     time.Duration
	TranscribeTimeout time.Duration
	UploadTimeout     time.Duration
	StoreTimeout      time.Duration
	Retry             utils.RetryOptions
}

type Pipeline struct {
	queue       queue.Enqueuer
	checkpoint  *Checkpointer
	engine      MediaEngine
	transcriber Transcriber
	uploader    tasks.AWSRepository
	events      EventPublisher
	opts        Options
	logger      logger.Logger
	now         func() time.Time
}

func New(deps Deps, opts Options, log logger.Logger) *Pipeline {
	return &Pipeline{
		queue:       deps.Queue,
		checkpoint:  NewCheckpointer(deps.Store, opts.Retry, opts.StoreTimeout, log),
		engine:      deps.Engine,
		transcriber: deps.Transcriber,
		uploader:    deps.Uploader,
		events:      deps.Events,
		opts:        opts,
		logger:      log,
		now:         time.Now,
	}
}

// Processor adapts a stage to the queue: decode the job, run the stage,
// and route completion or terminal failure through the transition table.
func (p *Pipeline) Processor(stage models.Stage) queue.Processor {
	return queue.Processor{
		Handle: func(ctx context.Context, qj *queue.Job) (json.RawMessage, error) {
			var job models.Job
			if err := qj.Decode(&job); err != nil {
				return nil, validationError(stage, "decode job", err)
			}
			p.publish(ctx, job.ID, stage, models.EventStarted, qj.Attempt, nil)
			out, err := p.Run(ctx, stage, job, func(err error) bool { return queue.WillRunAgain(ctx, qj, err) })
			if err != nil {
				return nil, err
			}
			return json.Marshal(out)
		},
		OnCompleted: func(ctx context.Context, qj *queue.Job, result json.RawMessage) {
			var job models.Job
			if err := json.Unmarshal(result, &job); err != nil {
				p.logger.Errorf("Pipeline.OnCompleted - decode %s result of job %s: %v", stage, qj.ID, err)
				return
			}
			p.Completed(ctx, stage, job, qj.Attempt)
		},
		OnFailed: func(ctx context.Context, qj *queue.Job, err error) {
			var job models.Job
			if derr := qj.Decode(&job); derr != nil {
				p.logger.Errorf("Pipeline.OnFailed - decode %s job %s: %v", stage, qj.ID, derr)
				return
			}
			p.Failed(ctx, stage, job, qj.Attempt, err)
		},
	}
}

// Run executes one attempt of stage. willRetry tells the stage whether a
// failure will be attempted again.
func (p *Pipeline) Run(ctx context.Context, stage models.Stage, job models.Job, willRetry func(error) bool) (models.Job, error) {
	switch stage {
	case models.StageExtract:
		return p.Extract(ctx, job)
	case models.StageTranscribe:
		return p.Transcribe(ctx, job)
	case models.StageSplit:
		return p.Split(ctx, job, willRetry)
	default:
		return job, validationError(stage, "run", fmt.Errorf("unknown stage %q", stage))
	}
}

// Completed applies the success transition of stage: enqueue the next stage
// or persist the final task state.
func (p *Pipeline) Completed(ctx context.Context, stage models.Stage, job models.Job, attempt int) {
	tr := models.OnStageSucceeded(stage, job)
	if tr.HasNext {
		name := tr.Next.JobName(job.Filename)
		if _, err := p.queue.Enqueue(ctx, string(tr.Next), name, job); err != nil {
			err = infrastructureError(stage, "enqueue "+string(tr.Next), err)
			p.logger.Errorf("Pipeline.Completed - task %s: %v", job.ID, err)
			p.checkpoint.Checkpoint(ctx, job.ID, models.OnStageFailed(stage))
			p.publish(ctx, job.ID, stage, models.EventFailed, attempt, err)
			return
		}
		p.logger.Infof("task %s: %s done, queued %s", job.ID, stage, name)
	}
	if tr.Update != nil {
		p.checkpoint.Checkpoint(ctx, job.ID, tr.Update)
		p.logger.Infof("task %s: completed with %d clip(s)", job.ID, len(job.Outputs))
	}
	p.publish(ctx, job.ID, stage, models.EventCompleted, attempt, nil)
}

// Failed records a terminal failure of stage.
func (p *Pipeline) Failed(ctx context.Context, stage models.Stage, job models.Job, attempt int, cause error) {
	p.logger.Errorf("task %s: %s failed (%s): %v", job.ID, stage, KindOf(cause), cause)
	p.checkpoint.Checkpoint(ctx, job.ID, models.OnStageFailed(stage))
	p.publish(ctx, job.ID, stage, models.EventFailed, attempt, cause)
}

func (p *Pipeline) publish(ctx context.Context, taskID string, stage models.Stage, state string, attempt int, cause error) {
	if p.events == nil {
		return
	}
	ev := models.TaskEvent{TaskID: taskID, Stage: stage, State: state, Attempt: attempt, At: p.now()}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := p.events.Publish(ctx, ev); err != nil {
		p.logger.Warnf("failed to publish %s event for task %s: %v", state, taskID, err)
	}
}

// taskDir is the upload directory of a task, or "" when id cannot name one.
func (p *Pipeline) taskDir(id string) string {
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return ""
	}
	return filepath.Join(p.opts.UploadDir, id)
}

func (p *Pipeline) cleanup(taskID string) {
	dir := p.taskDir(taskID)
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		p.logger.Warnf("failed to remove %s: %v", dir, err)
	}
}

func withTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}
