package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/models"
	"github.com/amankumarsingh77/clip-splitter/internal/pipeline"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/amankumarsingh77/clip-splitter/pkg/utils"
)

const gateWait = 10 * time.Second

// Consumer runs stage processors against a queue.
type Consumer interface {
	Process(ctx context.Context, queue string, concurrency int, p queue.Processor) error
	Close()
}

type Worker struct {
	cfg      *config.Config
	logger   logger.Logger
	queue    Consumer
	pipeline *pipeline.Pipeline
}

func NewWorker(cfg *config.Config, logger logger.Logger, q Consumer, p *pipeline.Pipeline) *Worker {
	return &Worker{
		cfg:      cfg,
		logger:   logger,
		queue:    q,
		pipeline: p,
	}
}

// Start registers one processor per stage. It does not block.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker")
	for _, stage := range models.Stages {
		concurrency := w.concurrency(stage)
		if err := w.queue.Process(ctx, string(stage), concurrency, w.pipeline.Processor(stage)); err != nil {
			w.queue.Close()
			return fmt.Errorf("failed to start %s processor: %w", stage, err)
		}
	}
	return nil
}

// Stop waits for running jobs to return.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker")
	w.queue.Close()
}

func (w *Worker) concurrency(stage models.Stage) int {
	switch stage {
	case models.StageExtract:
		return w.cfg.Worker.ExtractConcurrency
	case models.StageTranscribe:
		return w.cfg.Worker.TranscribeConcurrency
	default:
		return w.cfg.Worker.SplitConcurrency
	}
}

// QueueOptions maps the queue config. When gated, workers pause while CPU
// usage is above worker.maxCPUUsage.
func QueueOptions(cfg *config.Config, gated bool) queue.Options {
	opts := queue.Options{
		Attempts:        cfg.Queue.Attempts,
		Backoff:         cfg.Queue.Backoff,
		PollInterval:    cfg.Queue.PollInterval,
		LockDuration:    cfg.Queue.LockDuration,
		RetainCompleted: cfg.Queue.RetainCompleted,
	}
	if gated && cfg.Worker.MaxCPUUsage > 0 {
		limit := cfg.Worker.MaxCPUUsage
		opts.Gate = func() (bool, float64) { return utils.CheckCPUUsage(limit) }
		opts.GateWait = gateWait
	}
	return opts
}

func PipelineOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		UploadDir:         cfg.Server.UploadDir,
		FFmpegTimeout:     cfg.Worker.FFmpegTimeout,
		TranscribeTimeout: cfg.Worker.TranscribeTimeout,
		UploadTimeout:     cfg.Worker.UploadTimeout,
		StoreTimeout:      cfg.Worker.StoreTimeout,
		Retry: utils.RetryOptions{
			MaxRetry:  cfg.Retry.MaxRetry,
			BaseDelay: cfg.Retry.BaseDelay,
		},
	}
}
