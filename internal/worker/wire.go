package worker

import (
	"context"
	"fmt"

	"github.com/amankumarsingh77/clip-splitter/internal/bus"
	"github.com/amankumarsingh77/clip-splitter/internal/config"
	"github.com/amankumarsingh77/clip-splitter/internal/media"
	"github.com/amankumarsingh77/clip-splitter/internal/pipeline"
	"github.com/amankumarsingh77/clip-splitter/internal/queue"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks"
	"github.com/amankumarsingh77/clip-splitter/internal/tasks/repository"
	"github.com/amankumarsingh77/clip-splitter/internal/transcribe"
	"github.com/amankumarsingh77/clip-splitter/pkg/db/aws"
	"github.com/amankumarsingh77/clip-splitter/pkg/logger"
	"github.com/go-redis/redis/v8"
)

// Build wires the stage pipeline onto a queue sharing redisClient. The
// returned func releases the NATS connection.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, redisClient *redis.Client, taskRepo tasks.Repository) (*Worker, func(), error) {
	s3Client, presignClient, err := aws.NewAWSClient(ctx, cfg.S3)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create s3 client: %w", err)
	}
	awsRepo := repository.NewAwsRepository(s3Client, presignClient, repository.AWSOptions{
		Bucket:        cfg.S3.Bucket,
		Folder:        cfg.S3.Folder,
		PublicBaseURL: cfg.S3.PublicBaseURL,
		PresignExpiry: cfg.S3.PresignExpiry,
	})

	var events pipeline.EventPublisher = bus.NopPublisher{}
	release := func() {}
	if cfg.Nats.URL != "" {
		natsClient, err := bus.Connect(cfg.Nats.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to nats: %w", err)
		}
		release = natsClient.Close
		events = bus.NewEventPublisher(natsClient, cfg.Nats.Subject)
		log.Infof("publishing task events to %s", cfg.Nats.Subject)
	}

	q := queue.NewRedisQueue(redisClient, cfg.Queue.Prefix, QueueOptions(cfg, true), log)
	p := pipeline.New(pipeline.Deps{
		Queue:       q,
		Store:       taskRepo,
		Engine:      media.NewEngine(cfg.FFmpeg),
		Transcriber: transcribe.NewClient(cfg.OpenAI),
		Uploader:    awsRepo,
		Events:      events,
	}, PipelineOptions(cfg), log)

	return NewWorker(cfg, log, q, p), release, nil
}
